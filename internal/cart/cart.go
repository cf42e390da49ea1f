package cart

import (
	"github.com/fjod/go_store/internal/domain"
)

// Item is a product snapshot taken when it was added to the cart.
type Item struct {
	ProductID    string `json:"id"`
	Name         string `json:"name"`
	PriceInCents int64  `json:"priceInCents"`
	ImagePath    string `json:"imagePath"`
	Quantity     int64  `json:"quantity"`
}

// Cart holds at most one entry per product id, each with quantity >= 1.
// The zero value is an empty cart.
type Cart struct {
	items []Item
}

// Add inserts item with quantity 1, or bumps the quantity of an existing entry
// by one. The quantity carried by item is ignored.
func (c *Cart) Add(item Item) {
	for i := range c.items {
		if c.items[i].ProductID == item.ProductID {
			c.items[i].Quantity++
			return
		}
	}
	item.Quantity = 1
	c.items = append(c.items, item)
}

func (c *Cart) Remove(productID string) {
	for i := range c.items {
		if c.items[i].ProductID == productID {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return
		}
	}
}

// SetQuantity replaces the quantity of an existing entry. n <= 0 removes it;
// unknown ids are ignored.
func (c *Cart) SetQuantity(productID string, n int64) {
	if n <= 0 {
		c.Remove(productID)
		return
	}
	for i := range c.items {
		if c.items[i].ProductID == productID {
			c.items[i].Quantity = n
			return
		}
	}
}

func (c *Cart) Clear() {
	c.items = nil
}

func (c *Cart) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Cart) Len() int {
	return len(c.items)
}

func (c *Cart) TotalItems() int64 {
	var n int64
	for _, it := range c.items {
		n += it.Quantity
	}
	return n
}

func (c *Cart) TotalPrice() int64 {
	var total int64
	for _, it := range c.items {
		total += it.PriceInCents * it.Quantity
	}
	return total
}

// Manifest is the (id, quantity) list sent to checkout.
func (c *Cart) Manifest() []domain.ManifestItem {
	out := make([]domain.ManifestItem, 0, len(c.items))
	for _, it := range c.items {
		out = append(out, domain.ManifestItem{ID: it.ProductID, Quantity: it.Quantity})
	}
	return out
}

// fromItems rebuilds a cart from a decoded snapshot, dropping entries that
// would break the one-entry-per-product and positive-quantity rules.
func fromItems(items []Item) Cart {
	var c Cart
	index := make(map[string]int, len(items))
	for _, it := range items {
		if it.ProductID == "" || it.Quantity < 1 {
			continue
		}
		if i, ok := index[it.ProductID]; ok {
			c.items[i].Quantity += it.Quantity
			continue
		}
		index[it.ProductID] = len(c.items)
		c.items = append(c.items, it)
	}
	return c
}
