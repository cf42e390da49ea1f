package domain

import (
	"strings"
	"time"
)

type Product struct {
	ID                     string
	Name                   string
	PriceInCents           int64
	Description            string
	ImagePath              string
	FilePath               string
	IsAvailableForPurchase bool
	IsDeleted              bool
	Categories             []Category
	OrderCount             int64
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// Purchasable reports whether the product may appear in a new checkout.
func (p *Product) Purchasable() bool {
	return p.IsAvailableForPurchase && !p.IsDeleted
}

// HasRemoteFile is true when FilePath is an absolute http(s) URL.
func (p *Product) HasRemoteFile() bool {
	return IsRemoteURL(p.FilePath)
}

func IsRemoteURL(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// ProductUpdate is a partial update; nil fields are left untouched.
// A non-nil CategoryIDs replaces every category association.
type ProductUpdate struct {
	Name                   *string
	PriceInCents           *int64
	Description            *string
	ImagePath              *string
	FilePath               *string
	IsAvailableForPurchase *bool
	CategoryIDs            *[]string
}

func (u ProductUpdate) HasFieldChanges() bool {
	return u.Name != nil || u.PriceInCents != nil || u.Description != nil ||
		u.ImagePath != nil || u.FilePath != nil || u.IsAvailableForPurchase != nil
}

type SortField string

const (
	SortByCreatedAt SortField = "createdAt"
	SortByUpdatedAt SortField = "updatedAt"
	SortByName      SortField = "name"
	SortByPrice     SortField = "priceInCents"
)

type ProductFilter struct {
	AvailableOnly  bool
	IncludeDeleted bool
	Search         string
	CategorySlug   string
	SortBy         SortField
	Ascending      bool
}
