package checkout

import (
	"context"

	"github.com/fjod/go_store/internal/domain"
	"github.com/fjod/go_store/internal/payment"
)

type mockProductReader struct {
	products map[string]*domain.Product
	err      error
	calls    int
}

func (m *mockProductReader) GetAvailableProducts(_ context.Context, ids []string) ([]*domain.Product, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	seen := map[string]bool{}
	var out []*domain.Product
	for _, id := range ids {
		p, ok := m.products[id]
		if !ok || !p.Purchasable() || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, p)
	}
	return out, nil
}

type mockProcessor struct {
	req   *payment.SessionRequest
	err   error
	calls int
}

func (m *mockProcessor) CreateCheckoutSession(_ context.Context, req payment.SessionRequest) (*payment.Session, error) {
	m.calls++
	m.req = &req
	if m.err != nil {
		return nil, m.err
	}
	return &payment.Session{ID: "cs_1", URL: "https://pay.example.com/cs_1"}, nil
}
