package payment

import (
	"context"
	"errors"
)

const EventCheckoutSessionCompleted = "checkout.session.completed"

var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrUnavailable      = errors.New("payment processor unavailable")
)

type LineItem struct {
	Name            string
	Description     string
	UnitAmountCents int64
	Quantity        int64
}

type SessionRequest struct {
	CustomerEmail string
	LineItems     []LineItem
	Metadata      map[string]string
	SuccessURL    string
	CancelURL     string
}

type Session struct {
	ID  string
	URL string
}

// Processor creates hosted checkout sessions.
type Processor interface {
	CreateCheckoutSession(ctx context.Context, req SessionRequest) (*Session, error)
}

// CompletedSession is the part of a completed checkout the fulfillment step needs.
type CompletedSession struct {
	ID            string
	CustomerEmail string
	Metadata      map[string]string
}

type Event struct {
	ID   string
	Type string
	// Session is set for checkout.session.completed events.
	Session *CompletedSession
}

// EventVerifier authenticates a webhook payload against its signature header.
type EventVerifier interface {
	VerifyEvent(payload []byte, signature string) (*Event, error)
}
