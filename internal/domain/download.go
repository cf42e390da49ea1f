package domain

import "time"

// DownloadVerification is a single-use, time-limited download token.
type DownloadVerification struct {
	ID        string
	OrderID   string
	ProductID string
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (v *DownloadVerification) Expired(now time.Time) bool {
	return now.After(v.ExpiresAt)
}
