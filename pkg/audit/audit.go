// Package audit records guard decisions durably so operators can answer
// "why was this transfer rejected" after the fact. Recording is
// best-effort and out-of-band: a failed audit write never fails the
// batch that produced the decision.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Decision is one recorded guard outcome.
type Decision struct {
	ID         string    `json:"id"`
	RecordedAt time.Time `json:"recorded_at"`

	Action string `json:"action"`
	Mint   string `json:"mint"`
	From   string `json:"from,omitempty"`
	To     string `json:"to,omitempty"`
	Amount uint64 `json:"amount"`
	Price  uint64 `json:"price,omitempty"`

	// Variant is the governance path taken: "policy", "ruleset", or
	// "none".
	Variant string `json:"variant"`

	// Result is "allowed" or "rejected"; Reason carries the error text
	// for rejections.
	Result string `json:"result"`
	Reason string `json:"reason,omitempty"`

	FeeBp     uint64 `json:"fee_bp,omitempty"`
	FeeAmount uint64 `json:"fee_amount,omitempty"`

	Programs []string `json:"programs,omitempty"`
}

// Results.
const (
	ResultAllowed  = "allowed"
	ResultRejected = "rejected"
)

// NewDecision stamps identity and time onto a decision.
func NewDecision() *Decision {
	return &Decision{
		ID:         uuid.NewString(),
		RecordedAt: time.Now().UTC(),
	}
}

// Query filters decision listings. Zero fields match everything.
type Query struct {
	Mint   string
	Result string
	Since  time.Time
	Limit  int
}

// Storage persists decisions.
type Storage interface {
	Store(ctx context.Context, d *Decision) error
	List(ctx context.Context, q Query) ([]*Decision, error)
	Count(ctx context.Context) (int64, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Close() error
}
