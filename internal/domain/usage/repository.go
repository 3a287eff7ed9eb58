package usage

import (
	"context"
	"time"
)

// Reader reads usage history for a subject
type Reader interface {
	// Query returns every record of the subject with timestamp >= since
	Query(ctx context.Context, subject Subject, since time.Time) ([]*UsageRecord, error)

	// ActualCost returns realized spend of the subject in [from, to)
	ActualCost(ctx context.Context, subject Subject, from, to time.Time) (float64, error)
}

// Repository defines operations for usage history storage
type Repository interface {
	Reader

	// Store saves a usage record (buffered)
	Store(ctx context.Context, record *UsageRecord) error
}
