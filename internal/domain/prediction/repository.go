package prediction

import (
	"context"
	"time"

	"costguardian/internal/domain/usage"
)

// AuditStore persists stored predictions for later accuracy comparison.
// Rows are append-only.
type AuditStore interface {
	// Append saves a new stored prediction
	Append(ctx context.Context, p *StoredPrediction) error

	// QueryRecent returns up to limit predictions of the subject created at or after since, newest first
	QueryRecent(ctx context.Context, subject usage.Subject, since time.Time, limit int) ([]*StoredPrediction, error)

	// ListRecentSubjects returns distinct subjects with predictions created at or after since
	ListRecentSubjects(ctx context.Context, since time.Time, limit int) ([]usage.Subject, error)
}
