package performance

import "context"

// Reader queries the performance log
type Reader interface {
	// Query returns records matching the filter, newest first
	Query(ctx context.Context, filter Filter) ([]*Record, error)
}

// Writer appends to the performance log
type Writer interface {
	Append(ctx context.Context, record *Record) error
}

// Repository combines read and write access to the performance log
type Repository interface {
	Reader
	Writer
}
