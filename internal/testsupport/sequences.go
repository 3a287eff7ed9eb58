package testsupport

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Seeded from the clock so ids stay unique across runs against a shared database
var testSequence = uint64(time.Now().UnixNano() % 1000000)

// NextSequence returns next unique sequence number
func NextSequence() uint64 {
	return atomic.AddUint64(&testSequence, 1)
}

// UniqueName generates a unique name with given prefix
// Example: UniqueName("user") -> "user_123456"
func UniqueName(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, NextSequence())
}

// UniqueOrganization generates a unique organization id
func UniqueOrganization() string {
	return fmt.Sprintf("org_%d", NextSequence())
}

// UniqueString generates a unique string identifier backed by a UUID
func UniqueString() string {
	return uuid.New().String()
}
