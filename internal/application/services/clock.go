package services

import (
	"time"

	"github.com/google/uuid"
)

// RealClock returns the system time in UTC.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC() }

// UUIDGenerator returns random UUIDv4 strings.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.NewString() }

// laterOf keeps updatedAt non-decreasing when the clock steps back.
func laterOf(prev, now time.Time) time.Time {
	if now.Before(prev) {
		return prev
	}
	return now
}
