package core

import (
	"strings"

	"github.com/google/uuid"
)

// IDFunc generates transaction identifiers.
type IDFunc func() string

// NewID returns a TX-prefixed UUIDv7: a millisecond timestamp followed by
// 74 random bits, so ids sort roughly by creation time.
func NewID() string {
	u, err := uuid.NewV7()
	if err != nil {
		u = uuid.New()
	}
	return "TX" + strings.ReplaceAll(u.String(), "-", "")
}
