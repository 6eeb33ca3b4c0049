package service

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewBookingReference returns FL followed by the first 8 hex characters
// of a random UUID, upper-cased.
func NewBookingReference() string {
	return "FL" + shortID()
}

// NewTransactionID returns TXN<epoch-ms>_<8 uppercase hex>.
func NewTransactionID(now time.Time) string {
	return "TXN" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + shortID()
}

func shortID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
