package services

import (
	"crypto/rand"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

const numberAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// newID returns a new ULID string. ULIDs sort lexicographically by creation time,
// which the cursor pagination in the repositories relies on.
func newID() string {
	return ulid.Make().String()
}

// formatNumber builds a human-readable document number: prefix, the millisecond
// timestamp in base36, and a random 6-character suffix.
func formatNumber(prefix string, now time.Time) string {
	suffix := make([]byte, 6)
	random := make([]byte, 6)
	if _, err := rand.Read(random); err != nil {
		// Entropy exhaustion is not recoverable here; fall back to ULID randomness.
		copy(random, ulid.Make().Entropy())
	}
	for i, b := range random {
		suffix[i] = numberAlphabet[int(b)%len(numberAlphabet)]
	}
	ts := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
	return prefix + "-" + ts + "-" + string(suffix)
}

func newOrderNumber(now time.Time) string {
	return formatNumber("ORD", now)
}

func newInvoiceNumber(now time.Time) string {
	return formatNumber("INV", now)
}
