package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// IDs carry the full 128-bit UUID: ledger entries are written to their own
// key, so a colliding id would silently overwrite an earlier entry.
func GenerateTransactionID() string {
	return fmt.Sprintf("tx_%s_%s",
		time.Now().Format("20060102"),
		uuid.New().String())
}

func GenerateHoldID() string {
	return fmt.Sprintf("hold_%s_%s",
		time.Now().Format("20060102"),
		uuid.New().String())
}

// DayKey is the UTC calendar-day bucket used for daily meters.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// UntilNextDay returns the time remaining until the next UTC midnight,
// when daily meters roll over.
func UntilNextDay(t time.Time) time.Duration {
	t = t.UTC()
	next := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
	return next.Sub(t)
}

func FormatCurrency(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
