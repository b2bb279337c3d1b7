package service

import (
	"strings"
	"time"
)

// defaultSyncInterval applies to unrecognized frequency values; an unknown
// string must never fail a sync run.
const defaultSyncInterval = time.Hour

var syncIntervals = map[string]time.Duration{
	"every5min":    5 * time.Minute,
	"every15min":   15 * time.Minute,
	"every30min":   30 * time.Minute,
	"hourly":       time.Hour,
	"every2hours":  2 * time.Hour,
	"every6hours":  6 * time.Hour,
	"every12hours": 12 * time.Hour,
	"daily":        24 * time.Hour,
	"weekly":       7 * 24 * time.Hour,
	"monthly":      30 * 24 * time.Hour,
}

// SyncInterval resolves a frequency name to its duration.
func SyncInterval(frequency string) time.Duration {
	if d, ok := syncIntervals[strings.ToLower(strings.TrimSpace(frequency))]; ok {
		return d
	}
	return defaultSyncInterval
}

// NextSyncAt computes the next scheduled sync time from a frequency name.
func NextSyncAt(frequency string, now time.Time) time.Time {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return now.Add(SyncInterval(frequency))
}
