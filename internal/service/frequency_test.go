package service

import (
	"testing"
	"time"
)

func TestNextSyncAt_Daily(t *testing.T) {
	now := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	got := NextSyncAt("daily", now)
	if !got.Equal(now.Add(24 * time.Hour)) {
		t.Fatalf("got=%s want 24h ahead", got)
	}
}

func TestNextSyncAt_UnknownDefaultsToOneHour(t *testing.T) {
	now := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	got := NextSyncAt("bogus", now)
	if !got.Equal(now.Add(time.Hour)) {
		t.Fatalf("got=%s want 1h ahead", got)
	}
}

func TestSyncInterval_Table(t *testing.T) {
	cases := map[string]time.Duration{
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
		" Hourly ":     time.Hour,
		"":             time.Hour,
	}
	for freq, want := range cases {
		if got := SyncInterval(freq); got != want {
			t.Fatalf("SyncInterval(%q)=%s want %s", freq, got, want)
		}
	}
}
