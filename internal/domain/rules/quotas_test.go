package rules

import (
	"testing"
	"time"
)

func TestDayKeyUsesTimezone(t *testing.T) {
	loc, err := time.LoadLocation("America/Edmonton")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	utc := time.Date(2026, 2, 9, 3, 30, 0, 0, time.UTC) // 20:30 local, Feb 8
	got := DayKey(utc, loc)
	want := "2026-02-08"
	if got != want {
		t.Fatalf("unexpected day key: got %s want %s", got, want)
	}
}

func TestDayKeyDefaultsToUTC(t *testing.T) {
	utc := time.Date(2026, 2, 8, 23, 59, 59, 0, time.UTC)
	got := DayKey(utc, nil)
	want := "2026-02-08"
	if got != want {
		t.Fatalf("unexpected day key: got %s want %s", got, want)
	}
}

func TestNextResetAtUsesTimezone(t *testing.T) {
	loc, err := time.LoadLocation("America/Edmonton")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	now := time.Date(2026, 2, 9, 3, 30, 0, 0, time.UTC) // 20:30 local, Feb 8
	got := NextResetAt(now, loc)
	want := time.Date(2026, 2, 9, 7, 0, 0, 0, time.UTC) // midnight local Feb 9
	if !got.Equal(want) {
		t.Fatalf("unexpected reset time: got %s want %s", got, want)
	}
}

func TestSuperlikeQuotaEnabled(t *testing.T) {
	if SuperlikeQuotaEnabled(0) || SuperlikeQuotaEnabled(-1) {
		t.Fatalf("non-positive limit must disable the quota")
	}
	if !SuperlikeQuotaEnabled(DefaultSuperlikesPerDay) {
		t.Fatalf("default limit must enable the quota")
	}
}
