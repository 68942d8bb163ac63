package core

import (
	"testing"
	"time"
)

func TestClockFuncNilFallsBackToUTC(t *testing.T) {
	got := ClockFunc(nil).Now()
	if got.IsZero() {
		t.Fatal("expected a non-zero time from the nil clock")
	}
	if got.Location() != time.UTC {
		t.Fatalf("expected UTC, got %s", got.Location())
	}
}

func TestClockFuncDelegatesAndNormalizesToUTC(t *testing.T) {
	pinned := time.Date(2026, 7, 4, 12, 34, 56, 0, time.FixedZone("offset", -5*3600))
	got := ClockFunc(func() time.Time { return pinned }).Now()
	if !got.Equal(pinned) {
		t.Fatalf("expected %s, got %s", pinned.UTC(), got)
	}
	if got.Location() != time.UTC {
		t.Fatalf("expected UTC, got %s", got.Location())
	}
}

func TestSelectNowFuncPrefersStoreProvider(t *testing.T) {
	store := NewMemoryStore(NewRulesEngine())
	pinned := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("cet", 3600))
	store.SetNowFunc(func() time.Time { return pinned })

	ignored := ClockFunc(func() time.Time { return time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC) })
	nowFn := selectNowFunc(store, ignored)
	if got := nowFn(); !got.Equal(pinned) || got.Location() != time.UTC {
		t.Fatalf("expected the store clock in UTC, got %s", got)
	}

	// Re-pinning the store clock must show through an already selected fn so
	// audit timestamps track the store's CreatedAt/UpdatedAt values.
	later := pinned.Add(time.Hour)
	store.SetNowFunc(func() time.Time { return later })
	if got := nowFn(); !got.Equal(later) {
		t.Fatalf("expected the re-pinned store clock, got %s", got)
	}
}

func TestSelectNowFuncFallsBackToClockThenSystem(t *testing.T) {
	pinned := time.Date(2030, 5, 6, 7, 8, 9, 0, time.UTC)
	nowFn := selectNowFunc(nil, ClockFunc(func() time.Time { return pinned }))
	if got := nowFn(); !got.Equal(pinned) {
		t.Fatalf("expected the configured clock, got %s", got)
	}

	system := selectNowFunc(nil, nil)
	if got := system(); got.IsZero() || got.Location() != time.UTC {
		t.Fatalf("expected the system clock in UTC, got %s", got)
	}
}
