package domain

import (
	"strconv"
	"testing"
)

func TestWellFor96KnownPositions(t *testing.T) {
	cases := []struct {
		idx0  int
		plate int
		well  string
	}{
		{0, 1, "A1"},
		{1, 1, "B1"},
		{7, 1, "H1"},
		{8, 1, "A2"},
		{95, 1, "H12"},
		{96, 2, "A1"},
		{191, 2, "H12"},
		{192, 3, "A1"},
		{383, 4, "H12"},
	}
	for _, tc := range cases {
		plate, well := WellFor96(tc.idx0)
		if plate != tc.plate || well != tc.well {
			t.Fatalf("WellFor96(%d) = (%d,%s), want (%d,%s)", tc.idx0, plate, well, tc.plate, tc.well)
		}
	}
}

func TestWellFor96Injective(t *testing.T) {
	seen := make(map[string]int, MaxCombinations)
	for idx0 := 0; idx0 < MaxCombinations; idx0++ {
		plate, well := WellFor96(idx0)
		key := string(rune('0'+plate)) + well
		if prev, dup := seen[key]; dup {
			t.Fatalf("indices %d and %d map to the same well %s", prev, idx0, key)
		}
		seen[key] = idx0
	}
}

func TestTo384KnownConversions(t *testing.T) {
	cases := []struct {
		plate int
		well  string
		want  string
	}{
		{1, "A1", "A1"},
		{1, "B1", "C1"},
		{1, "A2", "B1"},
		{1, "B2", "D1"},
		{1, "H12", "P6"},
		{2, "A1", "A7"},
		{3, "A1", "A13"},
		{4, "H12", "P24"},
	}
	for _, tc := range cases {
		got, err := To384(tc.plate, tc.well)
		if err != nil {
			t.Fatalf("To384(%d,%s): %v", tc.plate, tc.well, err)
		}
		if got != tc.want {
			t.Fatalf("To384(%d,%s) = %s, want %s", tc.plate, tc.well, got, tc.want)
		}
	}
}

func TestTo384RejectsMalformedInput(t *testing.T) {
	for _, well := range []string{"", "A", "Z1", "A0", "A13", "11", "Ax"} {
		if _, err := To384(1, well); err == nil {
			t.Fatalf("expected rejection of %q", well)
		}
	}
	if _, err := To384(0, "A1"); err == nil {
		t.Fatalf("expected rejection of plate 0")
	}
}

func TestTo384InjectiveAcrossFourPlates(t *testing.T) {
	seen := make(map[string]string, MaxCombinations)
	for plate := 1; plate <= 4; plate++ {
		for row := 0; row < PlateRows96; row++ {
			for col := 1; col <= PlateColumns96; col++ {
				well96 := string(rune('A'+row)) + strconv.Itoa(col)
				got, err := To384(plate, well96)
				if err != nil {
					t.Fatalf("To384(%d,%s): %v", plate, well96, err)
				}
				src := strconv.Itoa(plate) + ":" + well96
				if prev, dup := seen[got]; dup {
					t.Fatalf("%s and %s both map to %s", prev, src, got)
				}
				seen[got] = src
			}
		}
	}
	if len(seen) != MaxCombinations {
		t.Fatalf("expected %d distinct 384 positions, got %d", MaxCombinations, len(seen))
	}
}

func TestWellAddressFor(t *testing.T) {
	addr := WellAddressFor(96)
	if addr.Plate96 != 2 || addr.Well96 != "A1" || addr.Well384 != "A7" {
		t.Fatalf("unexpected address for idx0=96: %+v", addr)
	}
}
