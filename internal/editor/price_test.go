package editor

import (
	"context"
	"slices"
	"testing"
	"time"

	"centropos/backend/internal/domain"
)

func TestClampRate(t *testing.T) {
	bounds := domain.UomDetail{Uom: "Nos", MinPrice: d("8"), MaxPrice: d("20")}
	cases := []struct {
		rate    string
		want    string
		changed bool
	}{
		{"5", "8", true},
		{"8", "8", false},
		{"12.5", "12.5", false},
		{"25", "20", true},
		{"0", "0", false},
	}
	for _, tc := range cases {
		got, changed := ClampRate(d(tc.rate), bounds)
		if !got.Equal(d(tc.want)) || changed != tc.changed {
			t.Fatalf("ClampRate(%s) = %s, %v; want %s, %v", tc.rate, got, changed, tc.want, tc.changed)
		}
		again, changedAgain := ClampRate(got, bounds)
		if !again.Equal(got) || changedAgain {
			t.Fatalf("ClampRate is not idempotent for %s", tc.rate)
		}
	}
}

func TestClampRateIgnoresUnsetBounds(t *testing.T) {
	got, changed := ClampRate(d("999"), domain.UomDetail{Uom: "Box"})
	if changed || !got.Equal(d("999")) {
		t.Fatalf("expected no clamp without bounds, got %s", got)
	}
	got, changed = ClampRate(d("1"), domain.UomDetail{Uom: "Box", MaxPrice: d("50")})
	if changed || !got.Equal(d("1")) {
		t.Fatalf("expected no lower clamp with only a max, got %s", got)
	}
}

func TestRateBelowMinimumIsClampedAndFlagged(t *testing.T) {
	f := newFixture(t, newInventory(t), liveConfig(), sku1("1"))

	f.typeAndEnter(t, 0, domain.FieldRate, "5")
	mustEqual(t, f.line(t, 0).StandardRate, "8", "rate")
	if !slices.Contains(f.rec.noticeCodes(), domain.NoticePriceClamped) {
		t.Fatalf("expected price_clamped notice, got %v", f.rec.noticeCodes())
	}

	for _, want := range []bool{true, false} {
		select {
		case got := <-f.rec.flags:
			if got != want {
				t.Fatalf("flag = %v, want %v", got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for flag %v", want)
		}
	}
	if f.editor.Flagged(context.Background(), 0) {
		t.Fatalf("flag should have cleared")
	}
}

func TestFlagHoldsForWarningDuration(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PriceWarningDuration = time.Hour
	f := newFixture(t, newInventory(t), cfg, sku1("1"))

	f.typeAndEnter(t, 0, domain.FieldRate, "50")
	mustEqual(t, f.line(t, 0).StandardRate, "20", "rate")
	if !f.editor.Flagged(context.Background(), 0) {
		t.Fatalf("expected the line to be flagged")
	}
}

func TestZeroRateBypassesBounds(t *testing.T) {
	f := newFixture(t, newInventory(t), liveConfig(), sku1("1"))

	f.typeAndEnter(t, 0, domain.FieldRate, "0")
	mustEqual(t, f.line(t, 0).StandardRate, "0", "rate")
	if slices.Contains(f.rec.noticeCodes(), domain.NoticePriceClamped) {
		t.Fatalf("a zero rate must not be clamped")
	}
}

func TestRateWithoutOracleIsNotClamped(t *testing.T) {
	f := newFixture(t, downOracle{}, liveConfig(), sku1("1"))

	f.typeAndEnter(t, 0, domain.FieldRate, "5")
	mustEqual(t, f.line(t, 0).StandardRate, "5", "rate")
	if !slices.Contains(f.rec.noticeCodes(), domain.NoticeOracleUnavailable) {
		t.Fatalf("expected oracle_unavailable notice, got %v", f.rec.noticeCodes())
	}
}
