package datenorm

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func fixedNormalizer(correct bool) *Normalizer {
	return &Normalizer{
		Now:              func() time.Time { return time.Date(2025, time.March, 15, 10, 30, 0, 0, time.Local) },
		CorrectStaleYear: correct,
	}
}

func TestNormalizeCanonicalDates(t *testing.T) {
	n := fixedNormalizer(true)
	cases := map[string]string{
		"2025-03-10":           "2025-03-10",
		"2025-3-5":             "2025-03-05",
		"'2025-03-10'":         "2025-03-10",
		"2025-03-10T08:30:00Z": "2025-03-10",
		"2025-02-30":           "2025-02-28",
		"2025-03":              "2025-03-01",
		"2024-03-10":           "2025-03-10",
		"2024-10-01":           "2024-10-01",
		"2019-11-01":           "2019-11-01",
		"2026-01-20":           "2025-01-20",
		"2024-08-20":           "2025-08-20",
	}
	for input, want := range cases {
		if got := n.Normalize(input); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestNormalizeExactSkipsStaleYearCorrection(t *testing.T) {
	n := fixedNormalizer(true)
	if got := n.NormalizeExact("2024-03-10"); got != "2024-03-10" {
		t.Fatalf("NormalizeExact = %q", got)
	}
	n = fixedNormalizer(false)
	if got := n.Normalize("2024-03-10"); got != "2024-03-10" {
		t.Fatalf("Normalize without correction = %q", got)
	}
}

func TestNormalizeRelativeExpressions(t *testing.T) {
	n := fixedNormalizer(true)
	cases := map[string]string{
		"CURRENT_DATE":                              "2025-03-15",
		"CURRENT_DATE - INTERVAL '1 DAY'":           "2025-03-14",
		"current_date - interval '7' day":           "2025-03-08",
		"CURRENT_DATE + INTERVAL '2 MONTHS'":        "2025-05-15",
		"now":                                       "2025-03-15",
		"date('now')":                               "2025-03-15",
		"date('now', '-1 day')":                     "2025-03-14",
		"date('now', 'start of month', '-1 month')": "2025-02-01",
		"now -7 days":                               "2025-03-08",
		"yesterday":                                 "2025-03-14",
	}
	for input, want := range cases {
		if got := n.Normalize(input); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestNormalizeFallsBackToTodayWithWarning(t *testing.T) {
	var logs bytes.Buffer
	n := fixedNormalizer(true)
	n.Logger = slog.New(slog.NewTextHandler(&logs, nil))

	if got := n.Normalize("last tuesday-ish"); got != "2025-03-15" {
		t.Fatalf("fallback = %q", got)
	}
	if !strings.Contains(logs.String(), "unrecognised date expression") {
		t.Fatalf("expected warning log, got %q", logs.String())
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	n := fixedNormalizer(true)
	for _, input := range []string{
		"2024-03-10", "2024-10-01", "2024-02-29", "2025-13-01", "CURRENT_DATE - INTERVAL '40 days'",
		"date('now', 'start of month')", "2025-06", "garbage",
	} {
		once := n.Normalize(input)
		if twice := n.Normalize(once); twice != once {
			t.Errorf("Normalize(%q) = %q but Normalize(%q) = %q", input, once, once, twice)
		}
	}
}

func TestAddMonthsClampsDay(t *testing.T) {
	got := addMonths(time.Date(2025, time.January, 31, 0, 0, 0, 0, time.UTC), 1)
	if got.Format(layout) != "2025-02-28" {
		t.Fatalf("addMonths = %s", got.Format(layout))
	}
}
