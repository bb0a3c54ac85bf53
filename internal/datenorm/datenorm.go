// Package datenorm turns the date expressions emitted by the translator into
// canonical YYYY-MM-DD strings.
package datenorm

import (
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const layout = "2006-01-02"

var (
	fullDatePattern    = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})(?:[t ].*)?$`)
	yearMonthPattern   = regexp.MustCompile(`^(\d{4})-(\d{1,2})$`)
	currentDatePattern = regexp.MustCompile(`^current_date(?:\s*([+-])\s*interval\s*'?\s*(\d+)\s*(days?|months?)?\s*'?\s*(days?|months?)?)?$`)
	legacyCallPattern  = regexp.MustCompile(`^date\(\s*'now'\s*(.*)\)$`)
	legacyModifier     = regexp.MustCompile(`([+-]?\s*\d+)\s*(days?|months?)|start of month`)
)

// Normalizer canonicalises date strings relative to Now. It never fails:
// unparseable input is logged and replaced by today.
type Normalizer struct {
	Now func() time.Time
	// CorrectStaleYear rewrites a past or future year to the current one when
	// the same month and day this year is within six months of today.
	CorrectStaleYear bool
	Logger           *slog.Logger
}

func New(correctStaleYear bool, logger *slog.Logger) *Normalizer {
	return &Normalizer{Now: time.Now, CorrectStaleYear: correctStaleYear, Logger: logger}
}

func (n *Normalizer) Normalize(value string) string {
	return n.normalize(value, n.CorrectStaleYear)
}

// NormalizeExact normalises without stale-year correction, for historical
// columns such as hire dates.
func (n *Normalizer) NormalizeExact(value string) string {
	return n.normalize(value, false)
}

func (n *Normalizer) normalize(value string, correctYear bool) string {
	today := n.today()
	text := strings.ToLower(strings.TrimSpace(strings.Trim(strings.TrimSpace(value), `'"`)))

	if match := fullDatePattern.FindStringSubmatch(text); match != nil {
		year, _ := strconv.Atoi(match[1])
		month, _ := strconv.Atoi(match[2])
		day, _ := strconv.Atoi(match[3])
		if month >= 1 && month <= 12 && day >= 1 {
			date := clampedDate(year, time.Month(month), day)
			if correctYear {
				date = correctStaleYear(date, today)
			}
			return date.Format(layout)
		}
	}
	if match := yearMonthPattern.FindStringSubmatch(text); match != nil {
		year, _ := strconv.Atoi(match[1])
		month, _ := strconv.Atoi(match[2])
		if month >= 1 && month <= 12 {
			return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).Format(layout)
		}
	}

	switch text {
	case "today", "now", "date('now')":
		return today.Format(layout)
	case "yesterday":
		return today.AddDate(0, 0, -1).Format(layout)
	case "tomorrow":
		return today.AddDate(0, 0, 1).Format(layout)
	}

	if match := currentDatePattern.FindStringSubmatch(text); match != nil {
		if match[1] == "" {
			return today.Format(layout)
		}
		amount, _ := strconv.Atoi(match[2])
		if match[1] == "-" {
			amount = -amount
		}
		unit := match[3]
		if unit == "" {
			unit = match[4]
		}
		if unit == "" {
			unit = "day"
		}
		return shift(today, amount, unit).Format(layout)
	}

	if modifiers, ok := legacyModifiers(text); ok {
		date := today
		for _, modifier := range legacyModifier.FindAllStringSubmatch(modifiers, -1) {
			if modifier[0] == "start of month" {
				date = time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, time.UTC)
				continue
			}
			amount, err := strconv.Atoi(strings.ReplaceAll(modifier[1], " ", ""))
			if err != nil {
				continue
			}
			date = shift(date, amount, modifier[2])
		}
		return date.Format(layout)
	}

	n.logger().Warn("unrecognised date expression, using today",
		slog.String("value", value),
		slog.String("today", today.Format(layout)),
	)
	return today.Format(layout)
}

func legacyModifiers(text string) (string, bool) {
	if match := legacyCallPattern.FindStringSubmatch(text); match != nil {
		return match[1], true
	}
	if rest, ok := strings.CutPrefix(text, "now"); ok {
		return rest, true
	}
	return "", false
}

func shift(date time.Time, amount int, unit string) time.Time {
	if strings.HasPrefix(unit, "month") {
		return addMonths(date, amount)
	}
	return date.AddDate(0, 0, amount)
}

// addMonths moves by whole months, clamping the day to the target month.
func addMonths(date time.Time, months int) time.Time {
	first := time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, months, 0)
	return clampedDate(first.Year(), first.Month(), date.Day())
}

func clampedDate(year int, month time.Month, day int) time.Time {
	last := daysIn(year, month)
	if day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func correctStaleYear(date, today time.Time) time.Time {
	if date.Year() == today.Year() {
		return date
	}
	candidate := clampedDate(today.Year(), date.Month(), date.Day())
	if candidate.Before(today.AddDate(0, -6, 0)) || candidate.After(today.AddDate(0, 6, 0)) {
		return date
	}
	return candidate
}

func (n *Normalizer) today() time.Time {
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	t := now()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (n *Normalizer) logger() *slog.Logger {
	if n.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return n.Logger
}
