package datetime

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// weekdayNames maps Spanish weekday names (the vertical's primary locale) to
// time.Weekday, mirroring the closed vocabulary a booking assistant expects.
var weekdayNames = map[string]time.Weekday{
	"domingo":    time.Sunday,
	"lunes":      time.Monday,
	"martes":     time.Tuesday,
	"miercoles":  time.Wednesday,
	"miércoles":  time.Wednesday,
	"jueves":     time.Thursday,
	"viernes":    time.Friday,
	"sabado":     time.Saturday,
	"sábado":     time.Saturday,
}

// ResolveRelativeDate resolves a relative date expression ("mañana", "hoy",
// a weekday name, or an already-ISO date) to an ISO-8601 date (YYYY-MM-DD)
// anchored at now in timezone tz. It returns ok=false when the phrase isn't
// recognised, leaving the caller to fall back to heuristics.
func ResolveRelativeDate(phrase string, now time.Time, tz string) (string, bool) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	local := now.In(loc)
	normalized := strings.ToLower(strings.TrimSpace(phrase))

	if isoDatePattern.MatchString(normalized) {
		return normalized, true
	}

	switch normalized {
	case "hoy":
		return local.Format("2006-01-02"), true
	case "mañana", "manana":
		return local.AddDate(0, 0, 1).Format("2006-01-02"), true
	case "pasado mañana", "pasado manana":
		return local.AddDate(0, 0, 2).Format("2006-01-02"), true
	}

	if wd, ok := weekdayNames[normalized]; ok {
		return nextWeekday(local, wd).Format("2006-01-02"), true
	}

	return "", false
}

var isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// nextWeekday returns the next date (strictly after from's calendar day,
// wrapping to next week if today matches) on which weekday wd falls.
func nextWeekday(from time.Time, wd time.Weekday) time.Time {
	daysUntil := (int(wd) - int(from.Weekday()) + 7) % 7
	if daysUntil == 0 {
		daysUntil = 7
	}
	return from.AddDate(0, 0, daysUntil)
}

var (
	time12Pattern = regexp.MustCompile(`(?i)^\s*(\d{1,2})(?::(\d{2}))?\s*(am|pm)\s*$`)
	time24hsPattern = regexp.MustCompile(`(?i)^\s*(\d{1,2})(?::(\d{2}))?\s*h(?:s)?\.?\s*$`)
	timeColonPattern = regexp.MustCompile(`^\s*(\d{1,2}):(\d{2})\s*$`)
)

// ResolveTimeOfDay normalises a spoken time expression ("3pm", "15hs",
// "15:00") to 24-hour HH:MM. ok is false when the phrase isn't recognised.
func ResolveTimeOfDay(phrase string) (string, bool) {
	trimmed := strings.TrimSpace(phrase)

	if m := time12Pattern.FindStringSubmatch(trimmed); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		if strings.EqualFold(m[3], "pm") && hour < 12 {
			hour += 12
		}
		if strings.EqualFold(m[3], "am") && hour == 12 {
			hour = 0
		}
		if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
			return "", false
		}
		return fmt.Sprintf("%02d:%02d", hour, minute), true
	}

	if m := time24hsPattern.FindStringSubmatch(trimmed); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
			return "", false
		}
		return fmt.Sprintf("%02d:%02d", hour, minute), true
	}

	if m := timeColonPattern.FindStringSubmatch(trimmed); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
			return "", false
		}
		return fmt.Sprintf("%02d:%02d", hour, minute), true
	}

	return "", false
}

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phonePattern = regexp.MustCompile(`[\d][\d\s\-()]{6,}\d`)
)

// NormalizeEmail lowercases an email slot value.
func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// NormalizePhone strips everything but digits from a phone slot value.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FindEmail returns the first email-looking substring in text, if any.
func FindEmail(text string) (string, bool) {
	m := emailPattern.FindString(text)
	return m, m != ""
}

// FindPhone returns the first phone-looking substring in text, if any.
func FindPhone(text string) (string, bool) {
	m := phonePattern.FindString(text)
	return m, m != ""
}
