// Package timeutil holds the wall-clock helpers shared by the aggregators.
// All values are derived from the location of the time passed in.
package timeutil

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Mode selects an output layout for Format
type Mode int

const (
	// Full renders YYYY-MM-DD HH:MM:SS
	Full Mode = iota
	// CompactDate renders YYYYMMDD
	CompactDate
	// HourMinute renders HH:MM
	HourMinute
)

const minutesPerDay = 24 * 60

// Pad2 zero-pads n to two digits. Negative values clamp to "00" and
// values of 100 or more are printed in full.
func Pad2(n int) string {
	if n < 0 {
		n = 0
	}
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

// Format renders t in the requested mode
func Format(t time.Time, mode Mode) string {
	switch mode {
	case CompactDate:
		return fmt.Sprintf("%04d%s%s", t.Year(), Pad2(int(t.Month())), Pad2(t.Day()))
	case HourMinute:
		return Pad2(t.Hour()) + ":" + Pad2(t.Minute())
	default:
		return fmt.Sprintf("%04d-%s-%s %s:%s:%s", t.Year(), Pad2(int(t.Month())), Pad2(t.Day()),
			Pad2(t.Hour()), Pad2(t.Minute()), Pad2(t.Second()))
	}
}

// AddMinutes shifts t by n minutes; n may be negative
func AddMinutes(t time.Time, n int) time.Time {
	return t.Add(time.Duration(n) * time.Minute)
}

// ParseClock parses HH:MM or HH:MM:SS
func ParseClock(s string) (hour, minute, second int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("invalid clock time %q", s)
	}

	fields := make([]int, 3)
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return 0, 0, 0, fmt.Errorf("invalid clock time %q", s)
		}
		fields[i] = v
	}

	if fields[0] > 23 || fields[1] > 59 || fields[2] > 59 {
		return 0, 0, 0, fmt.Errorf("clock time out of range %q", s)
	}
	return fields[0], fields[1], fields[2], nil
}

// NormalizeClock rewrites a clock time in zero-padded HH:MM or HH:MM:SS
// form, so "9:05" becomes "09:05"
func NormalizeClock(s string) (string, error) {
	h, m, sec, err := ParseClock(s)
	if err != nil {
		return "", err
	}
	out := Pad2(h) + ":" + Pad2(m)
	if strings.Count(strings.TrimSpace(s), ":") == 2 {
		out += ":" + Pad2(sec)
	}
	return out, nil
}

// At returns hhmm on the same calendar day as now, in now's location
func At(now time.Time, hhmm string) (time.Time, error) {
	h, m, s, err := ParseClock(hhmm)
	if err != nil {
		return time.Time{}, err
	}
	y, mo, d := now.Date()
	return time.Date(y, mo, d, h, m, s, 0, now.Location()), nil
}

// MinutesUntil returns the whole minutes from now until hhmm on the same
// day, floored at zero. A time earlier in the day yields 0 rather than a
// countdown to tomorrow. Unparseable input also yields 0.
func MinutesUntil(now time.Time, hhmm string) int {
	target, err := At(now, hhmm)
	if err != nil {
		return 0
	}

	minutes := int(math.Round(target.Sub(now).Minutes()))
	if minutes < 0 {
		return 0
	}
	return minutes
}

// ClockDeltaMinutes is the wall-clock difference from one HH:MM time to
// another, wrapping past midnight when the result would be negative
func ClockDeltaMinutes(from, to string) (int, error) {
	fh, fm, _, err := ParseClock(from)
	if err != nil {
		return 0, err
	}
	th, tm, _, err := ParseClock(to)
	if err != nil {
		return 0, err
	}

	delta := (th*60 + tm) - (fh*60 + fm)
	if delta < 0 {
		delta += minutesPerDay
	}
	return delta, nil
}

// ParseDurationMinutes reads the duration strings found in schedule feeds:
// "H:MM", "HH:MM", "MM" or "45 min"
func ParseDurationMinutes(s string) (int, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "min"))
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}

	if strings.Contains(s, ":") {
		parts := strings.SplitN(s, ":", 3)
		h, err := strconv.Atoi(parts[0])
		if err != nil || h < 0 {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		m, err := strconv.Atoi(parts[1])
		if err != nil || m < 0 || m > 59 {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return h*60 + m, nil
	}

	m, err := strconv.Atoi(s)
	if err != nil || m < 0 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return m, nil
}
