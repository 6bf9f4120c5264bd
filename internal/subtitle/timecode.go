package subtitle

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultCueSpan is the length given to an inserted cue that has a neighbor on one side only.
const DefaultCueSpan = 5 * time.Second

const zeroTimecode = "00:00:00.000"

// NormalizeTimecode converts user-entered time into HH:MM:SS.mmm.
// Two-field input is read as MM:SS with an implicit 00 hour.
func NormalizeTimecode(raw string) (string, error) {
	d, err := ParseTimecode(raw)
	if err != nil {
		return "", err
	}
	return FormatTimecode(d), nil
}

// ParseTimecode parses HH:MM:SS(.mmm) or MM:SS(.mmm) into a duration.
func ParseTimecode(raw string) (time.Duration, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return 0, fmt.Errorf("%w: empty value", ErrInvalidTimecode)
	}

	parts := strings.Split(value, ":")
	var hours, minutes int
	var secField string
	var err error

	switch len(parts) {
	case 2:
		if minutes, err = parseField(parts[0], 59); err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTimecode, raw)
		}
		secField = parts[1]
	case 3:
		if hours, err = parseField(parts[0], 99); err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTimecode, raw)
		}
		if minutes, err = parseField(parts[1], 59); err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTimecode, raw)
		}
		secField = parts[2]
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimecode, raw)
	}

	wholeSec, fraction, hasFraction := strings.Cut(secField, ".")
	seconds, err := parseField(wholeSec, 59)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimecode, raw)
	}

	millis := 0
	if hasFraction {
		if fraction == "" || len(fraction) > 3 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTimecode, raw)
		}
		// "5" means 500ms, "05" means 50ms.
		padded := fraction + strings.Repeat("0", 3-len(fraction))
		if millis, err = parseField(padded, 999); err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTimecode, raw)
		}
	}

	return time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		time.Duration(millis)*time.Millisecond, nil
}

// FormatTimecode renders a duration as HH:MM:SS.mmm; negative values clamp to zero.
func FormatTimecode(d time.Duration) string {
	if d <= 0 {
		return zeroTimecode
	}
	ms := d.Milliseconds()
	return fmt.Sprintf("%02d:%02d:%02d.%03d",
		ms/3_600_000,
		(ms/60_000)%60,
		(ms/1000)%60,
		ms%1000,
	)
}

// parseField parses a 1-3 digit unsigned field no greater than max.
func parseField(raw string, max int) (int, error) {
	if raw == "" || len(raw) > 3 {
		return 0, fmt.Errorf("bad field %q", raw)
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("bad field %q", raw)
		}
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n > max {
		return 0, fmt.Errorf("field %q out of range", raw)
	}
	return n, nil
}

// compareTimecodes orders two normalized timecodes.
func compareTimecodes(a, b string) int {
	// Zero-padded fixed-width strings sort lexically.
	return strings.Compare(a, b)
}

// shiftTimecode offsets a normalized timecode, clamping at zero.
func shiftTimecode(tc string, delta time.Duration) string {
	d, err := ParseTimecode(tc)
	if err != nil {
		return tc
	}
	return FormatTimecode(d + delta)
}
