package dragonite

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validation errors.
var (
	ErrInvalidProvider = errors.New("dragonite: invalid provider")
	ErrInvalidInterval = errors.New("dragonite: invalid interval")
)

// Interval units accepted by MySQL's INTERVAL expression.
const (
	UnitMinute = "MINUTE"
	UnitHour   = "HOUR"
	UnitDay    = "DAY"
	UnitMonth  = "MONTH"
)

var providers = map[string]struct{}{"nk": {}, "ptc": {}}

// NormalizeProvider lowercases p and checks it is a known login provider.
func NormalizeProvider(p string) (string, error) {
	p = strings.ToLower(strings.TrimSpace(p))
	if _, ok := providers[p]; !ok {
		return "", fmt.Errorf("%w: %q (allowed: nk, ptc)", ErrInvalidProvider, p)
	}
	return p, nil
}

// IntervalClause renders "NOW() - INTERVAL <n> <UNIT>". The value is
// interpolated into SQL, so only non-negative integers and the four known
// units are accepted.
func IntervalClause(n int, unit string) (string, error) {
	if n < 0 {
		return "", fmt.Errorf("%w: value must be >= 0, got %d", ErrInvalidInterval, n)
	}
	u := strings.ToUpper(strings.TrimSpace(unit))
	switch u {
	case UnitMinute, UnitHour, UnitDay, UnitMonth:
	default:
		return "", fmt.Errorf("%w: unit must be one of MINUTE, HOUR, DAY, MONTH, got %q", ErrInvalidInterval, unit)
	}
	return fmt.Sprintf("NOW() - INTERVAL %d %s", n, u), nil
}

// WindowClause picks the coarsest unit that represents d exactly. Windows
// must be a positive whole number of minutes.
func WindowClause(d time.Duration) (string, error) {
	if d <= 0 || d%time.Minute != 0 {
		return "", fmt.Errorf("%w: window must be a positive whole number of minutes, got %s", ErrInvalidInterval, d)
	}
	const day = 24 * time.Hour
	switch {
	case d%day == 0:
		return IntervalClause(int(d/day), UnitDay)
	case d%time.Hour == 0:
		return IntervalClause(int(d/time.Hour), UnitHour)
	default:
		return IntervalClause(int(d/time.Minute), UnitMinute)
	}
}
