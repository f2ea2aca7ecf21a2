package dragonite

import (
	"errors"
	"testing"
	"time"
)

func TestNormalizeProvider(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"nk", "nk", false},
		{" PTC ", "ptc", false},
		{"google", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeProvider(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("NormalizeProvider(%q) error = %v", tt.in, err)
			continue
		}
		if tt.wantErr && !errors.Is(err, ErrInvalidProvider) {
			t.Errorf("NormalizeProvider(%q) error = %v, want ErrInvalidProvider", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("NormalizeProvider(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIntervalClause(t *testing.T) {
	t.Parallel()

	tests := []struct {
		n       int
		unit    string
		want    string
		wantErr bool
	}{
		{24, "HOUR", "NOW() - INTERVAL 24 HOUR", false},
		{0, "minute", "NOW() - INTERVAL 0 MINUTE", false},
		{3, "Day", "NOW() - INTERVAL 3 DAY", false},
		{1, "MONTH", "NOW() - INTERVAL 1 MONTH", false},
		{-1, "HOUR", "", true},
		{1, "WEEK", "", true},
		{1, "HOUR; DROP TABLE account", "", true},
	}
	for _, tt := range tests {
		got, err := IntervalClause(tt.n, tt.unit)
		if (err != nil) != tt.wantErr {
			t.Errorf("IntervalClause(%d, %q) error = %v", tt.n, tt.unit, err)
			continue
		}
		if tt.wantErr && !errors.Is(err, ErrInvalidInterval) {
			t.Errorf("IntervalClause(%d, %q) error = %v, want ErrInvalidInterval", tt.n, tt.unit, err)
		}
		if got != tt.want {
			t.Errorf("IntervalClause(%d, %q) = %q, want %q", tt.n, tt.unit, got, tt.want)
		}
	}
}

func TestWindowClause(t *testing.T) {
	t.Parallel()

	tests := []struct {
		d       time.Duration
		want    string
		wantErr bool
	}{
		{24 * time.Hour, "NOW() - INTERVAL 1 DAY", false},
		{48 * time.Hour, "NOW() - INTERVAL 2 DAY", false},
		{6 * time.Hour, "NOW() - INTERVAL 6 HOUR", false},
		{90 * time.Minute, "NOW() - INTERVAL 90 MINUTE", false},
		{0, "", true},
		{-time.Hour, "", true},
		{90 * time.Second, "", true},
	}
	for _, tt := range tests {
		got, err := WindowClause(tt.d)
		if (err != nil) != tt.wantErr {
			t.Errorf("WindowClause(%s) error = %v", tt.d, err)
			continue
		}
		if got != tt.want {
			t.Errorf("WindowClause(%s) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
