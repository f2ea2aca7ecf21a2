package rotom

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 20 * time.Second

// Config holds the Rotom API configuration. At most one of bearer, api_key
// and username/password is expected, but all configured ones are sent.
type Config struct {
	BaseURL  string        `yaml:"base_url"`
	Bearer   string        `yaml:"bearer"`
	APIKey   string        `yaml:"api_key"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	Timeout  time.Duration `yaml:"timeout"`

	// MaxResponseBytes bounds the /api/status body.
	MaxResponseBytes int `yaml:"max_response_bytes"`
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
}

func (c *Config) validate() error {
	if _, err := NormalizeBaseURL(c.BaseURL); err != nil {
		return err
	}
	if (c.Username == "") != (c.Password == "") {
		return errors.New("rotom: username and password must be set together")
	}
	if c.MaxResponseBytes < 0 {
		return fmt.Errorf("rotom: max_response_bytes must be non-negative, got %d", c.MaxResponseBytes)
	}
	return nil
}

// NormalizeBaseURL trims raw, defaults the scheme to http:// and strips
// trailing slashes.
func NormalizeBaseURL(raw string) (string, error) {
	base := strings.TrimSpace(raw)
	if base == "" {
		return "", errors.New("rotom: base_url is required")
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	base = strings.TrimRight(base, "/")

	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("rotom: invalid base_url %q", raw)
	}
	return base, nil
}
