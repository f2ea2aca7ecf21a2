package discord

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"time"

	"github.com/flemzord/pulse/internal/notify"
)

// snowflakePattern matches a Discord ID.
var snowflakePattern = regexp.MustCompile(`^\d{5,20}$`)

// Config holds the Discord channel configuration.
type Config struct {
	Token            string        `yaml:"token"`
	ChannelID        string        `yaml:"channel_id"`
	APIURL           string        `yaml:"api_url"`
	Timeout          time.Duration `yaml:"timeout"`
	InlineThreshold  int           `yaml:"inline_threshold"`
	MaxMessageLength int           `yaml:"max_message_length"`
}

// defaults applies default values to unset fields.
func (c *Config) defaults() {
	if c.APIURL == "" {
		c.APIURL = "https://discord.com/api/v10"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.InlineThreshold == 0 {
		c.InlineThreshold = notify.DefaultInlineThreshold
	}
	if c.MaxMessageLength == 0 {
		c.MaxMessageLength = notify.DefaultMaxLength
	}
}

// validate checks configuration field constraints. An empty channel_id is
// allowed: the sink then drops notifications.
func (c *Config) validate() error {
	if c.ChannelID != "" {
		if !snowflakePattern.MatchString(c.ChannelID) {
			return fmt.Errorf("discord: channel_id must be a numeric snowflake, got %q", c.ChannelID)
		}
		if c.Token == "" {
			return errors.New("discord: token is required when channel_id is set")
		}
	}

	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("discord: api_url must be a valid http/https URL, got %q", c.APIURL)
	}

	if c.InlineThreshold < 0 {
		return fmt.Errorf("discord: inline_threshold must be non-negative, got %d", c.InlineThreshold)
	}
	if c.MaxMessageLength < 1 || c.MaxMessageLength > notify.DefaultMaxLength {
		return fmt.Errorf("discord: max_message_length must be 1-%d, got %d", notify.DefaultMaxLength, c.MaxMessageLength)
	}
	return nil
}
