package dragonite

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
)

const (
	defaultPort           = 3306
	defaultDatabase       = "dragonite"
	defaultEncounterLimit = 6500
	defaultGMOLimit       = 3600
	defaultQueryTimeout   = 30 * time.Second
	defaultDialTimeout    = 10 * time.Second
	defaultMaxOpenConns   = 4
	defaultConnMaxLife    = 5 * time.Minute
)

// Config holds the Dragonite database configuration.
type Config struct {
	// DSN, when set, is used verbatim and the connection fields are ignored.
	DSN string `yaml:"dsn"`

	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`

	// EncounterLimit and GMOLimit exclude sessions that ended because they
	// reached a usage cap.
	EncounterLimit int64 `yaml:"encounter_limit"`
	GMOLimit       int64 `yaml:"gmo_limit"`

	QueryTimeout    time.Duration `yaml:"query_timeout"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

func (c *Config) defaults() {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.Database == "" {
		c.Database = defaultDatabase
	}
	if c.EncounterLimit == 0 {
		c.EncounterLimit = defaultEncounterLimit
	}
	if c.GMOLimit == 0 {
		c.GMOLimit = defaultGMOLimit
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = defaultQueryTimeout
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = defaultMaxOpenConns
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = defaultConnMaxLife
	}
}

func (c *Config) validate() error {
	if c.DSN != "" {
		if _, err := mysql.ParseDSN(c.DSN); err != nil {
			return fmt.Errorf("dragonite: invalid dsn: %w", err)
		}
		return nil
	}
	if c.Host == "" {
		return errors.New("dragonite: host or dsn is required")
	}
	if c.User == "" {
		return errors.New("dragonite: user is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("dragonite: port must be 1-65535, got %d", c.Port)
	}
	if c.EncounterLimit < 0 || c.GMOLimit < 0 {
		return errors.New("dragonite: encounter_limit and gmo_limit must be non-negative")
	}
	return nil
}

// dsn returns the driver DSN, built with mysql.Config so credentials are
// escaped correctly.
func (c *Config) dsn() string {
	if c.DSN != "" {
		return c.DSN
	}
	mc := mysql.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	mc.DBName = c.Database
	mc.Timeout = defaultDialTimeout
	mc.ReadTimeout = c.QueryTimeout
	mc.ParseTime = true
	return mc.FormatDSN()
}

// password returns the secret embedded in the configuration, if any.
func (c *Config) password() string {
	if c.DSN == "" {
		return c.Password
	}
	if mc, err := mysql.ParseDSN(c.DSN); err == nil {
		return mc.Passwd
	}
	return ""
}
