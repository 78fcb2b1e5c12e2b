package simpledb

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"
)

// Supported driver names.
const (
	DriverMySQL    = "mysql"
	DriverPgx      = "pgx"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Config describes the database endpoint and the ambient behaviour of a
// SimpleDB.
type Config struct {
	Driver        string `yaml:"driver" json:"driver"`
	Host          string `yaml:"host" json:"host"`
	Port          int    `yaml:"port" json:"port"`
	Username      string `yaml:"username" json:"username"`
	Password      string `yaml:"password" json:"password"`
	Database      string `yaml:"database" json:"database"`
	TimeZone      string `yaml:"time_zone" json:"time_zone"`
	DevMode       bool   `yaml:"dev_mode" json:"dev_mode"`
	LogLevel      string `yaml:"log_level" json:"log_level"`
	KeepIdleConns bool   `yaml:"keep_idle_conns" json:"keep_idle_conns"`

	// Registerer receives the simpledb collectors when set.
	Registerer prometheus.Registerer `yaml:"-" json:"-"`
	// Logger overrides the default stderr text logger.
	Logger *slog.Logger `yaml:"-" json:"-"`
	// Output receives dev-mode diagnostics. Defaults to os.Stdout.
	Output io.Writer `yaml:"-" json:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Driver:   DriverMySQL,
		Host:     "localhost",
		TimeZone: "Asia/Seoul",
		LogLevel: "info",
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig and applies
// environment overrides.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("simpledb: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("simpledb: parse config %s: %w", path, err)
	}
	ApplyEnv(&cfg)
	return cfg, nil
}

// ApplyEnv applies SIMPLEDB_* environment variable overrides to cfg.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv("SIMPLEDB_DRIVER"); v != "" {
		cfg.Driver = v
	}
	if v := os.Getenv("SIMPLEDB_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("SIMPLEDB_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Port = n
		}
	}
	if v := os.Getenv("SIMPLEDB_USERNAME"); v != "" {
		cfg.Username = v
	}
	if v := os.Getenv("SIMPLEDB_PASSWORD"); v != "" {
		cfg.Password = v
	}
	if v := os.Getenv("SIMPLEDB_DATABASE"); v != "" {
		cfg.Database = v
	}
	if v := os.Getenv("SIMPLEDB_TIME_ZONE"); v != "" {
		cfg.TimeZone = v
	}
	if v := os.Getenv("SIMPLEDB_DEV_MODE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.DevMode = b
		}
	}
	if v := os.Getenv("SIMPLEDB_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

// Location resolves TimeZone. Empty and "Local" mean time.Local.
func (c Config) Location() (*time.Location, error) {
	if c.TimeZone == "" || strings.EqualFold(c.TimeZone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("simpledb: time zone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

// DSN builds the data source name for the configured driver.
func (c Config) DSN() (string, error) {
	switch strings.ToLower(c.Driver) {
	case DriverMySQL:
		port := c.Port
		if port == 0 {
			port = 3306
		}
		loc, err := c.Location()
		if err != nil {
			return "", err
		}
		mc := mysql.NewConfig()
		mc.User = c.Username
		mc.Passwd = c.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(port))
		mc.DBName = c.Database
		mc.ParseTime = true
		mc.Loc = loc
		mc.TLSConfig = "false"
		return mc.FormatDSN(), nil

	case DriverPgx, DriverPostgres:
		port := c.Port
		if port == 0 {
			port = 5432
		}
		q := url.Values{}
		q.Set("sslmode", "disable")
		if tz := c.tzOr(""); tz != "" {
			q.Set("timezone", tz)
		}
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(c.Username, c.Password),
			Host:     net.JoinHostPort(c.Host, strconv.Itoa(port)),
			Path:     "/" + c.Database,
			RawQuery: q.Encode(),
		}
		return u.String(), nil

	case DriverSQLite:
		if c.Database == "" {
			return "", fmt.Errorf("%w: sqlite3 needs a database path", ErrArgument)
		}
		q := url.Values{}
		q.Set("_loc", c.tzOr("auto"))
		q.Set("_busy_timeout", "5000")
		return "file:" + c.Database + "?" + q.Encode(), nil
	}
	return "", fmt.Errorf("%w: unsupported driver %q", ErrArgument, c.Driver)
}

// driverName maps the configured driver onto a registered database/sql name.
func (c Config) driverName() string {
	if strings.EqualFold(c.Driver, DriverPostgres) {
		return DriverPgx
	}
	return strings.ToLower(c.Driver)
}

func (c Config) tzOr(def string) string {
	if c.TimeZone == "" || strings.EqualFold(c.TimeZone, "local") {
		return def
	}
	return c.TimeZone
}
