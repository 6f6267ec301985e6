package database

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/mobile-e2e/pkg/assets"
	"github.com/devicelab-dev/mobile-e2e/pkg/config"
	"github.com/devicelab-dev/mobile-e2e/pkg/core"
)

// Database types
const (
	DBAds      = "ads"
	DBProperty = "propertyDB"
)

// Connection holds MySQL connection details.
type Connection struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
}

// DSN returns the go-sql-driver/mysql data source name.
func (c Connection) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	port := c.Port
	if port == 0 {
		port = 3306
	}
	cfg.Addr = net.JoinHostPort(c.Host, strconv.Itoa(port))
	cfg.DBName = c.Database
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

// Entry is one database of an environment: either a single connection or
// one connection per region.
type Entry struct {
	Connection `yaml:",inline"`
	Regions    map[string]Connection `yaml:"regions"`
}

// Credentials maps environment → database type → entry.
type Credentials map[string]map[string]Entry

// LoadCredentials reads a credentials file, rendering it with the same
// template functions as the asset bundle so secrets can come from env.
func LoadCredentials(path string, env config.Env) (Credentials, error) {
	raw, err := os.ReadFile(path) //#nosec G304 -- credentials file from workspace config
	if err != nil {
		return nil, core.ErrInvalidConfig.WithCause(err).WithMessage("read database credentials " + path)
	}
	rendered, err := assets.Render(path, raw, env)
	if err != nil {
		return nil, err
	}
	var creds Credentials
	if err := yaml.Unmarshal(rendered, &creds); err != nil {
		return nil, core.ErrInvalidConfig.WithCause(err).WithMessage("parse database credentials " + path)
	}
	return creds, nil
}

// Resolve picks the connection for environment and dbType. A non-empty
// region selects from the entry's regions.
func (c Credentials) Resolve(environment, dbType, region string) (Connection, error) {
	byType, ok := c[environment]
	if !ok {
		return Connection{}, core.ErrInvalidConfig.WithMessage(fmt.Sprintf("no database credentials for environment %q", environment))
	}
	entry, ok := byType[dbType]
	if !ok {
		return Connection{}, core.ErrInvalidConfig.WithMessage(fmt.Sprintf("no %q database in environment %q", dbType, environment))
	}
	if region == "" {
		return entry.Connection, nil
	}
	conn, ok := entry.Regions[strings.ToLower(region)]
	if !ok {
		return Connection{}, core.ErrInvalidConfig.WithMessage(fmt.Sprintf("no %q database for region %q in %q", dbType, region, environment))
	}
	return conn, nil
}
