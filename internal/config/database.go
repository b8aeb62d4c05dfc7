package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
)

// DSN returns a go-sql-driver/mysql data source name. A configured
// connection string is parsed and normalized; otherwise the discrete fields
// are used. parseTime and UTC are always enabled.
func (d *DatabaseConfig) DSN() (string, error) {
	cfg, err := d.driverConfig()
	if err != nil {
		return "", err
	}
	return cfg.FormatDSN(), nil
}

func (d *DatabaseConfig) driverConfig() (*mysql.Config, error) {
	var cfg *mysql.Config
	if d.ConnectionString != "" {
		parsed, err := mysql.ParseDSN(d.ConnectionString)
		if err != nil {
			return nil, fmt.Errorf("invalid database DSN: %w", err)
		}
		cfg = parsed
		if d.Database != "" && cfg.DBName == "" {
			cfg.DBName = d.Database
		}
	} else {
		cfg = mysql.NewConfig()
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
		cfg.User = d.User
		cfg.Passwd = d.Password
		cfg.DBName = d.Database
	}

	cfg.ParseTime = true
	cfg.Loc = time.UTC
	if d.TLSMode != "" && cfg.TLSConfig == "" {
		cfg.TLSConfig = d.TLSMode
	}
	return cfg, nil
}
