// Package config loads server settings from the environment and command-line
// flags. Flags win over the environment.
package config

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the server settings.
type Config struct {
	DBPath          string        `env:"SLEDILNIK_DB" envDefault:"sledilnik.sqlite3"`
	Addr            string        `env:"SLEDILNIK_ADDR" envDefault:":8080"`
	AdminUser       string        `env:"SLEDILNIK_ADMIN_USER" envDefault:"Admin"`
	LogPath         string        `env:"SLEDILNIK_LOG"`
	TokenTTL        time.Duration `env:"SLEDILNIK_TOKEN_TTL" envDefault:"168h"`
	ShutdownTimeout time.Duration `env:"SLEDILNIK_SHUTDOWN_TIMEOUT" envDefault:"5s"`
}

const usage = `Usage: sledilnik [flags]

Flags:
  -d, -db <path>          SQLite database path (env SLEDILNIK_DB, default: sledilnik.sqlite3)
  -a, -addr <host:port>   listen address (env SLEDILNIK_ADDR, default: :8080)
  -u, -user <name>        admin username on first run (env SLEDILNIK_ADMIN_USER, default: Admin)
  -l, -log <path>         log file path (env SLEDILNIK_LOG, default: stdout/stderr only)
  -token-ttl <duration>   login token lifetime (env SLEDILNIK_TOKEN_TTL, default: 168h)
  -shutdown-timeout <duration>
                          time to drain requests on exit (env SLEDILNIK_SHUTDOWN_TIMEOUT, default: 5s)
  -h, -help               show this help and exit
`

// Load reads the environment, then applies args on top. It returns
// flag.ErrHelp when help was requested.
func Load(args []string, output io.Writer) (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	fs := flag.NewFlagSet("sledilnik", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() { fmt.Fprint(output, usage) }

	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "")
	fs.StringVar(&cfg.DBPath, "d", cfg.DBPath, "")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "")
	fs.StringVar(&cfg.Addr, "a", cfg.Addr, "")
	fs.StringVar(&cfg.AdminUser, "user", cfg.AdminUser, "")
	fs.StringVar(&cfg.AdminUser, "u", cfg.AdminUser, "")
	fs.StringVar(&cfg.LogPath, "log", cfg.LogPath, "")
	fs.StringVar(&cfg.LogPath, "l", cfg.LogPath, "")
	fs.DurationVar(&cfg.TokenTTL, "token-ttl", cfg.TokenTTL, "")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return nil, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	if cfg.TokenTTL <= 0 {
		return nil, fmt.Errorf("token ttl must be positive, got %s", cfg.TokenTTL)
	}
	if cfg.ShutdownTimeout <= 0 {
		return nil, fmt.Errorf("shutdown timeout must be positive, got %s", cfg.ShutdownTimeout)
	}
	return &cfg, nil
}
