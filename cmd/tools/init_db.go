package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/lychee-technology/propval"
	"github.com/lychee-technology/propval/factory"
	"github.com/lychee-technology/propval/internal"
	"go.uber.org/zap"
)

type initDBOptions struct {
	configPath string
	host       string
	port       int
	database   string
	user       string
	password   string
	sslMode    string
	table      string
}

func runInitDB(args []string) error {
	flags := flag.NewFlagSet("init-db", flag.ContinueOnError)
	flags.SetOutput(os.Stdout)
	flags.Usage = func() {
		fmt.Println("Usage: propval-tools init-db [options]")
		fmt.Println("")
		fmt.Println("Options:")
		flags.PrintDefaults()
	}

	defaults := propval.DefaultConfig().Database
	opts := initDBOptions{}
	flags.StringVar(&opts.configPath, "config", getenvDefault("PROPVAL_CONFIG", ""), "YAML config file (flags override it)")
	flags.StringVar(&opts.host, "db-host", getenvDefault("DB_HOST", defaults.Host), "database host")
	flags.IntVar(&opts.port, "db-port", getenvDefaultInt("DB_PORT", defaults.Port), "database port")
	flags.StringVar(&opts.database, "db-name", getenvDefault("DB_NAME", defaults.Database), "database name")
	flags.StringVar(&opts.user, "db-user", getenvDefault("DB_USER", defaults.Username), "database user")
	flags.StringVar(&opts.password, "db-password", getenvDefault("DB_PASSWORD", "postgres"), "database password")
	flags.StringVar(&opts.sslMode, "db-ssl-mode", getenvDefault("DB_SSL_MODE", defaults.SSLMode), "database sslmode")
	flags.StringVar(&opts.table, "table", getenvDefault("VALUE_TABLE", defaults.Table), "component value table name")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := initDBConfig(opts, flagsSet(flags))
	if err != nil {
		return err
	}
	return initDatabase(context.Background(), cfg)
}

// initDBConfig layers explicitly set flags over the config file.
func initDBConfig(opts initDBOptions, set map[string]bool) (*propval.Config, error) {
	cfg := propval.DefaultConfig()
	if opts.configPath != "" {
		loaded, err := propval.LoadConfig(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
		useConfigLogger(cfg.Logging)
	}

	db := &cfg.Database
	override := func(name string, apply func()) {
		if opts.configPath == "" || set[name] {
			apply()
		}
	}
	override("db-host", func() { db.Host = opts.host })
	override("db-port", func() { db.Port = opts.port })
	override("db-name", func() { db.Database = opts.database })
	override("db-user", func() { db.Username = opts.user })
	override("db-password", func() { db.Password = opts.password })
	override("db-ssl-mode", func() { db.SSLMode = opts.sslMode })
	override("table", func() { db.Table = opts.table })

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func initDatabase(ctx context.Context, cfg *propval.Config) error {
	pool, err := factory.NewPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	repo := internal.NewPostgresValueRepository(pool, cfg.Database.Table)
	if err := repo.EnsureTable(ctx); err != nil {
		return err
	}

	zap.S().Infow("database initialized",
		"host", cfg.Database.Host,
		"database", cfg.Database.Database,
		"table", cfg.Database.Table)
	return nil
}

func flagsSet(flags *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	flags.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

func getenvDefault(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getenvDefaultInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}
