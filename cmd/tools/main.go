package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Errorf("failed to set up logger: %w", err))
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	sugar := logger.Sugar()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "inspect-schema":
		if err := runInspectSchema(os.Args[2:], os.Stdout); err != nil {
			sugar.Fatalf("inspect-schema: %v", err)
		}
	case "render":
		if err := runRender(os.Args[2:], os.Stdout); err != nil {
			sugar.Fatalf("render: %v", err)
		}
	case "load-asset":
		if err := runLoadAsset(os.Args[2:], os.Stdout); err != nil {
			sugar.Fatalf("load-asset: %v", err)
		}
	case "init-db":
		if err := runInitDB(os.Args[2:]); err != nil {
			sugar.Fatalf("init-db: %v", err)
		}
	default:
		sugar.Errorf("unknown command %q", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	logger := zap.S()
	logger.Info("Usage: propval-tools <command> [options]")
	logger.Info("")
	logger.Info("Commands:")
	logger.Info("  inspect-schema   Print the property tree of a component schema file")
	logger.Info("  render           Restore a persisted values document and print it in render or persist form")
	logger.Info("  load-asset       Print the asset value produced for a file path or s3:// location")
	logger.Info("  init-db          Create the PostgreSQL value table")
}

// useConfigLogger replaces the global logger with one built from the config.
func useConfigLogger(cfg interface {
	NewLogger() (*zap.Logger, error)
}) {
	logger, err := cfg.NewLogger()
	if err != nil {
		zap.S().Warnw("keeping default logger", "error", err)
		return
	}
	zap.ReplaceGlobals(logger)
}
