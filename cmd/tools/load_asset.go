package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/lychee-technology/propval"
	"github.com/lychee-technology/propval/internal"
	"go.uber.org/zap"
)

func runLoadAsset(args []string, out io.Writer) error {
	flags := flag.NewFlagSet("load-asset", flag.ContinueOnError)
	flags.SetOutput(os.Stdout)
	flags.Usage = func() {
		fmt.Println("Usage: propval-tools load-asset [options] <location>")
		fmt.Println("")
		fmt.Println("Options:")
		flags.PrintDefaults()
	}

	var configPath string
	flags.StringVar(&configPath, "config", getenvDefault("PROPVAL_CONFIG", ""), "YAML config file")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if flags.NArg() != 1 {
		flags.Usage()
		return fmt.Errorf("exactly one location is required")
	}

	cfg := propval.DefaultConfig()
	if configPath != "" {
		loaded, err := propval.LoadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		useConfigLogger(cfg.Logging)
	}

	ctx := context.Background()
	location := flags.Arg(0)

	var source *internal.S3AssetSource
	if strings.HasPrefix(location, "s3://") {
		s, err := internal.NewS3AssetSource(ctx, cfg.Assets)
		if err != nil {
			return err
		}
		source = s
	}

	value, err := internal.NewAssetLoader(cfg.Assets.MaxBytes, source).Load(ctx, location)
	if err != nil {
		return err
	}
	zap.S().Debugw("asset loaded", "location", location, "length", len(value))
	_, err = fmt.Fprintln(out, value)
	return err
}
