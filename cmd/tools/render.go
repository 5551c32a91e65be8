package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/lychee-technology/propval"
	"github.com/lychee-technology/propval/internal"
)

type renderOptions struct {
	schemaFile string
	name       string
	valuesFile string
	mode       string
}

func runRender(args []string, out io.Writer) error {
	flags := flag.NewFlagSet("render", flag.ContinueOnError)
	flags.SetOutput(os.Stdout)
	flags.Usage = func() {
		fmt.Println("Usage: propval-tools render -schema <schema.json> -values <values.json> [options]")
		fmt.Println("")
		fmt.Println("Options:")
		flags.PrintDefaults()
	}

	opts := renderOptions{}
	flags.StringVar(&opts.schemaFile, "schema", "", "component schema file")
	flags.StringVar(&opts.name, "name", "", "component name (defaults to the schema file name)")
	flags.StringVar(&opts.valuesFile, "values", "", "persisted values document")
	flags.StringVar(&opts.mode, "mode", propval.SerializeRender.String(), "output form: render or persist")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if opts.schemaFile == "" || opts.valuesFile == "" {
		flags.Usage()
		return fmt.Errorf("-schema and -values are required")
	}
	return renderValues(opts, out)
}

func renderValues(opts renderOptions, out io.Writer) error {
	mode, err := parseSerializeMode(opts.mode)
	if err != nil {
		return err
	}

	schema, err := loadComponentSchema(opts.schemaFile, opts.name, true)
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(opts.valuesFile)
	if err != nil {
		return fmt.Errorf("read values file: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return propval.NewValidationError("values file is not a JSON object", err)
	}
	if err := internal.ValidatePersistedDocument(doc); err != nil {
		return err
	}

	values := schema.NewValues()
	if err := values.Restore(doc); err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(values.ToJSONObject(mode))
}

func parseSerializeMode(s string) (propval.SerializeMode, error) {
	switch s {
	case propval.SerializeRender.String():
		return propval.SerializeRender, nil
	case propval.SerializePersist.String():
		return propval.SerializePersist, nil
	default:
		return 0, fmt.Errorf("unknown mode %q", s)
	}
}
