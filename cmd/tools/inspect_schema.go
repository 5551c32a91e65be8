package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/lychee-technology/propval"
	"github.com/lychee-technology/propval/internal"
)

func runInspectSchema(args []string, out io.Writer) error {
	flags := flag.NewFlagSet("inspect-schema", flag.ContinueOnError)
	flags.SetOutput(os.Stdout)
	flags.Usage = func() {
		fmt.Println("Usage: propval-tools inspect-schema -file <schema.json> [options]")
		fmt.Println("")
		fmt.Println("Options:")
		flags.PrintDefaults()
	}

	var (
		file     string
		name     string
		validate bool
	)
	flags.StringVar(&file, "file", "", "component schema file")
	flags.StringVar(&name, "name", "", "component name (defaults to the file name)")
	flags.BoolVar(&validate, "validate", true, "validate the file as JSON Schema first")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if file == "" {
		flags.Usage()
		return fmt.Errorf("-file is required")
	}

	schema, err := loadComponentSchema(file, name, validate)
	if err != nil {
		return err
	}
	return printSchema(out, schema)
}

func loadComponentSchema(file, name string, validate bool) (*propval.ComponentSchema, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	}
	return internal.ParseComponentSchema(name, data, validate)
}

func printSchema(out io.Writer, schema *propval.ComponentSchema) error {
	fmt.Fprintf(out, "%s (%s)\n", schema.Name(), schema.Title())
	counts := map[propval.Kind]int{}
	if err := printProperties(out, schema.Type(), 1, map[string]bool{schema.Type().ID(): true}, counts); err != nil {
		return err
	}
	fmt.Fprintf(out, "kinds: %s\n", kindSummary(counts))
	return nil
}

// kindSummary lists the supported-type count per kind in kind order.
func kindSummary(counts map[propval.Kind]int) string {
	var parts []string
	for _, k := range propval.Kinds() {
		if n := counts[k]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", k, n))
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

// printProperties walks an object type depth first. Types already on the
// current path are printed once and marked recursive.
func printProperties(out io.Writer, t *propval.PropertyType, depth int, path map[string]bool, counts map[propval.Kind]int) error {
	props, err := t.Properties()
	if err != nil {
		return err
	}
	indent := strings.Repeat("  ", depth)
	for _, prop := range props {
		fmt.Fprintf(out, "%s%s (%s)%s: %s\n", indent, prop.ID(), prop.Name(), propertyFlags(prop), typeList(prop))
		for _, st := range prop.SupportedTypes() {
			counts[st.Kind()]++
			switch st.Kind() {
			case propval.KindEnum:
				for _, opt := range st.Options() {
					fmt.Fprintf(out, "%s  - %s = %d\n", indent, opt.ID, opt.Ordinal)
				}
			case propval.KindObject:
				if path[st.ID()] {
					fmt.Fprintf(out, "%s  (recursive %s)\n", indent, st.ID())
					continue
				}
				path[st.ID()] = true
				if err := printProperties(out, st, depth+1, path, counts); err != nil {
					return err
				}
				delete(path, st.ID())
			}
		}
	}
	return nil
}

func propertyFlags(prop *propval.Property) string {
	var flags []string
	if prop.Required() {
		flags = append(flags, "required")
	}
	if prop.Hidden() {
		flags = append(flags, "hidden")
	}
	if def := prop.DefaultValue(); def != nil {
		flags = append(flags, fmt.Sprintf("default=%v", def))
	}
	if len(flags) == 0 {
		return ""
	}
	return " [" + strings.Join(flags, ", ") + "]"
}

func typeList(prop *propval.Property) string {
	types := prop.SupportedTypes()
	ids := make([]string, 0, len(types))
	for _, t := range types {
		ids = append(ids, t.ID())
	}
	return strings.Join(ids, " | ")
}
