package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/lychee-technology/propval"
	"go.uber.org/zap"
)

// FileSchemaRegistry is a SchemaRegistry implementation that loads component
// schemas from <component>.json files in a directory. Schemas can also be
// registered directly, which hosts and tests use for built-in components.
type FileSchemaRegistry struct {
	mu         sync.RWMutex
	schemaDir  string
	components map[string]*propval.ComponentSchema
}

// NewSchemaRegistry creates a registry holding the given component schemas.
func NewSchemaRegistry(schemas ...*propval.ComponentSchema) *FileSchemaRegistry {
	r := &FileSchemaRegistry{components: make(map[string]*propval.ComponentSchema)}
	for _, s := range schemas {
		r.Register(s)
	}
	return r
}

// NewFileSchemaRegistryFromDirectory creates a schema registry that scans
// schemaDir for *.json component definitions. With validate set, every file
// must also resolve as a JSON Schema.
func NewFileSchemaRegistryFromDirectory(schemaDir string, validate bool) (propval.SchemaRegistry, error) {
	registry := NewSchemaRegistry()
	registry.schemaDir = schemaDir

	if err := registry.loadSchemasFromDirectory(validate); err != nil {
		return nil, err
	}

	return registry, nil
}

func (r *FileSchemaRegistry) loadSchemasFromDirectory(validate bool) error {
	entries, err := os.ReadDir(r.schemaDir)
	if err != nil {
		return fmt.Errorf("failed to read schema directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(names)

	for _, name := range names {
		schemaFile := filepath.Join(r.schemaDir, name+".json")
		data, err := os.ReadFile(schemaFile)
		if err != nil {
			return fmt.Errorf("failed to read schema file %s: %w", schemaFile, err)
		}
		schema, err := ParseComponentSchema(name, data, validate)
		if err != nil {
			return fmt.Errorf("failed to parse schema file %s: %w", schemaFile, err)
		}
		r.Register(schema)
	}

	zap.S().Infow("loaded component schemas", "directory", r.schemaDir, "count", len(names))
	return nil
}

// Register adds or replaces a component schema.
func (r *FileSchemaRegistry) Register(schema *propval.ComponentSchema) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.components[schema.Name()] = schema
}

// Component retrieves a component schema by name
func (r *FileSchemaRegistry) Component(name string) (*propval.ComponentSchema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schema, exists := r.components[name]
	if !exists {
		return nil, propval.NewComponentNotFoundError(name)
	}
	return schema, nil
}

// ListComponents returns a list of all registered component names
func (r *FileSchemaRegistry) ListComponents() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.components))
	for name := range r.components {
		names = append(names, name)
	}

	sort.Strings(names)
	return names
}
