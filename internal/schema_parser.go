package internal

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/lychee-technology/propval"
	"go.uber.org/zap"
)

const defsRefPrefix = "#/$defs/"

// componentParser turns one JSON Schema component document into a property
// tree. Object types declared in $defs are interned, so recursive and shared
// definitions resolve to the same type.
type componentParser struct {
	component string
	defs      map[string]any

	// mu guards defTypes. Lazy resolvers of sibling object types may run
	// concurrently once the schema is shared between sessions.
	mu       sync.Mutex
	defTypes map[string]*propval.PropertyType
}

// ParseComponentSchema parses a component definition. When validate is set
// the document must also be a well-formed JSON Schema.
func ParseComponentSchema(name string, data []byte, validate bool) (*propval.ComponentSchema, error) {
	if validate {
		if err := validateSchemaDocument(data); err != nil {
			return nil, propval.NewSchemaError(propval.ErrCodeSchemaInvalid, fmt.Sprintf("invalid schema for component %s", name)).
				WithCause(err)
		}
	}

	var root map[string]any
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal component schema %s: %w", name, err)
	}
	if t, ok := root["type"].(string); ok && t != "object" {
		return nil, propval.NewSchemaError(propval.ErrCodeSchemaInvalid,
			fmt.Sprintf("component %s must be an object schema, got %q", name, t))
	}

	p := &componentParser{
		component: name,
		defs:      map[string]any{},
		defTypes:  map[string]*propval.PropertyType{},
	}
	if defs, ok := root["$defs"].(map[string]any); ok {
		p.defs = defs
	}

	title, _ := root["title"].(string)
	schema := propval.NewComponentSchema(name, title, func() ([]*propval.Property, error) {
		return p.parseProperties(name, root)
	})
	if desc, ok := root["description"].(string); ok {
		schema.SetDescription(desc)
	}
	return schema, nil
}

// validateSchemaDocument checks that data is a resolvable JSON Schema.
func validateSchemaDocument(data []byte) error {
	var schema jsonschema.Schema
	if err := json.Unmarshal(data, &schema); err != nil {
		return fmt.Errorf("failed to unmarshal into jsonschema.Schema: %w", err)
	}
	if _, err := schema.Resolve(&jsonschema.ResolveOptions{}); err != nil {
		return fmt.Errorf("failed to resolve JSON schema: %w", err)
	}
	return nil
}

func (p *componentParser) parseProperties(scope string, obj map[string]any) ([]*propval.Property, error) {
	props, _ := obj["properties"].(map[string]any)
	required := stringSet(obj["required"])

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	result := make([]*propval.Property, 0, len(names))
	for _, name := range names {
		propSchema, ok := props[name].(map[string]any)
		if !ok {
			return nil, propval.NewSchemaError(propval.ErrCodeSchemaInvalid, "property schema must be an object").
				WithProperty(name).WithDetail("scope", scope)
		}
		prop := p.parseProperty(scope, name, propSchema, required[name])
		if prop == nil {
			continue
		}
		result = append(result, prop)
	}
	return result, nil
}

// parseProperty returns nil when none of the schema's types is supported.
func (p *componentParser) parseProperty(scope, id string, s map[string]any, required bool) *propval.Property {
	types := p.typesFor(scope, id, s, map[string]bool{})
	if len(types) == 0 {
		zap.S().Debugw("skipping property without supported types", "component", p.component, "scope", scope, "property", id)
		return nil
	}

	prop := propval.NewProperty(id, types...)
	prop.SetRequired(required)

	// Annotations on a $ref property live next to the $ref itself.
	if title, ok := s["title"].(string); ok {
		prop.SetName(title)
	}
	if hidden, ok := s["x-hidden"].(bool); ok {
		prop.SetHidden(hidden)
	}
	if def, ok := s["default"]; ok {
		prop.SetDefaultValue(def)
	}
	return prop
}

func (p *componentParser) typesFor(scope, id string, s map[string]any, visiting map[string]bool) []*propval.PropertyType {
	if ref, ok := s["$ref"].(string); ok {
		return p.refTypes(scope, id, ref, visiting)
	}

	var types []*propval.PropertyType
	for _, key := range []string{"anyOf", "oneOf"} {
		alts, ok := s[key].([]any)
		if !ok {
			continue
		}
		for _, alt := range alts {
			if altSchema, ok := alt.(map[string]any); ok {
				types = append(types, p.typesFor(scope, id, altSchema, visiting)...)
			}
		}
	}

	for _, jsonType := range schemaTypes(s) {
		if t := p.typeFor(scope, id, jsonType, s); t != nil {
			types = append(types, t)
		}
	}
	return dedupeTypes(types)
}

func (p *componentParser) refTypes(scope, id, ref string, visiting map[string]bool) []*propval.PropertyType {
	if !strings.HasPrefix(ref, defsRefPrefix) {
		zap.S().Warnw("unsupported schema reference", "component", p.component, "property", id, "ref", ref)
		return nil
	}
	defName := strings.TrimPrefix(ref, defsRefPrefix)
	def, ok := p.defs[defName].(map[string]any)
	if !ok {
		zap.S().Warnw("unresolved schema reference", "component", p.component, "property", id, "ref", ref)
		return nil
	}
	if isObjectSchema(def) {
		return []*propval.PropertyType{p.defType(defName, def)}
	}
	// A scalar definition is inlined; guard against definitions that only refer to themselves.
	if visiting[defName] {
		return nil
	}
	visiting[defName] = true
	defer delete(visiting, defName)
	return p.typesFor(scope, id, def, visiting)
}

// defType returns the interned object type of a $defs entry. The type is
// registered before its properties are resolved, so cycles terminate.
func (p *componentParser) defType(name string, def map[string]any) *propval.PropertyType {
	p.mu.Lock()
	defer p.mu.Unlock()

	if t, ok := p.defTypes[name]; ok {
		return t
	}
	scope := p.component + "#" + name
	title, _ := def["title"].(string)
	t := propval.NewObjectType(scope, firstNonEmpty(title, name), func() ([]*propval.Property, error) {
		return p.parseProperties(scope, def)
	})
	p.defTypes[name] = t
	return t
}

func (p *componentParser) typeFor(scope, id, jsonType string, s map[string]any) *propval.PropertyType {
	switch jsonType {
	case "boolean":
		return propval.BooleanType()
	case "number", "integer":
		return propval.NumberType()
	case "string":
		if _, ok := s["enum"]; ok {
			return p.enumType(scope, id, s)
		}
		if asset, _ := s["x-asset"].(bool); asset {
			return propval.AssetType()
		}
		if format, _ := s["format"].(string); format == "data-url" {
			return propval.AssetType()
		}
		return propval.StringType()
	case "object":
		nested := scope + "." + id
		title, _ := s["title"].(string)
		return propval.NewObjectType(nested, firstNonEmpty(title, id), func() ([]*propval.Property, error) {
			return p.parseProperties(nested, s)
		})
	case "array":
		zap.S().Debugw("array properties are not supported", "component", p.component, "property", id)
		return nil
	default:
		return nil
	}
}

func (p *componentParser) enumType(scope, id string, s map[string]any) *propval.PropertyType {
	values, _ := s["enum"].([]any)
	names, _ := s["x-enumNames"].([]any)

	options := make([]propval.Option, 0, len(values))
	for i, v := range values {
		if v == nil {
			continue
		}
		optionID := fmt.Sprint(v)
		name := ""
		if i < len(names) {
			name, _ = names[i].(string)
		}
		options = append(options, propval.Option{
			ID:      optionID,
			Name:    propval.GuessName(optionID, name),
			Ordinal: i,
		})
	}
	title, _ := s["title"].(string)
	return propval.NewEnumType(scope+"."+id, firstNonEmpty(title, id), options)
}

// schemaTypes returns the JSON types of s. A bare enum is treated as a string.
func schemaTypes(s map[string]any) []string {
	switch t := s["type"].(type) {
	case string:
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, v := range t {
			if name, ok := v.(string); ok && name != "null" {
				out = append(out, name)
			}
		}
		return out
	}
	if _, ok := s["enum"]; ok {
		return []string{"string"}
	}
	if _, ok := s["properties"]; ok {
		return []string{"object"}
	}
	return nil
}

func isObjectSchema(s map[string]any) bool {
	types := schemaTypes(s)
	return len(types) == 1 && types[0] == "object"
}

func dedupeTypes(types []*propval.PropertyType) []*propval.PropertyType {
	seen := make(map[string]bool, len(types))
	out := types[:0]
	for _, t := range types {
		if seen[t.ID()] {
			continue
		}
		seen[t.ID()] = true
		out = append(out, t)
	}
	return out
}

func stringSet(raw any) map[string]bool {
	set := map[string]bool{}
	if list, ok := raw.([]any); ok {
		for _, v := range list {
			if s, ok := v.(string); ok {
				set[s] = true
			}
		}
	}
	return set
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
