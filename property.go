package propval

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"
)

// Property is the schema-level description of one component property.
// Component instances hold the actual values in a PropertyValueProxy.
type Property struct {
	id           string
	name         string
	required     bool
	hidden       bool
	defaultValue any

	supportedTypes []*PropertyType
}

// NewProperty creates a property whose display name is guessed from id.
func NewProperty(id string, types ...*PropertyType) *Property {
	p := &Property{id: id, name: GuessName(id, "")}
	for _, t := range types {
		p.AddSupportedType(t)
	}
	return p
}

func (p *Property) ID() string        { return p.id }
func (p *Property) Name() string      { return p.name }
func (p *Property) Required() bool    { return p.required }
func (p *Property) Hidden() bool      { return p.hidden }
func (p *Property) DefaultValue() any { return p.defaultValue }

// SetName overrides the guessed display name. Empty names are ignored.
func (p *Property) SetName(name string) {
	if name != "" {
		p.name = name
	}
}

func (p *Property) SetRequired(required bool) { p.required = required }
func (p *Property) SetHidden(hidden bool)     { p.hidden = hidden }
func (p *Property) SetDefaultValue(value any) { p.defaultValue = value }

// AddSupportedType appends a type. A type whose id is already supported is ignored.
func (p *Property) AddSupportedType(t *PropertyType) {
	if t == nil {
		return
	}
	if p.Type(t.ID()) != nil {
		zap.S().Warnw("ignoring duplicate supported type", "property", p.id, "type", t.ID())
		return
	}
	p.supportedTypes = append(p.supportedTypes, t)
}

// Type returns the supported type with the given id, or nil.
func (p *Property) Type(id string) *PropertyType {
	for _, t := range p.supportedTypes {
		if t.ID() == id {
			return t
		}
	}
	return nil
}

// SupportedTypes returns the supported types in declaration order.
func (p *Property) SupportedTypes() []*PropertyType {
	out := make([]*PropertyType, len(p.supportedTypes))
	copy(out, p.supportedTypes)
	return out
}

// DefaultType is the first declared type, used when nothing is selected yet.
func (p *Property) DefaultType() *PropertyType {
	if len(p.supportedTypes) == 0 {
		return nil
	}
	return p.supportedTypes[0]
}

func (p *Property) String() string {
	def, _ := json.Marshal(p.defaultValue)
	typeIDs := make([]string, len(p.supportedTypes))
	for i, t := range p.supportedTypes {
		typeIDs[i] = t.ID()
	}
	return fmt.Sprintf("id=%q, name=%q, required=%t, default=%s, types=[%s]",
		p.id, p.name, p.required, def, strings.Join(typeIDs, ","))
}

// GuessName returns name when set, otherwise a human-friendly form of id:
// "backgroundColor" and "background-color" both become "Background Color".
func GuessName(id, name string) string {
	if name != "" {
		return name
	}

	var words []string
	var current []rune
	flush := func() {
		if len(current) > 0 {
			words = append(words, string(current))
			current = current[:0]
		}
	}

	runes := []rune(id)
	for i, r := range runes {
		switch {
		case r == '-' || r == '_' || r == ' ' || r == '.':
			flush()
		case unicode.IsUpper(r) && i > 0 && (unicode.IsLower(runes[i-1]) ||
			(i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1]))):
			flush()
			current = append(current, r)
		default:
			current = append(current, r)
		}
	}
	flush()

	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
