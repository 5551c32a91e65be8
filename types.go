package propval

import (
	"time"

	"github.com/google/uuid"
)

// ComponentSchema is the property schema of one component. Its root type is
// an object property type, so instance proxies and nested proxies share the
// same context kind.
type ComponentSchema struct {
	name        string
	title       string
	description string
	root        *PropertyType
}

// NewComponentSchema creates a component schema whose top-level properties
// come from resolver.
func NewComponentSchema(name, title string, resolver PropertyResolver) *ComponentSchema {
	return &ComponentSchema{
		name:  name,
		title: GuessName(name, title),
		root:  NewObjectType(name, title, resolver),
	}
}

func (s *ComponentSchema) Name() string        { return s.name }
func (s *ComponentSchema) Title() string       { return s.title }
func (s *ComponentSchema) Description() string { return s.description }

func (s *ComponentSchema) SetDescription(description string) { s.description = description }

// Type returns the object type used as the context of instance proxies.
func (s *ComponentSchema) Type() *PropertyType { return s.root }

// Properties returns the top-level properties.
func (s *ComponentSchema) Properties() ([]*Property, error) { return s.root.Properties() }

// Property returns a top-level property by id, or nil.
func (s *ComponentSchema) Property(id string) (*Property, error) { return s.root.Property(id) }

// NewValues creates the empty root proxy of a new instance.
func (s *ComponentSchema) NewValues() *PropertyValueProxy {
	return NewPropertyValueProxy(s.root)
}

// InstanceRecord is the stored form of one component instance.
type InstanceRecord struct {
	ID        uuid.UUID      `json:"id"`
	Component string         `json:"component"`
	Values    map[string]any `json:"values"` // persist-mode document
	UpdatedAt time.Time      `json:"updatedAt"`
}

// InstanceSummary lists an instance without its values.
type InstanceSummary struct {
	ID        uuid.UUID `json:"id"`
	Component string    `json:"component"`
	UpdatedAt time.Time `json:"updatedAt"`
}
