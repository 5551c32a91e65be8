package propval

// SchemaRegistry provides component schema lookup.
// Implementations can load schemas from files, databases, or other sources.
type SchemaRegistry interface {
	// Component returns the schema of the named component.
	Component(name string) (*ComponentSchema, error)
	// ListComponents returns the registered component names, sorted.
	ListComponents() []string
}
