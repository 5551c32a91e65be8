package propval

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
)

// Kind tags the closed set of property type variants.
type Kind string

const (
	KindBoolean Kind = "boolean"
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindEnum    Kind = "enum"
	KindAsset   Kind = "asset"
	KindObject  Kind = "object"
)

// Kinds returns every supported kind in declaration order.
func Kinds() []Kind {
	return []Kind{KindBoolean, KindString, KindNumber, KindEnum, KindAsset, KindObject}
}

// kindBehavior is the dispatch entry for one kind.
type kindBehavior struct {
	coerce func(t *PropertyType, value any) any
	render func(t *PropertyType, value any) any
}

var kindTable = map[Kind]kindBehavior{
	KindBoolean: {coerce: coerceBoolean, render: renderIdentity},
	KindString:  {coerce: coerceString, render: renderIdentity},
	KindNumber:  {coerce: coerceNumber, render: renderIdentity},
	KindEnum:    {coerce: coerceEnum, render: renderEnum},
	KindAsset:   {coerce: coerceString, render: renderIdentity},
	KindObject:  {coerce: coerceObject, render: renderIdentity},
}

// Option is one choice of an enum property type.
type Option struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Ordinal int    `json:"ordinal"`
}

// PropertyResolver produces the nested properties of an object type on demand.
type PropertyResolver func() ([]*Property, error)

// PropertyType describes one representation a property value may take.
// Scalar kinds are shared instances; enum and object types are created per schema.
type PropertyType struct {
	id   string
	name string
	kind Kind

	options []Option

	resolveOnce sync.Once
	resolver    PropertyResolver
	properties  []*Property
	propertyIdx map[string]*Property
	resolveErr  error
}

var (
	booleanType = &PropertyType{id: string(KindBoolean), name: "Boolean", kind: KindBoolean}
	stringType  = &PropertyType{id: string(KindString), name: "String", kind: KindString}
	numberType  = &PropertyType{id: string(KindNumber), name: "Number", kind: KindNumber}
	assetType   = &PropertyType{id: string(KindAsset), name: "Asset", kind: KindAsset}
)

// BooleanType returns the shared boolean property type.
func BooleanType() *PropertyType { return booleanType }

// StringType returns the shared string property type.
func StringType() *PropertyType { return stringType }

// NumberType returns the shared number property type.
func NumberType() *PropertyType { return numberType }

// AssetType returns the shared asset property type.
func AssetType() *PropertyType { return assetType }

// NewEnumType creates an enum type. Its id is prefixed with "enum-".
func NewEnumType(id, name string, options []Option) *PropertyType {
	opts := make([]Option, len(options))
	copy(opts, options)
	return &PropertyType{
		id:      "enum-" + id,
		name:    GuessName(id, name),
		kind:    KindEnum,
		options: opts,
	}
}

// NewObjectType creates an object type whose nested properties come from resolver.
// Its id is prefixed with "object-".
func NewObjectType(id, name string, resolver PropertyResolver) *PropertyType {
	return &PropertyType{
		id:       "object-" + id,
		name:     GuessName(id, name),
		kind:     KindObject,
		resolver: resolver,
	}
}

func (t *PropertyType) ID() string   { return t.id }
func (t *PropertyType) Name() string { return t.name }
func (t *PropertyType) Kind() Kind   { return t.kind }

// Equal reports whether both types carry the same id.
func (t *PropertyType) Equal(other *PropertyType) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.id == other.id
}

// CoerceValue normalizes raw into this type's value domain. It never fails.
func (t *PropertyType) CoerceValue(raw any) any {
	b, ok := kindTable[t.kind]
	if !ok {
		return raw
	}
	return b.coerce(t, raw)
}

// ConvertToRender projects a stored value into the form handed to renderers.
func (t *PropertyType) ConvertToRender(value any) any {
	b, ok := kindTable[t.kind]
	if !ok {
		return value
	}
	return b.render(t, value)
}

// Options returns the enum options in declaration order.
func (t *PropertyType) Options() []Option {
	out := make([]Option, len(t.options))
	copy(out, t.options)
	return out
}

// Option looks up an enum option by id.
func (t *PropertyType) Option(id string) (Option, bool) {
	for _, o := range t.options {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}

// SetPropertyResolver installs the nested property resolver of an object type.
// It must be called before the first resolution.
func (t *PropertyType) SetPropertyResolver(resolver PropertyResolver) {
	t.resolver = resolver
}

// Properties returns the nested properties of an object type, resolving them once.
func (t *PropertyType) Properties() ([]*Property, error) {
	if err := t.resolve(); err != nil {
		return nil, err
	}
	out := make([]*Property, len(t.properties))
	copy(out, t.properties)
	return out, nil
}

// Property returns the nested property with the given id, or nil.
func (t *PropertyType) Property(id string) (*Property, error) {
	if err := t.resolve(); err != nil {
		return nil, err
	}
	return t.propertyIdx[id], nil
}

func (t *PropertyType) resolve() error {
	if t.kind != KindObject {
		return NewSchemaError(ErrCodeNotObjectType, fmt.Sprintf("type %q has no nested properties", t.id))
	}
	t.resolveOnce.Do(func() {
		if t.resolver == nil {
			t.resolveErr = NewSchemaError(ErrCodeResolverMissing, fmt.Sprintf("property resolver is not set for %q", t.id))
			return
		}
		props, err := t.resolver()
		if err != nil {
			t.resolveErr = NewSchemaError(ErrCodeResolverFailed, fmt.Sprintf("resolve properties of %q", t.id)).WithCause(err)
			return
		}
		t.properties = props
		t.propertyIdx = make(map[string]*Property, len(props))
		for _, p := range props {
			t.propertyIdx[p.ID()] = p
		}
	})
	return t.resolveErr
}

func (t *PropertyType) String() string {
	return fmt.Sprintf("PropertyType(id=%q, kind=%s)", t.id, t.kind)
}

// Coercion helpers

func coerceBoolean(_ *PropertyType, value any) any {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return v == "true"
	default:
		f, ok := numericValue(value)
		return ok && f == 1
	}
}

func coerceString(_ *PropertyType, value any) any {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case fmt.Stringer:
		return v.String()
	}
	if f, ok := numericValue(value); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return fmt.Sprint(value)
}

func coerceNumber(_ *PropertyType, value any) any {
	var f float64
	switch v := value.(type) {
	case nil, bool:
		return nil
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		n, ok := numericValue(value)
		if !ok {
			return nil
		}
		f = n
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

func coerceEnum(t *PropertyType, value any) any {
	var id string
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		id = v
	default:
		id = coerceString(t, v).(string)
	}
	if _, ok := t.Option(id); !ok {
		return nil
	}
	return id
}

// coerceObject keeps nested proxies and maps. Scalars have no object form.
func coerceObject(_ *PropertyType, value any) any {
	switch v := value.(type) {
	case *PropertyValueProxy:
		if v == nil {
			return nil
		}
		return v
	case map[string]any:
		return v
	}
	return nil
}

func renderIdentity(_ *PropertyType, value any) any {
	return value
}

func renderEnum(t *PropertyType, value any) any {
	id, ok := value.(string)
	if !ok {
		return nil
	}
	o, ok := t.Option(id)
	if !ok {
		return nil
	}
	return o.Ordinal
}

func numericValue(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}
