package propval

import (
	"fmt"
)

// ParentLink points from a nested proxy to the scope and slot that hold it.
// It does not own the parent; it is only used to attach or clear that slot.
type ParentLink struct {
	PropertyID string
	TypeID     string
	Proxy      *PropertyValueProxy
}

// ChangeEvent describes one mutation of a proxy tree.
type ChangeEvent struct {
	// Path lists property ids from the notified proxy down to the changed property.
	Path []string
	// TypeID is the type the value was written under.
	TypeID string
	// Value is the stored value after the mutation, nil when it was removed.
	Value any
}

// ChangeFunc receives change notifications.
type ChangeFunc func(ChangeEvent)

type subscription struct {
	fn ChangeFunc
}

// PropertyValueProxy holds the property values of one object-shaped scope:
// a component instance at the root, or a nested object property value below it.
//
// Stores are created on the first write and removed as soon as they are
// empty. A nested proxy that becomes empty clears the parent slot holding it.
type PropertyValueProxy struct {
	context *PropertyType
	parent  *ParentLink

	order  []string
	stores map[string]*TypedValueStore

	subscribers []*subscription
}

// NewPropertyValueProxy creates an empty root proxy validated against context,
// which must be an object property type (see ComponentSchema.Type).
func NewPropertyValueProxy(context *PropertyType) *PropertyValueProxy {
	return &PropertyValueProxy{
		context: context,
		stores:  make(map[string]*TypedValueStore),
	}
}

func newChildProxy(context *PropertyType, parent *PropertyValueProxy, propertyID, typeID string) *PropertyValueProxy {
	p := NewPropertyValueProxy(context)
	p.parent = &ParentLink{PropertyID: propertyID, TypeID: typeID, Proxy: parent}
	return p
}

// Context returns the object type this scope is validated against.
func (p *PropertyValueProxy) Context() *PropertyType { return p.context }

// Parent returns the back-link to the enclosing scope, or nil for a root proxy.
func (p *PropertyValueProxy) Parent() *ParentLink {
	if p.parent == nil {
		return nil
	}
	link := *p.parent
	return &link
}

// IsEmpty reports whether no property holds a value.
func (p *PropertyValueProxy) IsEmpty() bool { return len(p.order) == 0 }

// PropertyIDs returns the populated property ids in first-write order.
func (p *PropertyValueProxy) PropertyIDs() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// Properties returns the schema properties of this scope.
func (p *PropertyValueProxy) Properties() ([]*Property, error) {
	if p.context == nil {
		return nil, NewSchemaError(ErrCodeResolverMissing, "proxy has no schema context")
	}
	return p.context.Properties()
}

// Value returns the value of propertyID for typeID, or for the selected type
// when typeID is omitted.
func (p *PropertyValueProxy) Value(propertyID string, typeID ...string) any {
	store, ok := p.stores[propertyID]
	if !ok {
		return nil
	}
	return store.Value(typeID...)
}

// SelectedTypeID returns the selected type of propertyID, falling back to the
// property's first supported type when nothing has been written yet.
func (p *PropertyValueProxy) SelectedTypeID(propertyID string) (string, error) {
	store, err := p.ValueStore(propertyID)
	if err != nil {
		return "", err
	}
	return store.SelectedTypeID(), nil
}

// ValueStore returns the store of propertyID. When the property holds no
// value yet, a new unattached store bound to the schema property is returned;
// it becomes part of the proxy once a value is written through SetValue.
// A property id unknown to the schema is a schema error.
func (p *PropertyValueProxy) ValueStore(propertyID string) (*TypedValueStore, error) {
	if store, ok := p.stores[propertyID]; ok {
		return store, nil
	}
	prop, err := p.lookupProperty(propertyID)
	if err != nil {
		return nil, err
	}
	return NewTypedValueStore(prop), nil
}

func (p *PropertyValueProxy) lookupProperty(propertyID string) (*Property, error) {
	if p.context == nil {
		return nil, NewSchemaError(ErrCodeResolverMissing, "proxy has no schema context").WithProperty(propertyID)
	}
	prop, err := p.context.Property(propertyID)
	if err != nil {
		return nil, err
	}
	if prop == nil {
		return nil, NewUnknownPropertyError(propertyID, p.context.ID())
	}
	return prop, nil
}

// SetValue writes value for propertyID under typeID. It is the only mutation
// entry point of a proxy tree.
//
// A nil value clears that typed value. Empty stores are removed, and when the
// whole proxy becomes empty its parent slot is cleared as well, up to the
// root. A nested proxy that was handed out by ObjectValue attaches itself to
// its parent slot on the first write that makes it non-empty.
//
// A map written under an object type is converted into a nested proxy.
func (p *PropertyValueProxy) SetValue(propertyID, typeID string, value any) error {
	store, err := p.ValueStore(propertyID)
	if err != nil {
		return err
	}

	switch v := value.(type) {
	case map[string]any:
		if t := store.Property().Type(typeID); t != nil && t.Kind() == KindObject {
			child, err := p.objectFromMap(propertyID, typeID, t, v)
			if err != nil {
				return err
			}
			if child == nil {
				value = nil
			} else {
				value = child
			}
		}
	case *PropertyValueProxy:
		if v == nil || v.IsEmpty() {
			value = nil
		}
	}

	store.SetValue(value, typeID)
	if store.IsEmpty() {
		p.removeStore(propertyID)
	} else {
		p.putStore(propertyID, store)
	}

	if err := p.syncParent(); err != nil {
		return err
	}

	p.emit(ChangeEvent{
		Path:   []string{propertyID},
		TypeID: typeID,
		Value:  store.Value(typeID),
	})
	return nil
}

// SelectType changes the selected type of a populated property without
// touching any value. It reports false when the property holds no value.
func (p *PropertyValueProxy) SelectType(propertyID, typeID string) bool {
	store, ok := p.stores[propertyID]
	if !ok {
		return false
	}
	if store.SelectedTypeID() == typeID {
		return true
	}
	store.SelectType(typeID)
	p.emit(ChangeEvent{Path: []string{propertyID}, TypeID: typeID, Value: store.Value(typeID)})
	return true
}

// ObjectValue returns the nested proxy stored for propertyID under the object
// type typeID. When none is stored yet, a new empty proxy linked to this
// scope is returned without being stored.
func (p *PropertyValueProxy) ObjectValue(propertyID, typeID string) (*PropertyValueProxy, error) {
	store, err := p.ValueStore(propertyID)
	if err != nil {
		return nil, err
	}
	t := store.Property().Type(typeID)
	if t == nil || t.Kind() != KindObject {
		return nil, NewSchemaError(ErrCodeNotObjectType, fmt.Sprintf("type %q is not an object type of the property", typeID)).
			WithProperty(propertyID)
	}
	if child, ok := store.Value(typeID).(*PropertyValueProxy); ok {
		return child, nil
	}
	return newChildProxy(t, p, propertyID, typeID), nil
}

// Clone deep-copies the proxy tree. The copy has the same context, no parent
// and no subscribers, and shares no mutable state with the original.
func (p *PropertyValueProxy) Clone() *PropertyValueProxy {
	return p.cloneWithParent(nil)
}

func (p *PropertyValueProxy) cloneWithParent(link *ParentLink) *PropertyValueProxy {
	c := NewPropertyValueProxy(p.context)
	c.parent = link
	for _, propertyID := range p.order {
		src := p.stores[propertyID]
		dst := NewTypedValueStore(src.property)
		dst.selectedTypeID = src.selectedTypeID
		for _, typeID := range src.typeIDs {
			v := src.values[typeID]
			if child, ok := v.(*PropertyValueProxy); ok {
				v = child.cloneWithParent(&ParentLink{PropertyID: propertyID, TypeID: typeID, Proxy: c})
			} else {
				v = cloneRaw(v)
			}
			dst.put(typeID, v)
		}
		c.order = append(c.order, propertyID)
		c.stores[propertyID] = dst
	}
	return c
}

// Subscribe registers fn for change notifications of this proxy and every
// nested proxy below it. The returned function cancels the subscription.
func (p *PropertyValueProxy) Subscribe(fn ChangeFunc) func() {
	sub := &subscription{fn: fn}
	p.subscribers = append(p.subscribers, sub)
	return func() {
		for i, s := range p.subscribers {
			if s == sub {
				p.subscribers = append(p.subscribers[:i], p.subscribers[i+1:]...)
				return
			}
		}
	}
}

func (p *PropertyValueProxy) emit(ev ChangeEvent) {
	for _, s := range p.subscribers {
		s.fn(ev)
	}
	link := p.parent
	if link == nil || !link.Proxy.holds(link.PropertyID, link.TypeID, p) {
		return
	}
	path := make([]string, 0, len(ev.Path)+1)
	path = append(path, link.PropertyID)
	ev.Path = append(path, ev.Path...)
	link.Proxy.emit(ev)
}

func (p *PropertyValueProxy) holds(propertyID, typeID string, child *PropertyValueProxy) bool {
	v, ok := p.Value(propertyID, typeID).(*PropertyValueProxy)
	return ok && v == child
}

// syncParent keeps the parent slot consistent with this proxy: an empty proxy
// is cleared from it, a non-empty detached proxy is attached to it.
func (p *PropertyValueProxy) syncParent() error {
	link := p.parent
	if link == nil {
		return nil
	}
	attached := link.Proxy.holds(link.PropertyID, link.TypeID, p)
	switch {
	case p.IsEmpty() && attached:
		return link.Proxy.SetValue(link.PropertyID, link.TypeID, nil)
	case !p.IsEmpty() && !attached:
		return link.Proxy.SetValue(link.PropertyID, link.TypeID, p)
	}
	return nil
}

func (p *PropertyValueProxy) objectFromMap(propertyID, typeID string, t *PropertyType, m map[string]any) (*PropertyValueProxy, error) {
	child := newChildProxy(t, p, propertyID, typeID)
	// Detach while filling so the partial child does not attach itself early.
	link := child.parent
	child.parent = nil
	for _, key := range sortedKeys(m) {
		prop, err := child.lookupProperty(key)
		if err != nil {
			return nil, err
		}
		childType := prop.DefaultType()
		if childType == nil {
			continue
		}
		if err := child.SetValue(key, childType.ID(), m[key]); err != nil {
			return nil, err
		}
	}
	child.parent = link
	if child.IsEmpty() {
		return nil, nil
	}
	return child, nil
}

func (p *PropertyValueProxy) putStore(propertyID string, store *TypedValueStore) {
	if _, exists := p.stores[propertyID]; !exists {
		p.order = append(p.order, propertyID)
	}
	p.stores[propertyID] = store
}

func (p *PropertyValueProxy) removeStore(propertyID string) {
	if _, exists := p.stores[propertyID]; !exists {
		return
	}
	delete(p.stores, propertyID)
	for i, id := range p.order {
		if id == propertyID {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

func cloneRaw(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = cloneRaw(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = cloneRaw(val)
		}
		return out
	default:
		return v
	}
}
