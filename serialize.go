package propval

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// SerializeMode selects the shape produced by ToJSONObject.
type SerializeMode int

const (
	// SerializePersist keeps coerced values tagged with their selected type id.
	SerializePersist SerializeMode = iota
	// SerializeRender flattens values through each type's render conversion.
	SerializeRender
)

func (m SerializeMode) String() string {
	switch m {
	case SerializePersist:
		return "persist"
	case SerializeRender:
		return "render"
	default:
		return fmt.Sprintf("SerializeMode(%d)", int(m))
	}
}

// Persisted document keys.
const (
	DocKeyTypeID     = "typeId"
	DocKeyValue      = "value"
	DocKeyAlternates = "alternates"
)

// ToJSONObject walks the proxy tree.
//
// In persist mode each property maps to {"typeId", "value", "alternates"}:
// value is the selected type's coerced value (a nested document for object
// values) and alternates holds the other populated types. In render mode each
// property maps directly to the render form of its selected value; properties
// whose selected value is absent are left out.
//
// Serializing never changes the selected types.
func (p *PropertyValueProxy) ToJSONObject(mode SerializeMode) map[string]any {
	out := make(map[string]any, len(p.order))
	for _, propertyID := range p.order {
		store := p.stores[propertyID]
		switch mode {
		case SerializeRender:
			if v := renderValue(store, store.SelectedTypeID()); v != nil {
				out[propertyID] = v
			}
		default:
			out[propertyID] = persistEntry(store)
		}
	}
	return out
}

func persistEntry(store *TypedValueStore) map[string]any {
	selected := store.SelectedTypeID()
	entry := map[string]any{DocKeyTypeID: selected}
	if v := persistValue(store.Value(selected)); v != nil {
		entry[DocKeyValue] = v
	}
	var alternates map[string]any
	for _, typeID := range store.typeIDs {
		if typeID == selected {
			continue
		}
		if alternates == nil {
			alternates = make(map[string]any)
		}
		alternates[typeID] = persistValue(store.values[typeID])
	}
	if alternates != nil {
		entry[DocKeyAlternates] = alternates
	}
	return entry
}

func persistValue(v any) any {
	if child, ok := v.(*PropertyValueProxy); ok {
		return child.ToJSONObject(SerializePersist)
	}
	return cloneRaw(v)
}

func renderValue(store *TypedValueStore, typeID string) any {
	v := store.Value(typeID)
	if v == nil {
		return nil
	}
	if child, ok := v.(*PropertyValueProxy); ok {
		return child.ToJSONObject(SerializeRender)
	}
	t := store.Property().Type(typeID)
	if t == nil {
		return cloneRaw(v)
	}
	return t.ConvertToRender(v)
}

// Restore replaces the content of the proxy with a persisted-mode document as
// produced by ToJSONObject(SerializePersist). Properties unknown to the schema
// are skipped with a warning so documents saved against an older schema still
// load.
//
// The document is decoded into a scratch proxy first; on error the proxy is
// left untouched.
func (p *PropertyValueProxy) Restore(doc map[string]any) error {
	scratch := NewPropertyValueProxy(p.context)
	if err := scratch.restoreEntries(doc); err != nil {
		return err
	}
	return p.adopt(scratch)
}

func (p *PropertyValueProxy) restoreEntries(doc map[string]any) error {
	for _, propertyID := range sortedKeys(doc) {
		entry, ok := doc[propertyID].(map[string]any)
		if !ok {
			return invalidDocument(propertyID, "entry is not an object")
		}
		typeID, ok := entry[DocKeyTypeID].(string)
		if !ok || typeID == "" {
			return invalidDocument(propertyID, "missing typeId")
		}

		if _, err := p.ValueStore(propertyID); err != nil {
			var pve *PropValError
			if errors.As(err, &pve) && pve.Code == ErrCodeUnknownProperty {
				zap.S().Warnw("skipping unknown property in document", "property", propertyID, "scope", p.context.ID())
				continue
			}
			return err
		}

		if alternates, present := entry[DocKeyAlternates]; present {
			alts, ok := alternates.(map[string]any)
			if !ok {
				return invalidDocument(propertyID, "alternates is not an object")
			}
			for _, altTypeID := range sortedKeys(alts) {
				if altTypeID == typeID {
					continue
				}
				if err := p.restoreValue(propertyID, altTypeID, alts[altTypeID]); err != nil {
					return err
				}
			}
		}

		if err := p.restoreValue(propertyID, typeID, entry[DocKeyValue]); err != nil {
			return err
		}
		p.SelectType(propertyID, typeID)
	}
	return nil
}

// adopt moves the stores of a fully restored scratch proxy into p, re-points
// nested proxies at p, syncs the parent slot and notifies subscribers of every
// removed and restored property.
func (p *PropertyValueProxy) adopt(scratch *PropertyValueProxy) error {
	oldOrder, oldStores := p.order, p.stores
	p.order, p.stores = scratch.order, scratch.stores

	for _, propertyID := range p.order {
		store := p.stores[propertyID]
		for _, typeID := range store.typeIDs {
			if child, ok := store.values[typeID].(*PropertyValueProxy); ok {
				child.parent = &ParentLink{PropertyID: propertyID, TypeID: typeID, Proxy: p}
			}
		}
	}

	err := p.syncParent()

	for _, propertyID := range oldOrder {
		if _, kept := p.stores[propertyID]; !kept {
			p.emit(ChangeEvent{Path: []string{propertyID}, TypeID: oldStores[propertyID].SelectedTypeID()})
		}
	}
	for _, propertyID := range p.order {
		store := p.stores[propertyID]
		p.emit(ChangeEvent{Path: []string{propertyID}, TypeID: store.SelectedTypeID(), Value: store.Value()})
	}
	return err
}

func (p *PropertyValueProxy) restoreValue(propertyID, typeID string, value any) error {
	if value == nil {
		return nil
	}
	store, err := p.ValueStore(propertyID)
	if err != nil {
		return err
	}
	if t := store.Property().Type(typeID); t != nil && t.Kind() == KindObject {
		nested, ok := value.(map[string]any)
		if !ok {
			return invalidDocument(propertyID, fmt.Sprintf("value for %q is not an object", typeID))
		}
		child, err := p.ObjectValue(propertyID, typeID)
		if err != nil {
			return err
		}
		return child.Restore(nested)
	}
	return p.SetValue(propertyID, typeID, value)
}

func invalidDocument(propertyID, message string) *PropValError {
	return NewPropValError(ErrorTypeValidation, ErrCodeInvalidDocument, message).WithProperty(propertyID)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
