package propval

import "go.uber.org/zap"

// TypedValueStore holds the values of one property, one per populated type.
// Changing the selected type keeps the values of the other types.
type TypedValueStore struct {
	property       *Property
	selectedTypeID string
	typeIDs        []string
	values         map[string]any
}

// NewTypedValueStore creates an empty store bound to property.
// The selected type defaults to the property's first supported type.
func NewTypedValueStore(property *Property) *TypedValueStore {
	s := &TypedValueStore{
		property: property,
		values:   make(map[string]any),
	}
	if property != nil {
		if t := property.DefaultType(); t != nil {
			s.selectedTypeID = t.ID()
		}
	}
	return s
}

func (s *TypedValueStore) Property() *Property      { return s.property }
func (s *TypedValueStore) SelectedTypeID() string   { return s.selectedTypeID }
func (s *TypedValueStore) IsEmpty() bool            { return len(s.typeIDs) == 0 }
func (s *TypedValueStore) SelectType(typeID string) { s.selectedTypeID = typeID }

// TypeIDs returns the populated type ids in the order they were first written.
func (s *TypedValueStore) TypeIDs() []string {
	out := make([]string, len(s.typeIDs))
	copy(out, s.typeIDs)
	return out
}

// SelectedType returns the property type currently selected, or nil.
func (s *TypedValueStore) SelectedType() *PropertyType {
	if s.property == nil {
		return nil
	}
	return s.property.Type(s.selectedTypeID)
}

// Value returns the value stored for typeID, or for the selected type when
// typeID is omitted. It returns nil when nothing is stored.
func (s *TypedValueStore) Value(typeID ...string) any {
	id := s.selectedTypeID
	if len(typeID) > 0 && typeID[0] != "" {
		id = typeID[0]
	}
	return s.values[id]
}

// SetValue stores value under typeID and selects that type.
// A nil value removes the entry; a nested proxy is stored as is; anything
// else is coerced by the matching property type. Values for unknown types
// are kept raw.
func (s *TypedValueStore) SetValue(value any, typeID string) {
	s.selectedTypeID = typeID

	if value == nil {
		s.remove(typeID)
		return
	}

	if proxy, ok := value.(*PropertyValueProxy); ok {
		s.put(typeID, proxy)
		return
	}

	var t *PropertyType
	if s.property != nil {
		t = s.property.Type(typeID)
	}
	if t == nil {
		propertyID := ""
		if s.property != nil {
			propertyID = s.property.ID()
		}
		zap.S().Warnw("setting raw value for unknown property type", "property", propertyID, "type", typeID)
		s.put(typeID, value)
		return
	}

	coerced := t.CoerceValue(value)
	if coerced == nil {
		s.remove(typeID)
		return
	}
	s.put(typeID, coerced)
}

func (s *TypedValueStore) put(typeID string, value any) {
	if _, exists := s.values[typeID]; !exists {
		s.typeIDs = append(s.typeIDs, typeID)
	}
	s.values[typeID] = value
}

func (s *TypedValueStore) remove(typeID string) {
	if _, exists := s.values[typeID]; !exists {
		return
	}
	delete(s.values, typeID)
	for i, id := range s.typeIDs {
		if id == typeID {
			s.typeIDs = append(s.typeIDs[:i], s.typeIDs[i+1:]...)
			break
		}
	}
}
