package propval

import (
	"fmt"

	"go.uber.org/zap"
)

// PropertyValueCommandKind is the Kind of every PropertyValueCommand.
const PropertyValueCommandKind = "property-value"

// Command is an undoable edit driven by a history manager.
// Failures are reported as false and leave the edited state unchanged.
type Command interface {
	Execute() bool
	Undo() bool
	// MaybeMergeWith folds previous, the command executed right before this
	// one, into this command. On success the history drops previous.
	MaybeMergeWith(previous Command) bool
	// Seal stops later commands from merging into this one.
	Seal()
	Kind() string
	Description() string
}

// Target is the element an edit belongs to, typically a placed component instance.
type Target interface {
	// IsAttached reports whether the element is still part of a live document.
	IsAttached() bool
}

// PropertyValueCommand sets one property value on one proxy.
type PropertyValueCommand struct {
	target     Target
	proxy      *PropertyValueProxy
	propertyID string
	typeID     string
	value      any

	propertyName   string
	previousValue  any
	previousTypeID string
	hadValue       bool

	sealed bool
}

// NewPropertyValueCommand builds a command that writes value to propertyID
// under typeID. The current value is captured here, before anything is
// applied. A nil target imposes no attachment precondition.
func NewPropertyValueCommand(target Target, proxy *PropertyValueProxy, propertyID, typeID string, value any) (*PropertyValueCommand, error) {
	if proxy == nil {
		return nil, NewPropValError(ErrorTypeInternal, ErrCodeInternalError, "command requires a proxy").WithProperty(propertyID)
	}
	store, err := proxy.ValueStore(propertyID)
	if err != nil {
		return nil, err
	}
	return &PropertyValueCommand{
		target:         target,
		proxy:          proxy,
		propertyID:     propertyID,
		typeID:         typeID,
		value:          value,
		propertyName:   store.Property().Name(),
		previousValue:  store.Value(typeID),
		previousTypeID: store.SelectedTypeID(),
		hadValue:       !store.IsEmpty(),
	}, nil
}

func (c *PropertyValueCommand) Proxy() *PropertyValueProxy { return c.proxy }
func (c *PropertyValueCommand) PropertyID() string         { return c.propertyID }
func (c *PropertyValueCommand) TypeID() string             { return c.typeID }
func (c *PropertyValueCommand) Value() any                 { return c.value }
func (c *PropertyValueCommand) PreviousValue() any         { return c.previousValue }
func (c *PropertyValueCommand) Sealed() bool               { return c.sealed }
func (c *PropertyValueCommand) Kind() string               { return PropertyValueCommandKind }

func (c *PropertyValueCommand) Description() string {
	return fmt.Sprintf("Change %s", c.propertyName)
}

// Execute applies the new value. It returns false without mutating when the
// target is no longer attached.
func (c *PropertyValueCommand) Execute() bool {
	if !c.attached() {
		return false
	}
	return c.apply(c.value)
}

// Undo restores the value captured at construction, or at the construction of
// the first command merged into this one, together with the type that was
// selected then.
func (c *PropertyValueCommand) Undo() bool {
	if !c.attached() {
		return false
	}
	if !c.apply(c.previousValue) {
		return false
	}
	if c.hadValue && c.previousTypeID != c.typeID {
		c.proxy.SelectType(c.propertyID, c.previousTypeID)
	}
	return true
}

// MaybeMergeWith accepts previous only when it is an unsealed property value
// command for the same proxy, property and type.
func (c *PropertyValueCommand) MaybeMergeWith(previous Command) bool {
	prev, ok := previous.(*PropertyValueCommand)
	if !ok || prev == c || prev.sealed {
		return false
	}
	if prev.proxy != c.proxy || prev.propertyID != c.propertyID || prev.typeID != c.typeID {
		return false
	}
	c.previousValue = prev.previousValue
	c.previousTypeID = prev.previousTypeID
	c.hadValue = prev.hadValue
	return true
}

func (c *PropertyValueCommand) Seal() { c.sealed = true }

func (c *PropertyValueCommand) attached() bool {
	return c.target == nil || c.target.IsAttached()
}

func (c *PropertyValueCommand) apply(value any) bool {
	if err := c.proxy.SetValue(c.propertyID, c.typeID, value); err != nil {
		zap.S().Errorw("property value command failed", "property", c.propertyID, "type", c.typeID, "error", err)
		return false
	}
	return true
}
