package propval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestTypedValueStoreDefaults(t *testing.T) {
	s := NewTypedValueStore(NewProperty("width", NumberType(), StringType()))

	assert.True(t, s.IsEmpty())
	assert.Equal(t, "number", s.SelectedTypeID())
	assert.Same(t, NumberType(), s.SelectedType())
	assert.Nil(t, s.Value())

	bare := NewTypedValueStore(nil)
	assert.Equal(t, "", bare.SelectedTypeID())
	assert.Nil(t, bare.SelectedType())
}

func TestTypedValueStoreKeepsValuesPerType(t *testing.T) {
	s := NewTypedValueStore(NewProperty("width", NumberType(), StringType()))

	s.SetValue("120", "number")
	s.SetValue("50%", "string")

	assert.Equal(t, "string", s.SelectedTypeID())
	assert.Equal(t, "50%", s.Value())
	assert.Equal(t, 120.0, s.Value("number"))
	assert.Equal(t, []string{"number", "string"}, s.TypeIDs())

	s.SelectType("number")
	assert.Equal(t, 120.0, s.Value())
	assert.Equal(t, "50%", s.Value("string"))
}

func TestTypedValueStoreRemovesEntries(t *testing.T) {
	tests := []struct {
		name  string
		value any
	}{
		{name: "nil value", value: nil},
		{name: "value coerced to nil", value: "not a number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewTypedValueStore(NewProperty("count", NumberType()))
			s.SetValue(3, "number")
			assert.False(t, s.IsEmpty())

			s.SetValue(tt.value, "number")
			assert.True(t, s.IsEmpty())
			assert.Nil(t, s.Value("number"))
			assert.Empty(t, s.TypeIDs())
		})
	}
}

func TestTypedValueStoreScenarios(t *testing.T) {
	visible := NewProperty("visible", BooleanType())
	visible.SetDefaultValue(false)
	s := NewTypedValueStore(visible)
	s.SetValue("true", "boolean")
	assert.Equal(t, true, s.Value())

	count := NewTypedValueStore(NewProperty("count", NumberType()))
	count.SetValue("3.5x", "number")
	assert.True(t, count.IsEmpty())
	count.SetValue("3.5", "number")
	assert.Equal(t, 3.5, count.Value())
}

func TestTypedValueStoreUnknownTypeKeepsRawValue(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	defer zap.ReplaceGlobals(zap.New(core))()

	s := NewTypedValueStore(NewProperty("label", StringType()))
	raw := []any{1, 2}
	s.SetValue(raw, "legacy")

	assert.Equal(t, "legacy", s.SelectedTypeID())
	assert.Equal(t, raw, s.Value())
	assert.Nil(t, s.SelectedType())

	entries := logs.FilterMessage("setting raw value for unknown property type").All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "legacy", entries[0].ContextMap()["type"])
	}
}

func TestTypedValueStoreStoresProxyAsIs(t *testing.T) {
	image := NewObjectType("image", "Image", func() ([]*Property, error) {
		return []*Property{NewProperty("src", AssetType())}, nil
	})
	s := NewTypedValueStore(NewProperty("image", image))
	child := NewPropertyValueProxy(image)
	s.SetValue(child, image.ID())

	assert.Same(t, child, s.Value())
}
