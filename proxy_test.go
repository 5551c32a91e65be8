package propval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newButtonSchema builds a component with scalar, enum, union and nested
// object properties. frame.image is two levels deep.
func newButtonSchema() *ComponentSchema {
	image := NewObjectType("button#Image", "Image", func() ([]*Property, error) {
		return []*Property{
			NewProperty("src", AssetType()),
			NewProperty("alt", StringType()),
		}, nil
	})
	frame := NewObjectType("button.frame", "Frame", func() ([]*Property, error) {
		return []*Property{
			NewProperty("image", image),
			NewProperty("padding", NumberType()),
		}, nil
	})
	return NewComponentSchema("button", "Button", func() ([]*Property, error) {
		label := NewProperty("label", StringType())
		label.SetRequired(true)
		return []*Property{
			label,
			NewProperty("size", sizeEnum()),
			NewProperty("width", NumberType(), StringType()),
			NewProperty("visible", BooleanType()),
			NewProperty("image", image),
			NewProperty("frame", frame),
		}, nil
	})
}

const (
	imageTypeID = "object-button#Image"
	frameTypeID = "object-button.frame"
)

func TestProxySetAndGet(t *testing.T) {
	values := newButtonSchema().NewValues()

	require.NoError(t, values.SetValue("label", "string", "Buy"))
	require.NoError(t, values.SetValue("visible", "boolean", "true"))
	require.NoError(t, values.SetValue("size", "enum-button.size", "large"))

	assert.Equal(t, "Buy", values.Value("label"))
	assert.Equal(t, true, values.Value("visible"))
	assert.Equal(t, "large", values.Value("size"))
	assert.Equal(t, []string{"label", "visible", "size"}, values.PropertyIDs())
	assert.False(t, values.IsEmpty())
	assert.Nil(t, values.Parent())
}

func TestProxyClearingRemovesStore(t *testing.T) {
	values := newButtonSchema().NewValues()
	require.NoError(t, values.SetValue("label", "string", "Buy"))

	require.NoError(t, values.SetValue("label", "string", nil))
	assert.True(t, values.IsEmpty())
	assert.Empty(t, values.PropertyIDs())

	require.NoError(t, values.SetValue("width", "number", "3.5x"))
	assert.True(t, values.IsEmpty(), "unparsable number must not create an entry")
}

func TestProxyUnionKeepsAlternateValues(t *testing.T) {
	values := newButtonSchema().NewValues()
	require.NoError(t, values.SetValue("width", "number", 120))
	require.NoError(t, values.SetValue("width", "string", "50%"))

	selected, err := values.SelectedTypeID("width")
	require.NoError(t, err)
	assert.Equal(t, "string", selected)
	assert.Equal(t, 120.0, values.Value("width", "number"))

	assert.True(t, values.SelectType("width", "number"))
	assert.Equal(t, 120.0, values.Value("width"))
	assert.False(t, values.SelectType("label", "string"), "unpopulated property")
}

func TestProxySelectedTypeFallsBackToDefault(t *testing.T) {
	values := newButtonSchema().NewValues()

	selected, err := values.SelectedTypeID("width")
	require.NoError(t, err)
	assert.Equal(t, "number", selected)
	assert.True(t, values.IsEmpty(), "reading must not populate the proxy")
}

func TestProxyUnknownPropertyIsSchemaError(t *testing.T) {
	values := newButtonSchema().NewValues()

	err := values.SetValue("colour", "string", "red")
	require.Error(t, err)
	assert.True(t, IsSchemaError(err))
	assertCode(t, err, ErrCodeUnknownProperty)

	_, err = values.ValueStore("colour")
	assert.True(t, IsSchemaError(err))
	assert.Nil(t, values.Value("colour"))
}

func TestProxyNestedObjectPruning(t *testing.T) {
	values := newButtonSchema().NewValues()

	image, err := values.ObjectValue("image", imageTypeID)
	require.NoError(t, err)
	assert.True(t, image.IsEmpty())
	assert.True(t, values.IsEmpty(), "an unwritten nested proxy is not stored")

	require.NoError(t, image.SetValue("src", "asset", "data:image/png;base64,AA=="))
	assert.Same(t, image, values.Value("image"))
	assert.Equal(t, []string{"image"}, values.PropertyIDs())

	link := image.Parent()
	require.NotNil(t, link)
	assert.Same(t, values, link.Proxy)
	assert.Equal(t, "image", link.PropertyID)
	assert.Equal(t, imageTypeID, link.TypeID)

	require.NoError(t, image.SetValue("src", "asset", nil))
	assert.True(t, image.IsEmpty())
	assert.True(t, values.IsEmpty(), "clearing the last nested value removes the parent entry")
	assert.Nil(t, values.Value("image"))
}

func TestProxyTransitivePruning(t *testing.T) {
	values := newButtonSchema().NewValues()
	require.NoError(t, values.SetValue("label", "string", "Buy"))

	frame, err := values.ObjectValue("frame", frameTypeID)
	require.NoError(t, err)
	image, err := frame.ObjectValue("image", imageTypeID)
	require.NoError(t, err)

	require.NoError(t, image.SetValue("alt", "string", "cart"))
	assert.Same(t, frame, values.Value("frame"))
	assert.Same(t, image, frame.Value("image"))

	require.NoError(t, image.SetValue("alt", "string", nil))
	assert.True(t, frame.IsEmpty())
	assert.Equal(t, []string{"label"}, values.PropertyIDs())
}

func TestProxyPruningStopsAtNonEmptyAncestor(t *testing.T) {
	values := newButtonSchema().NewValues()
	frame, err := values.ObjectValue("frame", frameTypeID)
	require.NoError(t, err)
	require.NoError(t, frame.SetValue("padding", "number", 4))
	image, err := frame.ObjectValue("image", imageTypeID)
	require.NoError(t, err)
	require.NoError(t, image.SetValue("alt", "string", "cart"))

	require.NoError(t, image.SetValue("alt", "string", nil))
	assert.Equal(t, []string{"padding"}, frame.PropertyIDs())
	assert.Same(t, frame, values.Value("frame"))
}

func TestProxyObjectValueReturnsStoredChild(t *testing.T) {
	values := newButtonSchema().NewValues()
	image, err := values.ObjectValue("image", imageTypeID)
	require.NoError(t, err)
	require.NoError(t, image.SetValue("alt", "string", "cart"))

	again, err := values.ObjectValue("image", imageTypeID)
	require.NoError(t, err)
	assert.Same(t, image, again)

	_, err = values.ObjectValue("label", "string")
	require.Error(t, err)
	assertCode(t, err, ErrCodeNotObjectType)
}

func TestProxyMapWriteBuildsNestedProxy(t *testing.T) {
	values := newButtonSchema().NewValues()
	require.NoError(t, values.SetValue("image", imageTypeID, map[string]any{
		"src": "https://cdn.example.com/a.png",
		"alt": "logo",
	}))

	child, ok := values.Value("image").(*PropertyValueProxy)
	require.True(t, ok)
	assert.Equal(t, "https://cdn.example.com/a.png", child.Value("src"))
	assert.Equal(t, "logo", child.Value("alt"))
	assert.Same(t, values, child.Parent().Proxy)

	require.NoError(t, values.SetValue("image", imageTypeID, map[string]any{}))
	assert.True(t, values.IsEmpty(), "an empty map clears the entry")

	err := values.SetValue("image", imageTypeID, map[string]any{"nope": 1})
	assert.True(t, IsSchemaError(err))
}

func TestProxyCloneIsIndependent(t *testing.T) {
	values := newButtonSchema().NewValues()
	require.NoError(t, values.SetValue("label", "string", "Buy"))
	image, err := values.ObjectValue("image", imageTypeID)
	require.NoError(t, err)
	require.NoError(t, image.SetValue("alt", "string", "cart"))

	clone := values.Clone()
	assert.Nil(t, clone.Parent())
	assert.Equal(t, values.ToJSONObject(SerializePersist), clone.ToJSONObject(SerializePersist))

	clonedImage, ok := clone.Value("image").(*PropertyValueProxy)
	require.True(t, ok)
	assert.NotSame(t, image, clonedImage)
	assert.Same(t, clone, clonedImage.Parent().Proxy)

	require.NoError(t, clonedImage.SetValue("alt", "string", "changed"))
	require.NoError(t, clone.SetValue("label", "string", "Sell"))
	assert.Equal(t, "cart", image.Value("alt"))
	assert.Equal(t, "Buy", values.Value("label"))

	require.NoError(t, clonedImage.SetValue("alt", "string", nil))
	assert.Nil(t, clone.Value("image"))
	assert.Same(t, image, values.Value("image"))
}

func TestProxySubscribeBubblesNestedChanges(t *testing.T) {
	values := newButtonSchema().NewValues()

	var events []ChangeEvent
	cancel := values.Subscribe(func(ev ChangeEvent) { events = append(events, ev) })

	require.NoError(t, values.SetValue("label", "string", "Buy"))
	image, err := values.ObjectValue("image", imageTypeID)
	require.NoError(t, err)
	require.NoError(t, image.SetValue("alt", "string", "cart"))

	require.Len(t, events, 3)
	assert.Equal(t, []string{"label"}, events[0].Path)
	assert.Equal(t, "Buy", events[0].Value)
	assert.Equal(t, []string{"image"}, events[1].Path, "attaching the child")
	assert.Equal(t, []string{"image", "alt"}, events[2].Path)
	assert.Equal(t, "cart", events[2].Value)

	cancel()
	require.NoError(t, values.SetValue("label", "string", "Sell"))
	assert.Len(t, events, 3)
}

func TestProxyDetachedChildDoesNotNotifyParent(t *testing.T) {
	values := newButtonSchema().NewValues()
	var events []ChangeEvent
	values.Subscribe(func(ev ChangeEvent) { events = append(events, ev) })

	image, err := values.ObjectValue("image", imageTypeID)
	require.NoError(t, err)
	require.NoError(t, image.SetValue("alt", "string", nil))

	assert.Empty(t, events)
	assert.True(t, values.IsEmpty())
}
