package internal

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/lychee-technology/propval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRepository struct {
	records map[uuid.UUID]*propval.InstanceRecord
	saveErr error
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{records: map[uuid.UUID]*propval.InstanceRecord{}}
}

func (m *memoryRepository) Save(_ context.Context, record *propval.InstanceRecord) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.records[record.ID] = record
	return nil
}

func (m *memoryRepository) Load(_ context.Context, id uuid.UUID) (*propval.InstanceRecord, error) {
	rec, ok := m.records[id]
	if !ok {
		return nil, propval.NewInstanceNotFoundError(id.String())
	}
	return rec, nil
}

func (m *memoryRepository) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.records, id)
	return nil
}

func (m *memoryRepository) List(_ context.Context, _ string) ([]propval.InstanceSummary, error) {
	return nil, nil
}

type stubAssets map[string]string

func (s stubAssets) Load(_ context.Context, location string) (string, error) {
	v, ok := s[location]
	if !ok {
		return "", propval.NewAssetError(propval.ErrCodeAssetNotFound, location, nil)
	}
	return v, nil
}

func newButtonSession(t *testing.T) (*Session, *memoryRepository) {
	t.Helper()
	repo := newMemoryRepository()
	assets := stubAssets{"cart.svg": "data:image/svg+xml;base64,PHN2Zy8+"}
	return NewSession(NewSchemaRegistry(parseButton(t)), NewHistory(0), repo, assets), repo
}

func TestSessionAddInstance(t *testing.T) {
	session, _ := newButtonSession(t)

	first, err := session.AddInstance("button")
	require.NoError(t, err)
	second, err := session.AddInstance("button")
	require.NoError(t, err)

	assert.NotEqual(t, first.ID(), second.ID())
	assert.Equal(t, "button", first.Component())
	assert.True(t, first.IsAttached())
	assert.True(t, first.Values().IsEmpty())
	assert.Equal(t, []*Instance{first, second}, session.Instances())

	_, err = session.AddInstance("slider")
	require.Error(t, err)
	assert.True(t, propval.IsNotFoundError(err))
}

func TestSessionEditUndoRedo(t *testing.T) {
	session, _ := newButtonSession(t)
	inst, err := session.AddInstance("button")
	require.NoError(t, err)

	for _, text := range []string{"B", "Bu", "Buy"} {
		applied, err := session.Edit(inst.ID(), "label", "string", text)
		require.NoError(t, err)
		assert.True(t, applied)
	}
	session.Seal()
	applied, err := session.Edit(inst.ID(), "size", "enum-button.size", "large")
	require.NoError(t, err)
	assert.True(t, applied)

	assert.Equal(t, 2, session.History().UndoCount(), "typing merges into one entry")

	render, err := session.Render(inst.ID())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"label": "Buy", "size": 2}, render)

	require.NoError(t, session.Undo())
	require.NoError(t, session.Undo())
	assert.True(t, inst.Values().IsEmpty())
	assert.ErrorIs(t, session.Undo(), ErrNothingToUndo)

	require.NoError(t, session.Redo())
	assert.Equal(t, "Buy", inst.Values().Value("label"))
}

func TestSessionEditNestedPath(t *testing.T) {
	session, _ := newButtonSession(t)
	inst, err := session.AddInstance("button")
	require.NoError(t, err)

	_, err = session.Edit(inst.ID(), "icon.alt", "string", "cart")
	require.NoError(t, err)

	doc, err := session.Document(inst.ID())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"icon": map[string]any{
			"typeId": "object-button#Image",
			"value": map[string]any{
				"alt": map[string]any{"typeId": "string", "value": "cart"},
			},
		},
	}, doc)

	require.NoError(t, session.Undo())
	assert.True(t, inst.Values().IsEmpty(), "clearing the last nested value prunes the object")
}

func TestSessionEditErrors(t *testing.T) {
	session, _ := newButtonSession(t)
	inst, err := session.AddInstance("button")
	require.NoError(t, err)

	tests := []struct {
		name string
		path string
		code string
	}{
		{name: "empty path", path: "", code: propval.ErrCodeInvalidPath},
		{name: "empty segment", path: "icon..alt", code: propval.ErrCodeInvalidPath},
		{name: "scalar segment", path: "label.text", code: propval.ErrCodeInvalidPath},
		{name: "unknown property", path: "shadow", code: propval.ErrCodeUnknownProperty},
		{name: "unknown nested property", path: "icon.width", code: propval.ErrCodeUnknownProperty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			applied, err := session.Edit(inst.ID(), tt.path, "string", "x")
			require.Error(t, err)
			assert.False(t, applied)
			var pve *propval.PropValError
			require.ErrorAs(t, err, &pve)
			assert.Equal(t, tt.code, pve.Code)
		})
	}

	_, err = session.Edit(uuid.New(), "label", "string", "x")
	assert.True(t, propval.IsNotFoundError(err))
	assert.Equal(t, 0, session.History().UndoCount())
}

func TestSessionRemovedInstanceRejectsHistory(t *testing.T) {
	session, _ := newButtonSession(t)
	inst, err := session.AddInstance("button")
	require.NoError(t, err)

	_, err = session.Edit(inst.ID(), "label", "string", "Buy")
	require.NoError(t, err)
	require.NoError(t, session.RemoveInstance(inst.ID()))

	assert.False(t, inst.IsAttached())
	assert.Empty(t, session.Instances())
	assert.ErrorIs(t, session.Undo(), ErrCommandFailed)
	assert.Equal(t, "Buy", inst.Values().Value("label"), "a failed undo leaves values untouched")

	_, err = session.Instance(inst.ID())
	assert.True(t, propval.IsNotFoundError(err))
	assert.True(t, propval.IsNotFoundError(session.RemoveInstance(inst.ID())))
}

func TestSessionDuplicateInstance(t *testing.T) {
	session, _ := newButtonSession(t)
	inst, err := session.AddInstance("button")
	require.NoError(t, err)
	_, err = session.Edit(inst.ID(), "icon.alt", "string", "cart")
	require.NoError(t, err)

	dup, err := session.DuplicateInstance(inst.ID())
	require.NoError(t, err)
	assert.NotEqual(t, inst.ID(), dup.ID())

	_, err = session.Edit(dup.ID(), "icon.alt", "string", "basket")
	require.NoError(t, err)

	original, err := session.Render(inst.ID())
	require.NoError(t, err)
	copied, err := session.Render(dup.ID())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"icon": map[string]any{"alt": "cart"}}, original)
	assert.Equal(t, map[string]any{"icon": map[string]any{"alt": "basket"}}, copied)

	_, err = session.DuplicateInstance(uuid.New())
	assert.True(t, propval.IsNotFoundError(err))
}

func TestSessionChooseAsset(t *testing.T) {
	session, _ := newButtonSession(t)
	inst, err := session.AddInstance("button")
	require.NoError(t, err)

	applied, err := session.ChooseAsset(context.Background(), inst.ID(), "icon.src", "cart.svg")
	require.NoError(t, err)
	assert.True(t, applied)

	icon, err := inst.Values().ObjectValue("icon", "object-button#Image")
	require.NoError(t, err)
	assert.Equal(t, "data:image/svg+xml;base64,PHN2Zy8+", icon.Value("src"))

	cmd, ok := session.History().Peek().(*propval.PropertyValueCommand)
	require.True(t, ok)
	assert.True(t, cmd.Sealed())

	_, err = session.ChooseAsset(context.Background(), inst.ID(), "icon.src", "missing.svg")
	require.Error(t, err)
	assert.True(t, propval.IsAssetError(err))
	assert.Equal(t, 1, session.History().UndoCount())

	bare := NewSession(NewSchemaRegistry(parseButton(t)), nil, nil, nil)
	_, err = bare.ChooseAsset(context.Background(), inst.ID(), "icon.src", "cart.svg")
	assert.True(t, propval.IsAssetError(err))
}

func TestSessionSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	session, repo := newButtonSession(t)
	inst, err := session.AddInstance("button")
	require.NoError(t, err)
	_, err = session.Edit(inst.ID(), "label", "string", "Buy")
	require.NoError(t, err)
	_, err = session.Edit(inst.ID(), "width", "number", 120)
	require.NoError(t, err)
	_, err = session.Edit(inst.ID(), "width", "string", "50%")
	require.NoError(t, err)

	require.NoError(t, session.Save(ctx))
	require.Contains(t, repo.records, inst.ID())
	assert.Equal(t, "button", repo.records[inst.ID()].Component)

	_, err = session.Edit(inst.ID(), "label", "string", "Sell")
	require.NoError(t, err)

	loaded, err := session.Load(ctx, inst.ID())
	require.NoError(t, err)
	assert.False(t, inst.IsAttached(), "the loaded instance replaces the attached one")
	assert.True(t, loaded.IsAttached())
	assert.Len(t, session.Instances(), 1)

	assert.Equal(t, "Buy", loaded.Values().Value("label"))
	assert.Equal(t, "50%", loaded.Values().Value("width"))
	assert.Equal(t, float64(120), loaded.Values().Value("width", "number"))

	_, err = session.Load(ctx, uuid.New())
	assert.True(t, propval.IsNotFoundError(err))
}

func TestSessionLoadRejectsMalformedRecord(t *testing.T) {
	session, repo := newButtonSession(t)
	id := uuid.New()
	repo.records[id] = &propval.InstanceRecord{
		ID:        id,
		Component: "button",
		Values:    map[string]any{"label": "Buy"},
	}

	_, err := session.Load(context.Background(), id)
	require.Error(t, err)
	assert.True(t, propval.IsValidationError(err))
	assert.Empty(t, session.Instances())
}

func TestSessionSaveErrors(t *testing.T) {
	ctx := context.Background()

	bare := NewSession(NewSchemaRegistry(parseButton(t)), nil, nil, nil)
	var pve *propval.PropValError
	require.ErrorAs(t, bare.Save(ctx), &pve)
	assert.Equal(t, propval.ErrCodeStorageFailed, pve.Code)
	_, err := bare.Load(ctx, uuid.New())
	require.ErrorAs(t, err, &pve)
	assert.Equal(t, propval.ErrCodeStorageFailed, pve.Code)

	session, repo := newButtonSession(t)
	_, err = session.AddInstance("button")
	require.NoError(t, err)
	_, err = session.AddInstance("button")
	require.NoError(t, err)
	repo.saveErr = errors.New("disk full")

	err = session.Save(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestResolvePathLinksNewObjectToParent(t *testing.T) {
	session, _ := newButtonSession(t)
	inst, err := session.AddInstance("button")
	require.NoError(t, err)

	proxy, propertyID, err := resolvePath(inst.Values(), "background.src")
	require.NoError(t, err)
	assert.Equal(t, "src", propertyID)
	assert.Equal(t, "object-button#Image", proxy.Context().ID())
	assert.Same(t, inst.Values(), proxy.Parent().Proxy)
}

func TestSessionScalarUnderObjectTypeStillReloads(t *testing.T) {
	ctx := context.Background()
	session, _ := newButtonSession(t)
	inst, err := session.AddInstance("button")
	require.NoError(t, err)

	_, err = session.Edit(inst.ID(), "label", "string", "Buy")
	require.NoError(t, err)
	_, err = session.Edit(inst.ID(), "icon", "object-button#Image", "abc")
	require.NoError(t, err)
	assert.Equal(t, []string{"label"}, inst.Values().PropertyIDs())

	require.NoError(t, session.Save(ctx))
	loaded, err := session.Load(ctx, inst.ID())
	require.NoError(t, err)
	assert.Equal(t, "Buy", loaded.Values().Value("label"))
	assert.Nil(t, loaded.Values().Value("icon"))
}
