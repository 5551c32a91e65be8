package internal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/lychee-technology/propval"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Instance is a component placed in the edited document.
type Instance struct {
	id       uuid.UUID
	schema   *propval.ComponentSchema
	values   *propval.PropertyValueProxy
	attached atomic.Bool
	cancel   func()
}

func (i *Instance) ID() uuid.UUID                      { return i.id }
func (i *Instance) Component() string                  { return i.schema.Name() }
func (i *Instance) Schema() *propval.ComponentSchema   { return i.schema }
func (i *Instance) Values() *propval.PropertyValueProxy { return i.values }

// IsAttached reports whether the instance is still part of the session.
// Commands against a removed instance fail their precondition.
func (i *Instance) IsAttached() bool { return i.attached.Load() }

// Session owns the component instances of one document together with the
// history that edits them.
type Session struct {
	mu sync.Mutex

	registry propval.SchemaRegistry
	history  *History
	repo     propval.ValueRepository
	assets   propval.AssetLoader

	instances map[uuid.UUID]*Instance
	order     []uuid.UUID
}

// NewSession creates a session. repo and assets may be nil when persistence
// or asset picking is not needed.
func NewSession(registry propval.SchemaRegistry, history *History, repo propval.ValueRepository, assets propval.AssetLoader) *Session {
	if history == nil {
		history = NewHistory(0)
	}
	return &Session{
		registry:  registry,
		history:   history,
		repo:      repo,
		assets:    assets,
		instances: make(map[uuid.UUID]*Instance),
	}
}

func (s *Session) History() *History { return s.history }

// AddInstance places a new, empty instance of component.
func (s *Session) AddInstance(component string) (*Instance, error) {
	schema, err := s.registry.Component(component)
	if err != nil {
		return nil, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate instance id: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attachLocked(id, schema, schema.NewValues()), nil
}

// DuplicateInstance places a copy of an existing instance with its own values.
func (s *Session) DuplicateInstance(id uuid.UUID) (*Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, err := s.instanceLocked(id)
	if err != nil {
		return nil, err
	}
	copyID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate instance id: %w", err)
	}
	return s.attachLocked(copyID, src.schema, src.values.Clone()), nil
}

// RemoveInstance detaches an instance. Its history entries stay but no
// longer apply.
func (s *Session) RemoveInstance(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, err := s.instanceLocked(id)
	if err != nil {
		return err
	}
	s.detachLocked(inst)
	return nil
}

// Instance returns an attached instance.
func (s *Session) Instance(id uuid.UUID) (*Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instanceLocked(id)
}

// Instances returns the attached instances in placement order.
func (s *Session) Instances() []*Instance {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Instance, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.instances[id])
	}
	return out
}

// Edit sets the property at path, a dotted list of property ids such as
// "image.src", through a history command. Intermediate segments must be
// object properties. It reports whether the command was applied.
func (s *Session) Edit(instanceID uuid.UUID, path, typeID string, value any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, err := s.instanceLocked(instanceID)
	if err != nil {
		return false, err
	}
	proxy, propertyID, err := resolvePath(inst.values, path)
	if err != nil {
		return false, err
	}
	cmd, err := propval.NewPropertyValueCommand(inst, proxy, propertyID, typeID, value)
	if err != nil {
		return false, err
	}
	return s.history.Execute(cmd), nil
}

// Seal ends the current merge window, e.g. when an input loses focus.
func (s *Session) Seal() {
	s.history.SealLast()
}

func (s *Session) Undo() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Undo()
}

func (s *Session) Redo() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Redo()
}

// ChooseAsset loads location through the asset loader and writes the result
// to the asset property at path as a single sealed edit.
func (s *Session) ChooseAsset(ctx context.Context, instanceID uuid.UUID, path, location string) (bool, error) {
	if s.assets == nil {
		return false, propval.NewAssetError(propval.ErrCodeAssetFailed, location, errors.New("no asset loader configured"))
	}
	value, err := s.assets.Load(ctx, location)
	if err != nil {
		return false, err
	}

	applied, err := s.Edit(instanceID, path, propval.AssetType().ID(), value)
	if applied {
		s.Seal()
	}
	return applied, err
}

// Render returns the render-form values of an instance.
func (s *Session) Render(instanceID uuid.UUID) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, err := s.instanceLocked(instanceID)
	if err != nil {
		return nil, err
	}
	return inst.values.ToJSONObject(propval.SerializeRender), nil
}

// Document returns the persist-form values of an instance.
func (s *Session) Document(instanceID uuid.UUID) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, err := s.instanceLocked(instanceID)
	if err != nil {
		return nil, err
	}
	return inst.values.ToJSONObject(propval.SerializePersist), nil
}

// Save writes every attached instance to the repository.
func (s *Session) Save(ctx context.Context) error {
	if s.repo == nil {
		return propval.NewStorageError("no value repository configured", nil)
	}

	s.mu.Lock()
	records := make([]*propval.InstanceRecord, 0, len(s.order))
	now := time.Now()
	for _, id := range s.order {
		inst := s.instances[id]
		records = append(records, &propval.InstanceRecord{
			ID:        inst.id,
			Component: inst.Component(),
			Values:    inst.values.ToJSONObject(propval.SerializePersist),
			UpdatedAt: now,
		})
	}
	s.mu.Unlock()

	var err error
	for _, rec := range records {
		err = multierr.Append(err, s.repo.Save(ctx, rec))
	}
	if err == nil {
		zap.S().Infow("saved session", "instances", len(records))
	}
	return err
}

// Load restores an instance from the repository and attaches it, replacing
// an attached instance with the same id.
func (s *Session) Load(ctx context.Context, id uuid.UUID) (*Instance, error) {
	if s.repo == nil {
		return nil, propval.NewStorageError("no value repository configured", nil)
	}
	rec, err := s.repo.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ValidatePersistedDocument(rec.Values); err != nil {
		return nil, err
	}
	schema, err := s.registry.Component(rec.Component)
	if err != nil {
		return nil, err
	}
	values := schema.NewValues()
	if err := values.Restore(rec.Values); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.instances[id]; ok {
		s.detachLocked(existing)
	}
	return s.attachLocked(id, schema, values), nil
}

func (s *Session) instanceLocked(id uuid.UUID) (*Instance, error) {
	inst, ok := s.instances[id]
	if !ok {
		return nil, propval.NewInstanceNotFoundError(id.String())
	}
	return inst, nil
}

func (s *Session) attachLocked(id uuid.UUID, schema *propval.ComponentSchema, values *propval.PropertyValueProxy) *Instance {
	inst := &Instance{id: id, schema: schema, values: values}
	inst.attached.Store(true)
	inst.cancel = values.Subscribe(func(ev propval.ChangeEvent) {
		zap.S().Debugw("property value changed",
			"instance", id.String(),
			"path", strings.Join(ev.Path, "."),
			"type", ev.TypeID,
			"removed", ev.Value == nil)
	})
	s.instances[id] = inst
	s.order = append(s.order, id)
	return inst
}

func (s *Session) detachLocked(inst *Instance) {
	inst.attached.Store(false)
	if inst.cancel != nil {
		inst.cancel()
	}
	delete(s.instances, inst.id)
	for i, id := range s.order {
		if id == inst.id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// resolvePath walks all but the last segment of path through object
// properties and returns the proxy holding the last one.
func resolvePath(root *propval.PropertyValueProxy, path string) (*propval.PropertyValueProxy, string, error) {
	segments, ok := splitPropertyPath(path)
	if !ok {
		return nil, "", propval.NewPropValError(propval.ErrorTypeValidation, propval.ErrCodeInvalidPath, "invalid property path").
			WithDetail("path", path)
	}

	proxy := root
	for _, segment := range segments[:len(segments)-1] {
		store, err := proxy.ValueStore(segment)
		if err != nil {
			return nil, "", err
		}
		objectType := store.SelectedType()
		if objectType == nil || objectType.Kind() != propval.KindObject {
			objectType = nil
			for _, t := range store.Property().SupportedTypes() {
				if t.Kind() == propval.KindObject {
					objectType = t
					break
				}
			}
		}
		if objectType == nil {
			return nil, "", propval.NewPropValError(propval.ErrorTypeValidation, propval.ErrCodeInvalidPath, "path segment is not an object property").
				WithProperty(segment).
				WithDetail("path", path)
		}
		proxy, err = proxy.ObjectValue(segment, objectType.ID())
		if err != nil {
			return nil, "", err
		}
	}
	return proxy, segments[len(segments)-1], nil
}
