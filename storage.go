package propval

import (
	"context"

	"github.com/google/uuid"
)

// ValueRepository persists component instance values
type ValueRepository interface {
	Save(ctx context.Context, record *InstanceRecord) error
	Load(ctx context.Context, id uuid.UUID) (*InstanceRecord, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, component string) ([]InstanceSummary, error)
}

// AssetLoader turns a chosen asset location into a value for an asset property.
type AssetLoader interface {
	Load(ctx context.Context, location string) (string, error)
}
