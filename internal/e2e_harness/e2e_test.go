//go:build integration

package e2e_harness

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lychee-technology/propval"
	"github.com/lychee-technology/propval/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRoundTripThroughPostgresAndS3(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping E2E harness in -short mode")
	}
	ctx := context.Background()
	h, err := Start(ctx)
	require.NoError(t, err, "start stores")
	defer func() { assert.NoError(t, h.Close(ctx)) }()
	endpoint := h.S3Endpoint

	pool, err := pgxpool.New(ctx, h.DSN)
	require.NoError(t, err)
	defer pool.Close()

	repo := internal.NewPostgresValueRepository(pool, "component_values")
	require.NoError(t, repo.EnsureTable(ctx))

	require.NoError(t, PutAsset(ctx, endpoint, "assets", "logo.svg", []byte("<svg/>"), "image/svg+xml"))
	t.Setenv("AWS_ACCESS_KEY_ID", S3AccessKey)
	t.Setenv("AWS_SECRET_ACCESS_KEY", S3SecretKey)
	source, err := internal.NewS3AssetSource(ctx, propval.AssetConfig{
		MaxBytes:       1 << 20,
		S3Region:       "us-east-1",
		S3Endpoint:     endpoint,
		S3UsePathStyle: true,
	})
	require.NoError(t, err)

	schema, err := internal.ParseComponentSchema("button", []byte(ButtonSchema), true)
	require.NoError(t, err)
	registry := internal.NewSchemaRegistry(schema)

	session := internal.NewSession(registry, internal.NewHistory(100), repo, internal.NewAssetLoader(1<<20, source))
	inst, err := session.AddInstance("button")
	require.NoError(t, err)

	_, err = session.Edit(inst.ID(), "label", "string", "Buy")
	require.NoError(t, err)
	_, err = session.Edit(inst.ID(), "size", "enum-button.size", "large")
	require.NoError(t, err)
	applied, err := session.ChooseAsset(ctx, inst.ID(), "icon.src", "s3://assets/logo.svg")
	require.NoError(t, err)
	require.True(t, applied)

	require.NoError(t, session.Save(ctx))

	other := internal.NewSession(registry, nil, repo, nil)
	loaded, err := other.Load(ctx, inst.ID())
	require.NoError(t, err)

	rendered, err := other.Render(loaded.ID())
	require.NoError(t, err)
	assert.Equal(t, "Buy", rendered["label"])
	assert.Equal(t, 2, rendered["size"])
	assert.Equal(t, map[string]any{"src": "data:image/svg+xml;base64,PHN2Zy8+"}, rendered["icon"])

	summaries, err := repo.List(ctx, "button")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, inst.ID(), summaries[0].ID)

	require.NoError(t, repo.Delete(ctx, inst.ID()))
	_, err = repo.Load(ctx, inst.ID())
	assert.True(t, propval.IsNotFoundError(err))
}
