package factory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/jackc/pgx/v5"
	"github.com/lychee-technology/propval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

const cardSchema = `{
  "title": "Card",
  "type": "object",
  "properties": {
    "heading": {"type": "string"},
    "elevation": {"type": "number"}
  }
}`

func TestConnString(t *testing.T) {
	db := propval.DefaultConfig().Database
	db.Password = "secret"
	got := connString(db)
	assert.Equal(t, "host=localhost port=5432 user=postgres dbname=propval sslmode=disable", got)
	assert.NotContains(t, got, "secret")
}

func TestNewSessionWithConfigRejectsInvalidConfig(t *testing.T) {
	cfg := propval.DefaultConfig()
	cfg.History.MaxEntries = 0
	cfg.Database.Table = ""

	_, err := NewSessionWithConfig(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
}

func TestNewSessionWithConfigMissingSchemaDirectory(t *testing.T) {
	cfg := propval.DefaultConfig()
	cfg.Schema.Directory = filepath.Join(t.TempDir(), "missing")

	_, err := NewSessionWithConfig(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load component schemas")
}

func TestNewSessionWithConfigInMemory(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "card.json"), []byte(cardSchema), 0o644))

	cfg := propval.DefaultConfig()
	cfg.Schema.Directory = dir
	cfg.History.MaxEntries = 5

	session, err := NewSessionWithConfig(ctx, cfg, nil)
	require.NoError(t, err)

	inst, err := session.AddInstance("card")
	require.NoError(t, err)
	_, err = session.Edit(inst.ID(), "heading", "string", "Hello")
	require.NoError(t, err)

	render, err := session.Render(inst.ID())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"heading": "Hello"}, render)

	err = session.Save(ctx)
	require.Error(t, err, "no repository without a pool")
	var pve *propval.PropValError
	require.ErrorAs(t, err, &pve)
	assert.Equal(t, propval.ErrCodeStorageFailed, pve.Code)
}

func TestIAMTokenHookReplacesPassword(t *testing.T) {
	db := propval.DefaultConfig().Database
	db.Host = "cluster.dsql.us-east-1.on.aws"
	db.Password = "unused"

	awsCfg := aws.Config{
		Region:      "us-east-1",
		Credentials: credentials.NewStaticCredentialsProvider("AKIDEXAMPLE", "secret", ""),
	}

	cc, err := pgx.ParseConfig(connString(db))
	require.NoError(t, err)

	require.NoError(t, iamTokenHook(db, awsCfg)(context.Background(), cc))
	assert.NotEqual(t, "unused", cc.Password)
	assert.Contains(t, cc.Password, "X-Amz-Signature")
}
