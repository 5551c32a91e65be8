package factory

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dsql/auth"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lychee-technology/propval"
	"github.com/lychee-technology/propval/internal"
	"go.uber.org/zap"
)

// NewSessionWithConfig creates an editor session from configuration. This is
// the primary way for external projects to create a session.
//
// The pool is optional: without it the session works in memory and Save/Load
// report a storage error.
//
// Usage:
//
//	import (
//	    "github.com/lychee-technology/propval"
//	    "github.com/lychee-technology/propval/factory"
//	)
//
//	config, err := propval.LoadConfig("propval.yaml")
//	pool, err := factory.NewPool(ctx, config.Database)
//	session, err := factory.NewSessionWithConfig(ctx, config, pool)
func NewSessionWithConfig(ctx context.Context, config *propval.Config, pool *pgxpool.Pool) (*internal.Session, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	registry, err := internal.NewFileSchemaRegistryFromDirectory(config.Schema.Directory, config.Schema.ValidateSchemas)
	if err != nil {
		return nil, fmt.Errorf("failed to load component schemas: %w", err)
	}

	var repo propval.ValueRepository
	if pool != nil {
		pgRepo := internal.NewPostgresValueRepository(pool, config.Database.Table)
		if err := pgRepo.EnsureTable(ctx); err != nil {
			return nil, err
		}
		repo = pgRepo
	}

	s3Source, err := internal.NewS3AssetSource(ctx, config.Assets)
	if err != nil {
		zap.S().Warnw("s3 assets disabled", "error", err)
		s3Source = nil
	}
	assets := internal.NewAssetLoader(config.Assets.MaxBytes, s3Source)

	zap.S().Infow("editor session created",
		"components", len(registry.ListComponents()),
		"persistence", repo != nil,
		"historyMaxEntries", config.History.MaxEntries)

	return internal.NewSession(registry, internal.NewHistory(config.History.MaxEntries), repo, assets), nil
}

// NewPool opens a pgx pool. With UseIAM each new connection authenticates
// with a fresh Aurora DSQL token instead of the configured password.
func NewPool(ctx context.Context, db propval.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(connString(db))
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.MaxConns = int32(db.MaxConnections)
	poolConfig.ConnConfig.Password = db.Password

	if db.UseIAM {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(db.Region))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		poolConfig.BeforeConnect = iamTokenHook(db, awsCfg)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to verify database connection: %w", err)
	}
	return pool, nil
}

func connString(db propval.DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		db.Host, db.Port, db.Username, db.Database, db.SSLMode)
}

func iamTokenHook(db propval.DatabaseConfig, awsCfg aws.Config) func(context.Context, *pgx.ConnConfig) error {
	endpoint := fmt.Sprintf("%s:%d", db.Host, db.Port)
	return func(ctx context.Context, cc *pgx.ConnConfig) error {
		token, err := auth.GenerateDbConnectAuthToken(ctx, endpoint, awsCfg.Region, awsCfg.Credentials)
		if err != nil {
			return fmt.Errorf("generate dsql auth token: %w", err)
		}
		cc.Password = token
		return nil
	}
}
