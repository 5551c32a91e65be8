package e2e_harness

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/docker/go-connections/nat"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/multierr"
)

const (
	S3AccessKey = "minio"
	S3SecretKey = "minio"

	pgPassword = "password"
	pgDatabase = "propval"
)

// Harness runs the Postgres value store and the S3 asset store an editor
// session talks to in integration tests.
type Harness struct {
	// DSN points at the value database.
	DSN string
	// S3Endpoint is the base endpoint of the asset store.
	S3Endpoint string

	containers []testcontainers.Container
}

// Start launches both stores and waits until Postgres accepts connections.
// On error everything started so far is terminated.
func Start(ctx context.Context) (*Harness, error) {
	h := &Harness{}

	pgAddr, err := h.run(ctx, "postgres:16", "5432", map[string]string{
		"POSTGRES_PASSWORD": pgPassword,
		"POSTGRES_USER":     "postgres",
		"POSTGRES_DB":       pgDatabase,
	})
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("start postgres: %w", err), h.Close(ctx))
	}
	h.DSN = fmt.Sprintf("postgres://postgres:%s@%s/%s?sslmode=disable", pgPassword, pgAddr, pgDatabase)
	if err := waitForPostgres(ctx, h.DSN, 20*time.Second); err != nil {
		return nil, multierr.Append(err, h.Close(ctx))
	}

	s3Addr, err := h.run(ctx, "rustfs/rustfs:latest", "9000", map[string]string{
		"RUSTFS_ACCESS_KEY": S3AccessKey,
		"RUSTFS_SECRET_KEY": S3SecretKey,
	})
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("start s3: %w", err), h.Close(ctx))
	}
	h.S3Endpoint = "http://" + s3Addr
	return h, nil
}

// Close terminates every container and reports all failures.
func (h *Harness) Close(ctx context.Context) error {
	var err error
	for _, c := range h.containers {
		err = multierr.Append(err, c.Terminate(ctx))
	}
	h.containers = nil
	return err
}

// run starts image with port exposed and returns its host:port address.
func (h *Harness) run(ctx context.Context, image, port string, env map[string]string) (string, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        image,
			ExposedPorts: []string{port + "/tcp"},
			Env:          env,
			WaitingFor:   wait.ForListeningPort(nat.Port(port + "/tcp")).WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return "", err
	}
	h.containers = append(h.containers, container)

	host, err := container.Host(ctx)
	if err != nil {
		return "", err
	}
	mapped, err := container.MappedPort(ctx, nat.Port(port))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%s", host, mapped.Port()), nil
}

// waitForPostgres pings until the server accepts connections. The port opens
// before that happens.
func waitForPostgres(ctx context.Context, dsn string, timeout time.Duration) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	deadline := time.Now().Add(timeout)
	for {
		err := db.PingContext(ctx)
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("postgres did not become ready: %w", err)
		}
		time.Sleep(200 * time.Millisecond)
	}
}
