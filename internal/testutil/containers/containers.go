//go:build integration

// Package containers provides testcontainers-go helpers for integration
// tests against real cache backends and a real Keycloak server.
//
// All helpers are gated behind the "integration" build tag. Use them only
// from test files carrying the same tag:
//
//	//go:build integration
//
// Every Start* function returns a result holding the container handle; the
// caller terminates it:
//
//	result, err := containers.StartRedis(ctx)
//	if err != nil { ... }
//	defer result.Container.Terminate(ctx)
package containers

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

// ===========================================================================
// PostgreSQL
// ===========================================================================

// Default PostgreSQL container settings. The credentials are only suitable
// for ephemeral local containers.
const (
	DefaultPostgresImage    = "docker.io/postgres:16-alpine"
	DefaultPostgresDatabase = "keycloak_bridge_test"
	DefaultPostgresUser     = "testuser"
	DefaultPostgresPassword = "testpassword"
)

// PostgresResult holds a started PostgreSQL container and a connection
// string with sslmode=disable, ready for postgres.Config.URI.
type PostgresResult struct {
	Container  *tcpostgres.PostgresContainer
	ConnString string
}

// StartPostgres starts a PostgreSQL 16 container and waits until it accepts
// connections.
func StartPostgres(ctx context.Context) (*PostgresResult, error) {
	container, err := tcpostgres.Run(ctx,
		DefaultPostgresImage,
		tcpostgres.WithDatabase(DefaultPostgresDatabase),
		tcpostgres.WithUsername(DefaultPostgresUser),
		tcpostgres.WithPassword(DefaultPostgresPassword),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, fmt.Errorf("containers: failed to start postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("containers: failed to get connection string: %w", err)
	}

	return &PostgresResult{Container: container, ConnString: connStr}, nil
}

// ===========================================================================
// Redis
// ===========================================================================

// DefaultRedisImage is the container image used for Redis integration tests.
const DefaultRedisImage = "docker.io/redis:7-alpine"

// RedisResult holds a started Redis container and its redis:// URI.
type RedisResult struct {
	Container  *tcredis.RedisContainer
	ConnString string
}

// StartRedis starts an unauthenticated Redis 7 container.
func StartRedis(ctx context.Context) (*RedisResult, error) {
	container, err := tcredis.Run(ctx, DefaultRedisImage)
	if err != nil {
		return nil, fmt.Errorf("containers: failed to start redis container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("containers: failed to get redis connection string: %w", err)
	}

	return &RedisResult{Container: container, ConnString: connStr}, nil
}

// ===========================================================================
// Keycloak
// ===========================================================================

// Default Keycloak container settings. The bootstrap admin account lives in
// the master realm and can use the admin-cli public client.
const (
	DefaultKeycloakImage         = "quay.io/keycloak/keycloak:26.0"
	DefaultKeycloakAdmin         = "admin"
	DefaultKeycloakAdminPassword = "admin"
)

// KeycloakResult holds a started Keycloak container and its base URL
// (e.g., "http://localhost:55081").
type KeycloakResult struct {
	Container testcontainers.Container
	BaseURL   string
}

// StartKeycloak starts Keycloak in dev mode and waits until the master realm
// is served. Startup routinely takes more than a minute.
func StartKeycloak(ctx context.Context) (*KeycloakResult, error) {
	req := testcontainers.ContainerRequest{
		Image:        DefaultKeycloakImage,
		ExposedPorts: []string{"8080/tcp"},
		Env: map[string]string{
			"KC_BOOTSTRAP_ADMIN_USERNAME": DefaultKeycloakAdmin,
			"KC_BOOTSTRAP_ADMIN_PASSWORD": DefaultKeycloakAdminPassword,
		},
		Cmd: []string{"start-dev"},
		WaitingFor: wait.ForHTTP("/realms/master").
			WithPort("8080/tcp").
			WithStartupTimeout(3 * time.Minute),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("containers: failed to start keycloak container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("containers: failed to get keycloak host: %w", err)
	}
	port, err := container.MappedPort(ctx, "8080/tcp")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("containers: failed to get keycloak port: %w", err)
	}

	return &KeycloakResult{
		Container: container,
		BaseURL:   fmt.Sprintf("http://%s:%s", host, port.Port()),
	}, nil
}
