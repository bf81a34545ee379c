package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/stricklysoft-keycloak/internal/testutil"
	"github.com/StricklySoft/stricklysoft-keycloak/pkg/clients/postgres"
	"github.com/StricklySoft/stricklysoft-keycloak/pkg/clients/redis"
	sserr "github.com/StricklySoft/stricklysoft-keycloak/pkg/errors"
)

// ===========================================================================
// Keys
// ===========================================================================

func sha1Hex(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestAccessTokenKey(t *testing.T) {
	t.Parallel()
	const (
		base   = "http://localhost:8080"
		realm  = "master"
		client = "backend"
		secret = "s3cret"
	)

	assert.Equal(t,
		"keycloak.access_token."+sha1Hex("http://localhost:8080|master|backend|s3cret"),
		AccessTokenKey(IncludeSecret, base, realm, client, secret))
	assert.Equal(t,
		"keycloak.access_token."+sha1Hex("http://localhost:8080|master|backend"),
		AccessTokenKey(ExcludeSecret, base, realm, client, secret))
	assert.Equal(t,
		AccessTokenKey(IncludeSecret, base, realm, client, secret),
		AccessTokenKey("", base, realm, client, secret),
		"empty policy includes the secret")
}

func TestAccessTokenKey_Isolation(t *testing.T) {
	t.Parallel()
	k := AccessTokenKey(IncludeSecret, "http://a", "r", "c", "s")

	assert.NotEqual(t, k, AccessTokenKey(IncludeSecret, "http://b", "r", "c", "s"))
	assert.NotEqual(t, k, AccessTokenKey(IncludeSecret, "http://a", "r2", "c", "s"))
	assert.NotEqual(t, k, AccessTokenKey(IncludeSecret, "http://a", "r", "c2", "s"))
	assert.NotEqual(t, k, AccessTokenKey(IncludeSecret, "http://a", "r", "c", "s2"))

	ex := AccessTokenKey(ExcludeSecret, "http://a", "r", "c", "s")
	assert.Equal(t, ex, AccessTokenKey(ExcludeSecret, "http://a", "r", "c", "rotated"))
}

func TestRealmListKey(t *testing.T) {
	t.Parallel()
	assert.Equal(t,
		"keycloak.realm_list."+sha1Hex("http://localhost:8080|backend"),
		RealmListKey("http://localhost:8080", "backend"))
	assert.Len(t, RealmListKey("x", "y"), len(RealmListKeyPrefix)+40)
}

func TestKeyPolicy_UnmarshalText(t *testing.T) {
	t.Parallel()
	var p KeyPolicy
	require.NoError(t, p.UnmarshalText([]byte(" Exclude-Secret ")))
	assert.Equal(t, ExcludeSecret, p)

	err := p.UnmarshalText([]byte("hash-everything"))
	testutil.RequireErrorCode(t, err, sserr.CodeValidationFormat)
	assert.Equal(t, ExcludeSecret, p, "failed parse leaves the value unchanged")
}

// ===========================================================================
// Memory
// ===========================================================================

func TestMemory_SetGet(t *testing.T) {
	t.Parallel()
	m := NewMemory(0)
	ctx := context.Background()

	_, found, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, m.Set(ctx, "k", "v", time.Minute))
	v, found, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", v)
	assert.Equal(t, 1, m.Len())

	m.Flush()
	assert.Equal(t, 0, m.Len())
}

func TestMemory_Expiry(t *testing.T) {
	t.Parallel()
	m := NewMemory(time.Hour)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "short", "v", 20*time.Millisecond))
	require.NoError(t, m.Set(ctx, "forever", "v", 0))

	assert.Eventually(t, func() bool {
		_, found, _ := m.Get(ctx, "short")
		return !found
	}, time.Second, 5*time.Millisecond)

	_, found, err := m.Get(ctx, "forever")
	require.NoError(t, err)
	assert.True(t, found)
}

// ===========================================================================
// Redis
// ===========================================================================

func newRedisCache(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedis(redis.NewFromClient(rdb, 0)), mr
}

func TestRedis_SetGet(t *testing.T) {
	t.Parallel()
	c, mr := newRedisCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "keycloak.realm_list.abc", `[{"realm":"master"}]`, time.Hour))

	v, found, err := c.Get(ctx, "keycloak.realm_list.abc")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `[{"realm":"master"}]`, v)
	assert.Equal(t, time.Hour, mr.TTL("keycloak.realm_list.abc"))
}

func TestRedis_ExpiredIsMiss(t *testing.T) {
	t.Parallel()
	c, mr := newRedisCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", time.Second))
	mr.FastForward(2 * time.Second)

	_, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedis_NoExpiry(t *testing.T) {
	t.Parallel()
	c, mr := newRedisCache(t)
	require.NoError(t, c.Set(context.Background(), "k", "v", -time.Second))
	assert.Equal(t, time.Duration(0), mr.TTL("k"))
	assert.True(t, mr.Exists("k"))
}

func TestRedis_BackendFailure(t *testing.T) {
	t.Parallel()
	c, mr := newRedisCache(t)
	mr.Close()

	_, _, err := c.Get(context.Background(), "k")
	require.Error(t, err)
	assert.True(t, sserr.IsInternal(err) || sserr.IsTimeout(err), "got %v", err)
}

// ===========================================================================
// Postgres
// ===========================================================================

var fixedNow = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// expiresAtArg matches the *time.Time expires_at argument by value.
type expiresAtArg struct {
	want *time.Time
}

func (a expiresAtArg) Match(v any) bool {
	got, ok := v.(*time.Time)
	if !ok {
		return false
	}
	if a.want == nil || got == nil {
		return a.want == nil && got == nil
	}
	return got.Equal(*a.want)
}

func newPostgresCache(t *testing.T, opts ...PostgresOption) (*Postgres, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	opts = append([]PostgresOption{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewPostgres(postgres.NewFromPool(mock, "bridge"), opts...), mock
}

func TestPostgres_EnsureSchema(t *testing.T) {
	t.Parallel()
	c, mock := newPostgresCache(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "keycloak_cache"`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, c.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CustomTableIsQuoted(t *testing.T) {
	t.Parallel()
	c, mock := newPostgresCache(t, WithTable(`bridge"cache`))

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "bridge""cache"`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, c.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Get(t *testing.T) {
	t.Parallel()
	c, mock := newPostgresCache(t)

	mock.ExpectQuery(`SELECT value FROM "keycloak_cache" WHERE key =`).
		WithArgs("k", fixedNow).
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow("raw.jwt.sig"))

	v, found, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "raw.jwt.sig", v)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetMiss(t *testing.T) {
	t.Parallel()
	c, mock := newPostgresCache(t)

	mock.ExpectQuery(`SELECT value FROM "keycloak_cache"`).
		WithArgs("k", fixedNow).
		WillReturnError(pgx.ErrNoRows)

	_, found, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestPostgres_GetFailure(t *testing.T) {
	t.Parallel()
	c, mock := newPostgresCache(t)

	mock.ExpectQuery(`SELECT value FROM "keycloak_cache"`).
		WithArgs("k", fixedNow).
		WillReturnError(errors.New("relation does not exist"))

	_, _, err := c.Get(context.Background(), "k")
	testutil.RequireErrorCode(t, err, sserr.CodeInternalCache)
}

func TestPostgres_Set(t *testing.T) {
	t.Parallel()
	c, mock := newPostgresCache(t)

	expiresAt := fixedNow.Add(295 * time.Second)
	mock.ExpectExec(`INSERT INTO "keycloak_cache" \(key, value, expires_at\)`).
		WithArgs("k", "v", expiresAtArg{want: &expiresAt}).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, c.Set(context.Background(), "k", "v", 295*time.Second))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SetWithoutExpiry(t *testing.T) {
	t.Parallel()
	c, mock := newPostgresCache(t)

	mock.ExpectExec(`INSERT INTO "keycloak_cache"`).
		WithArgs("k", "v", expiresAtArg{}).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, c.Set(context.Background(), "k", "v", 0))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SetTimeout(t *testing.T) {
	t.Parallel()
	c, mock := newPostgresCache(t)

	mock.ExpectExec(`INSERT INTO "keycloak_cache"`).
		WithArgs("k", "v", pgxmock.AnyArg()).
		WillReturnError(context.DeadlineExceeded)

	err := c.Set(context.Background(), "k", "v", time.Minute)
	testutil.RequireErrorCode(t, err, sserr.CodeTimeoutCache)
}

func TestPostgres_Purge(t *testing.T) {
	t.Parallel()
	c, mock := newPostgresCache(t)

	mock.ExpectExec(`DELETE FROM "keycloak_cache" WHERE expires_at IS NOT NULL`).
		WithArgs(fixedNow).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))

	n, err := c.Purge(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestPostgres_StartPurge(t *testing.T) {
	t.Parallel()
	c, mock := newPostgresCache(t)

	mock.ExpectExec(`DELETE FROM "keycloak_cache" WHERE expires_at IS NOT NULL`).
		WithArgs(fixedNow).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))

	stop := c.StartPurge(5 * time.Millisecond)
	t.Cleanup(stop)

	assert.Eventually(t, func() bool {
		return mock.ExpectationsWereMet() == nil
	}, time.Second, 5*time.Millisecond)
	stop()
	stop()
}

func TestPostgres_StartPurgeSurvivesFailure(t *testing.T) {
	t.Parallel()
	c, mock := newPostgresCache(t)

	mock.ExpectExec(`DELETE FROM "keycloak_cache"`).
		WithArgs(fixedNow).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectExec(`DELETE FROM "keycloak_cache"`).
		WithArgs(fixedNow).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	stop := c.StartPurge(5 * time.Millisecond)
	defer stop()

	assert.Eventually(t, func() bool {
		return mock.ExpectationsWereMet() == nil
	}, time.Second, 5*time.Millisecond)
}

// ===========================================================================
// Config / Open
// ===========================================================================

func TestConfig_Validate(t *testing.T) {
	t.Parallel()
	for _, b := range []Backend{BackendNone, BackendMemory} {
		cfg := Config{Backend: b}
		assert.NoError(t, cfg.Validate(), b)
	}

	cfg := Config{Backend: "memcached"}
	err := cfg.Validate()
	testutil.RequireErrorCode(t, err, sserr.CodeValidationFormat)

	cfg = Config{Backend: BackendPostgres, Postgres: postgres.Config{URI: "mysql://nope"}}
	testutil.RequireErrorCode(t, cfg.Validate(), sserr.CodeInternalConfiguration)
}

func TestOpen_MemoryAndNone(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	c, closeFn, err := Open(ctx, Config{Backend: BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, c)
	assert.NoError(t, closeFn())

	c, closeFn, err = Open(ctx, Config{Backend: BackendNone})
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.NoError(t, closeFn())
}

func TestOpen_Redis(t *testing.T) {
	t.Parallel()
	mr := miniredis.RunT(t)

	c, closeFn, err := Open(context.Background(), Config{
		Backend: BackendRedis,
		Redis:   redis.Config{URI: "redis://" + mr.Addr()},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeFn() })

	require.NoError(t, c.Set(context.Background(), "k", "v", time.Minute))
	assert.True(t, mr.Exists("k"))
}

func TestOpen_InvalidBackend(t *testing.T) {
	t.Parallel()
	c, closeFn, err := Open(context.Background(), Config{Backend: "etcd"})
	require.Error(t, err)
	assert.Nil(t, c)
	assert.NotNil(t, closeFn)
}
