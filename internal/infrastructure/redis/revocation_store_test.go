package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jhoicas/voter-auth-api/internal/domain/entity"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis implementa solo los comandos que usa el store; el resto entra en pánico.
type fakeRedis struct {
	goredis.Cmdable

	mu      sync.Mutex
	data    map[string]string
	ttls    map[string]time.Duration
	pages   [][]string
	scanErr error
	setErr  error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value interface{}, ttl time.Duration) *goredis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return goredis.NewBoolResult(false, f.setErr)
	}
	if _, ok := f.data[key]; ok {
		return goredis.NewBoolResult(false, nil)
	}
	f.data[key] = value.(string)
	f.ttls[key] = ttl
	return goredis.NewBoolResult(true, nil)
}

// Scan devuelve las páginas configuradas; el cursor es el índice de la siguiente.
func (f *fakeRedis) Scan(_ context.Context, cursor uint64, _ string, _ int64) *goredis.ScanCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scanErr != nil {
		return goredis.NewScanCmdResult(nil, 0, f.scanErr)
	}
	if int(cursor) >= len(f.pages) {
		return goredis.NewScanCmdResult(nil, 0, nil)
	}
	next := cursor + 1
	if int(next) == len(f.pages) {
		next = 0
	}
	return goredis.NewScanCmdResult(f.pages[cursor], next, nil)
}

func (f *fakeRedis) MGet(_ context.Context, keys ...string) *goredis.SliceCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	vals := make([]interface{}, len(keys))
	for i, k := range keys {
		if v, ok := f.data[k]; ok {
			vals[i] = v
		}
	}
	return goredis.NewSliceResult(vals, nil)
}

var now = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func newTestStore(rdb goredis.Cmdable) *RevocationStore {
	s := NewRevocationStore(rdb, "")
	s.now = func() time.Time { return now }
	return s
}

func TestTTLFor(t *testing.T) {
	assert.Equal(t, 15*time.Minute, ttlFor(now, now.Add(15*time.Minute)))
	assert.Equal(t, time.Second, ttlFor(now, now.Add(10*time.Millisecond)))
	assert.LessOrEqual(t, ttlFor(now, now.Add(-time.Minute)), time.Duration(0))
}

func TestEncodeDecode(t *testing.T) {
	in := entity.RevokedToken{TokenID: "jti-1", RevokedAt: now, ExpiresAt: now.Add(time.Minute)}
	raw, err := encode(in)
	require.NoError(t, err)

	out, err := decode("jti-1", raw)
	require.NoError(t, err)
	assert.True(t, in.RevokedAt.Equal(out.RevokedAt))
	assert.True(t, in.ExpiresAt.Equal(out.ExpiresAt))
	assert.Equal(t, "jti-1", out.TokenID)

	_, err = decode("jti-2", "{not json")
	assert.Error(t, err)
}

func TestRevoke_ExpiredTokenSkipsRedis(t *testing.T) {
	// rdb nil: si Revoke tocara Redis entraría en pánico.
	s := newTestStore(nil)
	created, err := s.Revoke(context.Background(), entity.RevokedToken{
		TokenID:   "old",
		RevokedAt: now,
		ExpiresAt: now.Add(-time.Minute),
	})
	assert.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, DefaultPrefix, s.prefix)

	n, err := s.DeleteExpired(context.Background(), now)
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestRevoke_SetNX(t *testing.T) {
	rdb := newFakeRedis()
	s := newTestStore(rdb)
	tok := entity.RevokedToken{TokenID: "jti-1", RevokedAt: now, ExpiresAt: now.Add(15 * time.Minute)}

	created, err := s.Revoke(context.Background(), tok)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 15*time.Minute, rdb.ttls[DefaultPrefix+"jti-1"])

	created, err = s.Revoke(context.Background(), tok)
	require.NoError(t, err)
	assert.False(t, created, "la segunda llamada ve la clave existente")

	rdb.setErr = errors.New("connection refused")
	_, err = s.Revoke(context.Background(), entity.RevokedToken{TokenID: "jti-2", ExpiresAt: now.Add(time.Minute)})
	assert.ErrorContains(t, err, "connection refused")
}

func TestListActive(t *testing.T) {
	rdb := newFakeRedis()
	s := newTestStore(rdb)
	ctx := context.Background()

	for _, tok := range []entity.RevokedToken{
		{TokenID: "a", RevokedAt: now, ExpiresAt: now.Add(10 * time.Minute)},
		{TokenID: "b", RevokedAt: now, ExpiresAt: now.Add(20 * time.Minute)},
		{TokenID: "c", RevokedAt: now, ExpiresAt: now.Add(30 * time.Minute)},
	} {
		_, err := s.Revoke(ctx, tok)
		require.NoError(t, err)
	}
	rdb.data[DefaultPrefix+"roto"] = "{not json"
	rdb.pages = [][]string{
		{DefaultPrefix + "a", DefaultPrefix + "roto"},
		{DefaultPrefix + "b", DefaultPrefix + "desaparecido"},
		{DefaultPrefix + "c"},
	}

	list, err := s.ListActive(ctx, now.Add(15*time.Minute))
	require.NoError(t, err)
	ids := make([]string, 0, len(list))
	for _, tok := range list {
		ids = append(ids, tok.TokenID)
	}
	assert.Equal(t, []string{"b", "c"}, ids)

	rdb.scanErr = errors.New("timeout")
	_, err = s.ListActive(ctx, now)
	assert.ErrorContains(t, err, "redis scan")
}
