// Package redis comparte el conjunto de revocación entre instancias usando Redis.
// Cada token revocado es una clave con TTL hasta su expiración, así que la poda
// la hace el propio servidor.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jhoicas/voter-auth-api/internal/domain/entity"
	"github.com/jhoicas/voter-auth-api/internal/domain/repository"
	goredis "github.com/redis/go-redis/v9"
)

// DefaultPrefix prefijo de las claves de revocación.
const DefaultPrefix = "auth:revoked:"

const scanCount = 256

var _ repository.RevocationRepository = (*RevocationStore)(nil)

type record struct {
	RevokedAt time.Time `json:"revoked_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RevocationStore implementa repository.RevocationRepository sobre Redis.
type RevocationStore struct {
	rdb    goredis.Cmdable
	prefix string
	now    func() time.Time
}

// NewRevocationStore construye el store; prefix vacío usa DefaultPrefix.
func NewRevocationStore(rdb goredis.Cmdable, prefix string) *RevocationStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &RevocationStore{rdb: rdb, prefix: prefix, now: time.Now}
}

// NewClient crea el cliente y verifica la conexión.
func NewClient(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{Addr: addr, Password: password, DB: db})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

// Revoke guarda la entrada con SET NX y TTL hasta expires_at. Devuelve false si otra
// llamada ya la había guardado. Un token ya expirado no se guarda.
func (s *RevocationStore) Revoke(ctx context.Context, t entity.RevokedToken) (bool, error) {
	ttl := ttlFor(s.now(), t.ExpiresAt)
	if ttl <= 0 {
		return true, nil
	}
	body, err := encode(t)
	if err != nil {
		return false, err
	}
	created, err := s.rdb.SetNX(ctx, s.prefix+t.TokenID, body, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx revocation: %w", err)
	}
	return created, nil
}

// ListActive recorre las claves con SCAN y devuelve las que expiran después de now.
func (s *RevocationStore) ListActive(ctx context.Context, now time.Time) ([]entity.RevokedToken, error) {
	var (
		cursor uint64
		list   []entity.RevokedToken
	)
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, s.prefix+"*", scanCount).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan revocations: %w", err)
		}
		if len(keys) > 0 {
			vals, err := s.rdb.MGet(ctx, keys...).Result()
			if err != nil {
				return nil, fmt.Errorf("redis mget revocations: %w", err)
			}
			for i, v := range vals {
				raw, ok := v.(string)
				if !ok {
					// expiró entre SCAN y MGET
					continue
				}
				t, err := decode(keys[i][len(s.prefix):], raw)
				if err != nil {
					continue
				}
				if t.ExpiresAt.After(now) {
					list = append(list, t)
				}
			}
		}
		cursor = next
		if cursor == 0 {
			return list, nil
		}
	}
}

// DeleteExpired no borra nada: Redis expira las claves por TTL.
func (s *RevocationStore) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func ttlFor(now, expiresAt time.Time) time.Duration {
	ttl := expiresAt.Sub(now)
	if ttl > 0 && ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

func encode(t entity.RevokedToken) (string, error) {
	b, err := json.Marshal(record{RevokedAt: t.RevokedAt.UTC(), ExpiresAt: t.ExpiresAt.UTC()})
	if err != nil {
		return "", fmt.Errorf("encode revocation: %w", err)
	}
	return string(b), nil
}

func decode(tokenID, raw string) (entity.RevokedToken, error) {
	var r record
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return entity.RevokedToken{}, fmt.Errorf("decode revocation %s: %w", tokenID, err)
	}
	return entity.RevokedToken{TokenID: tokenID, RevokedAt: r.RevokedAt, ExpiresAt: r.ExpiresAt}, nil
}
