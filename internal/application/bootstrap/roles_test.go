package bootstrap

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jhoicas/voter-auth-api/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRoles struct {
	mu     sync.Mutex
	byName map[string]*entity.Role
	err    error
}

func (m *memRoles) FindByID(_ context.Context, id string) (*entity.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.byName {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, nil
}

func (m *memRoles) FindByName(_ context.Context, name string) (*entity.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byName[name], nil
}

func (m *memRoles) UpsertByName(_ context.Context, name string) (*entity.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if r, ok := m.byName[name]; ok {
		return r, nil
	}
	r := &entity.Role{ID: uuid.NewString(), Name: name}
	m.byName[name] = r
	return r, nil
}

func (m *memRoles) Delete(_ context.Context, id string) error { return nil }

func TestEnsureSeedRoles_Idempotente(t *testing.T) {
	repo := &memRoles{byName: map[string]*entity.Role{}}

	first, err := EnsureSeedRoles(context.Background(), repo)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, entity.RoleAdmin, first[entity.RoleAdmin].Name)
	assert.Equal(t, entity.RoleUsuario, first[entity.RoleUsuario].Name)

	second, err := EnsureSeedRoles(context.Background(), repo)
	require.NoError(t, err)
	assert.Equal(t, first[entity.RoleAdmin].ID, second[entity.RoleAdmin].ID)
	assert.Equal(t, first[entity.RoleUsuario].ID, second[entity.RoleUsuario].ID)
	assert.Len(t, repo.byName, 2)
}

func TestEnsureSeedRoles_Concurrente(t *testing.T) {
	repo := &memRoles{byName: map[string]*entity.Role{}}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := EnsureSeedRoles(context.Background(), repo)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Len(t, repo.byName, 2)
}

func TestEnsureSeedRoles_Error(t *testing.T) {
	boom := errors.New("db caída")
	_, err := EnsureSeedRoles(context.Background(), &memRoles{byName: map[string]*entity.Role{}, err: boom})
	assert.ErrorIs(t, err, boom)
}
