package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiftline/backend/domain"
	"github.com/shiftline/backend/repository/inmemory"
)

// sessionStore is a map-backed SessionRepository for tests.
type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]*domain.Session)}
}

func (s *sessionStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	copied := *session
	return &copied, nil
}

func (s *sessionStore) Save(ctx context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *session
	s.sessions[session.ID] = &copied
	return nil
}

func (s *sessionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *sessionStore) Extend(ctx context.Context, id string, seconds int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	session.ExpiresAt = time.Now().Add(time.Duration(seconds) * time.Second)
	return nil
}

func newTestUseCase(t *testing.T) *UseCase {
	t.Helper()
	actors := inmemory.NewActorStorage()
	require.NoError(t, actors.Upsert(context.Background(), &domain.Actor{
		ID: "mgr-1", Name: "mgr-1", Roles: []domain.Role{domain.RoleManager},
	}))
	return New(actors, newSessionStore(), nil)
}

func TestCreateSession(t *testing.T) {
	uc := newTestUseCase(t)
	ctx := context.Background()

	session, err := uc.CreateSession(ctx, "mgr-1", time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, "mgr-1", session.ActorID)
	assert.True(t, session.ExpiresAt.After(time.Now()))

	t.Run("unknown actor", func(t *testing.T) {
		_, err := uc.CreateSession(ctx, "ghost", time.Hour)
		assert.True(t, domain.IsDomainError(err, domain.ErrCodeNotFound))
	})
}

func TestGetSession(t *testing.T) {
	uc := newTestUseCase(t)
	ctx := context.Background()

	session, err := uc.CreateSession(ctx, "mgr-1", time.Hour)
	require.NoError(t, err)

	got, err := uc.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ActorID, got.ActorID)

	t.Run("expired session is evicted", func(t *testing.T) {
		stale, err := uc.CreateSession(ctx, "mgr-1", -time.Minute)
		require.NoError(t, err)

		_, err = uc.GetSession(ctx, stale.ID)
		assert.True(t, domain.IsDomainError(err, domain.ErrCodeNotFound))
	})
}

func TestRefreshAndRevoke(t *testing.T) {
	uc := newTestUseCase(t)
	ctx := context.Background()

	session, err := uc.CreateSession(ctx, "mgr-1", time.Minute)
	require.NoError(t, err)

	refreshed, err := uc.RefreshSession(ctx, session.ID, time.Hour)
	require.NoError(t, err)
	assert.True(t, refreshed.ExpiresAt.After(session.ExpiresAt))

	require.NoError(t, uc.RevokeSession(ctx, session.ID))
	_, err = uc.GetSession(ctx, session.ID)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeNotFound))
}
