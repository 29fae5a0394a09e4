package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/shiftline/backend/domain"
	"github.com/shiftline/backend/repository"
)

// ActorStorage is an in-memory actor directory.
type ActorStorage struct {
	mu     sync.RWMutex
	actors map[string]*domain.Actor
}

func NewActorStorage() *ActorStorage {
	return &ActorStorage{actors: make(map[string]*domain.Actor)}
}

func (s *ActorStorage) GetByID(ctx context.Context, id string) (*domain.Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	actor, ok := s.actors[id]
	if !ok {
		return nil, domain.ErrActorNotFound
	}

	clone := *actor
	clone.Roles = append([]domain.Role(nil), actor.Roles...)
	return &clone, nil
}

func (s *ActorStorage) Upsert(ctx context.Context, actor *domain.Actor) error {
	if actor == nil || actor.ID == "" {
		return domain.ErrInvalidPayload
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if actor.CreatedAt.IsZero() {
		actor.CreatedAt = now
	}
	actor.UpdatedAt = now

	clone := *actor
	clone.Roles = append([]domain.Role(nil), actor.Roles...)
	s.actors[actor.ID] = &clone
	return nil
}

var _ repository.ActorRepository = (*ActorStorage)(nil)
