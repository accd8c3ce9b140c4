package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"

	id "garita/pkg/domain"
	"garita/pkg/platform/sentinel"
)

// InMemoryStore keeps actors in a map. Used in unit tests and as the seed
// store in development mode.
type InMemoryStore struct {
	mu     sync.RWMutex
	actors map[id.ActorID]Actor
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{actors: make(map[id.ActorID]Actor)}
}

func (s *InMemoryStore) FindByID(_ context.Context, actorID id.ActorID) (Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	actor, ok := s.actors[actorID]
	if !ok {
		return Actor{}, sentinel.ErrNotFound
	}
	return actor, nil
}

func (s *InMemoryStore) ListByKind(_ context.Context, kind ActorKind) ([]Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Actor
	for _, actor := range s.actors {
		if actor.Kind == kind {
			out = append(out, actor)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

func (s *InMemoryStore) Save(_ context.Context, actor Actor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actors[actor.ID] = actor
	return nil
}
