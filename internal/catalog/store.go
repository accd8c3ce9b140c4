package catalog

import (
	"context"

	id "garita/pkg/domain"
)

// Store is the persistence port for actors. Implementations return
// sentinel.ErrNotFound for unknown ids.
type Store interface {
	FindByID(ctx context.Context, actorID id.ActorID) (Actor, error)
	ListByKind(ctx context.Context, kind ActorKind) ([]Actor, error)
	Save(ctx context.Context, actor Actor) error
}
