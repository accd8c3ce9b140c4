package catalog

import (
	"context"
	"errors"
	"log/slog"

	id "garita/pkg/domain"
	dErrors "garita/pkg/domain-errors"
	"garita/pkg/platform/sentinel"
)

// Service exposes catalog lookups to the flow engine and the kiosk pickers.
type Service struct {
	store  Store
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns an actor by id.
func (s *Service) Get(ctx context.Context, actorID id.ActorID) (Actor, error) {
	if actorID.IsNil() {
		return Actor{}, dErrors.New(dErrors.CodeBadRequest, "actor id is required")
	}
	actor, err := s.store.FindByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Actor{}, dErrors.Newf(dErrors.CodeNotFound, "actor %s not found", actorID)
		}
		return Actor{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load actor")
	}
	return actor, nil
}

// ListActive returns the active actors of a kind, for the kiosk pickers.
func (s *Service) ListActive(ctx context.Context, kind ActorKind) ([]Actor, error) {
	if !kind.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "unknown actor kind %q", kind)
	}
	actors, err := s.store.ListByKind(ctx, kind)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list actors")
	}
	active := actors[:0]
	for _, a := range actors {
		if a.Active {
			active = append(active, a)
		}
	}
	return active, nil
}
