package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "garita/pkg/domain"
	dErrors "garita/pkg/domain-errors"
)

func seedActor(t *testing.T, store *InMemoryStore, kind ActorKind, name string, active bool) Actor {
	t.Helper()
	actor := Actor{ID: id.NewActorID(), Kind: kind, Name: name, Active: active}
	require.NoError(t, store.Save(context.Background(), actor))
	return actor
}

func TestServiceGet(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	svc := NewService(store)
	provider := seedActor(t, store, KindProvider, "Frutera Sur", true)

	got, err := svc.Get(ctx, provider.ID)
	require.NoError(t, err)
	assert.Equal(t, provider, got)
}

func TestServiceGetUnknownActor(t *testing.T) {
	svc := NewService(NewInMemoryStore())

	_, err := svc.Get(context.Background(), id.NewActorID())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestServiceGetNilID(t *testing.T) {
	svc := NewService(NewInMemoryStore())

	_, err := svc.Get(context.Background(), id.ActorID{})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func TestServiceListActive(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	svc := NewService(store)
	seedActor(t, store, KindTransporter, "Transportes Andinos", true)
	seedActor(t, store, KindTransporter, "Camiones Baja", false)
	seedActor(t, store, KindProvider, "Frutera Sur", true)

	actors, err := svc.ListActive(ctx, KindTransporter)
	require.NoError(t, err)
	require.Len(t, actors, 1)
	assert.Equal(t, "Transportes Andinos", actors[0].Name)
}

func TestServiceListActiveUnknownKind(t *testing.T) {
	svc := NewService(NewInMemoryStore())

	_, err := svc.ListActive(context.Background(), ActorKind("driver"))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
}
