package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	id "garita/pkg/domain"
	"garita/pkg/platform/sentinel"
)

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindByID(ctx context.Context, actorID id.ActorID) (Actor, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, kind, name, document_id, active
		FROM actors WHERE id = $1`, actorID.String())

	actor, err := scanActor(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Actor{}, sentinel.ErrNotFound
		}
		return Actor{}, fmt.Errorf("find actor: %w", err)
	}
	return actor, nil
}

func (s *PostgresStore) ListByKind(ctx context.Context, kind ActorKind) ([]Actor, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, name, document_id, active
		FROM actors WHERE kind = $1 ORDER BY name`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("list actors: %w", err)
	}
	defer rows.Close()

	var out []Actor
	for rows.Next() {
		actor, err := scanActor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan actor: %w", err)
		}
		out = append(out, actor)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Save(ctx context.Context, actor Actor) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO actors (id, kind, name, document_id, active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			kind = EXCLUDED.kind,
			name = EXCLUDED.name,
			document_id = EXCLUDED.document_id,
			active = EXCLUDED.active`,
		actor.ID.String(), string(actor.Kind), actor.Name, actor.DocumentID, actor.Active)
	if err != nil {
		return fmt.Errorf("save actor: %w", err)
	}
	return nil
}

func scanActor(row interface{ Scan(...any) error }) (Actor, error) {
	var (
		actor Actor
		aid   string
	)
	if err := row.Scan(&aid, &actor.Kind, &actor.Name, &actor.DocumentID, &actor.Active); err != nil {
		return Actor{}, err
	}
	parsed, err := id.ParseActorID(aid)
	if err != nil {
		return Actor{}, err
	}
	actor.ID = parsed
	return actor, nil
}
