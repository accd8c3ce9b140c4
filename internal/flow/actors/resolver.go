// Package actors merges actor selections into submissions and answers:
// single-actor bindings set the matching denormalized submission field, and
// provider row sets merge append-or-patch, never replace.
package actors

import (
	"context"
	"strings"

	"garita/internal/catalog"
	"garita/internal/flow/models"
	id "garita/pkg/domain"
	dErrors "garita/pkg/domain-errors"
)

// Catalog is the actor lookup the resolver needs from the catalog service.
type Catalog interface {
	Get(ctx context.Context, actorID id.ActorID) (catalog.Actor, error)
}

// Resolver computes submission field updates and answer text for
// actor-tagged questions.
type Resolver struct {
	catalog Catalog
}

func NewResolver(c Catalog) *Resolver {
	return &Resolver{catalog: c}
}

var kindByTag = map[models.SemanticTag]catalog.ActorKind{
	models.TagProveedor:     catalog.KindProvider,
	models.TagTransportista: catalog.KindTransporter,
	models.TagReceptor:      catalog.KindReceiver,
	models.TagRegulador:     catalog.KindRegulator,
}

// BindSingleActor resolves the referenced actor, checks its kind against the
// question's tag, applies the denormalized field to the submission and
// returns the actor's display name for the answer text (so list views render
// without a join).
func (r *Resolver) BindSingleActor(ctx context.Context, sub *models.Submission, question models.Question, actorID id.ActorID) (string, error) {
	wantKind, ok := kindByTag[question.Tag]
	if !ok {
		return "", dErrors.Newf(dErrors.CodeValidation, "question %s is not actor-tagged", question.ID)
	}

	actor, err := r.catalog.Get(ctx, actorID)
	if err != nil {
		return "", err
	}
	if actor.Kind != wantKind {
		return "", dErrors.Newf(dErrors.CodeValidation, "actor %s is a %s, question expects a %s", actor.ID, actor.Kind, wantKind)
	}
	if !actor.Active {
		return "", dErrors.Newf(dErrors.CodeValidation, "actor %q is inactive", actor.Name)
	}

	ref := actor.ID
	switch question.Tag {
	case models.TagProveedor:
		sub.ProviderID = &ref
	case models.TagTransportista:
		sub.TransporterID = &ref
	case models.TagReceptor:
		sub.ReceiverID = &ref
	case models.TagRegulador:
		sub.RegulatorID = &ref
	}
	return actor.Name, nil
}

// MergeProviderRows merges incoming rows into existing ones. Rows are keyed
// by case-insensitive name: a known name patches that row's fields in place
// (position and name casing preserved), an unknown name appends. Existing
// rows are never dropped.
func MergeProviderRows(existing, incoming []models.ProviderRow) []models.ProviderRow {
	merged := make([]models.ProviderRow, len(existing))
	copy(merged, existing)

	index := make(map[string]int, len(merged))
	for i, row := range merged {
		index[rowKey(row.Name)] = i
	}

	for _, row := range incoming {
		if i, ok := index[rowKey(row.Name)]; ok {
			merged[i].PurchaseOrder = row.PurchaseOrder
			merged[i].PalletCount = row.PalletCount
			merged[i].ContainerCount = row.ContainerCount
			merged[i].Unit = row.Unit
			continue
		}
		merged = append(merged, row)
		index[rowKey(row.Name)] = len(merged) - 1
	}
	return merged
}

// ValidateRowSet enforces the finalize contract on a full row set: at least
// one row, every row complete. Progressive saves skip this; the flow calls it
// when the step advances past the provider question.
func ValidateRowSet(rows []models.ProviderRow) error {
	if len(rows) == 0 {
		return dErrors.New(dErrors.CodeValidation, "provider question requires at least one row")
	}
	for _, row := range rows {
		if err := row.ValidateComplete(); err != nil {
			return err
		}
	}
	return nil
}

func rowKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
