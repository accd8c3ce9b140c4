package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "garita/pkg/domain"
	dErrors "garita/pkg/domain-errors"
)

func TestFinalize(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	draft, err := NewSubmission(id.NewSubmissionID(), id.NewQuestionnaireID(), PhaseEntrada, now)
	require.NoError(t, err)

	t.Run("returns a closed copy without mutating the draft", func(t *testing.T) {
		closed, err := Finalize(*draft, now.Add(time.Hour))
		require.NoError(t, err)

		assert.True(t, closed.Finalized)
		require.NotNil(t, closed.ClosedAt)
		assert.Equal(t, now.Add(time.Hour), *closed.ClosedAt)

		assert.False(t, draft.Finalized)
		assert.Nil(t, draft.ClosedAt)
	})

	t.Run("rejects an already finalized submission", func(t *testing.T) {
		closed, err := Finalize(*draft, now)
		require.NoError(t, err)

		_, err = Finalize(closed, now)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeFinalizedSubmission))
	})
}

func TestNewSubmission(t *testing.T) {
	now := time.Now()

	_, err := NewSubmission(id.NewSubmissionID(), id.QuestionnaireID{}, PhaseEntrada, now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	_, err = NewSubmission(id.NewSubmissionID(), id.NewQuestionnaireID(), Phase("parqueo"), now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func TestProviderRowValidateComplete(t *testing.T) {
	complete := ProviderRow{
		Name:           "Agro del Norte",
		PurchaseOrder:  "OC-4471",
		PalletCount:    12,
		ContainerCount: 1,
		Unit:           UnitKG,
	}

	tests := []struct {
		name    string
		mutate  func(r *ProviderRow)
		wantErr bool
	}{
		{name: "complete row passes", mutate: func(*ProviderRow) {}},
		{name: "missing name", mutate: func(r *ProviderRow) { r.Name = "" }, wantErr: true},
		{name: "missing purchase order", mutate: func(r *ProviderRow) { r.PurchaseOrder = "" }, wantErr: true},
		{name: "negative pallets", mutate: func(r *ProviderRow) { r.PalletCount = -1 }, wantErr: true},
		{name: "negative containers", mutate: func(r *ProviderRow) { r.ContainerCount = -2 }, wantErr: true},
		{name: "unknown unit", mutate: func(r *ProviderRow) { r.Unit = "CAJAS" }, wantErr: true},
		{name: "zero counts are legal", mutate: func(r *ProviderRow) { r.PalletCount = 0; r.ContainerCount = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := complete
			tt.mutate(&row)
			err := row.ValidateComplete()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestProviderRowsCodec(t *testing.T) {
	rows := []ProviderRow{
		{Name: "Agro del Norte", PurchaseOrder: "OC-1", PalletCount: 3, Unit: UnitKG},
		{Name: "Frutera Sur", PurchaseOrder: "OC-2", ContainerCount: 2, Unit: UnitUN},
	}

	encoded, err := EncodeProviderRows(rows)
	require.NoError(t, err)

	decoded, err := DecodeProviderRows(encoded)
	require.NoError(t, err)
	assert.Equal(t, rows, decoded)

	empty, err := DecodeProviderRows("")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestChoiceByID(t *testing.T) {
	choiceID := id.NewChoiceID()
	q := Question{
		ID:   id.NewQuestionID(),
		Kind: QuestionKindChoice,
		Choices: []Choice{
			{ID: id.NewChoiceID(), Text: "Sí"},
			{ID: choiceID, Text: "No"},
		},
	}

	found, err := q.ChoiceByID(choiceID)
	require.NoError(t, err)
	assert.Equal(t, "No", found.Text)

	_, err = q.ChoiceByID(id.NewChoiceID())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestSemanticTag(t *testing.T) {
	assert.True(t, TagProveedor.IsActor())
	assert.True(t, TagTransportista.IsActor())
	assert.True(t, TagReceptor.IsActor())
	assert.False(t, TagPlaca.IsActor())
	assert.False(t, TagNone.IsActor())

	assert.True(t, TagPlaca.AllowsManualOverride())
	assert.False(t, TagContenedor.AllowsManualOverride())
	assert.False(t, TagPrecinto.AllowsManualOverride())
}
