package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manikumarthati/extractionWithValidation/constants"
	"github.com/manikumarthati/extractionWithValidation/internal/correction"
	"github.com/manikumarthati/extractionWithValidation/internal/record"
	"github.com/manikumarthati/extractionWithValidation/internal/validation"
)

func openTestStore(t *testing.T) *AuditStore {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "audit.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleSession() (Session, []validation.Round) {
	started := time.Date(2026, 8, 14, 10, 30, 0, 0, time.UTC)
	sess := Session{
		ID:              "sess-1",
		DocumentPath:    "/docs/paystub.pdf",
		Page:            0,
		StartedAt:       started,
		FinishedAt:      started.Add(42 * time.Second),
		RoundsCompleted: 2,
		Reason:          constants.ReasonConverged,
		FinalAccuracy:   1.0,
		FinalRecord:     record.Record{"employee_name": "Jane Doe"},
	}
	rounds := []validation.Round{
		{
			Index:            1,
			AccuracyEstimate: 0.85,
			AppliedOps: []correction.Op{{
				FieldPath:  "employee_name",
				Action:     constants.ActionValueReplaced,
				NewValue:   "Jane Doe",
				Confidence: 0.9,
				Source:     constants.SourceModel,
			}},
			ShiftPattern: constants.ShiftNone,
			ModelLatency: 1200 * time.Millisecond,
		},
		{
			Index:            2,
			AccuracyEstimate: 1.0,
			ShiftPattern:     constants.ShiftNone,
			ModelLatency:     900 * time.Millisecond,
		},
	}
	return sess, rounds
}

func TestSaveAndLoadSession(t *testing.T) {
	s := openTestStore(t)
	sess, rounds := sampleSession()
	require.NoError(t, s.SaveSession(context.Background(), sess, rounds))

	got, gotRounds, err := s.LoadSession(context.Background(), "sess-1")
	require.NoError(t, err)

	assert.Equal(t, sess.DocumentPath, got.DocumentPath)
	assert.Equal(t, constants.ReasonConverged, got.Reason)
	assert.True(t, sess.StartedAt.Equal(got.StartedAt))
	assert.Equal(t, record.Record{"employee_name": "Jane Doe"}, got.FinalRecord)

	require.Len(t, gotRounds, 2)
	assert.Equal(t, 1, gotRounds[0].Index)
	assert.InDelta(t, 0.85, gotRounds[0].AccuracyEstimate, 1e-6)
	require.Len(t, gotRounds[0].AppliedOps, 1)
	assert.Equal(t, "employee_name", gotRounds[0].AppliedOps[0].FieldPath)
	assert.Equal(t, 1200*time.Millisecond, gotRounds[0].ModelLatency)
	assert.Empty(t, gotRounds[1].AppliedOps)
}

func TestLoadSessionMissing(t *testing.T) {
	s := openTestStore(t)
	_, _, err := s.LoadSession(context.Background(), "nope")
	assert.Error(t, err)
}

func TestListSessionsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	first, rounds := sampleSession()
	require.NoError(t, s.SaveSession(context.Background(), first, rounds))

	second := first
	second.ID = "sess-2"
	second.StartedAt = first.StartedAt.Add(time.Hour)
	require.NoError(t, s.SaveSession(context.Background(), second, nil))

	list, err := s.ListSessions(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "sess-2", list[0].ID)
	assert.Equal(t, "sess-1", list[1].ID)
}

func TestSaveSessionDuplicateIDFails(t *testing.T) {
	s := openTestStore(t)
	sess, _ := sampleSession()
	require.NoError(t, s.SaveSession(context.Background(), sess, nil))
	assert.Error(t, s.SaveSession(context.Background(), sess, nil))
}
