package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"

	"github.com/fmuoria/fair-hire/internal/models"
)

func setupPostgresStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("fairhire"),
		postgres.WithUsername("fairhire"),
		postgres.WithPassword("fairhire"),
		postgres.BasicWaitStrategies(),
	)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(ctr); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := Open(ctx, DriverPostgres, dsn, zap.NewNop())
	require.NoError(t, err)
	s.now = func() time.Time { return testNow }
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPostgresRoundTrip(t *testing.T) {
	s := setupPostgresStore(t)
	ctx := context.Background()

	j := testJob("Platform Engineer")
	require.NoError(t, s.CreateJob(ctx, j))
	c := testCandidate("Jane Doe", "jane@example.com")
	require.NoError(t, s.CreateCandidate(ctx, c))

	err := s.CreateCandidate(ctx, testCandidate("Jane Again", "jane@example.com"))
	assert.ErrorIs(t, err, ErrConflict)

	a := &models.Application{JobID: j.ID, CandidateID: c.ID}
	require.NoError(t, s.CreateApplication(ctx, a))
	assert.ErrorIs(t, s.CreateApplication(ctx, &models.Application{JobID: j.ID, CandidateID: c.ID}), ErrConflict)

	a.Score = 81.25
	a.Decision = models.DecisionHire
	a.Breakdown = &models.ScoreBreakdown{SkillMatch: 1, Total: 81.25}
	require.NoError(t, s.SaveScreening(ctx, []*models.Application{a}))

	qualified := false
	require.NoError(t, s.SetQualified(ctx, a.ID, &qualified))

	applicants, err := s.ListApplicants(ctx, j.ID)
	require.NoError(t, err)
	require.Len(t, applicants, 1)
	got := applicants[0].Application
	assert.Equal(t, models.StatusScreened, got.Status)
	assert.Equal(t, 81.25, got.Score)
	require.NotNil(t, got.Qualified)
	assert.False(t, *got.Qualified)

	require.NoError(t, s.DeleteJob(ctx, j.ID))
	_, err = s.GetApplication(ctx, a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
