//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"shelteraccess/internal/access"
	"shelteraccess/internal/audit"
	"shelteraccess/internal/audit/store/postgres"
	"shelteraccess/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = postgres.New(s.postgres.DB)
	s.Require().NoError(s.store.EnsureSchema(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "audit_entries")
	s.Require().NoError(err)
}

// TestChainSurvivesRoundTrip verifies that entries written through the log
// still verify after being read back from Postgres.
func (s *PostgresStoreSuite) TestChainSurvivesRoundTrip() {
	ctx := context.Background()
	log := audit.NewLog(s.store)

	entries := []audit.Entry{
		{UserID: "staff-1", Action: audit.ActionGranted, Level: access.LevelMedical,
			CredentialID: "cred-1", Reason: "treatment coordination"},
		{UserID: "staff-1", Subject: "client-7", Action: audit.ActionAccessed,
			Level: access.LevelMedical, CredentialID: "cred-1",
			Fields: []string{"name", "diagnosis"}},
		{UserID: "staff-1", Action: audit.ActionRevoked, Level: access.LevelMedical,
			CredentialID: "cred-1", Reason: audit.ReasonEndedByUser},
	}
	for _, entry := range entries {
		s.Require().NoError(log.Append(ctx, entry))
	}

	intact, checked, err := log.Verify(ctx)
	s.Require().NoError(err)
	s.True(intact)
	s.Equal(3, checked)

	stored, err := s.store.Query(ctx, audit.Filter{})
	s.Require().NoError(err)
	s.Require().Len(stored, 3)
	s.Equal([]string{"name", "diagnosis"}, stored[1].Fields)
	s.Equal("client-7", stored[1].Subject)
}

// TestQueryFilters verifies the read-side filters against real SQL.
func (s *PostgresStoreSuite) TestQueryFilters() {
	ctx := context.Background()
	log := audit.NewLog(s.store)

	s.Require().NoError(log.Append(ctx, audit.Entry{
		UserID: "staff-1", Action: audit.ActionGranted, Level: access.LevelBasic}))
	s.Require().NoError(log.Append(ctx, audit.Entry{
		UserID: "staff-2", Action: audit.ActionDenied, Level: access.LevelFull,
		Reason: "role_not_eligible"}))

	byUser, err := s.store.Query(ctx, audit.Filter{UserID: "staff-2"})
	s.Require().NoError(err)
	s.Require().Len(byUser, 1)
	s.Equal(audit.ActionDenied, byUser[0].Action)
	s.Equal(access.LevelFull, byUser[0].Level)

	byAction, err := s.store.Query(ctx, audit.Filter{Action: audit.ActionGranted})
	s.Require().NoError(err)
	s.Require().Len(byAction, 1)
	s.Equal("staff-1", byAction[0].UserID)

	windowed, err := s.store.Query(ctx, audit.Filter{
		From: time.Now().Add(-time.Minute),
		To:   time.Now().Add(time.Minute),
	})
	s.Require().NoError(err)
	s.Len(windowed, 2)
}

// TestResumeContinuesChain verifies a restarted process keeps linking new
// entries to the persisted chain head.
func (s *PostgresStoreSuite) TestResumeContinuesChain() {
	ctx := context.Background()

	first := audit.NewLog(s.store)
	s.Require().NoError(first.Append(ctx, audit.Entry{
		UserID: "staff-1", Action: audit.ActionGranted, Level: access.LevelBasic}))

	second := audit.NewLog(s.store)
	s.Require().NoError(second.Resume(ctx))
	s.Require().NoError(second.Append(ctx, audit.Entry{
		UserID: "staff-1", Action: audit.ActionRevoked, Level: access.LevelBasic,
		Reason: audit.ReasonEndedByUser}))

	intact, checked, err := second.Verify(ctx)
	s.Require().NoError(err)
	s.True(intact)
	s.Equal(2, checked)
}
