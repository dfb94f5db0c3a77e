//go:build integration

package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/suite"

	"visitid/internal/registry/ledger"
	"visitid/internal/registry/models"
	"visitid/pkg/platform/sentinel"
	"visitid/pkg/testutil/containers"
)

type PostgresLedgerSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	ledger   *ledger.Postgres
}

func TestPostgresLedgerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresLedgerSuite))
}

func (s *PostgresLedgerSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.ledger = ledger.NewPostgres(s.postgres.DB)
	s.Require().NoError(s.ledger.EnsureSchema(context.Background()))
}

func (s *PostgresLedgerSuite) TearDownSuite() {
	_ = s.postgres.DB.Close()
	_ = s.postgres.Container.Terminate(context.Background())
}

func (s *PostgresLedgerSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx, "identity_records"))
	_, err := s.postgres.DB.ExecContext(ctx, "UPDATE issuance_counter SET last_id = 0")
	s.Require().NoError(err)
}

func testFields(name string) models.RegistrationFields {
	f := models.RegistrationFields{Name: name, DocumentNumber: "P-" + name, Contact: "c-" + name}
	f.Normalize()
	return f
}

func (s *PostgresLedgerSuite) TestRegisterAndReadBack() {
	ctx := context.Background()

	receipt, err := s.ledger.Register(ctx, "alice", testFields("Alice"))
	s.Require().NoError(err)
	s.Equal(models.RecordID(1), receipt.ID)
	s.NotEmpty(receipt.Commitment)

	record, err := s.ledger.Get(ctx, receipt.ID)
	s.Require().NoError(err)
	s.Equal("Alice", record.Name)
	s.True(record.IsActive)
	s.Equal(receipt.Commitment, record.Commitment)

	id, err := s.ledger.IDOf(ctx, "alice")
	s.Require().NoError(err)
	s.Equal(receipt.ID, id)
}

func (s *PostgresLedgerSuite) TestDuplicateOwnerLeavesNoGap() {
	ctx := context.Background()

	_, err := s.ledger.Register(ctx, "alice", testFields("Alice"))
	s.Require().NoError(err)

	_, err = s.ledger.Register(ctx, "alice", testFields("Alice Again"))
	s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)

	// The aborted attempt must not burn an id.
	receipt, err := s.ledger.Register(ctx, "bob", testFields("Bob"))
	s.Require().NoError(err)
	s.Equal(models.RecordID(2), receipt.ID)

	ids, err := s.ledger.AllIDs(ctx)
	s.Require().NoError(err)
	s.Equal([]models.RecordID{1, 2}, ids)
}

func (s *PostgresLedgerSuite) TestGetUnassigned() {
	ctx := context.Background()

	_, err := s.ledger.Get(ctx, 0)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.ledger.Get(ctx, 42)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

// TestConcurrentRegistrations verifies serialized issuance across connections.
func (s *PostgresLedgerSuite) TestConcurrentRegistrations() {
	ctx := context.Background()
	const goroutines = 20

	var wg sync.WaitGroup
	var successCount atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.ledger.Register(ctx, models.OwnerAddress(fmt.Sprintf("owner-%d", i)), testFields("v"))
			if err == nil {
				successCount.Add(1)
			} else if !errors.Is(err, sentinel.ErrAlreadyUsed) {
				s.T().Errorf("unexpected register error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	s.Equal(int32(goroutines), successCount.Load())

	ids, err := s.ledger.AllIDs(ctx)
	s.Require().NoError(err)
	s.Len(ids, goroutines)
	for i, id := range ids {
		s.Equal(models.RecordID(i+1), id, "id space must stay dense")
	}
}
