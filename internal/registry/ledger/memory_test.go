package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"visitid/internal/registry/models"
	"visitid/pkg/platform/sentinel"
)

type MemoryLedgerSuite struct {
	suite.Suite
	ledger *InMemory
	ctx    context.Context
}

func (s *MemoryLedgerSuite) SetupTest() {
	s.ledger = NewInMemory()
	s.ctx = context.Background()
}

func TestMemoryLedgerSuite(t *testing.T) {
	suite.Run(t, new(MemoryLedgerSuite))
}

func (s *MemoryLedgerSuite) fields(name string) models.RegistrationFields {
	f := models.RegistrationFields{Name: name, DocumentNumber: "P-" + name, Contact: "c-" + name}
	f.Normalize()
	return f
}

// TestSequentialIssuance verifies ids form a dense prefix starting at 1.
func (s *MemoryLedgerSuite) TestSequentialIssuance() {
	for i := 1; i <= 5; i++ {
		receipt, err := s.ledger.Register(s.ctx, models.OwnerAddress(fmt.Sprintf("owner-%d", i)), s.fields("v"))
		s.Require().NoError(err)
		s.Equal(models.RecordID(i), receipt.ID)
	}

	count, err := s.ledger.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(5, count)

	ids, err := s.ledger.AllIDs(s.ctx)
	s.Require().NoError(err)
	s.Equal([]models.RecordID{1, 2, 3, 4, 5}, ids)
}

// TestOwnerUniqueness verifies a second registration from the same owner fails
// and leaves ledger state untouched.
func (s *MemoryLedgerSuite) TestOwnerUniqueness() {
	receipt, err := s.ledger.Register(s.ctx, "alice", s.fields("Alice"))
	s.Require().NoError(err)
	s.Equal(models.RecordID(1), receipt.ID)

	_, err = s.ledger.Register(s.ctx, "alice", s.fields("Alice Again"))
	s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)

	count, err := s.ledger.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, count)

	stored, err := s.ledger.Get(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal("Alice", stored.Name)

	ids, err := s.ledger.AllIDs(s.ctx)
	s.Require().NoError(err)
	s.Equal([]models.RecordID{1}, ids)
}

// TestGet covers stored-field fidelity and NotFound cases including id 0.
func (s *MemoryLedgerSuite) TestGet() {
	s.Run("returns fields exactly as submitted", func() {
		f := models.RegistrationFields{Name: "John Doe", DocumentNumber: "AB123456789", Contact: "+1-555-0123", Itinerary: "Visiting NYC landmarks"}
		receipt, err := s.ledger.Register(s.ctx, "john", f)
		s.Require().NoError(err)

		record, err := s.ledger.Get(s.ctx, receipt.ID)
		s.Require().NoError(err)
		s.Equal("John Doe", record.Name)
		s.Equal("AB123456789", record.DocumentNumber)
		s.Equal("+1-555-0123", record.Contact)
		s.Equal("Visiting NYC landmarks", record.Itinerary)
		s.True(record.IsActive)
		s.Equal(receipt.Commitment, record.Commitment)
		s.NotEmpty(record.Commitment)
	})

	s.Run("returns ErrNotFound for id 0", func() {
		_, err := s.ledger.Get(s.ctx, 0)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("returns ErrNotFound for unassigned id", func() {
		_, err := s.ledger.Get(s.ctx, 999)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

// TestIDOf verifies owner lookup returns 0 for unregistered owners.
func (s *MemoryLedgerSuite) TestIDOf() {
	id, err := s.ledger.IDOf(s.ctx, "nobody")
	s.Require().NoError(err)
	s.Equal(models.RecordID(0), id)

	receipt, err := s.ledger.Register(s.ctx, "bob", s.fields("Bob"))
	s.Require().NoError(err)

	id, err = s.ledger.IDOf(s.ctx, "bob")
	s.Require().NoError(err)
	s.Equal(receipt.ID, id)
}

// TestObserverReceivesReceipt verifies the confirmation signal carries id,
// owner, and commitment.
func (s *MemoryLedgerSuite) TestObserverReceivesReceipt() {
	var got []models.Receipt
	l := NewInMemory(WithObserver(func(r models.Receipt) { got = append(got, r) }))

	receipt, err := l.Register(s.ctx, "carol", s.fields("Carol"))
	s.Require().NoError(err)

	s.Require().Len(got, 1)
	s.Equal(receipt.ID, got[0].ID)
	s.Equal(models.OwnerAddress("carol"), got[0].Owner)
	s.Equal(receipt.Commitment, got[0].Commitment)
}

// TestConcurrentRegistrations verifies serialized issuance under contention:
// distinct owners never collide on an id and the id space stays dense.
func (s *MemoryLedgerSuite) TestConcurrentRegistrations() {
	const goroutines = 50

	var wg sync.WaitGroup
	seen := make(chan models.RecordID, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			receipt, err := s.ledger.Register(s.ctx, models.OwnerAddress(fmt.Sprintf("owner-%d", i)), s.fields("v"))
			if err == nil {
				seen <- receipt.ID
			}
		}(i)
	}
	wg.Wait()
	close(seen)

	unique := make(map[models.RecordID]bool)
	for id := range seen {
		s.False(unique[id], "id %d issued twice", id)
		unique[id] = true
	}
	s.Len(unique, goroutines)
	for i := 1; i <= goroutines; i++ {
		s.True(unique[models.RecordID(i)], "id space has a gap at %d", i)
	}

	count, err := s.ledger.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(goroutines, count)

	ids, err := s.ledger.AllIDs(s.ctx)
	s.Require().NoError(err)
	s.Len(ids, count)
}
