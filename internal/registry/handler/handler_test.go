package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"visitid/internal/geofence"
	"visitid/internal/platform/middleware"
	"visitid/internal/registry/gateway"
	"visitid/internal/registry/models"
	dErrors "visitid/pkg/domain-errors"
)

type stubService struct {
	submitFn    func(ctx context.Context, sessionID string, fields models.RegistrationFields) (models.Receipt, error)
	myRecordFn  func(ctx context.Context, owner models.OwnerAddress) (*models.IdentityRecord, error)
	dashboardFn func(ctx context.Context, limit int) ([]gateway.DashboardEntry, error)
	statsFn     func(ctx context.Context) (geofence.Stats, error)
}

func (s *stubService) SubmitRegistration(ctx context.Context, sessionID string, fields models.RegistrationFields) (models.Receipt, error) {
	return s.submitFn(ctx, sessionID, fields)
}

func (s *stubService) FetchMyRecord(ctx context.Context, owner models.OwnerAddress) (*models.IdentityRecord, error) {
	return s.myRecordFn(ctx, owner)
}

func (s *stubService) FetchDashboard(ctx context.Context, limit int) ([]gateway.DashboardEntry, error) {
	return s.dashboardFn(ctx, limit)
}

func (s *stubService) Stats(ctx context.Context) (geofence.Stats, error) {
	if s.statsFn == nil {
		return geofence.Stats{}, nil
	}
	return s.statsFn(ctx)
}

type RegistryHandlerSuite struct {
	suite.Suite
	logger *slog.Logger
}

func TestRegistryHandlerSuite(t *testing.T) {
	suite.Run(t, new(RegistryHandlerSuite))
}

func (s *RegistryHandlerSuite) SetupSuite() {
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (s *RegistryHandlerSuite) newHandler(svc Service) *Handler {
	return New(svc, s.logger, nil, nil)
}

func withSession(req *http.Request, owner, sessionID string) *http.Request {
	ctx := context.WithValue(req.Context(), middleware.ContextKeyOwner, owner)
	ctx = context.WithValue(ctx, middleware.ContextKeySessionID, sessionID)
	return req.WithContext(ctx)
}

func (s *RegistryHandlerSuite) TestRegister() {
	svc := &stubService{
		submitFn: func(_ context.Context, sessionID string, fields models.RegistrationFields) (models.Receipt, error) {
			s.Equal("session-1", sessionID)
			s.Equal("Alice", fields.Name)
			return models.Receipt{
				ID:         1,
				Owner:      "0xalice",
				Commitment: "abc123",
				IssuedAt:   time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
			}, nil
		},
	}
	handler := s.newHandler(svc)

	body, err := json.Marshal(models.RegistrationFields{
		Name:           "Alice",
		DocumentNumber: "AB123456789",
		Contact:        "+1-555-0123",
	})
	s.Require().NoError(err)

	req := withSession(httptest.NewRequest(http.MethodPost, "/registry/register", bytes.NewReader(body)), "0xalice", "session-1")
	w := httptest.NewRecorder()
	handler.handleRegister(w, req)

	s.Equal(http.StatusCreated, w.Code)
	var receipt models.Receipt
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &receipt))
	s.Equal(models.RecordID(1), receipt.ID)
	s.Equal("abc123", receipt.Commitment)
}

func (s *RegistryHandlerSuite) TestRegister_InvalidBody() {
	handler := s.newHandler(&stubService{})

	req := withSession(httptest.NewRequest(http.MethodPost, "/registry/register", bytes.NewReader([]byte("{not json"))), "0xalice", "session-1")
	w := httptest.NewRecorder()
	handler.handleRegister(w, req)

	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *RegistryHandlerSuite) TestRegister_ErrorStatusMapping() {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"already registered", dErrors.New(dErrors.CodeAlreadyRegistered, "this identity is already registered"), http.StatusConflict, "already_registered"},
		{"in flight", dErrors.New(dErrors.CodeConflict, "a registration is already in flight for this session"), http.StatusConflict, "conflict"},
		{"cancelled", dErrors.New(dErrors.CodeUserCancelled, "registration cancelled before submission"), 499, "user_cancelled"},
		{"no provider", dErrors.New(dErrors.CodeProviderUnavailable, "no signing provider configured"), http.StatusServiceUnavailable, "provider_unavailable"},
		{"transport failure", dErrors.Wrap(errors.New("broken pipe"), dErrors.CodeNetwork, "ledger unavailable"), http.StatusServiceUnavailable, "network"},
		{"validation", dErrors.New(dErrors.CodeValidation, "name is required"), http.StatusBadRequest, "validation"},
		{"internal detail hidden", dErrors.New(dErrors.CodeInternal, "pq: connection refused"), http.StatusInternalServerError, "internal"},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			svc := &stubService{
				submitFn: func(context.Context, string, models.RegistrationFields) (models.Receipt, error) {
					return models.Receipt{}, tc.err
				},
			}
			handler := s.newHandler(svc)

			body, err := json.Marshal(models.RegistrationFields{Name: "Alice", DocumentNumber: "A1", Contact: "c"})
			s.Require().NoError(err)

			req := withSession(httptest.NewRequest(http.MethodPost, "/registry/register", bytes.NewReader(body)), "0xalice", "session-1")
			w := httptest.NewRecorder()
			handler.handleRegister(w, req)

			s.Equal(tc.wantStatus, w.Code)
			var resp map[string]string
			s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
			s.Equal(tc.wantCode, resp["error"])
		})
	}
}

func (s *RegistryHandlerSuite) TestMyRecord() {
	svc := &stubService{
		myRecordFn: func(_ context.Context, owner models.OwnerAddress) (*models.IdentityRecord, error) {
			s.Equal(models.OwnerAddress("0xalice"), owner)
			return &models.IdentityRecord{ID: 1, Owner: owner, Name: "Alice", IsActive: true}, nil
		},
	}
	handler := s.newHandler(svc)

	req := withSession(httptest.NewRequest(http.MethodGet, "/registry/me", nil), "0xalice", "session-1")
	w := httptest.NewRecorder()
	handler.handleMyRecord(w, req)

	s.Equal(http.StatusOK, w.Code)
	var record models.IdentityRecord
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &record))
	s.Equal("Alice", record.Name)
	s.True(record.IsActive)
}

func (s *RegistryHandlerSuite) TestMyRecord_NotRegistered() {
	svc := &stubService{
		myRecordFn: func(context.Context, models.OwnerAddress) (*models.IdentityRecord, error) {
			return nil, nil
		},
	}
	handler := s.newHandler(svc)

	req := withSession(httptest.NewRequest(http.MethodGet, "/registry/me", nil), "0xalice", "session-1")
	w := httptest.NewRecorder()
	handler.handleMyRecord(w, req)

	s.Equal(http.StatusNoContent, w.Code)
	s.Empty(w.Body.Bytes())
}

func (s *RegistryHandlerSuite) TestDashboard() {
	svc := &stubService{
		dashboardFn: func(_ context.Context, limit int) ([]gateway.DashboardEntry, error) {
			s.Equal(5, limit)
			return []gateway.DashboardEntry{
				{ID: "1", Name: "Alice", Active: true},
				{ID: "M1", Name: "Alice Johnson", Active: true, Demo: true},
			}, nil
		},
		statsFn: func(context.Context) (geofence.Stats, error) {
			return geofence.Stats{Total: 4, Safe: 3, Danger: 1, Active: 4}, nil
		},
	}
	handler := s.newHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/registry/dashboard?limit=5", nil)
	w := httptest.NewRecorder()
	handler.handleDashboard(w, req)

	s.Equal(http.StatusOK, w.Code)
	var resp struct {
		Entries []gateway.DashboardEntry `json:"entries"`
		Stats   geofence.Stats           `json:"stats"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Len(resp.Entries, 2)
	s.Equal("Alice Johnson", resp.Entries[1].Name)
	s.Equal(4, resp.Stats.Total)
}

func (s *RegistryHandlerSuite) TestDashboard_BadLimit() {
	handler := s.newHandler(&stubService{})

	req := httptest.NewRequest(http.MethodGet, "/registry/dashboard?limit=zero", nil)
	w := httptest.NewRecorder()
	handler.handleDashboard(w, req)

	s.Equal(http.StatusBadRequest, w.Code)
}
