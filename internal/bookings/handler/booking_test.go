package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "proslots/pkg/errors"
	"proslots/pkg/logger"
	"proslots/pkg/model"

	"github.com/julienschmidt/httprouter"
)

const testBookingID = "665f1c2e8b3a4d0012a3b4c6"

type mockBookingService struct {
	createFunc       func(ctx context.Context, booking *model.Booking) error
	getByIDFunc      func(ctx context.Context, id string) (*model.Booking, error)
	updateStatusFunc func(ctx context.Context, id string, status model.BookingStatus) (*model.Booking, error)
}

func (m *mockBookingService) Create(ctx context.Context, booking *model.Booking) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, booking)
	}
	booking.ID = testBookingID
	return nil
}

func (m *mockBookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return &model.Booking{ID: id}, nil
}

func (m *mockBookingService) UpdateStatus(ctx context.Context, id string, status model.BookingStatus) (*model.Booking, error) {
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(ctx, id, status)
	}
	return &model.Booking{ID: id, Status: status}, nil
}

func (m *mockBookingService) OnBookingAccepted(ctx context.Context, id string) error  { return nil }
func (m *mockBookingService) OnBookingRejected(ctx context.Context, id string) error  { return nil }
func (m *mockBookingService) OnBookingCancelled(ctx context.Context, id string) error { return nil }
func (m *mockBookingService) OnBookingCompleted(ctx context.Context, id string) error { return nil }

func newRouter(svc *mockBookingService) *httprouter.Router {
	router := httprouter.New()
	NewBookingHandler(svc, logger.Discard()).RegisterRoutes(router)
	return router
}

func TestCreate_Success(t *testing.T) {
	var got *model.Booking
	svc := &mockBookingService{createFunc: func(ctx context.Context, booking *model.Booking) error {
		got = booking
		booking.ID = testBookingID
		return nil
	}}

	body := `{"pro_id":"665f1c2e8b3a4d0012a3b4c5","user_id":"user-a","preferred_date":"2025-06-02","preferred_time":[{"start_time":"09:00","end_time":"10:00"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(body))
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if got == nil || len(got.PreferredTime) != 1 || got.PreferredTime[0].EndTime != "10:00" {
		t.Fatalf("service got %+v", got)
	}

	var resp struct {
		Data model.Booking `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if resp.Data.ID != testBookingID {
		t.Errorf("id = %q", resp.Data.ID)
	}
}

func TestCreate_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		svcErr     error
		wantStatus int
	}{
		{"empty body", "", nil, http.StatusBadRequest},
		{"malformed json", "{", nil, http.StatusBadRequest},
		{"unknown field", `{"slot":"x"}`, nil, http.StatusBadRequest},
		{"slot taken", `{"pro_id":"p"}`, apperrors.Conflict("Requested slot is already booked"), http.StatusConflict},
		{"invalid", `{"pro_id":"p"}`, apperrors.Validation("Booking validation failed", nil), http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockBookingService{createFunc: func(ctx context.Context, booking *model.Booking) error {
				return tt.svcErr
			}}

			req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			newRouter(svc).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestGetByID(t *testing.T) {
	svc := &mockBookingService{getByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
		if id != testBookingID {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		return &model.Booking{ID: id, Status: model.BookingPending}, nil
	}}
	router := newRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/bookings/id/"+testBookingID, nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/bookings/id/other", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestUpdateStatus(t *testing.T) {
	var gotStatus model.BookingStatus
	svc := &mockBookingService{updateStatusFunc: func(ctx context.Context, id string, status model.BookingStatus) (*model.Booking, error) {
		gotStatus = status
		if status == model.BookingCompleted {
			return nil, apperrors.Conflict("Booking cannot move from pending to completed")
		}
		return &model.Booking{ID: id, Status: status}, nil
	}}
	router := newRouter(svc)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/bookings/id/"+testBookingID+"/status", strings.NewReader(`{"status":"cancelled"}`))
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if gotStatus != model.BookingCancelled {
		t.Errorf("service got status %q", gotStatus)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPatch, "/api/v1/bookings/id/"+testBookingID+"/status", strings.NewReader(`{"status":"completed"}`))
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	router := httprouter.New()
	NewHealthHandler(nil, nil, logger.Discard()).RegisterRoutes(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
