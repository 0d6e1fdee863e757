package release

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"proslots/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

type mockDeadJobLister struct {
	DeadJobsFunc func(ctx context.Context, limit int) ([]Job, error)
}

func (m *mockDeadJobLister) DeadJobs(ctx context.Context, limit int) ([]Job, error) {
	return m.DeadJobsFunc(ctx, limit)
}

func TestHandler_ListDead(t *testing.T) {
	runAt := time.Date(2025, 6, 2, 4, 30, 0, 0, time.UTC)

	tests := []struct {
		name       string
		query      string
		jobs       []Job
		err        error
		wantStatus int
		wantLimit  int
		wantCount  int
	}{
		{
			name:       "default limit",
			jobs:       []Job{{BookingID: "b1", RunAt: runAt, Attempts: 5, LastError: "timeout"}},
			wantStatus: http.StatusOK,
			wantLimit:  20,
			wantCount:  1,
		},
		{
			name:       "explicit limit",
			query:      "?limit=5",
			jobs:       []Job{},
			wantStatus: http.StatusOK,
			wantLimit:  5,
		},
		{
			name:       "limit capped",
			query:      "?limit=1000",
			jobs:       []Job{},
			wantStatus: http.StatusOK,
			wantLimit:  100,
		},
		{
			name:       "bad limit",
			query:      "?limit=abc",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "queue failure",
			err:        errors.New("redis: connection refused"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotLimit int
			lister := &mockDeadJobLister{
				DeadJobsFunc: func(ctx context.Context, limit int) ([]Job, error) {
					gotLimit = limit
					return tt.jobs, tt.err
				},
			}

			router := httprouter.New()
			NewHandler(lister, logger.Discard()).RegisterRoutes(router)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/releases/dead"+tt.query, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			if gotLimit != tt.wantLimit {
				t.Errorf("limit = %d, want %d", gotLimit, tt.wantLimit)
			}

			var body struct {
				Data  []Job `json:"data"`
				Count int   `json:"count"`
				Limit int   `json:"limit"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body.Count != tt.wantCount || len(body.Data) != tt.wantCount {
				t.Errorf("count = %d, data = %v, want %d", body.Count, body.Data, tt.wantCount)
			}
			if tt.wantCount > 0 && body.Data[0].LastError != "timeout" {
				t.Errorf("data = %+v", body.Data)
			}
		})
	}
}
