package release

import (
	"context"
	"net/http"

	httputil "proslots/pkg/http"
	"proslots/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

// DeadJobLister lists release jobs that exhausted their retries.
type DeadJobLister interface {
	DeadJobs(ctx context.Context, limit int) ([]Job, error)
}

type Handler struct {
	jobs DeadJobLister
	log  *logger.Logger
}

func NewHandler(jobs DeadJobLister, log *logger.Logger) *Handler {
	return &Handler{
		jobs: jobs,
		log:  log,
	}
}

func (h *Handler) ListDead(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, err := httputil.ExtractLimit(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	jobs, err := h.jobs.DeadJobs(r.Context(), limit)
	if err != nil {
		h.log.Error("Failed to list dead release jobs", "error", err)
		h.writeError(w, err)
		return
	}

	if err := httputil.WriteList(w, jobs, len(jobs), limit); err != nil {
		h.log.Error("failed to write list response", "handler", "ListDead", "operation", "WriteList", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", "ListDead", "operation", "WriteError", "error", writeErr)
	}
}

func (h *Handler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/releases/dead", h.ListDead)
}
