package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ignite/churn-scorer/internal/auth"
	"github.com/ignite/churn-scorer/internal/datanorm"
	"github.com/ignite/churn-scorer/internal/pkg/httputil"
	"github.com/ignite/churn-scorer/internal/service/analysis"
	"github.com/ignite/churn-scorer/internal/storage"
)

// Runner executes one analysis.
type Runner interface {
	Run(ctx context.Context, req analysis.Request) (*analysis.Result, error)
}

// AnalysisHandler serves the analysis endpoints.
type AnalysisHandler struct {
	runner Runner
}

// NewAnalysisHandler creates a handler over runner.
func NewAnalysisHandler(runner Runner) *AnalysisHandler {
	return &AnalysisHandler{runner: runner}
}

type createAnalysisRequest struct {
	FileName string `json:"fileName"`
}

// HandleCreate analyzes a previously uploaded file of the caller.
//
//	POST /api/analyses {"fileName": "..."}
func (h *AnalysisHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok || id.UserID == "" {
		httputil.Unauthorized(w, "unauthorized")
		return
	}

	var req createAnalysisRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.FileName) == "" {
		httputil.BadRequest(w, "fileName is required")
		return
	}

	res, err := h.runner.Run(r.Context(), analysis.Request{
		OwnerID:    id.UserID,
		OwnerEmail: id.Email,
		FileName:   req.FileName,
	})
	if err != nil {
		writeRunError(w, err)
		return
	}
	httputil.OK(w, res)
}

func writeRunError(w http.ResponseWriter, err error) {
	var verr *datanorm.ValidationError
	switch {
	case errors.As(err, &verr):
		code := "validation_error"
		if errors.Is(err, datanorm.ErrMissingColumns) {
			code = "missing_columns"
		} else if errors.Is(err, datanorm.ErrEmptyFile) {
			code = "empty_file"
		}
		httputil.ErrorWithDetails(w, http.StatusBadRequest, code, verr.Error(), verr.Missing)
	case analysis.IsClientError(err):
		httputil.BadRequest(w, err.Error())
	case errors.Is(err, storage.ErrFileNotFound):
		httputil.NotFound(w, "file not found")
	case errors.Is(err, analysis.ErrRunInProgress):
		httputil.Conflict(w, err.Error())
	default:
		httputil.InternalError(w, err)
	}
}
