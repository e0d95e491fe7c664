package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"anonid/internal/audit"
	"anonid/internal/ratelimit/models"
	"anonid/internal/resolver"
	id "anonid/pkg/domain"
	dErrors "anonid/pkg/domain-errors"
	"anonid/pkg/platform/httputil"
	"anonid/pkg/platform/middleware/auth"
	"anonid/pkg/requestcontext"
)

const maxAuditLimit = 100

// Service defines the interface for identity resolution operations.
type Service interface {
	ResolveIdentity(ctx context.Context, req resolver.Request) (*resolver.Result, error)
	GetAuditLog(limit int) []audit.Entry
	CheckQuota(ctx context.Context, tenantID id.TenantID, userID id.UserID) (*models.QuotaResult, error)
	ResetQuota(ctx context.Context, tenantID id.TenantID, userID id.UserID) error
	ReportSignal(ctx context.Context, sig resolver.Signal) error
}

// Handler wires identity resolution endpoints to the resolver service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a resolver handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts caller endpoints. The router must authenticate callers.
func (h *Handler) Register(r chi.Router) {
	r.Post("/identities/resolve", h.HandleResolve)
	r.Get("/audit", h.HandleAuditLog)
	r.Get("/quota/{userID}", h.HandleGetQuota)
	r.Post("/security-events", h.HandleReportSignal)
}

// RegisterAdmin mounts operator endpoints. The router must enforce the admin
// token.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Delete("/tenants/{tenantID}/quota/{userID}", h.HandleResetQuota)
}

// HandleResolve handles POST /identities/resolve requests.
func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	tenantID, userID, ok := auth.Caller(ctx)
	if !ok {
		httputil.WriteLocalizedError(w, r, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[ResolveRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	segment, err := id.NewSegment(req.Segment.Brand, req.Segment.Model)
	if err != nil {
		httputil.WriteLocalizedError(w, r, err)
		return
	}

	result, err := h.service.ResolveIdentity(ctx, resolver.Request{
		VIN:      req.VIN,
		TenantID: tenantID,
		UserID:   userID,
		Segment:  segment,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "identity resolution refused",
			"request_id", requestID,
			"tenant_id", tenantID.String(),
			"user_id", userID.String(),
			"code", string(dErrors.CodeOf(err)),
		)
		httputil.WriteLocalizedError(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "identity resolved",
		"request_id", requestID,
		"tenant_id", tenantID.String(),
		"user_id", userID.String(),
		"window", result.Window,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromResult(result))
}

// HandleAuditLog handles GET /audit requests. Callers only see entries of
// their own tenant.
func (h *Handler) HandleAuditLog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, _, ok := auth.Caller(ctx)
	if !ok {
		httputil.WriteLocalizedError(w, r, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	limit := maxAuditLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxAuditLimit {
			httputil.WriteLocalizedError(w, r, dErrors.New(dErrors.CodeBadRequest, "limit must be between 1 and 100"))
			return
		}
		limit = n
	}

	entries := make([]audit.Entry, 0, limit)
	for _, e := range h.service.GetAuditLog(0) {
		if e.TenantID != tenantID {
			continue
		}
		entries = append(entries, e)
		if len(entries) == limit {
			break
		}
	}
	httputil.WriteJSON(w, http.StatusOK, AuditLogResponse{Entries: entries, Count: len(entries)})
}

// HandleGetQuota handles GET /quota/{userID} requests. Callers may only read
// their own quota within their tenant.
func (h *Handler) HandleGetQuota(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, caller, ok := auth.Caller(ctx)
	if !ok {
		httputil.WriteLocalizedError(w, r, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteLocalizedError(w, r, err)
		return
	}
	if userID != caller {
		httputil.WriteLocalizedError(w, r, dErrors.New(dErrors.CodeNotFound, "quota not found"))
		return
	}

	res, err := h.service.CheckQuota(ctx, tenantID, userID)
	if err != nil {
		httputil.WriteLocalizedError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res.ToResponse(userID.String()))
}

// HandleResetQuota handles DELETE /admin/tenants/{tenantID}/quota/{userID}
// requests.
func (h *Handler) HandleResetQuota(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, err := id.ParseTenantID(chi.URLParam(r, "tenantID"))
	if err != nil {
		httputil.WriteLocalizedError(w, r, err)
		return
	}
	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteLocalizedError(w, r, err)
		return
	}
	if err := h.service.ResetQuota(ctx, tenantID, userID); err != nil {
		httputil.WriteLocalizedError(w, r, err)
		return
	}
	h.logger.InfoContext(ctx, "quota reset by operator",
		"request_id", requestcontext.RequestID(ctx),
		"tenant_id", tenantID.String(),
		"user_id", userID.String(),
	)
	w.WriteHeader(http.StatusNoContent)
}

// HandleReportSignal handles POST /security-events requests.
func (h *Handler) HandleReportSignal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	if _, _, ok := auth.Caller(ctx); !ok {
		httputil.WriteLocalizedError(w, r, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[SignalRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.service.ReportSignal(ctx, req.ToSignal()); err != nil {
		httputil.WriteLocalizedError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
