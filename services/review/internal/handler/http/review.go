package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/moroccoguide/platform/pkg/errors"
	"github.com/moroccoguide/platform/pkg/httputil"
	"github.com/moroccoguide/platform/pkg/logger"
	"github.com/moroccoguide/platform/pkg/middleware"
	"github.com/moroccoguide/platform/pkg/pagination"
	"github.com/moroccoguide/platform/pkg/validator"
	"github.com/moroccoguide/platform/services/review/internal/domain"
	"github.com/moroccoguide/platform/services/review/internal/idempotency"
	"github.com/moroccoguide/platform/services/review/internal/service"
)

// Idempotency-Key on POST .../reviews replays the first outcome to retries.
const (
	IdempotencyKeyHeader      = "Idempotency-Key"
	IdempotentReplayedHeader  = "Idempotent-Replayed"
	maxIdempotencyKeyLength   = 128
	maxSubmitRequestBodyBytes = 1 << 20
)

// IdempotencyStore remembers the outcome of keyed submissions.
type IdempotencyStore interface {
	Begin(ctx context.Context, userID, key, fingerprint string) (*idempotency.Response, error)
	Complete(ctx context.Context, userID, key, fingerprint string, resp idempotency.Response) error
	Release(ctx context.Context, userID, key string) error
}

// ReviewHandler handles HTTP requests for review endpoints.
type ReviewHandler struct {
	service     *service.ReviewService
	idempotency IdempotencyStore
	logger      *slog.Logger
}

// NewReviewHandler creates a new review HTTP handler. idem may be nil, in
// which case Idempotency-Key headers are ignored.
func NewReviewHandler(svc *service.ReviewService, idem IdempotencyStore, logger *slog.Logger) *ReviewHandler {
	return &ReviewHandler{
		service:     svc,
		idempotency: idem,
		logger:      logger,
	}
}

// --- Request DTOs ---

// SubmitReviewRequest is the JSON request body for submitting a review.
// Rating bounds are checked by the service so the error code stays INVALID_INPUT.
type SubmitReviewRequest struct {
	Rating  int            `json:"rating"`
	Title   string         `json:"title" validate:"max=200"`
	Content string         `json:"content" validate:"max=5000"`
	Images  []string       `json:"images" validate:"max=10,dive,url"`
	User    *AuthorRequest `json:"user,omitempty"`
}

// AuthorRequest fills profile fields missing from the access token.
type AuthorRequest struct {
	Name    string `json:"name" validate:"max=100"`
	Avatar  string `json:"avatar" validate:"omitempty,url"`
	Country string `json:"country" validate:"omitempty,max=64"`
}

// HelpfulResponse is returned after a helpful vote.
type HelpfulResponse struct {
	ID      string `json:"id"`
	Helpful int    `json:"helpful"`
}

// --- Handlers ---

// ListReviews handles GET /api/v1/{targetType}s/{targetId}/reviews
func (h *ReviewHandler) ListReviews(targetType domain.TargetType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target := targetFromRequest(r, targetType)

		limit, err := pagination.LimitFromRequest(r)
		if err != nil {
			httputil.WriteErrorCode(w, r, http.StatusBadRequest, apperrors.CodeInvalidInput, err.Error())
			return
		}

		reviews, err := h.service.ListReviews(r.Context(), target, limit)
		if err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}

		httputil.WriteData(w, http.StatusOK, reviews)
	}
}

// GetReviewStats handles GET /api/v1/{targetType}s/{targetId}/reviews/stats
func (h *ReviewHandler) GetReviewStats(targetType domain.TargetType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := h.service.GetReviewStats(r.Context(), targetFromRequest(r, targetType))
		if err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}

		httputil.WriteData(w, http.StatusOK, stats)
	}
}

// SubmitReview handles POST /api/v1/{targetType}s/{targetId}/reviews
func (h *ReviewHandler) SubmitReview(targetType domain.TargetType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := middleware.ClaimsFromContext(r.Context())
		if claims == nil {
			httputil.WriteErrorCode(w, r, http.StatusUnauthorized, apperrors.CodeUnauthorized, "authentication required")
			return
		}

		raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSubmitRequestBodyBytes))
		if err != nil {
			httputil.WriteValidationError(w, fmt.Errorf("read request body: %w", err))
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(raw))

		var req SubmitReviewRequest
		if err := validator.DecodeAndValidate(r, &req); err != nil {
			httputil.WriteValidationError(w, err)
			return
		}

		key := r.Header.Get(IdempotencyKeyHeader)
		if len(key) > maxIdempotencyKeyLength {
			httputil.WriteErrorCode(w, r, http.StatusBadRequest, apperrors.CodeInvalidInput, "Idempotency-Key is too long")
			return
		}

		target := targetFromRequest(r, targetType)
		fingerprint := idempotency.Fingerprint(target.String(), raw)

		useKey := key != "" && h.idempotency != nil
		if useKey {
			replay, err := h.idempotency.Begin(r.Context(), claims.UserID, key, fingerprint)
			switch {
			case errors.Is(err, idempotency.ErrInFlight):
				httputil.WriteErrorCode(w, r, http.StatusConflict, apperrors.CodeConflict, err.Error())
				return
			case errors.Is(err, idempotency.ErrKeyMismatch):
				httputil.WriteErrorCode(w, r, http.StatusUnprocessableEntity, apperrors.CodeIdempotencyKeyMismatch, err.Error())
				return
			case err != nil:
				// Fail open. The window check still rejects real duplicates.
				h.log(r).WarnContext(r.Context(), "idempotency store unavailable, continuing without it",
					slog.String("error", err.Error()),
				)
				useKey = false
			case replay != nil:
				w.Header().Set(IdempotentReplayedHeader, "true")
				writeRaw(w, replay.Status, replay.Body)
				return
			}
		}

		input := &service.SubmitReviewInput{
			Target:  target,
			UserID:  claims.UserID,
			Rating:  req.Rating,
			Title:   req.Title,
			Content: req.Content,
			Images:  req.Images,
			Author:  authorSnapshot(claims, req.User),
		}

		review, err := h.service.SubmitReview(r.Context(), input)
		if err != nil {
			if useKey {
				h.releaseKey(r, claims.UserID, key)
			}
			httputil.WriteError(w, r, err, h.logger)
			return
		}

		body, err := json.Marshal(httputil.Response{Data: review})
		if err != nil {
			httputil.WriteError(w, r, apperrors.Internal(err), h.logger)
			return
		}

		if useKey {
			resp := idempotency.Response{Status: http.StatusCreated, Body: body}
			if err := h.idempotency.Complete(r.Context(), claims.UserID, key, fingerprint, resp); err != nil {
				h.log(r).WarnContext(r.Context(), "failed to store idempotent response",
					slog.String("review_id", review.ID),
					slog.String("error", err.Error()),
				)
				h.releaseKey(r, claims.UserID, key)
			}
		}

		writeRaw(w, http.StatusCreated, body)
	}
}

// GetReview handles GET /api/v1/reviews/{id}
func (h *ReviewHandler) GetReview(w http.ResponseWriter, r *http.Request) {
	review, err := h.service.GetReview(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, review)
}

// DeleteReview handles DELETE /api/v1/reviews/{id}
func (h *ReviewHandler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	err := h.service.DeleteReview(r.Context(), chi.URLParam(r, "id"), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteNoContent(w)
}

// MarkHelpful handles POST /api/v1/reviews/{id}/helpful
func (h *ReviewHandler) MarkHelpful(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	helpful, err := h.service.MarkHelpful(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, HelpfulResponse{ID: id, Helpful: helpful})
}

// ReportReview handles POST /api/v1/reviews/{id}/report
func (h *ReviewHandler) ReportReview(w http.ResponseWriter, r *http.Request) {
	err := h.service.ReportReview(r.Context(), chi.URLParam(r, "id"), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteNoContent(w)
}

// ListMyReviews handles GET /api/v1/users/me/reviews
func (h *ReviewHandler) ListMyReviews(w http.ResponseWriter, r *http.Request) {
	limit, err := pagination.LimitFromRequest(r)
	if err != nil {
		httputil.WriteErrorCode(w, r, http.StatusBadRequest, apperrors.CodeInvalidInput, err.Error())
		return
	}

	reviews, err := h.service.ListUserReviews(r.Context(), middleware.UserIDFromContext(r.Context()), limit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, reviews)
}

func (h *ReviewHandler) releaseKey(r *http.Request, userID, key string) {
	ctx := context.WithoutCancel(r.Context())
	if err := h.idempotency.Release(ctx, userID, key); err != nil {
		h.log(r).WarnContext(ctx, "failed to release idempotency key",
			slog.String("error", err.Error()),
		)
	}
}

func (h *ReviewHandler) log(r *http.Request) *slog.Logger {
	if l := logger.FromContext(r.Context()); l != slog.Default() {
		return l
	}
	return h.logger
}

func targetFromRequest(r *http.Request, targetType domain.TargetType) domain.Target {
	return domain.Target{Type: targetType, ID: chi.URLParam(r, "targetId")}
}

// authorSnapshot prefers token claims and falls back to the profile fields
// sent with the request.
func authorSnapshot(claims *middleware.Claims, req *AuthorRequest) domain.Author {
	author := domain.Author{Name: claims.Name, Avatar: claims.Avatar, Country: claims.Country}
	if req == nil {
		return author
	}
	if author.Name == "" {
		author.Name = req.Name
	}
	if author.Avatar == "" {
		author.Avatar = req.Avatar
	}
	if author.Country == "" {
		author.Country = req.Country
	}
	return author
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
