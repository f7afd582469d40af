package twofactor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/twofactor/pkg/jwt"
	"github.com/dmitrymomot/twofactor/pkg/logger"
	tf "github.com/dmitrymomot/twofactor/pkg/twofactor"
)

const maxBodyBytes = 1 << 14

// TwoFactor is the service the handlers drive. *twofactor.Service satisfies it.
type TwoFactor interface {
	BeginSetup(ctx context.Context, userID uuid.UUID, label string) (*tf.Setup, error)
	CompleteSetup(ctx context.Context, userID uuid.UUID, secret, token string) ([]string, error)
	VerifyLogin(ctx context.Context, userID uuid.UUID, tokenOrCode string, isBackupCode bool) error
	Disable(ctx context.Context, userID uuid.UUID, password string) error
	RegenerateBackupCodes(ctx context.Context, userID uuid.UUID, token string) ([]string, error)
	Status(ctx context.Context, userID uuid.UUID) (*tf.Status, error)
}

// Handler serves the two-factor JSON API. Every route requires an
// authenticated identity, placed in the context by the auth middleware.
type Handler struct {
	svc         TwoFactor
	auth        func(http.Handler) http.Handler
	middlewares []func(http.Handler) http.Handler
	log         *slog.Logger
}

type Option func(*Handler)

func WithLogger(log *slog.Logger) Option {
	return func(h *Handler) {
		if log != nil {
			h.log = log
		}
	}
}

// WithMiddleware adds middleware in front of the routes, after authentication.
func WithMiddleware(mw ...func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.middlewares = append(h.middlewares, mw...)
	}
}

// NewHandler builds the module. auth is usually jwt.Middleware(svc, Unauthorized).
func NewHandler(svc TwoFactor, auth func(http.Handler) http.Handler, opts ...Option) *Handler {
	h := &Handler{
		svc:  svc,
		auth: auth,
		log:  logger.Discard(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle returns the routes, meant to be mounted at /2fa.
func (h *Handler) Handle() http.Handler {
	r := chi.NewRouter()
	if h.auth != nil {
		r.Use(h.auth)
	}
	r.Use(h.middlewares...)

	r.Post("/setup", h.beginSetup)
	r.Post("/setup/verify", h.completeSetup)
	r.Post("/verify", h.verify)
	r.Post("/disable", h.disable)
	r.Post("/backup-codes", h.regenerateCodes)
	r.Get("/status", h.status)
	return r
}

type setupResponse struct {
	Secret string `json:"secret"`
	URI    string `json:"uri"`
	QRCode string `json:"qr_code"`
}

type completeSetupRequest struct {
	Secret string `json:"secret"`
	Code   string `json:"code"`
}

type verifyRequest struct {
	Code       string `json:"code"`
	BackupCode bool   `json:"backup_code"`
}

type disableRequest struct {
	Password string `json:"password"`
}

type codeRequest struct {
	Code string `json:"code"`
}

type backupCodesResponse struct {
	BackupCodes []string `json:"backup_codes"`
}

type verifyResponse struct {
	Verified bool `json:"verified"`
}

type statusResponse struct {
	Enabled              bool       `json:"enabled"`
	BackupCodesRemaining int        `json:"backup_codes_remaining"`
	EnabledAt            *time.Time `json:"enabled_at,omitempty"`
}

func (h *Handler) beginSetup(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(r)
	if !ok {
		h.fail(w, r, ErrUnauthorized)
		return
	}

	setup, err := h.svc.BeginSetup(r.Context(), id.UserID, id.Label())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.success(w, "setup_started", setupResponse{Secret: setup.Secret, URI: setup.URI, QRCode: setup.QRCode})
}

func (h *Handler) completeSetup(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(r)
	if !ok {
		h.fail(w, r, ErrUnauthorized)
		return
	}
	var req completeSetupRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	codes, err := h.svc.CompleteSetup(r.Context(), id.UserID, req.Secret, req.Code)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.success(w, "two_factor_enabled", backupCodesResponse{BackupCodes: codes})
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(r)
	if !ok {
		h.fail(w, r, ErrUnauthorized)
		return
	}
	var req verifyRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.svc.VerifyLogin(r.Context(), id.UserID, req.Code, req.BackupCode); err != nil {
		h.fail(w, r, err)
		return
	}
	h.success(w, "verified", verifyResponse{Verified: true})
}

func (h *Handler) disable(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(r)
	if !ok {
		h.fail(w, r, ErrUnauthorized)
		return
	}
	var req disableRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.svc.Disable(r.Context(), id.UserID, req.Password); err != nil {
		h.fail(w, r, err)
		return
	}
	h.success(w, "two_factor_disabled", statusResponse{})
}

func (h *Handler) regenerateCodes(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(r)
	if !ok {
		h.fail(w, r, ErrUnauthorized)
		return
	}
	var req codeRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	codes, err := h.svc.RegenerateBackupCodes(r.Context(), id.UserID, req.Code)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.success(w, "backup_codes_regenerated", backupCodesResponse{BackupCodes: codes})
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(r)
	if !ok {
		h.fail(w, r, ErrUnauthorized)
		return
	}

	st, err := h.svc.Status(r.Context(), id.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.success(w, "status", statusResponse{
		Enabled:              st.Enabled,
		BackupCodesRemaining: st.BackupCodesRemaining,
		EnabledAt:            st.EnabledAt,
	})
}

func identity(r *http.Request) (jwt.Identity, bool) {
	id, ok := jwt.IdentityFromContext(r.Context())
	if !ok || id.UserID == uuid.Nil {
		return jwt.Identity{}, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.Join(ErrBadRequest, errors.New("empty body"))
		}
		return errors.Join(ErrBadRequest, err)
	}
	return nil
}
