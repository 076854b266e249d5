package httphandler

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ericfisherdev/passpanel/internal/application"
	"github.com/ericfisherdev/passpanel/internal/domain/model"
	"github.com/ericfisherdev/passpanel/internal/domain/port/driven"
)

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	creds        *application.CredentialService
	gate         *application.AccessGate
	health       *application.HealthService
	cookieSecure bool
	logger       *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	creds *application.CredentialService,
	gate *application.AccessGate,
	health *application.HealthService,
	cookieSecure bool,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		creds:        creds,
		gate:         gate,
		health:       health,
		cookieSecure: cookieSecure,
		logger:       logger,
	}
}

// RegisterAPIRoutes registers all /api/v1 routes on mux. Everything except
// login and health requires a session.
func RegisterAPIRoutes(mux *http.ServeMux, h *Handler) {
	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.HandleFunc("POST /api/v1/login", h.Login)
	mux.HandleFunc("POST /api/v1/logout", h.Logout)

	auth := func(fn http.HandlerFunc) http.Handler {
		return requireSession(h.gate, fn)
	}
	mux.Handle("GET /api/v1/credentials", auth(h.ListCredentials))
	mux.Handle("POST /api/v1/credentials", auth(h.CreateCredential))
	mux.Handle("GET /api/v1/credentials/export", auth(h.ExportCredentials))
	mux.Handle("GET /api/v1/credentials/{id}", auth(h.GetCredential))
	mux.Handle("PATCH /api/v1/credentials/{id}", auth(h.UpdateCredential))
	mux.Handle("DELETE /api/v1/credentials/{id}", auth(h.DeleteCredential))
}

// NewServeMux creates an http.Handler with the API routes registered and
// wrapped with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	RegisterAPIRoutes(mux, h)
	return ApplyMiddleware(mux, logger)
}

// Login exchanges the shared secret for a session. The token is set as a
// cookie and also returned in the body for clients that send it as a bearer token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := h.gate.Login(r.Context(), req.Secret)
	if errors.Is(err, application.ErrInvalidSecret) {
		writeError(w, http.StatusUnauthorized, "invalid secret")
		return
	}
	if err != nil {
		h.logger.Error("failed to open session", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     application.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.gate.TTL().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.cookieSecure,
	})
	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresIn: int(h.gate.TTL().Seconds()),
	})
}

// Logout ends the caller's session and clears the cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.gate.Logout(r.Context(), sessionToken(r)); err != nil {
		h.logger.Error("failed to close session", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     application.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.cookieSecure,
	})
	w.WriteHeader(http.StatusNoContent)
}

// ListCredentials searches credentials using the query parameters. With no
// parameters it lists every credential.
func (h *Handler) ListCredentials(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	criteria := model.SearchCriteria{
		Term:            q.Get("q"),
		WebsiteName:     q.Get("website_name"),
		Username:        q.Get("username"),
		SupervisedEmail: q.Get("supervised_email"),
		SupervisedPhone: q.Get("supervised_phone"),
	}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, ok := model.ParseStatus(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid status: expected Active, Deactivated or On Hold")
			return
		}
		criteria.Status = status
	}

	var (
		creds []model.Credential
		err   error
	)
	if criteria.IsEmpty() {
		creds, err = h.creds.ListAll(r.Context())
	} else {
		creds, err = h.creds.Search(r.Context(), criteria)
	}
	if err != nil {
		h.writeServiceError(w, err, "failed to list credentials")
		return
	}

	resp := make([]CredentialResponse, 0, len(creds))
	for _, c := range creds {
		resp = append(resp, toCredentialResponse(c))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetCredential returns a single credential by ID.
func (h *Handler) GetCredential(w http.ResponseWriter, r *http.Request) {
	id, ok := credentialID(w, r)
	if !ok {
		return
	}

	cred, err := h.creds.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "failed to get credential", "id", id)
		return
	}

	writeJSON(w, http.StatusOK, toCredentialResponse(cred))
}

// CreateCredential stores a new credential.
func (h *Handler) CreateCredential(w http.ResponseWriter, r *http.Request) {
	var req CredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.creds.Create(r.Context(), req.toModel())
	if err != nil {
		h.writeServiceError(w, err, "failed to create credential")
		return
	}

	h.logger.Info("credential created", "id", created.ID)
	writeJSON(w, http.StatusCreated, toCredentialResponse(created))
}

// UpdateCredential applies a partial update. The body is a JSON object keyed
// by column name; absent keys are left unchanged.
func (h *Handler) UpdateCredential(w http.ResponseWriter, r *http.Request) {
	id, ok := credentialID(w, r)
	if !ok {
		return
	}

	var body map[string]string
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: expected an object of string values")
		return
	}

	changes := make(model.Changes, len(body))
	for key, value := range body {
		f, ok := model.ParseField(key)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown field: "+key)
			return
		}
		changes[f] = value
	}

	if err := h.creds.Update(r.Context(), id, changes); err != nil {
		h.writeServiceError(w, err, "failed to update credential", "id", id)
		return
	}

	cred, err := h.creds.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "failed to reload credential", "id", id)
		return
	}
	writeJSON(w, http.StatusOK, toCredentialResponse(cred))
}

// DeleteCredential removes a credential by ID.
func (h *Handler) DeleteCredential(w http.ResponseWriter, r *http.Request) {
	id, ok := credentialID(w, r)
	if !ok {
		return
	}

	if err := h.creds.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, err, "failed to delete credential", "id", id)
		return
	}

	h.logger.Info("credential deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

// ExportCredentials streams every credential as a CSV attachment.
func (h *Handler) ExportCredentials(w http.ResponseWriter, r *http.Request) {
	// Buffer so a mid-export failure can still produce a 500.
	var buf bytes.Buffer
	if err := h.creds.Export(r.Context(), &buf); err != nil {
		h.writeServiceError(w, err, "failed to export credentials")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="data.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// Health reports whether the database and session store are reachable. It
// answers 503 when any component is down so orchestrators stop routing traffic.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	report := h.health.Check(r.Context())

	resp := HealthResponse{
		Status:     "ok",
		Time:       time.Now().UTC().Format(time.RFC3339),
		Components: make(map[string]string, len(report.Components)),
	}
	for _, c := range report.Components {
		state := "ok"
		if !c.Healthy {
			state = "unreachable"
		}
		resp.Components[c.Name] = state
	}

	status := http.StatusOK
	if !report.Healthy {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps service errors to responses. Unexpected errors are
// logged with logArgs and reported as a generic 500.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error, msg string, logArgs ...any) {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		writeValidationError(w, verr)
	case errors.Is(err, driven.ErrCredentialNotFound):
		writeError(w, http.StatusNotFound, "credential not found")
	default:
		h.logger.Error(msg, append(logArgs, "error", err)...)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// credentialID parses the {id} path value, writing a 400 when it is not a
// positive integer.
func credentialID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid credential id")
		return 0, false
	}
	return id, true
}
