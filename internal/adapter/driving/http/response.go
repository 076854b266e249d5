package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/passpanel/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeValidationError writes a 400 listing each rejected field by column name.
func writeValidationError(w http.ResponseWriter, verr *model.ValidationError) {
	fields := make(map[string]string, len(verr.Problems))
	for _, p := range verr.Problems {
		if p.Field.Valid() {
			fields[p.Field.Column()] = p.Message
		}
	}
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Error:  verr.Error(),
		Fields: fields,
	})
}

// errorResponse is the standard error response body. Fields is set only for
// validation failures.
type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// CredentialResponse is the JSON representation of a stored credential.
type CredentialResponse struct {
	ID              int64  `json:"id"`
	WebsiteName     string `json:"website_name"`
	WebsiteLink     string `json:"website_link"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	SupervisedEmail string `json:"supervised_email"`
	SupervisedPhone string `json:"supervised_phone"`
	AuthReference   string `json:"auth_reference"`
	Status          string `json:"status"`
	Description     string `json:"description"`
	CreatedAt       string `json:"created_at"`
}

// CredentialRequest is the JSON body for the create endpoint. Status defaults
// to Active when omitted.
type CredentialRequest struct {
	WebsiteName     string `json:"website_name"`
	WebsiteLink     string `json:"website_link"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	SupervisedEmail string `json:"supervised_email"`
	SupervisedPhone string `json:"supervised_phone"`
	AuthReference   string `json:"auth_reference"`
	Status          string `json:"status"`
	Description     string `json:"description"`
}

// LoginRequest is the JSON body for the login endpoint.
type LoginRequest struct {
	Secret string `json:"secret"`
}

// LoginResponse carries the new session token and its idle lifetime in seconds.
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status     string            `json:"status"`
	Time       string            `json:"time"`
	Components map[string]string `json:"components"`
}

func (req CredentialRequest) toModel() model.Credential {
	return model.Credential{
		WebsiteName:     req.WebsiteName,
		WebsiteLink:     req.WebsiteLink,
		Username:        req.Username,
		Password:        req.Password,
		SupervisedEmail: req.SupervisedEmail,
		SupervisedPhone: req.SupervisedPhone,
		AuthReference:   req.AuthReference,
		Status:          model.Status(req.Status),
		Description:     req.Description,
	}
}

// toCredentialResponse converts a domain Credential to its JSON response representation.
func toCredentialResponse(c model.Credential) CredentialResponse {
	return CredentialResponse{
		ID:              c.ID,
		WebsiteName:     c.WebsiteName,
		WebsiteLink:     c.WebsiteLink,
		Username:        c.Username,
		Password:        c.Password,
		SupervisedEmail: c.SupervisedEmail,
		SupervisedPhone: c.SupervisedPhone,
		AuthReference:   c.AuthReference,
		Status:          string(c.Status),
		Description:     c.Description,
		CreatedAt:       c.CreatedAt.UTC().Format(time.RFC3339),
	}
}
