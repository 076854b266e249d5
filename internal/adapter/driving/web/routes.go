package web

import (
	"io/fs"
	"net/http"
)

// RegisterRoutes registers all web GUI routes on the provided mux.
// Static assets are served from the embedded filesystem at /static/*. Every
// page except the login form requires a session, and every POST must carry
// the CSRF token.
func RegisterRoutes(mux *http.ServeMux, h *Handler) {
	// Static assets (embedded via go:embed).
	staticFS, _ := fs.Sub(StaticFS, "static")
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticFS)))

	mux.HandleFunc("GET /login", h.LoginForm)
	mux.Handle("POST /login", requireCSRF(http.HandlerFunc(h.Login)))
	mux.Handle("POST /logout", requireCSRF(http.HandlerFunc(h.Logout)))

	page := func(fn http.HandlerFunc) http.Handler {
		return h.requireLogin(fn)
	}
	form := func(fn http.HandlerFunc) http.Handler {
		return h.requireLogin(requireCSRF(fn))
	}

	mux.Handle("GET /{$}", page(h.Index))
	mux.Handle("GET /search", page(h.Search))
	mux.Handle("GET /credentials/new", page(h.NewCredential))
	mux.Handle("POST /credentials", form(h.CreateCredential))
	mux.Handle("GET /credentials/{id}/edit", page(h.EditCredential))
	mux.Handle("POST /credentials/{id}", form(h.UpdateCredential))
	mux.Handle("POST /credentials/{id}/delete", form(h.DeleteCredential))
	mux.Handle("GET /table", page(h.Table))
	mux.Handle("POST /table", form(h.SaveTable))
	mux.Handle("GET /export.csv", page(h.ExportCSV))
}

// requireLogin redirects requests without a live session to the login form.
func (h *Handler) requireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.gate.Authenticated(r.Context(), sessionCookie(r)) {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireCSRF rejects state-changing requests whose token does not match the cookie.
func requireCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !validateCSRF(r) {
			http.Error(w, "invalid CSRF token", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
