// Package web implements the HTML GUI driving adapter using templ components.
package web

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/ericfisherdev/passpanel/internal/adapter/driving/web/templates"
	vm "github.com/ericfisherdev/passpanel/internal/adapter/driving/web/viewmodel"
	"github.com/ericfisherdev/passpanel/internal/application"
	"github.com/ericfisherdev/passpanel/internal/domain/model"
	"github.com/ericfisherdev/passpanel/internal/domain/port/driven"
)

// Handler is the web GUI driving adapter that serves HTML via templ components.
type Handler struct {
	creds        *application.CredentialService
	gate         *application.AccessGate
	cookieSecure bool
	logger       *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	creds *application.CredentialService,
	gate *application.AccessGate,
	cookieSecure bool,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		creds:        creds,
		gate:         gate,
		cookieSecure: cookieSecure,
		logger:       logger,
	}
}

// Index sends the browser to the search page.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/search", http.StatusSeeOther)
}

// LoginForm renders the shared-secret prompt. Signed-in users go straight to search.
func (h *Handler) LoginForm(w http.ResponseWriter, r *http.Request) {
	if h.gate.Authenticated(r.Context(), sessionCookie(r)) {
		http.Redirect(w, r, "/search", http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, templates.LoginPage(vm.LoginViewModel{
		Page: h.page(w, r, "Sign in", vm.NavNone),
	}))
}

// Login checks the submitted secret and opens a session.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	token, err := h.gate.Login(r.Context(), r.FormValue("secret"))
	if err != nil {
		status, msg := http.StatusUnauthorized, "That secret is not correct."
		if !errors.Is(err, application.ErrInvalidSecret) {
			h.logger.Error("failed to open session", "error", err)
			status, msg = http.StatusInternalServerError, "Sign-in is unavailable right now. Please try again."
		}
		h.render(w, r, status, templates.LoginPage(vm.LoginViewModel{
			Page:  h.page(w, r, "Sign in", vm.NavNone),
			Error: msg,
		}))
		return
	}

	h.setSessionCookie(w, token, int(h.gate.TTL().Seconds()))
	http.Redirect(w, r, "/search", http.StatusSeeOther)
}

// Logout ends the session and returns to the login page.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.gate.Logout(r.Context(), sessionCookie(r)); err != nil {
		h.logger.Error("failed to close session", "error", err)
	}
	h.setSessionCookie(w, "", -1)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// Search renders the search form and, when a term is given, the matching cards.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	data := vm.SearchViewModel{
		Page:  h.page(w, r, "Search", vm.NavSearch),
		Query: query,
	}

	if query != "" {
		creds, err := h.creds.Search(r.Context(), model.SearchCriteria{Term: query})
		if err != nil {
			h.logger.Error("failed to search credentials", "error", err)
			data.Flash = errorFlash("Search failed. Please try again.")
		}
		data.Searched = err == nil
		for _, c := range creds {
			data.Results = append(data.Results, toCredentialCardViewModel(c))
		}
	}

	h.render(w, r, http.StatusOK, templates.SearchPage(data))
}

// NewCredential renders the empty data entry form.
func (h *Handler) NewCredential(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, http.StatusOK, newForm(), model.Credential{}, nil)
}

// CreateCredential stores the submitted entry form.
func (h *Handler) CreateCredential(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	submitted := credentialFromForm(r)

	created, err := h.creds.Create(r.Context(), submitted)
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		h.renderForm(w, r, http.StatusBadRequest, newForm(), submitted, verr)
		return
	}
	if err != nil {
		h.logger.Error("failed to create credential", "error", err)
		h.renderForm(w, r, http.StatusInternalServerError, newForm().withFlash(saveFailed), submitted, nil)
		return
	}

	h.logger.Info("credential created", "id", created.ID)
	redirectWithNotice(w, r, "/search", url.Values{"q": {created.WebsiteName}}, "created")
}

// EditCredential renders the edit form for an existing credential.
func (h *Handler) EditCredential(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	cred, err := h.creds.Get(r.Context(), id)
	if err != nil {
		h.handleMissing(w, r, err, "failed to load credential", id)
		return
	}

	h.renderForm(w, r, http.StatusOK, editForm(id, cred), cred, nil)
}

// UpdateCredential writes the fields of the edit form that differ from the
// values the form was rendered with.
func (h *Handler) UpdateCredential(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok || !parseForm(w, r) {
		return
	}

	current, err := h.creds.Get(r.Context(), id)
	if err != nil {
		h.handleMissing(w, r, err, "failed to load credential", id)
		return
	}

	snapshot := current
	row := application.GridRow{ID: id, Values: map[model.Field]string{}}
	for _, f := range model.Fields() {
		if key := gridOrigPrefix + f.Column(); r.PostForm.Has(key) {
			f.Assign(&snapshot, r.PostForm.Get(key))
		}
		if r.PostForm.Has(f.Column()) {
			row.Values[f] = r.PostForm.Get(f.Column())
		}
	}

	_, err = h.creds.SaveGrid(r.Context(), []model.Credential{snapshot}, []application.GridRow{row})
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		submitted := current
		for f, v := range row.Values {
			f.Assign(&submitted, v)
		}
		h.renderForm(w, r, http.StatusBadRequest, editForm(id, snapshot), submitted, verr)
		return
	case err != nil:
		h.handleMissing(w, r, err, "failed to update credential", id)
		return
	}

	name := current.WebsiteName
	if v, ok := row.Values[model.FieldWebsiteName]; ok {
		name = strings.TrimSpace(v)
	}
	redirectWithNotice(w, r, "/search", url.Values{"q": {name}}, "updated")
}

// DeleteCredential removes a credential and returns to the search it came from.
func (h *Handler) DeleteCredential(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	back := url.Values{}
	if q := strings.TrimSpace(r.FormValue("q")); q != "" {
		back.Set("q", q)
	}

	err := h.creds.Delete(r.Context(), id)
	switch {
	case errors.Is(err, driven.ErrCredentialNotFound):
		redirectWithNotice(w, r, "/search", back, "missing")
	case err != nil:
		h.logger.Error("failed to delete credential", "id", id, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	default:
		h.logger.Info("credential deleted", "id", id)
		redirectWithNotice(w, r, "/search", back, "deleted")
	}
}

// Table renders every credential as an editable grid.
func (h *Handler) Table(w http.ResponseWriter, r *http.Request) {
	h.renderTable(w, r, http.StatusOK, nil)
}

// SaveTable reconciles the submitted grid against the values it was rendered
// with. Only changed cells are written, and a filled-in blank row is created.
func (h *Handler) SaveTable(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	snapshot, rows := parseGridForm(r.PostForm)

	result, err := h.creds.SaveGrid(r.Context(), snapshot, rows)
	if err != nil {
		var verr *model.ValidationError
		status, msg := http.StatusBadRequest, "Could not save the table. Please try again."
		switch {
		case errors.As(err, &verr):
			msg = "Save stopped at " + err.Error() + ". Rows before it were saved."
		case errors.Is(err, driven.ErrCredentialNotFound):
			msg = "A row was deleted while you were editing. Reload the table and try again."
		default:
			h.logger.Error("failed to save table", "error", err)
			status = http.StatusInternalServerError
		}
		h.renderTable(w, r, status, errorFlash(msg))
		return
	}

	h.logger.Info("table saved", "updated", result.Updated, "created", result.Created)
	redirectWithNotice(w, r, "/table", url.Values{
		"updated": {strconv.Itoa(result.Updated)},
		"created": {strconv.Itoa(result.Created)},
	}, "saved")
}

// ExportCSV downloads every credential as data.csv.
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.creds.Export(r.Context(), &buf); err != nil {
		h.logger.Error("failed to export credentials", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="data.csv"`)
	_, _ = w.Write(buf.Bytes())
}

// --- rendering helpers ---

type formLayout struct {
	heading, action, submit string
	flash                   *vm.Flash
	orig                    *model.Credential
}

func newForm() formLayout {
	return formLayout{heading: "Add credential", action: "/credentials", submit: "Save"}
}

func editForm(id int64, orig model.Credential) formLayout {
	return formLayout{
		heading: "Edit credential",
		action:  fmt.Sprintf("/credentials/%d", id),
		submit:  "Update",
		orig:    &orig,
	}
}

func (fs formLayout) withFlash(msg string) formLayout {
	fs.flash = errorFlash(msg)
	return fs
}

const saveFailed = "Could not save the credential. Please try again."

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, status int, layout formLayout, c model.Credential, verr *model.ValidationError) {
	nav := vm.NavNone
	if layout.action == "/credentials" {
		nav = vm.NavAdd
	}
	page := h.page(w, r, layout.heading, nav)
	if layout.flash != nil {
		page.Flash = layout.flash
	}
	if verr != nil {
		page.Flash = errorFlash("Please fix the highlighted fields.")
	}

	h.render(w, r, status, templates.CredentialForm(vm.FormViewModel{
		Page:        page,
		Heading:     layout.heading,
		Action:      layout.action,
		SubmitLabel: layout.submit,
		CancelPath:  "/search",
		Fields:      toFormFields(c, layout.orig, verr),
	}))
}

func (h *Handler) renderTable(w http.ResponseWriter, r *http.Request, status int, flash *vm.Flash) {
	page := h.page(w, r, "Data Table", vm.NavTable)
	if flash != nil {
		page.Flash = flash
	}

	creds, err := h.creds.ListAll(r.Context())
	if err != nil {
		h.logger.Error("failed to list credentials", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.render(w, r, status, templates.DataTable(vm.TableViewModel{
		Page:    page,
		Columns: gridColumns(),
		Rows:    toGridRows(creds),
	}))
}

// page assembles the per-request layout data, issuing a CSRF cookie if needed.
func (h *Handler) page(w http.ResponseWriter, r *http.Request, title string, nav vm.Nav) vm.Page {
	return vm.Page{
		Title:     title,
		CSRFToken: csrfToken(w, r, h.cookieSecure),
		Active:    nav,
		Flash:     flashFromQuery(r.URL.Query()),
		SignedIn:  nav != vm.NavNone || h.gate.Authenticated(r.Context(), sessionCookie(r)),
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	var buf bytes.Buffer
	if err := c.Render(r.Context(), &buf); err != nil {
		h.logger.Error("failed to render page", "path", r.URL.Path, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// handleMissing redirects to search when err is ErrCredentialNotFound and
// otherwise logs err and writes a 500.
func (h *Handler) handleMissing(w http.ResponseWriter, r *http.Request, err error, msg string, id int64) {
	if errors.Is(err, driven.ErrCredentialNotFound) {
		redirectWithNotice(w, r, "/search", nil, "missing")
		return
	}
	h.logger.Error(msg, "id", id, "error", err)
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		http.NotFound(w, r)
		return 0, false
	}
	return id, true
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     application.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.cookieSecure,
	})
}

func parseForm(w http.ResponseWriter, r *http.Request) bool {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form submission", http.StatusBadRequest)
		return false
	}
	return true
}

func sessionCookie(r *http.Request) string {
	if cookie, err := r.Cookie(application.SessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// credentialFromForm reads every field from the posted form without validating.
func credentialFromForm(r *http.Request) model.Credential {
	var c model.Credential
	for _, f := range model.Fields() {
		f.Assign(&c, r.PostForm.Get(f.Column()))
	}
	return c
}

// parseGridForm rebuilds the rendered snapshot and the edited rows from a
// submitted data table. Edited rows are returned in ID order with the new row last.
func parseGridForm(form url.Values) ([]model.Credential, []application.GridRow) {
	snapshot := map[int64]*model.Credential{}
	edited := map[int64]map[model.Field]string{}
	newRow := map[model.Field]string{}

	for key := range form {
		value := form.Get(key)
		switch {
		case strings.HasPrefix(key, gridOrigPrefix):
			id, f, ok := parseGridKey(strings.TrimPrefix(key, gridOrigPrefix))
			if !ok {
				continue
			}
			c, exists := snapshot[id]
			if !exists {
				c = &model.Credential{ID: id}
				snapshot[id] = c
			}
			f.Assign(c, value)
		case strings.HasPrefix(key, gridCellPrefix):
			id, f, ok := parseGridKey(strings.TrimPrefix(key, gridCellPrefix))
			if !ok {
				continue
			}
			if edited[id] == nil {
				edited[id] = map[model.Field]string{}
			}
			edited[id][f] = value
		case strings.HasPrefix(key, gridNewPrefix):
			if f, ok := model.ParseField(strings.TrimPrefix(key, gridNewPrefix)); ok {
				newRow[f] = value
			}
		}
	}

	creds := make([]model.Credential, 0, len(snapshot))
	for _, c := range snapshot {
		creds = append(creds, *c)
	}

	ids := make([]int64, 0, len(edited))
	for id := range edited {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	rows := make([]application.GridRow, 0, len(ids)+1)
	for _, id := range ids {
		rows = append(rows, application.GridRow{ID: id, Values: edited[id]})
	}
	if len(newRow) > 0 {
		rows = append(rows, application.GridRow{Values: newRow})
	}
	return creds, rows
}

// --- flash notices ---

// Notices travel as fixed codes in the redirect URL so no user text is reflected.
var noticeMessages = map[string]string{
	"created": "Credential saved.",
	"updated": "Credential updated.",
	"deleted": "Credential deleted.",
	"missing": "That credential no longer exists.",
}

func redirectWithNotice(w http.ResponseWriter, r *http.Request, path string, params url.Values, notice string) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("notice", notice)
	http.Redirect(w, r, path+"?"+params.Encode(), http.StatusSeeOther)
}

func flashFromQuery(q url.Values) *vm.Flash {
	notice := q.Get("notice")
	if notice == "saved" {
		updated, _ := strconv.Atoi(q.Get("updated"))
		created, _ := strconv.Atoi(q.Get("created"))
		return &vm.Flash{
			Kind:    "success",
			Message: fmt.Sprintf("Table saved: %d updated, %d created.", updated, created),
		}
	}
	if msg, ok := noticeMessages[notice]; ok {
		kind := "success"
		if notice == "missing" {
			kind = "error"
		}
		return &vm.Flash{Kind: kind, Message: msg}
	}
	return nil
}

func errorFlash(msg string) *vm.Flash {
	return &vm.Flash{Kind: "error", Message: msg}
}
