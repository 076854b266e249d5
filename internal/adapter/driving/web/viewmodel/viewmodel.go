// Package viewmodel defines presentation-ready structs for templ components.
// View models decouple template rendering from domain model types.
package viewmodel

// Flash is a one-off notice shown at the top of a page.
type Flash struct {
	Kind    string // "success" or "error"
	Message string
}

// Nav identifies the active navigation tab.
type Nav string

const (
	NavNone   Nav = ""
	NavSearch Nav = "search"
	NavAdd    Nav = "add"
	NavTable  Nav = "table"
)

// Page carries the per-request data every layout needs.
type Page struct {
	Title     string
	CSRFToken string
	Active    Nav
	Flash     *Flash
	SignedIn  bool
}

// LoginViewModel holds the data for the shared-secret login form.
type LoginViewModel struct {
	Page
	Error string
}

// CredentialCardViewModel holds presentation-ready data for one search result.
type CredentialCardViewModel struct {
	ID              int64
	WebsiteName     string
	WebsiteLink     string
	Username        string
	Password        string
	SupervisedEmail string
	SupervisedPhone string
	AuthReference   string
	Status          string
	StatusClass     string
	DescriptionHTML string // sanitized
	CreatedAt       string
	EditPath        string
	DeletePath      string
}

// SearchViewModel holds the search form state and its results.
type SearchViewModel struct {
	Page
	Query    string
	Searched bool
	Results  []CredentialCardViewModel
}

// FormFieldViewModel is one labelled input on the entry and edit forms.
type FormFieldViewModel struct {
	Name      string // column name, used as the form key
	Label     string
	Value     string
	Error     string
	Required  bool
	Input     string // text, url, email, tel, password, textarea or select
	Options   []string
	OrigName  string // edit form only: key for the value the page was rendered with
	OrigValue string
}

// FormViewModel holds the data entry or edit form.
type FormViewModel struct {
	Page
	Heading     string
	Action      string
	SubmitLabel string
	CancelPath  string
	Fields      []FormFieldViewModel
}

// GridCellViewModel is one editable cell of the data table.
type GridCellViewModel struct {
	Name     string // form key for the edited value
	OrigName string // form key for the value the page was rendered with; empty on the new row
	Value    string
	Input    string
	Options  []string
}

// GridRowViewModel is one row of the data table. New marks the blank entry row.
type GridRowViewModel struct {
	ID        int64
	New       bool
	CreatedAt string
	Cells     []GridCellViewModel
}

// TableViewModel holds the editable data table.
type TableViewModel struct {
	Page
	Columns []string
	Rows    []GridRowViewModel
}
