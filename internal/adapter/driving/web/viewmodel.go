package web

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	vm "github.com/ericfisherdev/passpanel/internal/adapter/driving/web/viewmodel"
	"github.com/ericfisherdev/passpanel/internal/domain/model"
)

// toCredentialCardViewModel converts a domain Credential to a search result card.
// The description is rendered from markdown and sanitized here.
func toCredentialCardViewModel(c model.Credential) vm.CredentialCardViewModel {
	createdAt := ""
	if !c.CreatedAt.IsZero() {
		createdAt = c.CreatedAt.UTC().Format(time.DateOnly)
	}

	return vm.CredentialCardViewModel{
		ID:              c.ID,
		WebsiteName:     c.WebsiteName,
		WebsiteLink:     c.WebsiteLink,
		Username:        c.Username,
		Password:        c.Password,
		SupervisedEmail: c.SupervisedEmail,
		SupervisedPhone: c.SupervisedPhone,
		AuthReference:   c.AuthReference,
		Status:          string(c.Status),
		StatusClass:     statusClass(c.Status),
		DescriptionHTML: RenderMarkdown(c.Description),
		CreatedAt:       createdAt,
		EditPath:        fmt.Sprintf("/credentials/%d/edit", c.ID),
		DeletePath:      fmt.Sprintf("/credentials/%d/delete", c.ID),
	}
}

// statusClass maps a status to its badge CSS class.
func statusClass(s model.Status) string {
	switch s {
	case model.StatusActive:
		return "badge-active"
	case model.StatusDeactivated:
		return "badge-deactivated"
	case model.StatusOnHold:
		return "badge-hold"
	default:
		return "badge"
	}
}

// inputKind returns the HTML input type used to edit f.
func inputKind(f model.Field) string {
	switch f {
	case model.FieldWebsiteLink:
		return "url"
	case model.FieldSupervisedEmail:
		return "email"
	case model.FieldSupervisedPhone:
		return "tel"
	case model.FieldStatus:
		return "select"
	case model.FieldDescription:
		return "textarea"
	default:
		return "text"
	}
}

func statusOptions() []string {
	statuses := model.Statuses()
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}

// toFormFields builds the entry/edit form inputs for c. Problems from verr are
// attached to their fields; verr may be nil. A non-nil orig is carried in
// hidden "orig-<column>" fields so an update only writes what the user changed.
func toFormFields(c model.Credential, orig *model.Credential, verr *model.ValidationError) []vm.FormFieldViewModel {
	problems := map[model.Field]string{}
	if verr != nil {
		for _, p := range verr.Problems {
			problems[p.Field] = p.Message
		}
	}

	fields := model.Fields()
	out := make([]vm.FormFieldViewModel, 0, len(fields))
	for _, f := range fields {
		ff := vm.FormFieldViewModel{
			Name:     f.Column(),
			Label:    f.Label(),
			Value:    f.Get(c),
			Error:    problems[f],
			Required: f.Required(),
			Input:    inputKind(f),
		}
		if orig != nil {
			ff.OrigName = gridOrigPrefix + f.Column()
			ff.OrigValue = f.Get(*orig)
		}
		if f == model.FieldStatus {
			ff.Options = statusOptions()
			if ff.Value == "" {
				ff.Value = string(model.StatusActive)
			}
		}
		out = append(out, ff)
	}
	return out
}

// Grid form keys. Edited cells are posted as "cell-<id>-<column>", the values
// the page was rendered with as "orig-<id>-<column>" and the blank entry row
// as "new-<column>". The edit form reuses the orig prefix as "orig-<column>".
const (
	gridCellPrefix = "cell-"
	gridOrigPrefix = "orig-"
	gridNewPrefix  = "new-"
)

// toGridRows builds the data table rows for creds followed by one blank row.
func toGridRows(creds []model.Credential) []vm.GridRowViewModel {
	fields := model.Fields()
	rows := make([]vm.GridRowViewModel, 0, len(creds)+1)

	for _, c := range creds {
		row := vm.GridRowViewModel{
			ID:        c.ID,
			CreatedAt: c.CreatedAt.UTC().Format(time.DateOnly),
			Cells:     make([]vm.GridCellViewModel, 0, len(fields)),
		}
		for _, f := range fields {
			row.Cells = append(row.Cells, gridCell(f,
				fmt.Sprintf("%s%d-%s", gridCellPrefix, c.ID, f.Column()),
				fmt.Sprintf("%s%d-%s", gridOrigPrefix, c.ID, f.Column()),
				f.Get(c)))
		}
		rows = append(rows, row)
	}

	blank := vm.GridRowViewModel{New: true, Cells: make([]vm.GridCellViewModel, 0, len(fields))}
	for _, f := range fields {
		blank.Cells = append(blank.Cells, gridCell(f, gridNewPrefix+f.Column(), "", ""))
	}
	return append(rows, blank)
}

func gridCell(f model.Field, name, origName, value string) vm.GridCellViewModel {
	cell := vm.GridCellViewModel{
		Name:     name,
		OrigName: origName,
		Value:    value,
		Input:    inputKind(f),
	}
	if f == model.FieldStatus {
		cell.Options = statusOptions()
		if origName == "" {
			// Blank row: an empty choice keeps an untouched row blank.
			cell.Options = append([]string{""}, cell.Options...)
		}
	}
	return cell
}

func gridColumns() []string {
	cols := []string{"ID"}
	for _, f := range model.Fields() {
		cols = append(cols, f.Label())
	}
	return append(cols, "Created At")
}

// parseGridKey splits "<id>-<column>" into its parts.
func parseGridKey(key string) (int64, model.Field, bool) {
	idPart, column, ok := strings.Cut(key, "-")
	if !ok {
		return 0, 0, false
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		return 0, 0, false
	}
	f, ok := model.ParseField(column)
	if !ok {
		return 0, 0, false
	}
	return id, f, true
}
