package model

import (
	"errors"
	"strings"
)

// Field identifies one editable column of a Credential. The set is fixed;
// ID and CreatedAt are managed by the store and are not Fields.
type Field int

const (
	FieldWebsiteName Field = iota + 1
	FieldWebsiteLink
	FieldUsername
	FieldPassword
	FieldSupervisedEmail
	FieldSupervisedPhone
	FieldAuthReference
	FieldStatus
	FieldDescription
)

var (
	errRequired      = errors.New("is required")
	errUnknownStatus = errors.New("must be one of Active, Deactivated, On Hold")
)

type fieldDef struct {
	column   string
	label    string
	required bool
	get      func(Credential) string
	set      func(*Credential, string)
}

// fieldDefs is indexed by Field; index 0 is unused.
var fieldDefs = [...]fieldDef{
	FieldWebsiteName: {
		column: "website_name", label: "Website Name", required: true,
		get: func(c Credential) string { return c.WebsiteName },
		set: func(c *Credential, v string) { c.WebsiteName = v },
	},
	FieldWebsiteLink: {
		column: "website_link", label: "Website Link", required: true,
		get: func(c Credential) string { return c.WebsiteLink },
		set: func(c *Credential, v string) { c.WebsiteLink = v },
	},
	FieldUsername: {
		column: "username", label: "Username", required: true,
		get: func(c Credential) string { return c.Username },
		set: func(c *Credential, v string) { c.Username = v },
	},
	FieldPassword: {
		column: "password", label: "Password", required: true,
		get: func(c Credential) string { return c.Password },
		set: func(c *Credential, v string) { c.Password = v },
	},
	FieldSupervisedEmail: {
		column: "supervised_email", label: "Supervised Email",
		get: func(c Credential) string { return c.SupervisedEmail },
		set: func(c *Credential, v string) { c.SupervisedEmail = v },
	},
	FieldSupervisedPhone: {
		column: "supervised_phone", label: "Supervised Phone",
		get: func(c Credential) string { return c.SupervisedPhone },
		set: func(c *Credential, v string) { c.SupervisedPhone = v },
	},
	FieldAuthReference: {
		column: "auth_reference", label: "Authentication Reference",
		get: func(c Credential) string { return c.AuthReference },
		set: func(c *Credential, v string) { c.AuthReference = v },
	},
	FieldStatus: {
		column: "status", label: "Status", required: true,
		get: func(c Credential) string { return string(c.Status) },
		set: func(c *Credential, v string) { c.Status = Status(v) },
	},
	FieldDescription: {
		column: "description", label: "Description",
		get: func(c Credential) string { return c.Description },
		set: func(c *Credential, v string) { c.Description = v },
	},
}

// Fields returns every Field in column order.
func Fields() []Field {
	return []Field{
		FieldWebsiteName,
		FieldWebsiteLink,
		FieldUsername,
		FieldPassword,
		FieldSupervisedEmail,
		FieldSupervisedPhone,
		FieldAuthReference,
		FieldStatus,
		FieldDescription,
	}
}

// ParseField resolves a column name ("website_name") or display label
// ("Website Name") to its Field.
func ParseField(name string) (Field, bool) {
	name = strings.TrimSpace(name)
	for _, f := range Fields() {
		s := fieldDefs[f]
		if name == s.column || strings.EqualFold(name, s.label) {
			return f, true
		}
	}
	return 0, false
}

// Valid reports whether f is a known Field.
func (f Field) Valid() bool {
	return f >= FieldWebsiteName && f <= FieldDescription
}

func (f Field) def() fieldDef {
	if !f.Valid() {
		panic("model: invalid field")
	}
	return fieldDefs[f]
}

// Column returns the database column name.
func (f Field) Column() string { return f.def().column }

// Label returns the display name used in forms, tables and CSV headers.
func (f Field) Label() string { return f.def().label }

// Required reports whether the field may not be empty.
func (f Field) Required() bool { return f.def().required }

// String implements fmt.Stringer.
func (f Field) String() string {
	if !f.Valid() {
		return "unknown"
	}
	return f.Column()
}

// Get returns the value of f on c.
func (f Field) Get(c Credential) string { return f.def().get(c) }

// Set validates v and assigns its canonical form to f on c.
func (f Field) Set(c *Credential, v string) error {
	v = f.Canonical(v)
	if err := f.check(v); err != nil {
		return &ValidationError{Problems: []FieldProblem{{Field: f, Message: err.Error()}}}
	}
	f.def().set(c, v)
	return nil
}

// Canonical returns v as it is stored: trimmed, with CRLF and CR line breaks
// turned into LF, and a recognized Status in its canonical casing.
func (f Field) Canonical(v string) string {
	v = strings.TrimSpace(lineBreaks.Replace(v))
	if f == FieldStatus {
		if st, ok := ParseStatus(v); ok {
			v = string(st)
		}
	}
	return v
}

var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// Assign stores v on c as-is, without validation. It is meant for rebuilding
// previously stored values, such as the snapshot a bulk edit started from.
func (f Field) Assign(c *Credential, v string) { f.def().set(c, v) }

func (f Field) check(v string) error {
	if f.Required() && strings.TrimSpace(v) == "" {
		return errRequired
	}
	if f == FieldStatus {
		if _, ok := ParseStatus(v); !ok {
			return errUnknownStatus
		}
	}
	return nil
}
