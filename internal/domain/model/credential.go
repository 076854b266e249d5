package model

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a stored credential.
type Status string

const (
	StatusActive      Status = "Active"
	StatusDeactivated Status = "Deactivated"
	StatusOnHold      Status = "On Hold"
)

// Statuses lists every valid Status in display order.
func Statuses() []Status {
	return []Status{StatusActive, StatusDeactivated, StatusOnHold}
}

// ParseStatus returns the Status matching s, ignoring case and surrounding
// whitespace. The second result is false when s names no known status.
func ParseStatus(s string) (Status, bool) {
	s = strings.TrimSpace(s)
	for _, st := range Statuses() {
		if strings.EqualFold(s, string(st)) {
			return st, true
		}
	}
	return "", false
}

// Credential is a stored website login. ID is the synthetic primary key
// assigned by the database; WebsiteName carries no uniqueness guarantee.
type Credential struct {
	ID              int64
	WebsiteName     string
	WebsiteLink     string
	Username        string
	Password        string
	SupervisedEmail string
	SupervisedPhone string
	AuthReference   string
	Status          Status
	Description     string
	CreatedAt       time.Time
}

// Validate reports every required field that is empty and any unknown status.
// It returns nil or a *ValidationError.
func (c Credential) Validate() error {
	var verr ValidationError
	for _, f := range Fields() {
		if err := f.check(f.Get(c)); err != nil {
			verr.add(f, err.Error())
		}
	}
	if verr.HasProblems() {
		return &verr
	}
	return nil
}

// Normalize puts every field in its canonical form (see Field.Canonical) and
// defaults an empty Status to StatusActive.
func (c *Credential) Normalize() {
	for _, f := range Fields() {
		f.def().set(c, f.Canonical(f.Get(*c)))
	}
	if c.Status == "" {
		c.Status = StatusActive
	}
}

// SearchCriteria holds optional filters for a credential search. Non-empty
// filters are combined with AND. Term is matched against several columns
// combined with OR.
type SearchCriteria struct {
	Term            string
	WebsiteName     string
	Username        string
	SupervisedEmail string
	SupervisedPhone string
	Status          Status
}

// IsEmpty reports whether no filter is set.
func (sc SearchCriteria) IsEmpty() bool {
	return strings.TrimSpace(sc.Term) == "" &&
		strings.TrimSpace(sc.WebsiteName) == "" &&
		strings.TrimSpace(sc.Username) == "" &&
		strings.TrimSpace(sc.SupervisedEmail) == "" &&
		strings.TrimSpace(sc.SupervisedPhone) == "" &&
		sc.Status == ""
}
