package model

// Changes is a partial update: the new value for each Field being edited.
type Changes map[Field]string

// Fields returns the changed fields in column order.
func (ch Changes) Fields() []Field {
	out := make([]Field, 0, len(ch))
	for _, f := range Fields() {
		if _, ok := ch[f]; ok {
			out = append(out, f)
		}
	}
	return out
}

// Validate checks every changed value, returning a *ValidationError listing
// each problem, or nil.
func (ch Changes) Validate() error {
	var verr ValidationError
	for f, v := range ch {
		if !f.Valid() {
			verr.Problems = append(verr.Problems, FieldProblem{Field: f, Message: "unknown field"})
			continue
		}
		if err := f.check(v); err != nil {
			verr.add(f, err.Error())
		}
	}
	if verr.HasProblems() {
		verr.sort()
		return &verr
	}
	return nil
}

// Apply validates the changes and writes them onto c. On error c is left
// untouched.
func (ch Changes) Apply(c *Credential) error {
	if err := ch.Validate(); err != nil {
		return err
	}
	next := *c
	for _, f := range ch.Fields() {
		if err := f.Set(&next, ch[f]); err != nil {
			return err
		}
	}
	*c = next
	return nil
}
