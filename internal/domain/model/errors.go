package model

import (
	"sort"
	"strings"
)

// FieldProblem describes why a single field value was rejected.
type FieldProblem struct {
	Field   Field
	Message string
}

// ValidationError is returned when input fails field validation. No write is
// performed when it is returned, so the operation can be retried as-is once
// the input is corrected.
type ValidationError struct {
	Problems []FieldProblem
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		if !p.Field.Valid() {
			parts = append(parts, p.Message)
			continue
		}
		parts = append(parts, p.Field.Label()+" "+p.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasProblems reports whether any problem was recorded.
func (e *ValidationError) HasProblems() bool {
	return len(e.Problems) > 0
}

// Fields returns the rejected fields.
func (e *ValidationError) Fields() []Field {
	out := make([]Field, 0, len(e.Problems))
	for _, p := range e.Problems {
		out = append(out, p.Field)
	}
	return out
}

func (e *ValidationError) add(f Field, msg string) {
	e.Problems = append(e.Problems, FieldProblem{Field: f, Message: msg})
}

func (e *ValidationError) sort() {
	sort.Slice(e.Problems, func(i, j int) bool { return e.Problems[i].Field < e.Problems[j].Field })
}
