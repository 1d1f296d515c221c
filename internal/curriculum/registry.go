// Package curriculum holds the class to subject mapping and the question-type label list. Every
// mutation returns a fresh value; callers persist the whole document.
package curriculum

import (
	"fmt"
	"strings"

	"github.com/kapilsaini46/rks/internal/models"
	appErrors "github.com/kapilsaini46/rks/pkg/errors"
)

// Registry is the class to subjects mapping in display order.
type Registry []models.ClassSubjects

// Clone deep copies the registry.
func (r Registry) Clone() Registry {
	out := make(Registry, len(r))
	for i, row := range r {
		out[i] = models.ClassSubjects{Class: row.Class, Subjects: append([]string(nil), row.Subjects...)}
	}
	return out
}

// Classes lists the class labels in order.
func (r Registry) Classes() []string {
	out := make([]string, 0, len(r))
	for _, row := range r {
		out = append(out, row.Class)
	}
	return out
}

// Subjects returns the subjects of a class.
func (r Registry) Subjects(class string) ([]string, bool) {
	idx := r.index(class)
	if idx < 0 {
		return nil, false
	}
	return append([]string(nil), r[idx].Subjects...), true
}

func (r Registry) index(class string) int {
	for i, row := range r {
		if row.Class == class {
			return i
		}
	}
	return -1
}

// AddClass appends an empty class.
func (r Registry) AddClass(name string) (Registry, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class name is required")
	}
	if r.index(name) >= 0 {
		return nil, appErrors.Clone(appErrors.ErrDuplicate, fmt.Sprintf("class %s already exists", name))
	}
	out := r.Clone()
	return append(out, models.ClassSubjects{Class: name, Subjects: []string{}}), nil
}

// DeleteClass removes a class together with its subjects.
func (r Registry) DeleteClass(name string) (Registry, error) {
	idx := r.index(name)
	if idx < 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("class %s not found", name))
	}
	out := r.Clone()
	return append(out[:idx], out[idx+1:]...), nil
}

// AddSubject appends a subject to an existing class.
func (r Registry) AddSubject(class, subject string) (Registry, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "subject name is required")
	}
	idx := r.index(class)
	if idx < 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("class %s not found", class))
	}
	for _, s := range r[idx].Subjects {
		if s == subject {
			return nil, appErrors.Clone(appErrors.ErrDuplicate, fmt.Sprintf("subject %s already exists in class %s", subject, class))
		}
	}
	out := r.Clone()
	out[idx].Subjects = append(out[idx].Subjects, subject)
	return out, nil
}

// DeleteSubject removes a subject from a class.
func (r Registry) DeleteSubject(class, subject string) (Registry, error) {
	idx := r.index(class)
	if idx < 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("class %s not found", class))
	}
	out := r.Clone()
	subjects := out[idx].Subjects[:0]
	found := false
	for _, s := range out[idx].Subjects {
		if s == subject {
			found = true
			continue
		}
		subjects = append(subjects, s)
	}
	if !found {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("subject %s not found in class %s", subject, class))
	}
	out[idx].Subjects = subjects
	return out, nil
}

// ReconcileSubject keeps subject when the class lists it, otherwise falls back to the class's first
// subject. Unknown or empty classes leave subject unchanged.
func ReconcileSubject(r Registry, class, subject string) string {
	subjects, ok := r.Subjects(class)
	if !ok || len(subjects) == 0 {
		return subject
	}
	for _, s := range subjects {
		if s == subject {
			return subject
		}
	}
	return subjects[0]
}

// QuestionTypes is the flat list of question-type labels.
type QuestionTypes []string

// Add appends a label.
func (q QuestionTypes) Add(label string) (QuestionTypes, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "question type is required")
	}
	for _, existing := range q {
		if existing == label {
			return nil, appErrors.Clone(appErrors.ErrDuplicate, fmt.Sprintf("question type %s already exists", label))
		}
	}
	return append(append(QuestionTypes(nil), q...), label), nil
}

// Delete removes a label.
func (q QuestionTypes) Delete(label string) (QuestionTypes, error) {
	out := make(QuestionTypes, 0, len(q))
	for _, existing := range q {
		if existing != label {
			out = append(out, existing)
		}
	}
	if len(out) == len(q) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("question type %s not found", label))
	}
	return out, nil
}

// Contains reports whether label is registered.
func (q QuestionTypes) Contains(label string) bool {
	for _, existing := range q {
		if existing == label {
			return true
		}
	}
	return false
}
