package questionnaire

import (
	"fmt"
	"strings"

	"github.com/clinic/clinic/internal/platform/apperr"
)

// validateTemplate checks a template before it is stored. The returned
// error names every offending question id, or "title"/"questions".
func validateTemplate(t *Template) error {
	var fields []string
	var problems []string

	if strings.TrimSpace(t.Title) == "" {
		fields = append(fields, "title")
		problems = append(problems, "title is required")
	}

	seen := make(map[string]bool, len(t.Questions))
	for i, q := range t.Questions {
		name := q.ID
		if strings.TrimSpace(q.ID) == "" {
			name = fmt.Sprintf("questions[%d]", i)
			fields = append(fields, name)
			problems = append(problems, name+": id is required")
			continue
		}
		if seen[q.ID] {
			fields = append(fields, name)
			problems = append(problems, name+": duplicate id")
			continue
		}
		seen[q.ID] = true

		if msg := questionProblem(q); msg != "" {
			fields = append(fields, name)
			problems = append(problems, name+": "+msg)
		}
	}

	if len(fields) == 0 {
		return nil
	}
	return apperr.Validation("invalid template: "+strings.Join(problems, "; "), fields...)
}

// MaxScalePoints bounds how many points a scale question may offer.
const MaxScalePoints = 100

// scaleSteps is hi-lo for lo <= hi, exact across the whole int range.
func scaleSteps(lo, hi int) uint64 {
	return uint64(hi) - uint64(lo)
}

func questionProblem(q Question) string {
	if strings.TrimSpace(q.Text) == "" {
		return "question text is required"
	}
	if q.Type.AnswerKind() == KindInvalid {
		return fmt.Sprintf("unknown type %q", string(q.Type))
	}
	switch q.Type {
	case TypeMultipleChoice, TypeCheckbox:
		if len(q.Options) == 0 {
			return "at least one option is required"
		}
		seen := make(map[string]bool, len(q.Options))
		for _, o := range q.Options {
			if strings.TrimSpace(o) == "" {
				return "options must not be blank"
			}
			if seen[o] {
				return fmt.Sprintf("duplicate option %q", o)
			}
			seen[o] = true
		}
	case TypeScale:
		lo, hi := q.ScaleBounds()
		if lo > hi {
			return "min must not exceed max"
		}
		if scaleSteps(lo, hi) >= MaxScalePoints {
			return fmt.Sprintf("a scale may have at most %d points", MaxScalePoints)
		}
	case TypeNumber:
		if q.Min != nil && q.Max != nil && *q.Min > *q.Max {
			return "min must not exceed max"
		}
	}
	return ""
}
