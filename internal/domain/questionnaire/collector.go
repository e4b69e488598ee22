package questionnaire

import (
	"fmt"
	"math"
	"sort"

	"github.com/clinic/clinic/internal/platform/apperr"
)

// Collector accumulates a patient's answers for one question list, checking
// each answer as it is set.
type Collector struct {
	questions map[string]Question
	answers   Responses
}

func NewCollector(questions []Question) *Collector {
	byID := make(map[string]Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	return &Collector{questions: byID, answers: make(Responses)}
}

// Set stores the answer for one question. The previous answer is kept when
// the new one is rejected.
func (c *Collector) Set(id string, a Answer) error {
	q, ok := c.questions[id]
	if !ok {
		return apperr.Validation(fmt.Sprintf("unknown question %q", id), id)
	}
	if err := checkAnswer(q, a); err != nil {
		return err
	}
	if a.kind == KindChoices {
		a.choices = append([]string{}, a.choices...)
	}
	c.answers[id] = a
	return nil
}

func (c *Collector) Clear(id string) {
	delete(c.answers, id)
}

func (c *Collector) Get(id string) (Answer, bool) {
	a, ok := c.answers[id]
	return a, ok
}

// Finalize returns a copy of the collected answers for submission.
func (c *Collector) Finalize() Responses {
	return c.answers.clone()
}

// checkAnswer verifies that a matches the shape and bounds of q. Empty
// answers pass; the required check is done at submission.
func checkAnswer(q Question, a Answer) error {
	want := q.Type.AnswerKind()
	if a.kind != want {
		return apperr.Validation(fmt.Sprintf("question %q expects a %s answer, got %s", q.ID, want, a.kind), q.ID)
	}
	switch q.Type {
	case TypeScale:
		lo, hi := q.ScaleBounds()
		if a.number != math.Trunc(a.number) || a.number < float64(lo) || a.number > float64(hi) {
			return apperr.Validation(fmt.Sprintf("question %q expects a whole number in %d..%d", q.ID, lo, hi), q.ID)
		}
	case TypeMultipleChoice:
		if a.IsEmpty() {
			return nil
		}
		if !containsString(q.Options, a.text) {
			return apperr.Validation(fmt.Sprintf("question %q has no option %q", q.ID, a.text), q.ID)
		}
	case TypeCheckbox:
		seen := make(map[string]bool, len(a.choices))
		for _, ch := range a.choices {
			if !containsString(q.Options, ch) {
				return apperr.Validation(fmt.Sprintf("question %q has no option %q", q.ID, ch), q.ID)
			}
			if seen[ch] {
				return apperr.Validation(fmt.Sprintf("question %q option %q checked twice", q.ID, ch), q.ID)
			}
			seen[ch] = true
		}
	}
	return nil
}

// ValidateResponses checks a finalized response map against the question
// list. It reports every offending question id: answers that do not fit
// their question, answers to unknown questions, and unanswered required
// questions.
func ValidateResponses(questions []Question, responses Responses) error {
	var fields []string
	var missing, invalid int
	known := make(map[string]bool, len(questions))

	for _, q := range questions {
		known[q.ID] = true
		a, ok := responses[q.ID]
		if ok {
			if err := checkAnswer(q, a); err != nil {
				fields = append(fields, q.ID)
				invalid++
				continue
			}
		}
		if q.Required && (!ok || a.IsEmpty()) {
			fields = append(fields, q.ID)
			missing++
		}
	}

	var unknown []string
	for id := range responses {
		if !known[id] {
			unknown = append(unknown, id)
		}
	}
	sort.Strings(unknown)
	fields = append(fields, unknown...)

	if len(fields) == 0 {
		return nil
	}
	if invalid == 0 && len(unknown) == 0 {
		return apperr.MissingAnswers(fmt.Sprintf("%d required question(s) unanswered", missing), fields...)
	}
	return apperr.Validation("responses do not match the questionnaire", fields...)
}

// RenderPlan tells a client how to present a question: the points of a
// scale or the options of a choice question, in order.
type RenderPlan struct {
	Input   string   `json:"input"`
	Points  []int    `json:"points,omitempty"`
	Labels  []string `json:"labels,omitempty"`
	Options []string `json:"options,omitempty"`
}

func PlanFor(q Question) RenderPlan {
	switch q.Type {
	case TypeScale:
		lo, hi := q.ScaleBounds()
		var pts []int
		if lo <= hi && scaleSteps(lo, hi) < MaxScalePoints {
			n := int(scaleSteps(lo, hi)) + 1
			pts = make([]int, n)
			for i := range pts {
				pts[i] = lo + i
			}
		}
		return RenderPlan{Input: "single", Points: pts, Labels: append([]string(nil), q.Labels...)}
	case TypeMultipleChoice:
		return RenderPlan{Input: "single", Options: append([]string(nil), q.Options...)}
	case TypeCheckbox:
		return RenderPlan{Input: "multiple", Options: append([]string(nil), q.Options...)}
	case TypeNumber:
		return RenderPlan{Input: "number"}
	case TypeTextarea:
		return RenderPlan{Input: "textarea"}
	default:
		return RenderPlan{Input: "text"}
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
