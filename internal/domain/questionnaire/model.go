package questionnaire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// QuestionType is the closed set of question kinds a template may use.
type QuestionType string

const (
	TypeScale          QuestionType = "scale"
	TypeMultipleChoice QuestionType = "multiple_choice"
	TypeText           QuestionType = "text"
	TypeTextarea       QuestionType = "textarea"
	TypeNumber         QuestionType = "number"
	TypeCheckbox       QuestionType = "checkbox"
)

// ParseQuestionType accepts the canonical names and the hyphenated
// "multiple-choice" spelling found in older templates.
func ParseQuestionType(s string) (QuestionType, bool) {
	switch s {
	case "scale":
		return TypeScale, true
	case "multiple_choice", "multiple-choice":
		return TypeMultipleChoice, true
	case "text":
		return TypeText, true
	case "textarea":
		return TypeTextarea, true
	case "number":
		return TypeNumber, true
	case "checkbox":
		return TypeCheckbox, true
	}
	return "", false
}

// AnswerKind returns the answer shape a question of this type accepts.
func (t QuestionType) AnswerKind() AnswerKind {
	switch t {
	case TypeScale, TypeNumber:
		return KindNumber
	case TypeCheckbox:
		return KindChoices
	case TypeMultipleChoice, TypeText, TypeTextarea:
		return KindText
	}
	return KindInvalid
}

const (
	DefaultScaleMin = 0
	DefaultScaleMax = 5
)

type Question struct {
	ID       string       `json:"id"`
	Type     QuestionType `json:"type"`
	Text     string       `json:"question"`
	Required bool         `json:"required"`
	Options  []string     `json:"options,omitempty"`
	// Labels caption a scale: one per point, or the two ends.
	Labels   []string     `json:"labels,omitempty"`
	Min      *int         `json:"min,omitempty"`
	Max      *int         `json:"max,omitempty"`
}

// UnmarshalJSON accepts numeric question ids and the legacy type spelling.
// Unknown types are kept verbatim so validation can name the question.
func (q *Question) UnmarshalJSON(data []byte) error {
	type alias Question
	var raw struct {
		alias
		ID   json.RawMessage `json:"id"`
		Type string          `json:"type"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*q = Question(raw.alias)

	id, err := decodeQuestionID(raw.ID)
	if err != nil {
		return err
	}
	q.ID = id

	if t, ok := ParseQuestionType(raw.Type); ok {
		q.Type = t
	} else {
		q.Type = QuestionType(raw.Type)
	}
	return nil
}

func decodeQuestionID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("question id must be a string or number")
	}
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10), nil
	}
	return n.String(), nil
}

// ScaleBounds returns the inclusive range of a scale question, defaulting
// missing bounds to 0..5.
func (q Question) ScaleBounds() (int, int) {
	lo, hi := DefaultScaleMin, DefaultScaleMax
	if q.Min != nil {
		lo = *q.Min
	}
	if q.Max != nil {
		hi = *q.Max
	}
	return lo, hi
}

func cloneQuestions(qs []Question) []Question {
	if qs == nil {
		return nil
	}
	out := make([]Question, len(qs))
	for i, q := range qs {
		c := q
		if q.Options != nil {
			c.Options = append([]string(nil), q.Options...)
		}
		if q.Labels != nil {
			c.Labels = append([]string(nil), q.Labels...)
		}
		if q.Min != nil {
			v := *q.Min
			c.Min = &v
		}
		if q.Max != nil {
			v := *q.Max
			c.Max = &v
		}
		out[i] = c
	}
	return out
}

// Template maps to the questionnaire_template table.
type Template struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	Key            *string    `db:"key" json:"key,omitempty"`
	Title          string     `db:"title" json:"title"`
	Description    string     `db:"description" json:"description"`
	Instructions   string     `db:"instructions" json:"instructions"`
	Questions      []Question `db:"questions" json:"questions"`
	CreatedBy      string     `db:"created_by" json:"created_by"`
	LastModifiedBy string     `db:"last_modified_by" json:"last_modified_by"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	// StatusOverdue is a display label only and is never stored.
	StatusOverdue Status = "overdue"
)

// Instance maps to the questionnaire_instance table: a template copy
// delivered to one patient behind its own access token.
type Instance struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	TemplateID    uuid.UUID  `db:"template_id" json:"template_id"`
	Title         string     `db:"title" json:"title"`
	Description   string     `db:"description" json:"description"`
	Instructions  string     `db:"instructions" json:"instructions"`
	Questions     []Question `db:"questions" json:"questions"`
	AccessToken   string     `db:"access_token" json:"access_token"`
	Status        Status     `db:"status" json:"status"`
	AssignedDate  time.Time  `db:"assigned_date" json:"assigned_date"`
	DateCompleted *time.Time `db:"date_completed" json:"date_completed,omitempty"`
	ExpiryDate    *time.Time `db:"expiry_date" json:"expiry_date,omitempty"`
	Responses     Responses  `db:"responses" json:"responses,omitempty"`
	CreatedBy     string     `db:"created_by" json:"created_by"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

func (i *Instance) IsCompleted() bool {
	return i.Status == StatusCompleted
}

// DisplayStatus derives the label shown to staff. A pending instance assigned
// longer than overdueAfter ago reads as overdue.
func DisplayStatus(i *Instance, now time.Time, overdueAfter time.Duration) Status {
	if i.Status == StatusCompleted {
		return StatusCompleted
	}
	if overdueAfter > 0 && now.Sub(i.AssignedDate) > overdueAfter {
		return StatusOverdue
	}
	return StatusPending
}
