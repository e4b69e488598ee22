package questionnaire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type AnswerKind int

const (
	KindInvalid AnswerKind = iota
	KindText
	KindNumber
	KindChoices
)

func (k AnswerKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindChoices:
		return "choices"
	}
	return "invalid"
}

// Answer is one response value: free or selected text, a number, or a set of
// checked options. The zero value is invalid.
type Answer struct {
	kind    AnswerKind
	text    string
	number  float64
	choices []string
}

func TextAnswer(s string) Answer {
	return Answer{kind: KindText, text: s}
}

func NumberAnswer(n float64) Answer {
	return Answer{kind: KindNumber, number: n}
}

func ChoicesAnswer(choices ...string) Answer {
	return Answer{kind: KindChoices, choices: append([]string{}, choices...)}
}

func (a Answer) Kind() AnswerKind  { return a.kind }
func (a Answer) Text() string      { return a.text }
func (a Answer) Number() float64   { return a.number }
func (a Answer) Choices() []string { return append([]string(nil), a.choices...) }

// IsEmpty reports whether the answer counts as unanswered: blank text or no
// checked options. A number is always an answer.
func (a Answer) IsEmpty() bool {
	switch a.kind {
	case KindText:
		return strings.TrimSpace(a.text) == ""
	case KindChoices:
		return len(a.choices) == 0
	case KindNumber:
		return false
	}
	return true
}

// String renders the answer for exports. Checked options are joined with ", ".
func (a Answer) String() string {
	switch a.kind {
	case KindText:
		return a.text
	case KindNumber:
		return strconv.FormatFloat(a.number, 'f', -1, 64)
	case KindChoices:
		return strings.Join(a.choices, ", ")
	}
	return ""
}

func (a Answer) MarshalJSON() ([]byte, error) {
	switch a.kind {
	case KindText:
		return json.Marshal(a.text)
	case KindNumber:
		return json.Marshal(a.number)
	case KindChoices:
		if a.choices == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(a.choices)
	}
	return nil, fmt.Errorf("cannot marshal invalid answer")
}

func (a *Answer) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty answer")
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = TextAnswer(s)
	case '[':
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("checkbox answer must be a list of strings")
		}
		*a = ChoicesAnswer(list...)
	case 'n':
		return fmt.Errorf("answer must not be null")
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("answer must be a string, number or list of strings")
		}
		*a = NumberAnswer(n)
	}
	return nil
}

// Responses maps question ids to answers.
type Responses map[string]Answer

func (r Responses) clone() Responses {
	if r == nil {
		return nil
	}
	out := make(Responses, len(r))
	for k, v := range r {
		if v.kind == KindChoices {
			v.choices = append([]string{}, v.choices...)
		}
		out[k] = v
	}
	return out
}
