package questionnaire

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestQuestion_UnmarshalNumericIDAndLegacyType(t *testing.T) {
	var q Question
	data := `{"id": 2, "type": "multiple-choice", "question": "Hvordan?", "options": ["A","B"], "required": true}`
	if err := json.Unmarshal([]byte(data), &q); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if q.ID != "2" || q.Type != TypeMultipleChoice || !q.Required || len(q.Options) != 2 || q.Text != "Hvordan?" {
		t.Errorf("unexpected question: %+v", q)
	}
}

func TestQuestion_UnmarshalKeepsUnknownType(t *testing.T) {
	var q Question
	if err := json.Unmarshal([]byte(`{"id":"x","type":"slider","question":"?"}`), &q); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if q.Type != "slider" || q.Type.AnswerKind() != KindInvalid {
		t.Errorf("expected unknown type kept as-is, got %q", q.Type)
	}
}

func TestQuestion_UnmarshalRejectsObjectID(t *testing.T) {
	var q Question
	if err := json.Unmarshal([]byte(`{"id":{"a":1},"type":"text"}`), &q); err == nil {
		t.Error("expected error for object id")
	}
}

func TestAnswer_JSON(t *testing.T) {
	tests := []struct {
		in   string
		want Answer
		out  string
	}{
		{`"Ja"`, TextAnswer("Ja"), `"Ja"`},
		{`4`, NumberAnswer(4), `4`},
		{`2.5`, NumberAnswer(2.5), `2.5`},
		{`["Ryg","Knæ"]`, ChoicesAnswer("Ryg", "Knæ"), `["Ryg","Knæ"]`},
		{`[]`, ChoicesAnswer(), `[]`},
	}
	for _, tt := range tests {
		var a Answer
		if err := json.Unmarshal([]byte(tt.in), &a); err != nil {
			t.Errorf("Unmarshal(%s): %v", tt.in, err)
			continue
		}
		if !reflect.DeepEqual(a, tt.want) {
			t.Errorf("Unmarshal(%s) = %+v, want %+v", tt.in, a, tt.want)
		}
		out, err := json.Marshal(a)
		if err != nil || string(out) != tt.out {
			t.Errorf("Marshal(%s) = %s, %v", tt.in, out, err)
		}
	}
}

func TestAnswer_UnmarshalRejects(t *testing.T) {
	for _, in := range []string{`null`, `true`, `{"a":1}`, `[1,2]`} {
		var a Answer
		if err := json.Unmarshal([]byte(in), &a); err == nil {
			t.Errorf("expected %s rejected", in)
		}
	}
}

func TestAnswer_StringAndEmpty(t *testing.T) {
	if got := ChoicesAnswer("Ryg", "Nakke").String(); got != "Ryg, Nakke" {
		t.Errorf("expected joined choices, got %q", got)
	}
	if got := NumberAnswer(7).String(); got != "7" {
		t.Errorf("expected 7, got %q", got)
	}
	if !TextAnswer(" \t").IsEmpty() || !ChoicesAnswer().IsEmpty() || NumberAnswer(0).IsEmpty() {
		t.Error("unexpected emptiness")
	}
	if !(Answer{}).IsEmpty() {
		t.Error("zero answer must be empty")
	}
}

func TestResponses_RoundTrip(t *testing.T) {
	in := Responses{"q1": NumberAnswer(3), "q2": TextAnswer("x"), "q3": ChoicesAnswer("A")}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out Responses
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip mismatch: %v vs %v", in, out)
	}
}

func TestNewAccessToken(t *testing.T) {
	a, err := NewAccessToken()
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	b, _ := NewAccessToken()
	if len(a) != 64 || a == b {
		t.Errorf("expected distinct 64-char tokens, got %q %q", a, b)
	}
	for _, ch := range a {
		if !(ch >= '0' && ch <= '9' || ch >= 'a' && ch <= 'f') {
			t.Fatalf("non-hex character %q", ch)
		}
	}
}

func TestCloneQuestions_Deep(t *testing.T) {
	orig := []Question{{ID: "a", Options: []string{"x"}, Min: intPtr(1), Labels: []string{"l"}}}
	c := cloneQuestions(orig)
	c[0].Options[0] = "y"
	*c[0].Min = 9
	c[0].Labels[0] = "m"
	if orig[0].Options[0] != "x" || *orig[0].Min != 1 || orig[0].Labels[0] != "l" {
		t.Error("clone shares memory with the original")
	}
}
