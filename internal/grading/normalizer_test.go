package grading

import (
	"reflect"
	"testing"

	"formquiz_backend/internal/model"
)

func TestNormalize_Text(t *testing.T) {
	got := Normalize(model.QuestionTextInput, str("  PaRiS \n"))
	if got.Text != "paris" {
		t.Fatalf("Text=%q, want %q", got.Text, "paris")
	}
	if got := Normalize(model.QuestionDate, nil); got.Text != "" {
		t.Fatalf("nil answer should normalize to empty text, got %q", got.Text)
	}
}

func TestNormalize_Choice(t *testing.T) {
	tests := []struct {
		name string
		raw  *string
		want []string
	}{
		{name: "json array", raw: str(`["Paris","London"]`), want: []string{"London", "Paris"}},
		{name: "plain text", raw: str("Paris"), want: []string{"Paris"}},
		{name: "number array", raw: str(`[1, 2.5]`), want: []string{"1", "2.5"}},
		{name: "nil", raw: nil, want: nil},
		{name: "broken json is text", raw: str(`["Paris"`), want: []string{`["Paris"`}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Normalize(model.QuestionCheckbox, tc.raw)
			if len(got.Selected) != len(tc.want) {
				t.Fatalf("Selected=%v, want %v", got.Selected, tc.want)
			}
			for _, w := range tc.want {
				if _, ok := got.Selected[w]; !ok {
					t.Fatalf("Selected=%v missing %q", got.Selected, w)
				}
			}
		})
	}
}

func TestNormalize_Scale(t *testing.T) {
	tests := []struct {
		raw  *string
		want *int
	}{
		{raw: str("7"), want: intPtr(7)},
		{raw: str(" 3 "), want: intPtr(3)},
		{raw: str("7.0"), want: nil},
		{raw: str("seven"), want: nil},
		{raw: nil, want: nil},
	}
	for _, tc := range tests {
		got := Normalize(model.QuestionScale, tc.raw)
		if !reflect.DeepEqual(got.Number, tc.want) {
			t.Fatalf("Normalize(scale, %v).Number=%v, want %v", deref(tc.raw), got.Number, tc.want)
		}
	}
}

func TestAcceptedAnswers(t *testing.T) {
	tests := []struct {
		name   string
		stored *string
		want   []string
	}{
		{name: "json array", stored: str(`["Paris"," Lutetia "]`), want: []string{"paris", "lutetia"}},
		{name: "plain string", stored: str("Paris"), want: []string{"paris"}},
		{name: "json string", stored: str(`"Paris"`), want: []string{"paris"}},
		{name: "nil", stored: nil, want: nil},
		{name: "blank", stored: str("  "), want: nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := AcceptedAnswers(tc.stored)
			if len(got) == 0 && len(tc.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("AcceptedAnswers=%v, want %v", got, tc.want)
			}
		})
	}
}

func intPtr(n int) *int { return &n }

func deref(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}
