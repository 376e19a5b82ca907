package grading

import (
	"testing"

	"formquiz_backend/internal/model"
)

func quizQuestions() []model.Question {
	return []model.Question{
		question(1, model.QuestionTextInput, true, f64(2), str("Paris")),
		question(2, model.QuestionRadioButton, true, f64(10),
			nil,
			opt("Paris", true, f64(10)),
			opt("London", false, nil),
		),
		question(3, model.QuestionCheckbox, false, nil,
			nil,
			opt("A", true, f64(1)),
			opt("B", true, f64(1)),
			opt("C", false, nil),
		),
		question(4, model.QuestionScale, true, f64(5), str("7")),
	}
}

func TestScoreSubmission_MaxScoreWithoutResponses(t *testing.T) {
	got := ScoreSubmission(model.FormTypeQuiz, quizQuestions(), nil)
	if !got.Scored {
		t.Fatal("quiz should be scored")
	}
	if got.MaxScore != 2+10+2+5 {
		t.Fatalf("MaxScore=%v, want 19", got.MaxScore)
	}
	if got.Score != 0 || got.Percentage != 0 || got.CorrectCount != 0 || got.IncorrectCount != 0 {
		t.Fatalf("unexpected summary %+v", got)
	}
}

func TestScoreSubmission_Mixed(t *testing.T) {
	responses := []model.Response{
		response(11, 1, str(" paris")),
		response(12, 2, str(`["Paris","London"]`)),
		response(13, 3, str(`["A","C"]`)),
		response(14, 4, str("7")),
		response(15, 99, str("orphan")),
	}
	got := ScoreSubmission(model.FormTypeQuiz, quizQuestions(), responses)

	if got.Score != 2+0+1+5 {
		t.Fatalf("Score=%v, want 8", got.Score)
	}
	if got.MaxScore != 19 {
		t.Fatalf("MaxScore=%v, want 19", got.MaxScore)
	}
	if got.Percentage != 42 {
		t.Fatalf("Percentage=%v, want 42", got.Percentage)
	}
	if got.CorrectCount != 3 || got.IncorrectCount != 1 {
		t.Fatalf("counts=%d/%d, want 3/1", got.CorrectCount, got.IncorrectCount)
	}
	if len(got.PerResponse) != 4 {
		t.Fatalf("PerResponse has %d entries, want 4 (orphan skipped)", len(got.PerResponse))
	}
	by := got.ByResponse()
	if rs := by[13]; !rs.IsCorrect || rs.Points != 1 {
		t.Fatalf("partial lenient answer should count as correct: %+v", rs)
	}
	if rs := by[12]; rs.IsCorrect {
		t.Fatalf("strict answer with extra option should be incorrect: %+v", rs)
	}
	if _, ok := by[15]; ok {
		t.Fatal("response to deleted question should be skipped")
	}
}

func TestScoreSubmission_Survey(t *testing.T) {
	responses := []model.Response{response(1, 1, str("Paris"))}
	got := ScoreSubmission(model.FormTypeSurvey, quizQuestions(), responses)
	if got.Scored || got.Score != 0 || got.MaxScore != 0 || len(got.PerResponse) != 0 {
		t.Fatalf("survey should not be scored: %+v", got)
	}
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		score, max float64
		want       int
	}{
		{0, 0, 0},
		{5, 0, 0},
		{1, 3, 33},
		{2, 3, 67},
		{10, 10, 100},
	}
	for _, tc := range tests {
		if got := Percentage(tc.score, tc.max); got != tc.want {
			t.Fatalf("Percentage(%v,%v)=%d, want %d", tc.score, tc.max, got, tc.want)
		}
	}
}
