package grading

import "formquiz_backend/internal/model"

func f64(v float64) *float64 { return &v }

func str(s string) *string { return &s }

func opt(text string, correct bool, score *float64) model.Option {
	return model.Option{Text: text, IsCorrect: correct, Score: score}
}

func question(id uint, typ string, required bool, total *float64, answer *string, opts ...model.Option) model.Question {
	q := model.Question{Type: typ, Required: required, TotalScore: total, Answer: answer, Options: opts}
	q.ID = id
	return q
}

func response(id, questionID uint, answer *string) model.Response {
	r := model.Response{QuestionID: questionID, AnswerText: answer}
	r.ID = id
	return r
}
