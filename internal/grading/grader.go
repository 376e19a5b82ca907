package grading

import (
	"formquiz_backend/internal/model"
)

// Result 单题评分结果
type Result struct {
	Points    float64 `json:"points"`
	MaxPoints float64 `json:"maxPoints"`
}

// MaxPoints 题目满分，用作百分比分母
//
// 选择题为正确选项分值之和，和为 0 时取 total_score；
// 文本、日期、量表题取 total_score；其他题型为 0。
func MaxPoints(q *model.Question) float64 {
	switch {
	case q.Type == model.QuestionTextInput, q.Type == model.QuestionDate, q.Type == model.QuestionScale:
		return totalScore(q)
	case model.IsChoiceType(q.Type):
		if sum := correctOptionSum(q); sum > 0 {
			return sum
		}
		return totalScore(q)
	}
	return 0
}

// Grade 对归一化后的答案评分，不返回错误，无法匹配的答案得 0 分
func Grade(q *model.Question, a Answer) Result {
	res := Result{MaxPoints: MaxPoints(q)}

	switch {
	case q.Type == model.QuestionTextInput, q.Type == model.QuestionDate:
		if a.Text == "" {
			return res
		}
		for _, accepted := range AcceptedAnswers(q.Answer) {
			if accepted == a.Text {
				res.Points = totalScore(q)
				break
			}
		}
	case model.IsChoiceType(q.Type):
		if q.Required {
			res.Points = gradeStrict(q, a.Selected)
		} else {
			res.Points = gradeLenient(q, a.Selected)
		}
	case q.Type == model.QuestionScale:
		if a.Number == nil || q.Answer == nil {
			return res
		}
		if expected, ok := parseInt(*q.Answer); ok && expected == *a.Number {
			res.Points = totalScore(q)
		}
	}
	return res
}

// GradeRaw 对存储的 answer_text 归一化后评分
func GradeRaw(q *model.Question, raw *string) Result {
	return Grade(q, Normalize(q.Type, raw))
}

// gradeStrict 全对才得分：所选文本集合须与正确选项集合完全一致（不计顺序），
// 得分为正确选项分值之和
func gradeStrict(q *model.Question, selected map[string]struct{}) float64 {
	correct := make(map[string]struct{})
	for _, opt := range q.Options {
		if opt.IsCorrect {
			correct[opt.Text] = struct{}{}
		}
	}
	if len(correct) == 0 || len(correct) != len(selected) {
		return 0
	}
	for text := range selected {
		if _, ok := correct[text]; !ok {
			return 0
		}
	}
	return correctOptionSum(q)
}

// gradeLenient 累加所选正确选项的分值，错选不扣分
func gradeLenient(q *model.Question, selected map[string]struct{}) float64 {
	var points float64
	for _, opt := range q.Options {
		if !opt.IsCorrect || opt.Score == nil {
			continue
		}
		if _, ok := selected[opt.Text]; ok {
			points += *opt.Score
		}
	}
	return points
}

func correctOptionSum(q *model.Question) float64 {
	var sum float64
	for _, opt := range q.Options {
		if opt.IsCorrect && opt.Score != nil {
			sum += *opt.Score
		}
	}
	return sum
}

func totalScore(q *model.Question) float64 {
	if q.TotalScore == nil {
		return 0
	}
	return *q.TotalScore
}
