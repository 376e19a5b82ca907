package grading

import (
	"math"

	"formquiz_backend/internal/model"
)

// ResponseScore 单条回答的评分结果
type ResponseScore struct {
	ResponseID uint    `json:"responseId"`
	QuestionID uint    `json:"questionId"`
	Points     float64 `json:"points"`
	IsCorrect  bool    `json:"isCorrect"`
}

// Summary 一次提交的评分汇总；问卷不评分，Scored 为 false 且其余字段为零值
type Summary struct {
	Scored         bool            `json:"scored"`
	Score          float64         `json:"score"`
	MaxScore       float64         `json:"maxScore"`
	Percentage     int             `json:"percentage"`
	CorrectCount   int             `json:"correctCount"`
	IncorrectCount int             `json:"incorrectCount"`
	PerResponse    []ResponseScore `json:"perResponse,omitempty"`
}

// ByResponse 按回答 ID 索引 PerResponse
func (s Summary) ByResponse() map[uint]ResponseScore {
	out := make(map[uint]ResponseScore, len(s.PerResponse))
	for _, rs := range s.PerResponse {
		out[rs.ResponseID] = rs
	}
	return out
}

// ScoreSubmission 按表单当前题目为一次提交的全部回答评分
// 提交、结果查询、答题历史和最近活动都经由这里计算
//
// MaxScore 覆盖表单所有题目，无论是否作答；题目已不存在的回答直接跳过。
// 得分大于 0 即记为答对，宽松模式下的部分得分也算答对。
func ScoreSubmission(formType model.FormType, questions []model.Question, responses []model.Response) Summary {
	if formType != model.FormTypeQuiz {
		return Summary{}
	}

	sum := Summary{Scored: true}
	byID := make(map[uint]*model.Question, len(questions))
	for i := range questions {
		q := &questions[i]
		byID[q.ID] = q
		sum.MaxScore += MaxPoints(q)
	}

	for _, resp := range responses {
		q, ok := byID[resp.QuestionID]
		if !ok {
			continue
		}
		res := GradeRaw(q, resp.AnswerText)
		rs := ResponseScore{
			ResponseID: resp.ID,
			QuestionID: resp.QuestionID,
			Points:     res.Points,
			IsCorrect:  res.Points > 0,
		}
		sum.Score += res.Points
		if rs.IsCorrect {
			sum.CorrectCount++
		} else {
			sum.IncorrectCount++
		}
		sum.PerResponse = append(sum.PerResponse, rs)
	}

	sum.Percentage = Percentage(sum.Score, sum.MaxScore)
	return sum
}

// Percentage 得分百分比，四舍五入取整；满分为 0 时返回 0
func Percentage(score, maxScore float64) int {
	if maxScore <= 0 {
		return 0
	}
	return int(math.Round(score / maxScore * 100))
}
