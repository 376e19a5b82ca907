package service

import (
	"context"
	"time"

	"formquiz_backend/internal/config"
	"formquiz_backend/internal/grading"
	"formquiz_backend/internal/model"
	"formquiz_backend/internal/repository"
	"formquiz_backend/internal/util"
	"formquiz_backend/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
)

type ResultService struct {
	Forms       *repository.FormRepository
	Submissions *repository.SubmissionRepository
	Policy      *AccessPolicy
	PageSize    int
}

func NewResultService(forms *repository.FormRepository, submissions *repository.SubmissionRepository, policy *AccessPolicy, cfg *config.Config) *ResultService {
	pageSize := cfg.Forms.PageSize
	if pageSize <= 0 {
		pageSize = util.DefaultPageSize
	}
	return &ResultService{Forms: forms, Submissions: submissions, Policy: policy, PageSize: pageSize}
}

// ScoreCard 测验得分；问卷没有得分
type ScoreCard struct {
	Score          float64 `json:"score"`
	MaxScore       float64 `json:"maxScore"`
	Percentage     int     `json:"percentage"`
	CorrectCount   int     `json:"correctCount"`
	IncorrectCount int     `json:"incorrectCount"`
}

func scoreCard(s grading.Summary) *ScoreCard {
	if !s.Scored {
		return nil
	}
	return &ScoreCard{
		Score:          s.Score,
		MaxScore:       s.MaxScore,
		Percentage:     s.Percentage,
		CorrectCount:   s.CorrectCount,
		IncorrectCount: s.IncorrectCount,
	}
}

type Respondent struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type ResponseResult struct {
	ID         uint     `json:"id"`
	QuestionID uint     `json:"questionId"`
	Question   string   `json:"question"`
	AnswerText *string  `json:"answerText"`
	Points     *float64 `json:"points,omitempty"`
	IsCorrect  *bool    `json:"isCorrect,omitempty"`
}

// SubmissionResult 结果页中的一条提交，匿名提交 User 为空
type SubmissionResult struct {
	ID        uint             `json:"id"`
	User      *Respondent      `json:"user"`
	CreatedAt time.Time        `json:"createdAt"`
	Score     *ScoreCard       `json:"score,omitempty"`
	Responses []ResponseResult `json:"responses"`
}

// SubmissionSummary 用户侧的提交概要，用于最近活动与提交记录
type SubmissionSummary struct {
	SubmissionID uint           `json:"submissionId"`
	FormID       uint           `json:"formId"`
	FormTitle    string         `json:"formTitle"`
	FormType     model.FormType `json:"formType"`
	FormCode     string         `json:"formCode"`
	SubmittedAt  time.Time      `json:"submittedAt"`
	Answered     int            `json:"answered"`
	Score        *ScoreCard     `json:"score,omitempty"`
}

func (s *ResultService) limit(n int) int {
	if n <= 0 {
		return s.PageSize
	}
	return n
}

// GetResults 表单所有者查看提交结果，每条提交都通过评分引擎重新计分
func (s *ResultService) GetResults(ctx context.Context, ownerID, formID uint, routeType model.FormType, q repository.ResultQuery) (*util.PageResponse, error) {
	_, span := tracing.Tracer.Start(ctx, "ResultService.GetResults")
	defer span.End()

	form, err := s.Forms.FindByID(formID)
	if err != nil {
		return nil, err
	}
	if err := s.Policy.CanManage(form, ownerID); err != nil {
		return nil, err
	}
	if routeType != "" && form.Type != routeType {
		return nil, util.ErrNotFound
	}

	if q.Page < 1 {
		q.Page = 1
	}
	q.Limit = s.limit(q.Limit)
	subs, total, err := s.Submissions.ListByForm(form.ID, q)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	texts := make(map[uint]string, len(form.Questions))
	for _, question := range form.Questions {
		texts[question.ID] = question.Text
	}

	list := make([]SubmissionResult, 0, len(subs))
	for _, sub := range subs {
		summary := grading.ScoreSubmission(form.Type, form.Questions, sub.Responses)
		scores := summary.ByResponse()

		item := SubmissionResult{
			ID:        sub.ID,
			CreatedAt: sub.CreatedAt,
			Score:     scoreCard(summary),
			Responses: make([]ResponseResult, 0, len(sub.Responses)),
		}
		if sub.User != nil {
			item.User = &Respondent{ID: sub.User.ID, Name: sub.User.Name, Email: sub.User.Email}
		}
		for _, resp := range sub.Responses {
			rr := ResponseResult{
				ID:         resp.ID,
				QuestionID: resp.QuestionID,
				Question:   texts[resp.QuestionID],
				AnswerText: resp.AnswerText,
			}
			if rs, ok := scores[resp.ID]; ok {
				points, correct := rs.Points, rs.IsCorrect
				rr.Points = &points
				rr.IsCorrect = &correct
			}
			item.Responses = append(item.Responses, rr)
		}
		list = append(list, item)
	}

	span.SetAttributes(attribute.Int64("form.id", int64(form.ID)), attribute.Int64("results.total", total))
	return &util.PageResponse{List: list, Total: total, Page: q.Page, Limit: q.Limit}, nil
}

func summarize(sub model.Submission) SubmissionSummary {
	out := SubmissionSummary{
		SubmissionID: sub.ID,
		FormID:       sub.FormID,
		SubmittedAt:  sub.CreatedAt,
	}
	for _, resp := range sub.Responses {
		if resp.AnswerText != nil {
			out.Answered++
		}
	}
	if sub.Form != nil {
		out.FormTitle = sub.Form.Title
		out.FormType = sub.Form.Type
		out.FormCode = sub.Form.Code
		out.Score = scoreCard(grading.ScoreSubmission(sub.Form.Type, sub.Form.Questions, sub.Responses))
	}
	return out
}

// RecentActivity 用户最近的提交
func (s *ResultService) RecentActivity(userID uint) ([]SubmissionSummary, error) {
	subs, err := s.Submissions.RecentByUser(userID, util.RecentActivitySize)
	if err != nil {
		return nil, err
	}
	out := make([]SubmissionSummary, 0, len(subs))
	for _, sub := range subs {
		out = append(out, summarize(sub))
	}
	return out, nil
}

// MySubmissions 用户自己的提交记录，支持类型筛选、标题搜索与排序
func (s *ResultService) MySubmissions(userID uint, q repository.HistoryQuery) (*util.PageResponse, error) {
	switch q.Type {
	case model.FormTypeQuiz, model.FormTypeSurvey:
	default:
		q.Type = ""
	}
	if q.Page < 1 {
		q.Page = 1
	}
	q.Limit = s.limit(q.Limit)

	subs, total, err := s.Submissions.ListByUser(userID, q)
	if err != nil {
		return nil, err
	}
	list := make([]SubmissionSummary, 0, len(subs))
	for _, sub := range subs {
		list = append(list, summarize(sub))
	}
	return &util.PageResponse{List: list, Total: total, Page: q.Page, Limit: q.Limit}, nil
}
