package service

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"

	"formquiz_backend/internal/config"
	"formquiz_backend/internal/grading"
	"formquiz_backend/internal/model"
	"formquiz_backend/internal/repository"
	"formquiz_backend/internal/util"
	"formquiz_backend/pkg/logger"
	"formquiz_backend/pkg/monitoring"
	"formquiz_backend/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AnswerFiles 按 answers 下标对应的文件回答
type AnswerFiles map[int]*multipart.FileHeader

type SubmissionService struct {
	Forms          *repository.FormRepository
	Submissions    *repository.SubmissionRepository
	Storage        Uploader
	Policy         *AccessPolicy
	MaxUploadBytes int64
}

func NewSubmissionService(forms *repository.FormRepository, submissions *repository.SubmissionRepository, storage Uploader, policy *AccessPolicy, cfg *config.Config) *SubmissionService {
	return &SubmissionService{
		Forms:          forms,
		Submissions:    submissions,
		Storage:        storage,
		Policy:         policy,
		MaxUploadBytes: cfg.Storage.MaxUploadMB << 20,
	}
}

// QuizResult 测验提交后的得分
type QuizResult struct {
	SubmissionID   uint    `json:"submissionId"`
	Score          float64 `json:"score"`
	MaxScore       float64 `json:"maxScore"`
	Percentage     int     `json:"percentage"`
	CorrectCount   int     `json:"correctCount"`
	IncorrectCount int     `json:"incorrectCount"`
}

type SurveyReceipt struct {
	SubmissionID uint `json:"submissionId"`
	Responses    int  `json:"responses"`
}

func (s *SubmissionService) answerable(code string, want model.FormType) (*model.Form, error) {
	form, err := s.Forms.FindByCode(util.NormalizeCode(code))
	if err != nil {
		return nil, err
	}
	if err := s.Policy.CanAnswer(form); err != nil {
		return nil, err
	}
	if form.Type != want {
		return nil, util.ErrWrongFormType
	}
	return form, nil
}

func (s *SubmissionService) uniqueKey(form *model.Form, userID *uint) *string {
	if !s.Policy.RequiresUniqueSubmission(form, userID) {
		return nil
	}
	key := model.SubmissionKey(form.ID, *userID)
	return &key
}

// create 在事务内检查重复并写入，唯一索引兜底并发提交
func (s *SubmissionService) create(repo *repository.SubmissionRepository, sub *model.Submission) error {
	if sub.UniqueKey != nil {
		exists, err := repo.ExistsForUser(sub.FormID, *sub.UserID)
		if err != nil {
			return err
		}
		if exists {
			return util.ErrAlreadyAnswered
		}
	}
	return repo.Create(sub)
}

// SubmitQuiz 一次性提交测验：每道题写入一条回答，随后计分
func (s *SubmissionService) SubmitQuiz(ctx context.Context, code string, userID uint, req *SubmitReq) (*QuizResult, error) {
	_, span := tracing.Tracer.Start(ctx, "SubmissionService.SubmitQuiz")
	defer span.End()

	form, err := s.answerable(code, model.FormTypeQuiz)
	if err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	values := make(map[uint]*string, len(req.Answers))
	for _, a := range req.Answers {
		if _, seen := values[a.QuestionID]; !seen {
			values[a.QuestionID] = answerText(a.Value)
		}
	}

	uid := userID
	sub := &model.Submission{
		FormID:    form.ID,
		UserID:    &uid,
		UniqueKey: s.uniqueKey(form, &uid),
	}
	for _, q := range form.Questions {
		sub.Responses = append(sub.Responses, model.Response{
			QuestionID: q.ID,
			FormID:     form.ID,
			UserID:     &uid,
			AnswerText: values[q.ID],
		})
	}

	err = s.Submissions.DB.Transaction(func(tx *gorm.DB) error {
		return s.create(s.Submissions.WithTx(tx), sub)
	})
	if err != nil {
		if errors.Is(err, util.ErrAlreadyAnswered) {
			monitoring.DuplicateSubmissions.Inc()
		}
		tracing.RecordError(span, err)
		return nil, err
	}

	summary := grading.ScoreSubmission(form.Type, form.Questions, sub.Responses)
	monitoring.SubmissionsTotal.WithLabelValues(string(form.Type)).Inc()
	monitoring.ScorePercentage.Observe(float64(summary.Percentage))
	span.SetAttributes(
		attribute.Int64("submission.id", int64(sub.ID)),
		attribute.Float64("submission.score", summary.Score),
	)
	logger.Log.Info("quiz submitted",
		zap.Uint("form_id", form.ID),
		zap.Uint("user_id", userID),
		zap.Float64("score", summary.Score),
		zap.Float64("max_score", summary.MaxScore),
	)

	return &QuizResult{
		SubmissionID:   sub.ID,
		Score:          summary.Score,
		MaxScore:       summary.MaxScore,
		Percentage:     summary.Percentage,
		CorrectCount:   summary.CorrectCount,
		IncorrectCount: summary.IncorrectCount,
	}, nil
}

// SubmitSurvey 保存问卷回答；文件回答先上传，上传失败整体回滚
func (s *SubmissionService) SubmitSurvey(ctx context.Context, code string, userID *uint, req *SubmitReq, files AnswerFiles) (*SurveyReceipt, error) {
	ctx, span := tracing.Tracer.Start(ctx, "SubmissionService.SubmitSurvey")
	defer span.End()

	form, err := s.answerable(code, model.FormTypeSurvey)
	if err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkSurveyAnswers(form, req, files); err != nil {
		return nil, err
	}

	sub := &model.Submission{
		FormID:    form.ID,
		UserID:    userID,
		UniqueKey: s.uniqueKey(form, userID),
	}
	uploads := newUploadBatch(s.Storage)
	err = s.Submissions.DB.Transaction(func(tx *gorm.DB) error {
		for i, a := range req.Answers {
			text := answerText(a.Value)
			if fh, ok := files[i]; ok {
				url, _, err := uploads.put(ctx, util.FolderResponses, fh)
				if err != nil {
					return err
				}
				text = &url
			}
			sub.Responses = append(sub.Responses, model.Response{
				QuestionID: a.QuestionID,
				FormID:     form.ID,
				UserID:     userID,
				AnswerText: text,
			})
		}
		return s.create(s.Submissions.WithTx(tx), sub)
	})
	if err != nil {
		uploads.rollback(ctx)
		if errors.Is(err, util.ErrAlreadyAnswered) {
			monitoring.DuplicateSubmissions.Inc()
		}
		tracing.RecordError(span, err)
		return nil, err
	}

	monitoring.SubmissionsTotal.WithLabelValues(string(form.Type)).Inc()
	span.SetAttributes(attribute.Int64("submission.id", int64(sub.ID)))
	return &SurveyReceipt{SubmissionID: sub.ID, Responses: len(sub.Responses)}, nil
}

func (s *SubmissionService) checkSurveyAnswers(form *model.Form, req *SubmitReq, files AnswerFiles) error {
	byID := make(map[uint]*model.Question, len(form.Questions))
	for i := range form.Questions {
		byID[form.Questions[i].ID] = &form.Questions[i]
	}

	v := util.NewValidationError()
	for i, a := range req.Answers {
		if _, ok := byID[a.QuestionID]; !ok {
			v.Add(fmt.Sprintf("answers[%d].question_id", i), "does not belong to this form")
		}
	}
	for i, fh := range files {
		field := fmt.Sprintf("answers[%d].value", i)
		if i < 0 || i >= len(req.Answers) {
			v.Add(field, "has no matching answer")
			continue
		}
		if s.MaxUploadBytes > 0 && fh.Size > s.MaxUploadBytes {
			v.Add(field, "exceeds the upload limit")
			continue
		}
		q, ok := byID[req.Answers[i].QuestionID]
		if !ok || len(q.AllowedTypes) == 0 {
			continue
		}
		f, err := fh.Open()
		if err != nil {
			v.Add(field, "could not be read")
			continue
		}
		_, err = util.ValidateMimeType(f, fh.Filename, q.AllowedTypes)
		f.Close()
		if err != nil {
			v.Add(field, err.Error())
		}
	}
	return v.OrNil()
}

// DeleteSubmission 仅表单所有者可删除，非所有者返回 ErrForbidden
func (s *SubmissionService) DeleteSubmission(ctx context.Context, ownerID, submissionID uint) error {
	sub, err := s.Submissions.FindByID(submissionID)
	if err != nil {
		return err
	}
	if sub.Form == nil || sub.Form.UserID != ownerID {
		return util.ErrForbidden
	}
	err = s.Submissions.DB.Transaction(func(tx *gorm.DB) error {
		return s.Submissions.WithTx(tx).Delete(sub.ID)
	})
	if err != nil {
		return err
	}
	logger.Log.Info("submission deleted", zap.Uint("submission_id", sub.ID), zap.Uint("owner_id", ownerID))
	return nil
}
