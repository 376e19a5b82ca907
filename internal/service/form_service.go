package service

import (
	"context"
	"errors"

	"formquiz_backend/internal/config"
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

const maxCodeAttempts = 10

type FormService struct {
	Forms          *repository.FormRepository
	Submissions    *repository.SubmissionRepository
	Storage        Uploader
	Policy         *AccessPolicy
	Cache          *FormCache
	CodeLength     int
	MaxUploadBytes int64
}

func NewFormService(forms *repository.FormRepository, submissions *repository.SubmissionRepository, storage Uploader, policy *AccessPolicy, cache *FormCache, cfg *config.Config) *FormService {
	return &FormService{
		Forms:          forms,
		Submissions:    submissions,
		Storage:        storage,
		Policy:         policy,
		Cache:          cache,
		CodeLength:     cfg.Forms.CodeLength,
		MaxUploadBytes: cfg.Storage.MaxUploadMB << 20,
	}
}

// Permission 答题前的权限检查结果
type Permission struct {
	Status      string         `json:"status"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Type        model.FormType `json:"type"`
}

// ParseFormFilter 非法的筛选值直接忽略
func ParseFormFilter(status, formType string) repository.FormFilter {
	var f repository.FormFilter
	switch model.FormStatus(status) {
	case model.FormStatusDraft, model.FormStatusPublic, model.FormStatusPrivate, model.FormStatusDisabled:
		f.Status = model.FormStatus(status)
	}
	switch model.FormType(formType) {
	case model.FormTypeQuiz, model.FormTypeSurvey:
		f.Type = model.FormType(formType)
	}
	return f
}

func (s *FormService) newCode(repo *repository.FormRepository) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := util.GenerateCode(s.CodeLength)
		if err != nil {
			return "", err
		}
		exists, err := repo.CodeExists(code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", errors.New("could not allocate a unique form code")
}

// Create 创建表单；routeType 非空时由路由固定类型（/quizzes、/surveys）
func (s *FormService) Create(ctx context.Context, ownerID uint, routeType model.FormType, req *FormReq, files QuestionFiles) (*model.Form, error) {
	ctx, span := tracing.Tracer.Start(ctx, "FormService.Create")
	defer span.End()

	formType := routeType
	if formType == "" {
		formType = model.FormType(req.Type)
	} else if req.Type != "" && model.FormType(req.Type) != routeType {
		return nil, util.ErrWrongFormType
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if formType == "" {
		v := util.NewValidationError()
		v.Add("type", "is required")
		return nil, v
	}
	if err := checkFiles(files, len(req.Questions), s.MaxUploadBytes); err != nil {
		return nil, err
	}

	status := model.FormStatusDraft
	if req.Status != "" {
		status = model.FormStatus(req.Status)
	}
	description := ""
	if req.Description != nil {
		description = *req.Description
	}
	questions := req.toQuestions(formType)

	uploads := newUploadBatch(s.Storage)
	var form *model.Form
	err := s.Forms.DB.Transaction(func(tx *gorm.DB) error {
		repo := s.Forms.WithTx(tx)
		code, err := s.newCode(repo)
		if err != nil {
			return err
		}
		if err := uploads.attach(ctx, questions, files); err != nil {
			return err
		}
		form = &model.Form{
			UserID:      ownerID,
			Title:       req.Title,
			Description: description,
			Status:      status,
			Type:        formType,
			Code:        code,
			Questions:   questions,
		}
		return repo.Create(form)
	})
	if err != nil {
		uploads.rollback(ctx)
		tracing.RecordError(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.Int64("form.id", int64(form.ID)), attribute.String("form.type", string(formType)))
	monitoring.FormsCreated.WithLabelValues(string(formType)).Inc()
	logger.Log.Info("form created", zap.Uint("form_id", form.ID), zap.Uint("owner_id", ownerID), zap.String("type", string(formType)))
	return form, nil
}

// owned 加载属于 ownerID 的表单；routeType 非空时类型不符视为不存在
func (s *FormService) owned(ownerID, formID uint, routeType model.FormType) (*model.Form, error) {
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
	return form, nil
}

// Update 全量替换题目、选项与附件；类型创建后不可修改
func (s *FormService) Update(ctx context.Context, ownerID, formID uint, routeType model.FormType, req *FormReq, files QuestionFiles) (*model.Form, error) {
	ctx, span := tracing.Tracer.Start(ctx, "FormService.Update")
	defer span.End()

	form, err := s.owned(ownerID, formID, routeType)
	if err != nil {
		return nil, err
	}
	if req.Type != "" && model.FormType(req.Type) != form.Type {
		return nil, util.ErrFormTypeImmutable
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := checkFiles(files, len(req.Questions), s.MaxUploadBytes); err != nil {
		return nil, err
	}

	form.Title = req.Title
	if req.Description != nil {
		form.Description = *req.Description
	}
	if req.Status != "" {
		form.Status = model.FormStatus(req.Status)
	}
	questions := req.toQuestions(form.Type)

	uploads := newUploadBatch(s.Storage)
	err = s.Forms.DB.Transaction(func(tx *gorm.DB) error {
		repo := s.Forms.WithTx(tx)
		if err := uploads.attach(ctx, questions, files); err != nil {
			return err
		}
		if err := repo.UpdateFields(form); err != nil {
			return err
		}
		return repo.ReplaceQuestions(form.ID, questions)
	})
	if err != nil {
		uploads.rollback(ctx)
		tracing.RecordError(span, err)
		return nil, err
	}
	s.Cache.Invalidate(ctx, form.Code)

	return s.Forms.FindByID(form.ID)
}

func (s *FormService) List(ownerID uint, filter repository.FormFilter) ([]model.Form, error) {
	return s.Forms.ListByOwner(ownerID, filter)
}

func (s *FormService) Summary(ownerID uint, filter repository.FormFilter) ([]repository.FormSummary, error) {
	return s.Forms.ListSummaryByOwner(ownerID, filter)
}

func (s *FormService) Get(ownerID, formID uint, routeType model.FormType) (*model.Form, error) {
	return s.owned(ownerID, formID, routeType)
}

// Delete 软删除：状态置为 deleted
func (s *FormService) Delete(ctx context.Context, ownerID, formID uint) error {
	form, err := s.owned(ownerID, formID, "")
	if err != nil {
		return err
	}
	if err := s.Forms.UpdateStatus(form.ID, model.FormStatusDeleted); err != nil {
		return err
	}
	s.Cache.Invalidate(ctx, form.Code)
	logger.Log.Info("form deleted", zap.Uint("form_id", form.ID), zap.Uint("owner_id", ownerID))
	return nil
}

// Public 按分享码获取答题视图，仅公开状态可见
func (s *FormService) Public(ctx context.Context, code string) (*PublicForm, error) {
	code = util.NormalizeCode(code)
	// 先读代数再读库，之后的 Invalidate 会让这次写入的缓存失效
	cached, gen, ok := s.Cache.Get(ctx, code)
	if ok {
		return cached, nil
	}
	form, err := s.Forms.FindByCode(code)
	if err != nil {
		return nil, err
	}
	if err := s.Policy.CanAnswer(form); err != nil {
		return nil, err
	}
	view := s.Policy.PublicView(form)
	s.Cache.Set(ctx, gen, view)
	return view, nil
}

func (s *FormService) Permission(code string, userID uint) (*Permission, error) {
	form, err := s.Forms.FindByCode(util.NormalizeCode(code))
	if err != nil {
		return nil, err
	}
	if err := s.Policy.CanAnswer(form); err != nil {
		return nil, err
	}

	result := &Permission{
		Status:      util.PermissionPermitted,
		Title:       form.Title,
		Description: form.Description,
		Type:        form.Type,
	}
	if s.Policy.RequiresUniqueSubmission(form, &userID) {
		answered, err := s.Submissions.ExistsForUser(form.ID, userID)
		if err != nil {
			return nil, err
		}
		if answered {
			result.Status = util.PermissionAlreadyAnswered
		}
	}
	return result, nil
}
