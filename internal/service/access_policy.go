package service

import (
	"sync/atomic"

	"formquiz_backend/internal/config"
	"formquiz_backend/internal/model"
	"formquiz_backend/internal/util"
)

// AccessPolicy 集中处理表单归属、公开状态与重复提交规则
type AccessPolicy struct {
	surveySingleSubmission atomic.Bool
}

func NewAccessPolicy(cfg *config.FormsConfig) *AccessPolicy {
	p := &AccessPolicy{}
	p.surveySingleSubmission.Store(cfg.SurveySingleSubmission)
	return p
}

// Apply 配置热更新回调
func (p *AccessPolicy) Apply(cfg *config.Config) {
	p.surveySingleSubmission.Store(cfg.Forms.SurveySingleSubmission)
}

// CanManage 非所有者与不存在一样返回 ErrNotFound，避免泄露表单是否存在
func (p *AccessPolicy) CanManage(form *model.Form, userID uint) error {
	if form == nil || form.UserID != userID || form.Status == model.FormStatusDeleted {
		return util.ErrNotFound
	}
	return nil
}

func (p *AccessPolicy) CanAnswer(form *model.Form) error {
	if form == nil || form.Status != model.FormStatusPublic {
		return util.ErrNotFound
	}
	return nil
}

// RequiresUniqueSubmission 测验始终每人一次；问卷仅在开启配置且用户已登录时限制
func (p *AccessPolicy) RequiresUniqueSubmission(form *model.Form, userID *uint) bool {
	if userID == nil {
		return false
	}
	if form.IsQuiz() {
		return true
	}
	return p.surveySingleSubmission.Load()
}

// PublicForm 答题者可见的表单，不含答案、分值与正确选项
type PublicForm struct {
	ID          uint             `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Type        model.FormType   `json:"type"`
	Code        string           `json:"code"`
	Questions   []PublicQuestion `json:"questions"`
}

type PublicQuestion struct {
	ID               uint               `json:"id"`
	Position         int                `json:"position"`
	Type             string             `json:"type"`
	Text             string             `json:"text"`
	Required         bool               `json:"required"`
	Placeholder      *string            `json:"placeholder,omitempty"`
	MinLength        *int               `json:"minLength,omitempty"`
	MaxLength        *int               `json:"maxLength,omitempty"`
	MinSelection     *int               `json:"minSelection,omitempty"`
	MaxSelection     *int               `json:"maxSelection,omitempty"`
	AllowedFileTypes []string           `json:"allowedFileTypes,omitempty"`
	ScaleMin         *int               `json:"scaleMin,omitempty"`
	ScaleMax         *int               `json:"scaleMax,omitempty"`
	ScaleLabelMin    *string            `json:"scaleLabelMin,omitempty"`
	ScaleLabelMax    *string            `json:"scaleLabelMax,omitempty"`
	Options          []PublicOption     `json:"options"`
	Attachments      []model.Attachment `json:"attachments"`
}

type PublicOption struct {
	ID       uint   `json:"id"`
	Position int    `json:"position"`
	Text     string `json:"text"`
}

func (p *AccessPolicy) PublicView(form *model.Form) *PublicForm {
	out := &PublicForm{
		ID:          form.ID,
		Title:       form.Title,
		Description: form.Description,
		Type:        form.Type,
		Code:        form.Code,
		Questions:   make([]PublicQuestion, 0, len(form.Questions)),
	}
	for _, q := range form.Questions {
		pq := PublicQuestion{
			ID:               q.ID,
			Position:         q.Position,
			Type:             q.Type,
			Text:             q.Text,
			Required:         q.Required,
			Placeholder:      q.Placeholder,
			MinLength:        q.MinLength,
			MaxLength:        q.MaxLength,
			MinSelection:     q.MinSelection,
			MaxSelection:     q.MaxSelection,
			AllowedFileTypes: q.AllowedTypes,
			ScaleMin:         q.ScaleMin,
			ScaleMax:         q.ScaleMax,
			ScaleLabelMin:    q.ScaleLabelMin,
			ScaleLabelMax:    q.ScaleLabelMax,
			Options:          make([]PublicOption, 0, len(q.Options)),
			Attachments:      q.Attachments,
		}
		for _, o := range q.Options {
			pq.Options = append(pq.Options, PublicOption{ID: o.ID, Position: o.Position, Text: o.Text})
		}
		if pq.Attachments == nil {
			pq.Attachments = []model.Attachment{}
		}
		out.Questions = append(out.Questions, pq)
	}
	return out
}
