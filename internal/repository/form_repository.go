package repository

import (
	"time"

	"formquiz_backend/internal/model"

	"gorm.io/gorm"
)

type FormRepository struct {
	DB *gorm.DB
}

func NewFormRepository(db *gorm.DB) *FormRepository {
	return &FormRepository{DB: db}
}

// WithTx 返回绑定到事务的仓库
func (r *FormRepository) WithTx(tx *gorm.DB) *FormRepository {
	return &FormRepository{DB: tx}
}

// FormFilter 列表筛选条件，空值表示不过滤
type FormFilter struct {
	Status model.FormStatus
	Type   model.FormType
}

// FormSummary 表单概览（不含题目内容）
type FormSummary struct {
	ID             uint             `json:"id"`
	Title          string           `json:"title"`
	Status         model.FormStatus `json:"status"`
	Code           string           `json:"code"`
	Type           model.FormType   `json:"type"`
	UpdatedAt      time.Time        `json:"updatedAt"`
	Answered       int64            `json:"answered"`
	QuestionsCount int64            `json:"questionsCount"`
}

func orderByPosition(table string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Order(table + ".position ASC, " + table + ".id ASC")
	}
}

func orderByID(table string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Order(table + ".id ASC")
	}
}

// withTree 预加载题目、选项、附件，均按位置排序
func withTree(db *gorm.DB, prefix string) *gorm.DB {
	return db.
		Preload(prefix+"Questions", orderByPosition("questions")).
		Preload(prefix+"Questions.Options", orderByPosition("options")).
		Preload(prefix+"Questions.Attachments", orderByID("attachments"))
}

func (r *FormRepository) Create(form *model.Form) error {
	return r.DB.Create(form).Error
}

func (r *FormRepository) CodeExists(code string) (bool, error) {
	var count int64
	err := r.DB.Unscoped().Model(&model.Form{}).Where("code = ?", code).Count(&count).Error
	return count > 0, err
}

// FindByID 已删除的表单视为不存在
func (r *FormRepository) FindByID(id uint) (*model.Form, error) {
	var form model.Form
	err := withTree(r.DB, "").
		Where("status <> ?", model.FormStatusDeleted).
		First(&form, id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &form, nil
}

func (r *FormRepository) FindByCode(code string) (*model.Form, error) {
	var form model.Form
	err := withTree(r.DB, "").
		Where("code = ? AND status <> ?", code, model.FormStatusDeleted).
		First(&form).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &form, nil
}

// ReplaceQuestions 物理删除旧题目及其选项、附件，再写入新题目
func (r *FormRepository) ReplaceQuestions(formID uint, questions []model.Question) error {
	var ids []uint
	if err := r.DB.Unscoped().Model(&model.Question{}).Where("form_id = ?", formID).Pluck("id", &ids).Error; err != nil {
		return err
	}
	if len(ids) > 0 {
		if err := r.DB.Unscoped().Where("question_id IN ?", ids).Delete(&model.Option{}).Error; err != nil {
			return err
		}
		if err := r.DB.Unscoped().Where("question_id IN ?", ids).Delete(&model.Attachment{}).Error; err != nil {
			return err
		}
		if err := r.DB.Unscoped().Where("id IN ?", ids).Delete(&model.Question{}).Error; err != nil {
			return err
		}
	}

	if len(questions) == 0 {
		return nil
	}
	for i := range questions {
		questions[i].FormID = formID
	}
	return r.DB.Create(&questions).Error
}

// UpdateFields 更新表单基本信息（包含零值）
func (r *FormRepository) UpdateFields(form *model.Form) error {
	return r.DB.Model(&model.Form{}).Where("id = ?", form.ID).Updates(map[string]interface{}{
		"title":       form.Title,
		"description": form.Description,
		"status":      form.Status,
	}).Error
}

func (r *FormRepository) UpdateStatus(id uint, status model.FormStatus) error {
	return r.DB.Model(&model.Form{}).Where("id = ?", id).Update("status", status).Error
}

func ownerScope(userID uint, filter FormFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		db = db.Where("forms.user_id = ? AND forms.status <> ?", userID, model.FormStatusDeleted)
		if filter.Status != "" {
			db = db.Where("forms.status = ?", filter.Status)
		}
		if filter.Type != "" {
			db = db.Where("forms.type = ?", filter.Type)
		}
		return db
	}
}

// ListByOwner 返回用户的全部表单（含题目），按更新时间倒序
func (r *FormRepository) ListByOwner(userID uint, filter FormFilter) ([]model.Form, error) {
	var forms []model.Form
	err := withTree(r.DB, "").
		Scopes(ownerScope(userID, filter)).
		Order("forms.updated_at DESC, forms.id DESC").
		Find(&forms).Error
	return forms, err
}

// ListSummaryByOwner 返回表单概览及提交数、题目数
func (r *FormRepository) ListSummaryByOwner(userID uint, filter FormFilter) ([]FormSummary, error) {
	var out []FormSummary
	err := r.DB.Model(&model.Form{}).
		Select("forms.id, forms.title, forms.status, forms.code, forms.type, forms.updated_at, " +
			"(SELECT COUNT(*) FROM submissions WHERE submissions.form_id = forms.id AND submissions.deleted_at IS NULL) AS answered, " +
			"(SELECT COUNT(*) FROM questions WHERE questions.form_id = forms.id AND questions.deleted_at IS NULL) AS questions_count").
		Scopes(ownerScope(userID, filter)).
		Order("forms.updated_at DESC, forms.id DESC").
		Scan(&out).Error
	return out, err
}
