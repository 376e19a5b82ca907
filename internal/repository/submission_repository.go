package repository

import (
	"formquiz_backend/internal/model"
	"formquiz_backend/internal/util"

	"gorm.io/gorm"
)

type SubmissionRepository struct {
	DB *gorm.DB
}

func NewSubmissionRepository(db *gorm.DB) *SubmissionRepository {
	return &SubmissionRepository{DB: db}
}

func (r *SubmissionRepository) WithTx(tx *gorm.DB) *SubmissionRepository {
	return &SubmissionRepository{DB: tx}
}

// ResultQuery 表单结果分页查询
type ResultQuery struct {
	Search    string
	Sort      string // created_at | user
	Direction string // asc | desc
	Page      int
	Limit     int
}

// HistoryQuery 用户提交记录分页查询
type HistoryQuery struct {
	Type   model.FormType
	Search string
	Sort   string // date_asc | date_desc | alpha_asc | alpha_desc
	Page   int
	Limit  int
}

func (r *SubmissionRepository) ExistsForUser(formID, userID uint) (bool, error) {
	var count int64
	err := r.DB.Model(&model.Submission{}).
		Where("form_id = ? AND user_id = ?", formID, userID).
		Count(&count).Error
	return count > 0, err
}

// Create 连同回答一起写入；唯一键冲突返回 util.ErrAlreadyAnswered
func (r *SubmissionRepository) Create(sub *model.Submission) error {
	if err := r.DB.Create(sub).Error; err != nil {
		if IsDuplicateKey(err) {
			return util.ErrAlreadyAnswered
		}
		return err
	}
	return nil
}

func (r *SubmissionRepository) FindByID(id uint) (*model.Submission, error) {
	var sub model.Submission
	if err := r.DB.Preload("Form").First(&sub, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &sub, nil
}

// Delete 物理删除提交及其回答，释放唯一键
func (r *SubmissionRepository) Delete(id uint) error {
	if err := r.DB.Unscoped().Where("submission_id = ?", id).Delete(&model.Response{}).Error; err != nil {
		return err
	}
	return r.DB.Unscoped().Delete(&model.Submission{}, id).Error
}

func direction(d string) string {
	if d == "asc" {
		return "ASC"
	}
	return "DESC"
}

func responsesOrdered(db *gorm.DB) *gorm.DB {
	return db.Order("responses.id ASC")
}

// ListByForm 表单的提交列表，可按提交人姓名搜索
func (r *SubmissionRepository) ListByForm(formID uint, q ResultQuery) ([]model.Submission, int64, error) {
	base := func() *gorm.DB {
		db := r.DB.Model(&model.Submission{}).
			Joins("LEFT JOIN users ON users.id = submissions.user_id").
			Where("submissions.form_id = ?", formID)
		if q.Search != "" {
			db = db.Where(likeClause("users.name"), likePattern(q.Search))
		}
		return db
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "submissions.created_at " + direction(q.Direction)
	if q.Sort == "user" {
		order = "users.name " + direction(q.Direction)
	}

	var subs []model.Submission
	err := base().
		Select("submissions.*").
		Preload("User").
		Preload("Responses", responsesOrdered).
		Order(order + ", submissions.id " + direction(q.Direction)).
		Offset(offset(q.Page, q.Limit)).
		Limit(q.Limit).
		Find(&subs).Error
	return subs, total, err
}

// ListByUser 用户自己的提交记录，预加载表单题目用于计分
func (r *SubmissionRepository) ListByUser(userID uint, q HistoryQuery) ([]model.Submission, int64, error) {
	base := func() *gorm.DB {
		db := r.DB.Model(&model.Submission{}).
			Joins("JOIN forms ON forms.id = submissions.form_id").
			Where("submissions.user_id = ? AND forms.status <> ?", userID, model.FormStatusDeleted)
		if q.Type != "" {
			db = db.Where("forms.type = ?", q.Type)
		}
		if q.Search != "" {
			db = db.Where(likeClause("forms.title"), likePattern(q.Search))
		}
		return db
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var order string
	switch q.Sort {
	case "date_asc":
		order = "submissions.created_at ASC, submissions.id ASC"
	case "alpha_asc":
		order = "forms.title ASC, submissions.id DESC"
	case "alpha_desc":
		order = "forms.title DESC, submissions.id DESC"
	default:
		order = "submissions.created_at DESC, submissions.id DESC"
	}

	var subs []model.Submission
	err := withTree(base(), "Form.").
		Select("submissions.*").
		Preload("Form").
		Preload("Responses", responsesOrdered).
		Order(order).
		Offset(offset(q.Page, q.Limit)).
		Limit(q.Limit).
		Find(&subs).Error
	return subs, total, err
}

// RecentByUser 最近的提交，含题目信息用于展示与计分
func (r *SubmissionRepository) RecentByUser(userID uint, limit int) ([]model.Submission, error) {
	var subs []model.Submission
	err := withTree(r.DB, "Form.").
		Model(&model.Submission{}).
		Joins("JOIN forms ON forms.id = submissions.form_id").
		Where("submissions.user_id = ? AND forms.status <> ?", userID, model.FormStatusDeleted).
		Select("submissions.*").
		Preload("Form").
		Preload("Responses", responsesOrdered).
		Preload("Responses.Question").
		Order("submissions.created_at DESC, submissions.id DESC").
		Limit(limit).
		Find(&subs).Error
	return subs, err
}
