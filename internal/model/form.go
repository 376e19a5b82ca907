package model

type FormStatus string

const (
	FormStatusDraft    FormStatus = "draft"
	FormStatusPublic   FormStatus = "public"
	FormStatusPrivate  FormStatus = "private"
	FormStatusDisabled FormStatus = "disabled"
	FormStatusDeleted  FormStatus = "deleted"
)

type FormType string

const (
	FormTypeQuiz   FormType = "quiz"
	FormTypeSurvey FormType = "survey"
)

// Form 测验与问卷共用的表单，类型创建后不可修改
// swagger:model Form
type Form struct {
	BaseModel
	UserID      uint       `gorm:"index;not null" json:"userId"`
	User        *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	Status      FormStatus `gorm:"size:20;index;not null" json:"status"`
	Type        FormType   `gorm:"size:20;index;not null" json:"type"`
	Code        string     `gorm:"size:16;uniqueIndex;not null" json:"code"`
	Questions   []Question `gorm:"foreignKey:FormID" json:"questions"`
}

func (Form) TableName() string {
	return "forms"
}

func (f *Form) IsQuiz() bool {
	return f.Type == FormTypeQuiz
}
