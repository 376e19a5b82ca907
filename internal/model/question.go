package model

import "gorm.io/datatypes"

const (
	QuestionTextInput      = "text-input"
	QuestionDate           = "date"
	QuestionMultipleChoice = "multiple-choice"
	QuestionCheckbox       = "checkbox"
	QuestionRadioButton    = "radio-button"
	QuestionDropdown       = "dropdown"
	QuestionScale          = "scale"
	QuestionFile           = "file"
)

// IsChoiceType 判断题型是否为选项类
func IsChoiceType(t string) bool {
	switch t {
	case QuestionMultipleChoice, QuestionCheckbox, QuestionRadioButton, QuestionDropdown:
		return true
	}
	return false
}

// swagger:model Question
type Question struct {
	BaseModel
	FormID        uint                        `gorm:"index;not null" json:"formId"`
	Position      int                         `gorm:"not null" json:"position"`
	Type          string                      `gorm:"size:30;not null" json:"type"`
	Text          string                      `gorm:"type:text;not null" json:"text"`
	Required      bool                        `gorm:"not null" json:"required"`
	TotalScore    *float64                    `json:"totalScore"`
	Answer        *string                     `gorm:"type:text" json:"answer"`
	Placeholder   *string                     `gorm:"size:255" json:"placeholder,omitempty"`
	MinLength     *int                        `json:"minLength,omitempty"`
	MaxLength     *int                        `json:"maxLength,omitempty"`
	MinSelection  *int                        `json:"minSelection,omitempty"`
	MaxSelection  *int                        `json:"maxSelection,omitempty"`
	AllowedTypes  datatypes.JSONSlice[string] `gorm:"column:allowed_file_types" json:"allowedFileTypes,omitempty"`
	ScaleMin      *int                        `json:"scaleMin,omitempty"`
	ScaleMax      *int                        `json:"scaleMax,omitempty"`
	ScaleLabelMin *string                     `gorm:"size:255" json:"scaleLabelMin,omitempty"`
	ScaleLabelMax *string                     `gorm:"size:255" json:"scaleLabelMax,omitempty"`
	Options       []Option                    `gorm:"foreignKey:QuestionID" json:"options"`
	Attachments   []Attachment                `gorm:"foreignKey:QuestionID" json:"attachments"`
}

func (Question) TableName() string {
	return "questions"
}

// swagger:model Option
type Option struct {
	BaseModel
	QuestionID uint     `gorm:"index;not null" json:"questionId"`
	Position   int      `gorm:"not null" json:"position"`
	Text       string   `gorm:"size:500;not null" json:"text"`
	IsCorrect  bool     `gorm:"not null" json:"isCorrect"`
	Score      *float64 `json:"score"`
}

func (Option) TableName() string {
	return "options"
}

// swagger:model Attachment
type Attachment struct {
	BaseModel
	QuestionID uint   `gorm:"index;not null" json:"questionId"`
	FilePath   string `gorm:"size:1024;not null" json:"filePath"`
	FileType   string `gorm:"size:100" json:"fileType"`
}

func (Attachment) TableName() string {
	return "attachments"
}
