package model

import "fmt"

// Submission 一次答题提交；限制每人一次时写入 UniqueKey，NULL 不参与唯一约束
// swagger:model Submission
type Submission struct {
	BaseModel
	FormID    uint       `gorm:"index;not null" json:"formId"`
	Form      *Form      `gorm:"foreignKey:FormID" json:"form,omitempty"`
	UserID    *uint      `gorm:"index" json:"userId"`
	User      *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	UniqueKey *string    `gorm:"size:64;uniqueIndex" json:"-"`
	Responses []Response `gorm:"foreignKey:SubmissionID" json:"responses,omitempty"`
}

func (Submission) TableName() string {
	return "submissions"
}

func SubmissionKey(formID, userID uint) string {
	return fmt.Sprintf("%d:%d", formID, userID)
}

// swagger:model Response
type Response struct {
	BaseModel
	SubmissionID uint      `gorm:"index;not null" json:"submissionId"`
	QuestionID   uint      `gorm:"index;not null" json:"questionId"`
	Question     *Question `gorm:"foreignKey:QuestionID" json:"question,omitempty"`
	FormID       uint      `gorm:"index;not null" json:"formId"`
	UserID       *uint     `gorm:"index" json:"userId"`
	AnswerText   *string   `gorm:"type:text" json:"answerText"`
}

func (Response) TableName() string {
	return "responses"
}
