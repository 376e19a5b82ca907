package model

import (
	"time"
)

// swagger:model User
type User struct {
	BaseModel
	Name        string     `gorm:"size:100;not null" json:"name"`
	Email       string     `gorm:"size:100;uniqueIndex;not null" json:"email"`
	Password    string     `gorm:"size:100" json:"-"`
	Avatar      string     `gorm:"size:255" json:"avatar"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

func (User) TableName() string {
	return "users"
}
