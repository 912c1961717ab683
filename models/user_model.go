package models

import (
	"time"
)

type User struct {
	ID        uint       `json:"ID" gorm:"primaryKey"`
	Username  string     `json:"username" gorm:"uniqueIndex;not null" validate:"required,min=3"`
	Email     string     `json:"email" gorm:"uniqueIndex;not null" validate:"required,email"`
	Password  string     `json:"-" gorm:"not null"`
	Role      string     `json:"role" gorm:"default:Staff"`
	LastLogin *time.Time `json:"last_login"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
