package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// User is owned by the auth service; this module reads it and stores the
// push token.
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Username  string         `gorm:"uniqueIndex;size:150;not null" json:"username"`
	Email     string         `gorm:"size:255;index" json:"email"`
	FirstName string         `gorm:"size:150" json:"first_name"`
	LastName  string         `gorm:"size:150" json:"last_name"`
	IsStaff   bool           `gorm:"default:false" json:"is_staff"`
	IsActive  bool           `gorm:"default:true" json:"is_active"`
	FCMToken  string         `gorm:"size:512" json:"-"`
	Groups    []Group        `gorm:"many2many:user_groups;" json:"groups,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// InGroup reports membership in the named group, case-insensitively.
func (u *User) InGroup(name string) bool {
	for _, g := range u.Groups {
		if strings.EqualFold(g.Name, name) {
			return true
		}
	}
	return false
}

type Group struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:150;uniqueIndex;not null" json:"name"`
}

func (Group) TableName() string {
	return "groups"
}
