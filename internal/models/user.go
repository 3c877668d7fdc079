package models

import (
	"time"
)

// User is the identity record behind every role. Account management lives
// outside the judging core; this table only backs token verification and
// display-name lookups.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"uniqueIndex;not null" json:"username"`
	FirstName string    `gorm:"size:100" json:"firstName"`
	LastName  string    `gorm:"size:100" json:"lastName"`
	Role      string    `gorm:"size:20;not null;default:listener" json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}

// Song is the content-store record a judging session points at. Upload and
// storage mechanics are external to the core.
type Song struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	Artist    string    `gorm:"size:255" json:"artist"`
	Genre     string    `gorm:"size:100" json:"genre"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName specifies the table name for Song model
func (Song) TableName() string {
	return "songs"
}
