package auth

import "time"

// Session is a login session; each user holds at most one.
type Session struct {
	SessionID string    `gorm:"primaryKey" json:"-"`
	UserID    string    `gorm:"not null;unique" json:"-"`
	ExpiresAt time.Time `gorm:"not null"`
}

type User struct {
	UserID          string    `gorm:"primaryKey" json:"id"`
	Username        string    `gorm:"not null;uniqueIndex" json:"username"`
	Password        string    `gorm:"-" json:"password,omitempty"`
	HashedPassword  string    `gorm:"not null" json:"-"`
	Email           *string   `json:"email"`
	FirstName       *string   `json:"firstName"`
	LastName        *string   `json:"lastName"`
	ProfileImageURL *string   `json:"profileImageUrl"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
	Session         Session   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}
