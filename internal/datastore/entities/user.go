// Package entities defines the GORM models persisted by the datastore.
package entities

import "time"

// User owns pets. Only the columns referenced by pets are modelled.
type User struct {
	ID           uint   `gorm:"primaryKey"`
	Username     string `gorm:"size:100;not null"`
	UserEmail    string `gorm:"column:useremail;size:255;uniqueIndex;not null"`
	UserPassword string `gorm:"column:userpassword;size:255;not null" json:"-"`
	Gender       string `gorm:"size:20"`
	UserType     string `gorm:"size:30;not null;default:pet_owner"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName returns the table name for GORM.
func (User) TableName() string {
	return "users"
}
