package entities

import "time"

// Pet is the subject of emotion history rows.
type Pet struct {
	ID          uint     `gorm:"primaryKey"`
	UserID      *uint    `gorm:"index"`
	PetName     string   `gorm:"size:100;not null"`
	Age         *int     `gorm:"column:age"`
	Weight      *float64 `gorm:"column:weight"`
	Gender      string   `gorm:"size:20"`
	Breed       string   `gorm:"size:100"`
	PetType     string   `gorm:"size:20;index"` // cat or dog
	ImageURL    *string  `gorm:"type:varchar(500)"`
	DeviceMacID *string  `gorm:"column:device_mac_id;size:32"`

	CreatedAt time.Time `gorm:"autoCreateTime"`

	User *User `gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL"`
}

// TableName returns the table name for GORM.
func (Pet) TableName() string {
	return "pets"
}
