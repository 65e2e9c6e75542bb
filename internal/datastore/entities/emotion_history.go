package entities

import "time"

// EmotionHistory is one stored detection. Cat and dog rows share this layout
// and live in separate tables.
type EmotionHistory struct {
	ID            uint               `gorm:"primaryKey"`
	PetID         uint               `gorm:"not null;index"`
	Emotion       string             `gorm:"size:20;not null"`
	Confidence    float64            `gorm:"not null"`
	Probabilities map[string]float64 `gorm:"serializer:json;type:text;not null"`
	ImageURL      *string            `gorm:"type:varchar(500)"`
	CreatedAt     time.Time          `gorm:"autoCreateTime;index"`
}

// CatEmotionHistory rows are stored in cat_emotion_history.
type CatEmotionHistory struct {
	EmotionHistory
	Pet *Pet `gorm:"foreignKey:PetID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM.
func (CatEmotionHistory) TableName() string {
	return "cat_emotion_history"
}

// DogEmotionHistory rows are stored in dog_emotion_history.
type DogEmotionHistory struct {
	EmotionHistory
	Pet *Pet `gorm:"foreignKey:PetID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM.
func (DogEmotionHistory) TableName() string {
	return "dog_emotion_history"
}
