package db

import "time"

type Game struct {
	ID             int64         `gorm:"primaryKey"`
	Name           string        `gorm:"size:255;not null"`
	DeckID         int           `gorm:"not null"`
	Completed      bool          `gorm:"not null;default:false"`
	CurrentStoryID *int64        `gorm:"index"`
	OwnerID        string        `gorm:"size:128;index;not null"`
	CreatedAt      time.Time     `gorm:"index;not null"`
	Participants   []Participant `gorm:"constraint:OnDelete:CASCADE"`
	Stories        []Story       `gorm:"constraint:OnDelete:CASCADE"`
	Events         []Event       `gorm:"constraint:OnDelete:CASCADE"`
}
