package db

import "time"

type Round struct {
	ID        int64      `gorm:"primaryKey"`
	StoryID   int64      `gorm:"index;not null"`
	Completed bool       `gorm:"not null;default:false"`
	CreatedAt time.Time  `gorm:"not null"`
	Estimates []Estimate `gorm:"constraint:OnDelete:CASCADE"`
}
