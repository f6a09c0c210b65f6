package db

import "time"

type Estimate struct {
	ID        int64     `gorm:"primaryKey"`
	RoundID   int64     `gorm:"index;not null;uniqueIndex:idx_estimates_round_user"`
	UserID    string    `gorm:"size:128;not null;uniqueIndex:idx_estimates_round_user"`
	Name      string    `gorm:"size:255;not null;default:''"`
	Card      int       `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}
