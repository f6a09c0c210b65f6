package db

import "time"

type Story struct {
	ID        int64     `gorm:"primaryKey"`
	GameID    int64     `gorm:"index;not null"`
	Name      string    `gorm:"type:text;not null"`
	Estimate  *int      `gorm:"column:estimate"`
	CreatedAt time.Time `gorm:"not null"`
	Rounds    []Round   `gorm:"constraint:OnDelete:CASCADE"`
}
