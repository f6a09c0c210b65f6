package db

import "time"

type Participant struct {
	ID         int64      `gorm:"primaryKey"`
	GameID     int64      `gorm:"index;not null;uniqueIndex:idx_participants_game_user"`
	UserID     string     `gorm:"size:128;not null;uniqueIndex:idx_participants_game_user"`
	Name       string     `gorm:"size:255;not null;default:''"`
	Photo      string     `gorm:"size:1024;not null;default:''"`
	Observer   bool       `gorm:"not null;default:false"`
	LastUpdate *time.Time `gorm:"column:last_update"`
	CreatedAt  time.Time  `gorm:"not null"`
}
