package db

import (
	"time"

	"gorm.io/datatypes"
)

type Event struct {
	ID        int64          `gorm:"primaryKey"`
	GameID    int64          `gorm:"index;not null"`
	UserID    string         `gorm:"size:128;not null;default:''"`
	Type      string         `gorm:"size:64;not null"`
	Payload   datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt time.Time      `gorm:"not null"`
}
