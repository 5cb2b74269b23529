package database

import "time"

// Object is one stored object row.
type Object struct {
	Path      string    `gorm:"primaryKey;size:1024"`
	Data      []byte    `gorm:"not null"`
	Size      int64     `gorm:"not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}
