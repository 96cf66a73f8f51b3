package model

import "time"

// RouteState is one named state value of a route, e.g. "train1Dest".
type RouteState struct {
	RouteID   string    `gorm:"primaryKey;size:64"`
	Key       string    `gorm:"primaryKey;size:64"`
	Value     string    `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}
