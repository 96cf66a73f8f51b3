package model

import "time"

// Route is a monitored origin and optional destination.
type Route struct {
	ID              string    `gorm:"primaryKey;size:64" json:"id"`
	Name            string    `gorm:"size:128;not null" json:"name"`
	StationCRS      string    `gorm:"size:3;not null" json:"stationCrs"`
	StationName     string    `gorm:"size:128" json:"stationName"`
	DestinationCRS  string    `gorm:"size:3;not null" json:"destinationCrs"`
	DestinationName string    `gorm:"size:128" json:"destinationName"`
	Active          bool      `gorm:"not null" json:"active"`
	CreatedAt       time.Time `gorm:"not null" json:"-"`
	UpdatedAt       time.Time `gorm:"not null" json:"updatedAt"`

	// Associations
	States []RouteState `gorm:"foreignKey:RouteID" json:"-"`
}
