package model

import "time"

// CycleRecord is the outcome of one poll cycle for a route.
type CycleRecord struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"-"`
	RouteID      string    `gorm:"size:64;not null;index:idx_cycle_route_started,priority:1" json:"routeId"`
	CycleID      string    `gorm:"size:36;not null" json:"cycleId"`
	StartedAt    time.Time `gorm:"not null;index:idx_cycle_route_started,priority:2,sort:desc" json:"startedAt"`
	FinishedAt   time.Time `gorm:"not null" json:"finishedAt"`
	State        string    `gorm:"size:32;not null" json:"state"`
	DeviceStatus string    `gorm:"size:32" json:"deviceStatus"`
	Services     int       `json:"services"`
	Rendered     bool      `json:"rendered"`
	Error        string    `json:"error,omitempty"`
}
