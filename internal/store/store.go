package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"departure-board-backend/internal/model"
)

// DigestKey is the route state holding the last rendered content digest.
const DigestKey = "image_content_hash"

// Store defines the interface for all database operations.
type Store interface {
	SyncRoutes(ctx context.Context, routes []model.Route) error
	SetStates(ctx context.Context, routeID string, states map[string]string) error
	States(ctx context.Context, routeID string) (map[string]string, error)
	Digest(ctx context.Context, routeID string) (string, error)
	SaveDigest(ctx context.Context, routeID, digest string) error
	RecordCycle(ctx context.Context, rec model.CycleRecord) error
	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db, now: time.Now}
}

func (s *gormStore) DB() *gorm.DB { return s.db }

// SyncRoutes upserts the configured routes. Routes that are no longer
// configured are marked inactive rather than deleted so their history
// and subscriptions survive.
func (s *gormStore) SyncRoutes(ctx context.Context, routes []model.Route) error {
	existing, err := s.fetchAllRoutes(ctx)
	if err != nil {
		log.Printf("Warning: could not pre-fetch routes: %v", err)
		existing = make(map[string]model.Route)
	}

	var toUpsert []model.Route
	seen := make(map[string]bool, len(routes))
	for _, r := range routes {
		seen[r.ID] = true
		if old, ok := existing[r.ID]; ok && sameRoute(old, r) {
			continue
		}
		toUpsert = append(toUpsert, r)
	}

	var retired []string
	for id, old := range existing {
		if !seen[id] && old.Active {
			retired = append(retired, id)
		}
	}

	if len(toUpsert) == 0 && len(retired) == 0 {
		return nil
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(toUpsert) > 0 {
			log.Printf("Batch upserting %d routes...", len(toUpsert))
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"name", "station_crs", "station_name", "destination_crs", "destination_name", "active", "updated_at"}),
			}).Create(&toUpsert).Error; err != nil {
				return fmt.Errorf("batch upsert routes failed: %w", err)
			}
		}
		if len(retired) > 0 {
			if err := tx.Model(&model.Route{}).Where("id IN ?", retired).Update("active", false).Error; err != nil {
				return fmt.Errorf("failed to retire routes: %w", err)
			}
		}
		return nil
	})
}

func sameRoute(a, b model.Route) bool {
	return a.Name == b.Name &&
		a.StationCRS == b.StationCRS &&
		a.StationName == b.StationName &&
		a.DestinationCRS == b.DestinationCRS &&
		a.DestinationName == b.DestinationName &&
		a.Active == b.Active
}

// SetStates upserts the given state values for a route in one transaction.
func (s *gormStore) SetStates(ctx context.Context, routeID string, states map[string]string) error {
	if len(states) == 0 {
		return nil
	}
	now := s.now().UTC()
	rows := make([]model.RouteState, 0, len(states))
	for k, v := range states {
		rows = append(rows, model.RouteState{RouteID: routeID, Key: k, Value: v, UpdatedAt: now})
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return upsertStates(tx, rows)
	})
}

// States returns every state of a route.
func (s *gormStore) States(ctx context.Context, routeID string) (map[string]string, error) {
	var rows []model.RouteState
	if err := s.db.WithContext(ctx).Where("route_id = ?", routeID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch states for route %s: %w", routeID, err)
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out, nil
}

// Digest returns the stored content digest, or "" when none was saved.
func (s *gormStore) Digest(ctx context.Context, routeID string) (string, error) {
	var row model.RouteState
	err := s.db.WithContext(ctx).Where("route_id = ? AND key = ?", routeID, DigestKey).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to fetch digest for route %s: %w", routeID, err)
	}
	return row.Value, nil
}

// SaveDigest stores digest. Callers only do this after a successful render.
func (s *gormStore) SaveDigest(ctx context.Context, routeID, digest string) error {
	row := []model.RouteState{{RouteID: routeID, Key: DigestKey, Value: digest, UpdatedAt: s.now().UTC()}}
	return upsertStates(s.db.WithContext(ctx), row)
}

// RecordCycle archives a finished poll cycle.
func (s *gormStore) RecordCycle(ctx context.Context, rec model.CycleRecord) error {
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to record cycle %s for route %s: %w", rec.CycleID, rec.RouteID, err)
	}
	return nil
}

func (s *gormStore) fetchAllRoutes(ctx context.Context) (map[string]model.Route, error) {
	var routes []model.Route
	if err := s.db.WithContext(ctx).Find(&routes).Error; err != nil {
		return nil, err
	}
	m := make(map[string]model.Route, len(routes))
	for _, r := range routes {
		m[r.ID] = r
	}
	return m, nil
}

func upsertStates(tx *gorm.DB, rows []model.RouteState) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "route_id"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&rows).Error
}
