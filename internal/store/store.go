// Package store persists delivered advisories. Two drivers are provided:
// SQLite for single-node deployments and Postgres for shared ones.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/parut/agri-advisor/internal/model"
)

// ErrAdvisoryNotFound is returned when a lookup matches no stored advisory.
var ErrAdvisoryNotFound = eris.New("store: advisory not found")

// ListFilter specifies criteria for listing advisories.
type ListFilter struct {
	Region string `json:"region,omitempty"`
	Crop   string `json:"crop,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// Store defines the persistence interface for advisories.
type Store interface {
	SaveAdvisory(ctx context.Context, adv *model.Advisory) error
	GetAdvisory(ctx context.Context, id string) (*model.Advisory, error)
	ListAdvisories(ctx context.Context, filter ListFilter) ([]model.Advisory, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
