// Package permafrost bundles default constructors for embedding the
// permissions engine into an application with GORM persistence.
package permafrost

import (
	"gorm.io/gorm"

	"github.com/waddlechat/permafrost/audit"
	"github.com/waddlechat/permafrost/permissions"
	"github.com/waddlechat/permafrost/pgorm"
)

// NewDefaultService creates a permissions service backed by GORM with
// the stock platform schemas. The tuple table is migrated on the spot.
func NewDefaultService(db *gorm.DB, opts ...permissions.ServiceOption) (*permissions.Service, error) {
	repo := pgorm.NewTupleRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		return nil, err
	}

	checker, err := permissions.NewChecker(repo, permissions.WithSchemas(permissions.DefaultSchemas()...))
	if err != nil {
		return nil, err
	}

	return permissions.NewService(repo, checker, opts...), nil
}

// NewDefaultAuditStore creates a GORM-backed audit store, migrating its
// table on the spot.
func NewDefaultAuditStore(db *gorm.DB) (audit.Store, error) {
	repo := pgorm.NewAuditRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		return nil, err
	}
	return repo, nil
}

// NewMemoryService creates a fully in-memory permissions service with
// the stock schemas. Useful for tests and embedded single-node setups.
func NewMemoryService(opts ...permissions.ServiceOption) (*permissions.Service, error) {
	store := permissions.NewMemoryStore()
	checker, err := permissions.NewChecker(store, permissions.WithSchemas(permissions.DefaultSchemas()...))
	if err != nil {
		return nil, err
	}
	return permissions.NewService(store, checker, opts...), nil
}
