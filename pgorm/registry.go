package pgorm

import (
	"fmt"
	"sync"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// DialectorOpener is an alias for a function that returns a
// gorm.Dialector for a given DSN.
type DialectorOpener = func(string) gorm.Dialector

var (
	registryMu sync.RWMutex
	providers  = make(map[string]DialectorOpener)
)

func init() {
	Register("sqlite", sqlite.Open)
	Register("postgres", postgres.Open)
	Register("mysql", mysql.Open)
}

// Register adds a database provider to the registry. Applications with
// exotic backends register their own opener before calling Open.
func Register(name string, opener DialectorOpener) {
	registryMu.Lock()
	defer registryMu.Unlock()
	providers[name] = opener
}

// Open connects to the named database provider and returns the handle.
// A nil config gets GORM defaults.
func Open(name, dsn string, config *gorm.Config) (*gorm.DB, error) {
	registryMu.RLock()
	opener, ok := providers[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("pgorm: unknown database provider %q", name)
	}
	if config == nil {
		config = &gorm.Config{}
	}

	db, err := gorm.Open(opener(dsn), config)
	if err != nil {
		return nil, fmt.Errorf("pgorm: open %s: %w", name, err)
	}
	return db, nil
}

// OpenTupleStore opens the database and returns a migrated tuple
// repository. Set migrate to false when the schema is managed
// externally.
func OpenTupleStore(name, dsn string, migrate bool) (*TupleRepository, error) {
	db, err := Open(name, dsn, nil)
	if err != nil {
		return nil, err
	}

	repo := NewTupleRepository(db)
	if migrate {
		if err := repo.AutoMigrate(); err != nil {
			return nil, fmt.Errorf("pgorm: migrate tuples: %w", err)
		}
	}
	return repo, nil
}
