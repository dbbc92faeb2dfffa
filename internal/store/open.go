package store

import (
	"fmt"

	"github.com/mmcdole/stork/internal/config"
	"github.com/mmcdole/stork/internal/domain"
)

// Open returns the store selected by cfg.Store.Driver
func Open(cfg *config.Config) (domain.Store, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverBolt, "":
		return NewBoltStore(cfg.StorePath())
	case config.StoreDriverSQLite:
		return NewSQLiteStore(cfg.StorePath())
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
