package uc

import (
	"context"

	"github.com/weftworks/loom/engine/store/sqlite"
)

type Migrate struct {
	store *sqlite.Store
}

func NewMigrate(s *sqlite.Store) *Migrate {
	return &Migrate{store: s}
}

func (uc *Migrate) Execute(ctx context.Context) error {
	return uc.store.ApplyMigrations(ctx)
}
