package uc

import (
	"context"
	"strings"

	"github.com/weftworks/loom/engine/importer"
	"github.com/weftworks/loom/engine/store"
)

type ImportConfigInput struct {
	File string
}

type ImportConfig struct {
	store store.Store
}

func NewImportConfig(s store.Store) *ImportConfig {
	return &ImportConfig{store: s}
}

func (uc *ImportConfig) Execute(ctx context.Context, in *ImportConfigInput) error {
	if in == nil || strings.TrimSpace(in.File) == "" {
		return ErrInvalidInput
	}
	return importer.New(uc.store).ImportFile(ctx, in.File)
}

type SyncConfigInput struct {
	File string
}

type SyncConfig struct {
	store store.Store
}

func NewSyncConfig(s store.Store) *SyncConfig {
	return &SyncConfig{store: s}
}

func (uc *SyncConfig) Execute(ctx context.Context, in *SyncConfigInput) error {
	if in == nil || strings.TrimSpace(in.File) == "" {
		return ErrInvalidInput
	}
	return importer.New(uc.store).Sync(ctx, in.File)
}
