package resource

import (
	"context"
	"sync"

	"github.com/weftworks/loom/engine/core"
	"github.com/weftworks/loom/engine/store"
)

// Shed memoizes Resource instances by name for the lifetime of one
// execution scope, so every holder of a name shares the same mutable
// instance. Guarded for use from concurrent runners.
type Shed struct {
	mu        sync.Mutex
	store     store.Store
	resources map[string]*Resource
}

func NewShed(s store.Store) *Shed {
	return &Shed{store: s, resources: make(map[string]*Resource)}
}

// Get returns the cached resource for name, configuring and caching a new
// one on first request.
func (sh *Shed) Get(ctx context.Context, name string) (*Resource, error) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if res, ok := sh.resources[name]; ok {
		return res, nil
	}
	config := core.NewRecord()
	config.Set("name", core.String(name))
	res, err := New(ctx, sh.store, config, "", sh)
	if err != nil {
		return nil, err
	}
	sh.resources[name] = res
	return res, nil
}
