// internal/services/cache_service.go
package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/storefront-backend/internal/config"
)

// View ids name the rendered surfaces a product write can make stale.
const (
	ViewProducts      = "/products"
	ViewStorefront    = "/"
	ViewAdminProducts = "/admin/products"
)

func ProductView(id fmt.Stringer) string {
	return "/products/" + id.String()
}

func ProductEditView(id fmt.Stringer) string {
	return "/admin/products/" + id.String() + "/edit"
}

// ViewInvalidator marks views stale after a committed write.
type ViewInvalidator interface {
	Revalidate(views ...string)
}

// ViewCache holds rendered responses keyed by view id and variant (query
// string). Revalidating a view drops every variant cached under it and bumps
// the view's generation, so bodies rendered before the bump are never stored.
type ViewCache struct {
	cache *ristretto.Cache[string, []byte]
	ttl   time.Duration
	log   *logrus.Logger

	mu    sync.Mutex
	index map[string]map[string]struct{}
	gen   map[string]uint64
}

// NewViewCache returns a disabled cache when cfg.Enabled is false; every
// lookup then misses and Revalidate is a no-op.
func NewViewCache(cfg config.CacheConfig, log *logrus.Logger) (*ViewCache, error) {
	vc := &ViewCache{
		ttl:   cfg.TTL,
		log:   log,
		index: make(map[string]map[string]struct{}),
		gen:   make(map[string]uint64),
	}
	if !cfg.Enabled {
		return vc, nil
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create view cache: %w", err)
	}
	vc.cache = cache
	return vc, nil
}

func cacheKey(view, variant string) string {
	return view + "?" + variant
}

func (v *ViewCache) Get(view, variant string) ([]byte, bool) {
	if v.cache == nil {
		return nil, false
	}
	return v.cache.Get(cacheKey(view, variant))
}

// Generation is captured before rendering view and handed back to Set.
func (v *ViewCache) Generation(view string) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.gen[view]
}

// Set stores body unless view was revalidated since generation gen.
func (v *ViewCache) Set(view, variant string, gen uint64, body []byte) {
	if v.cache == nil {
		return
	}
	key := cacheKey(view, variant)

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.gen[view] != gen {
		return
	}
	if !v.cache.SetWithTTL(key, body, int64(len(body)), v.ttl) {
		return
	}
	// Wait makes the entry visible before a concurrent Revalidate can run.
	v.cache.Wait()

	keys, ok := v.index[view]
	if !ok {
		keys = make(map[string]struct{})
		v.index[view] = keys
	}
	keys[key] = struct{}{}
}

func (v *ViewCache) Revalidate(views ...string) {
	if v.cache == nil {
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	dropped := 0
	for _, view := range views {
		for key := range v.index[view] {
			v.cache.Del(key)
			dropped++
		}
		delete(v.index, view)
		v.gen[view]++
	}

	v.log.WithFields(logrus.Fields{
		"views":   views,
		"entries": dropped,
	}).Debug("Views revalidated")
}

func (v *ViewCache) Close() {
	if v.cache != nil {
		v.cache.Close()
	}
}
