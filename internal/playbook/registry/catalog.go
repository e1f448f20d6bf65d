// Package registry adapts the teacher's runtime/registry Manager/Cache
// (tool/toolset discovery across federated registries) into a
// playbook.Catalog: discovery of Playbook Templates and Variants across
// tenant/profile/system/workspace scopes. §4.5.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mindscape-ai/core/internal/playbook"
	"github.com/mindscape-ai/core/internal/telemetry"
)

// maxCachedWorkspaces bounds the per-workspace variant cache so a
// deployment with many transient workspaces (e.g. short-lived
// evaluation sandboxes) cannot grow it without limit; the least
// recently queried workspace's cached variants are evicted first.
const maxCachedWorkspaces = 4096

type cachedVariants struct {
	variants []*playbook.Variant
	at       time.Time
}

// Source is one federated template source (e.g. a tenant-wide or
// system-wide playbook pack), generalizing the teacher's RegistryClient.
type Source interface {
	Name() string
	ListTemplates(ctx context.Context) ([]*playbook.Template, error)
	ListVariants(ctx context.Context, workspaceID string) ([]*playbook.Variant, error)
}

type sourceEntry struct {
	source   Source
	cacheTTL time.Duration
}

// Catalog coordinates multiple Sources, caching their template/variant
// lists and serving playbook.Catalog lookups, mirroring the teacher's
// Manager's unified discovery-across-registries shape.
type Catalog struct {
	mu      sync.RWMutex
	sources map[string]*sourceEntry
	logger  telemetry.Logger

	cacheMu   sync.Mutex
	cachedAt  time.Time
	templates []*playbook.Template

	variantsMu sync.Mutex
	variants   *lru.Cache[string, cachedVariants]
}

// NewCatalog constructs an empty Catalog.
func NewCatalog(logger telemetry.Logger) *Catalog {
	variants, _ := lru.New[string, cachedVariants](maxCachedWorkspaces)
	return &Catalog{
		sources:  make(map[string]*sourceEntry),
		logger:   logger,
		variants: variants,
	}
}

// Register adds a federated template Source to the catalog.
func (c *Catalog) Register(src Source, cacheTTL time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources[src.Name()] = &sourceEntry{source: src, cacheTTL: cacheTTL}
}

// TemplatesByCode implements playbook.Catalog.
func (c *Catalog) TemplatesByCode(ctx context.Context, code string) ([]*playbook.Template, error) {
	all, err := c.allTemplates(ctx)
	if err != nil {
		return nil, err
	}
	var out []*playbook.Template
	for _, t := range all {
		if t.Code == code {
			out = append(out, t)
		}
	}
	return out, nil
}

// ByTags implements playbook.Catalog.
func (c *Catalog) ByTags(ctx context.Context, tags []string) ([]*playbook.Template, error) {
	all, err := c.allTemplates(ctx)
	if err != nil {
		return nil, err
	}
	if len(tags) == 0 {
		return all, nil
	}
	want := make(map[string]bool, len(tags))
	for _, t := range tags {
		want[t] = true
	}
	var out []*playbook.Template
	for _, t := range all {
		for _, tag := range t.Tags {
			if want[tag] {
				out = append(out, t)
				break
			}
		}
	}
	return out, nil
}

// VariantsFor implements playbook.Catalog.
func (c *Catalog) VariantsFor(ctx context.Context, workspaceID, code, version string) ([]*playbook.Variant, error) {
	c.variantsMu.Lock()
	cached, ok := c.variants.Get(workspaceID)
	c.variantsMu.Unlock()
	if ok && time.Since(cached.at) <= 30*time.Second {
		return filterVariants(cached.variants, code, version), nil
	}

	c.mu.RLock()
	sources := make([]*sourceEntry, 0, len(c.sources))
	for _, s := range c.sources {
		sources = append(sources, s)
	}
	c.mu.RUnlock()

	var all []*playbook.Variant
	for _, entry := range sources {
		vs, err := entry.source.ListVariants(ctx, workspaceID)
		if err != nil {
			c.logger.Warn(ctx, "playbook registry: list variants failed", "source", entry.source.Name(), "error", err)
			continue
		}
		all = append(all, vs...)
	}

	c.variantsMu.Lock()
	c.variants.Add(workspaceID, cachedVariants{variants: all, at: time.Now()})
	c.variantsMu.Unlock()

	return filterVariants(all, code, version), nil
}

func filterVariants(vs []*playbook.Variant, code, version string) []*playbook.Variant {
	var out []*playbook.Variant
	for _, v := range vs {
		if v.ParentCode == code && v.ParentVersion == version {
			out = append(out, v)
		}
	}
	return out
}

func (c *Catalog) allTemplates(ctx context.Context) ([]*playbook.Template, error) {
	c.cacheMu.Lock()
	if time.Since(c.cachedAt) < 30*time.Second && c.templates != nil {
		cached := c.templates
		c.cacheMu.Unlock()
		return cached, nil
	}
	c.cacheMu.Unlock()

	c.mu.RLock()
	sources := make([]*sourceEntry, 0, len(c.sources))
	for _, s := range c.sources {
		sources = append(sources, s)
	}
	c.mu.RUnlock()

	var all []*playbook.Template
	for _, entry := range sources {
		ts, err := entry.source.ListTemplates(ctx)
		if err != nil {
			return nil, fmt.Errorf("playbook registry: list templates from %s: %w", entry.source.Name(), err)
		}
		all = append(all, ts...)
	}

	c.cacheMu.Lock()
	c.templates = all
	c.cachedAt = time.Now()
	c.cacheMu.Unlock()
	return all, nil
}
