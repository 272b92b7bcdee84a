package library

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Logger defines the logging interface used by the Registry and Compiler.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry caches shows over a Repository.
//
// The cache is populated on startup via RefreshCache() and kept in sync by
// the CRUD methods. Shows leave the registry as deep copies.
//
// All public methods are thread-safe.
type Registry struct {
	repo    Repository
	cache   map[string]*Show // by ID
	slugs   map[string]string
	cacheMu sync.RWMutex
	logger  Logger
}

// NewRegistry creates a new show registry.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Show),
		slugs:  make(map[string]string),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	r.logger = logger
}

// Repository returns the underlying repository, for the playback log.
func (r *Registry) Repository() Repository {
	return r.repo
}

// RefreshCache reloads every show from the repository.
func (r *Registry) RefreshCache(ctx context.Context) error {
	shows, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading shows: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache = make(map[string]*Show, len(shows))
	r.slugs = make(map[string]string, len(shows))
	for i := range shows {
		s := shows[i].DeepCopy()
		r.cache[s.ID] = s
		r.slugs[s.Slug] = s.ID
	}

	r.logger.Info("show cache refreshed", "count", len(shows))
	return nil
}

// GetShow retrieves a show by ID.
func (r *Registry) GetShow(_ context.Context, id string) (*Show, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	if s, ok := r.cache[id]; ok {
		return s.DeepCopy(), nil
	}
	return nil, ErrShowNotFound
}

// GetShowBySlug retrieves a show by its slug.
func (r *Registry) GetShowBySlug(_ context.Context, slug string) (*Show, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	if id, ok := r.slugs[slug]; ok {
		return r.cache[id].DeepCopy(), nil
	}
	return nil, ErrShowNotFound
}

// Resolve looks a show up by slug first, then by ID.
func (r *Registry) Resolve(ctx context.Context, ref string) (*Show, error) {
	s, err := r.GetShowBySlug(ctx, ref)
	if err == nil {
		return s, nil
	}
	return r.GetShow(ctx, ref)
}

// ListShows returns every cached show sorted by name.
func (r *Registry) ListShows(_ context.Context) ([]Show, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	shows := make([]Show, 0, len(r.cache))
	for _, s := range r.cache {
		shows = append(shows, *s.DeepCopy())
	}
	sort.Slice(shows, func(i, j int) bool {
		if shows[i].Name != shows[j].Name {
			return shows[i].Name < shows[j].Name
		}
		return shows[i].Slug < shows[j].Slug
	})
	return shows, nil
}

// CreateShow validates, persists and caches a new show. Missing ID and slug
// are generated.
func (r *Registry) CreateShow(ctx context.Context, show *Show) error {
	if show.ID == "" {
		show.ID = GenerateID()
	}
	if show.Slug == "" {
		show.Slug = GenerateSlug(show.Name)
	}
	if show.Cues == nil {
		show.Cues = []Cue{}
	}

	if err := ValidateShow(show); err != nil {
		return err
	}
	if err := r.repo.Create(ctx, show); err != nil {
		return err
	}

	r.store(show)
	r.logger.Info("show created", "id", show.ID, "slug", show.Slug)
	return nil
}

// UpdateShow validates, persists and re-caches an existing show.
func (r *Registry) UpdateShow(ctx context.Context, show *Show) error {
	if show.Slug == "" {
		show.Slug = GenerateSlug(show.Name)
	}
	if show.Cues == nil {
		show.Cues = []Cue{}
	}

	if err := ValidateShow(show); err != nil {
		return err
	}
	if err := r.repo.Update(ctx, show); err != nil {
		return err
	}

	r.store(show)
	r.logger.Info("show updated", "id", show.ID, "slug", show.Slug)
	return nil
}

// DeleteShow removes a show from persistence and cache.
func (r *Registry) DeleteShow(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.cacheMu.Lock()
	if s, ok := r.cache[id]; ok {
		delete(r.slugs, s.Slug)
	}
	delete(r.cache, id)
	r.cacheMu.Unlock()

	r.logger.Info("show deleted", "id", id)
	return nil
}

// Import creates or updates shows by slug. Shows loaded from disk carry no
// stable ID, so an existing show with the same slug keeps its ID.
func (r *Registry) Import(ctx context.Context, shows []*Show) (created, updated int, err error) {
	for _, s := range shows {
		if s.Slug == "" {
			s.Slug = GenerateSlug(s.Name)
		}

		existing, getErr := r.GetShowBySlug(ctx, s.Slug)
		switch {
		case getErr == nil:
			s.ID = existing.ID
			s.CreatedAt = existing.CreatedAt
			if err := r.UpdateShow(ctx, s); err != nil {
				return created, updated, fmt.Errorf("updating %s: %w", s.Slug, err)
			}
			updated++
		case errors.Is(getErr, ErrShowNotFound):
			s.ID = ""
			if err := r.CreateShow(ctx, s); err != nil {
				return created, updated, fmt.Errorf("creating %s: %w", s.Slug, err)
			}
			created++
		default:
			return created, updated, getErr
		}
	}
	return created, updated, nil
}

// GetShowCount returns the number of cached shows.
func (r *Registry) GetShowCount() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}

// store caches a copy of show, replacing any stale slug mapping.
func (r *Registry) store(show *Show) {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	if old, ok := r.cache[show.ID]; ok && old.Slug != show.Slug {
		delete(r.slugs, old.Slug)
	}
	r.cache[show.ID] = show.DeepCopy()
	r.slugs[show.Slug] = show.ID
}
