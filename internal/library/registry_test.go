package library

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// mockRepository is an in-memory implementation of Repository for testing.
type mockRepository struct {
	shows     map[string]*Show
	playbacks map[string]*Playback
	listErr   error
	mu        sync.RWMutex
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		shows:     make(map[string]*Show),
		playbacks: make(map[string]*Playback),
	}
}

func (m *mockRepository) GetByID(_ context.Context, id string) (*Show, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.shows[id]
	if !ok {
		return nil, ErrShowNotFound
	}
	return s.DeepCopy(), nil
}

func (m *mockRepository) GetBySlug(_ context.Context, slug string) (*Show, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.shows {
		if s.Slug == slug {
			return s.DeepCopy(), nil
		}
	}
	return nil, ErrShowNotFound
}

func (m *mockRepository) List(_ context.Context) ([]Show, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	shows := make([]Show, 0, len(m.shows))
	for _, s := range m.shows {
		shows = append(shows, *s.DeepCopy())
	}
	return shows, nil
}

func (m *mockRepository) Create(_ context.Context, show *Show) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.shows {
		if s.ID == show.ID || s.Slug == show.Slug {
			return ErrShowExists
		}
	}
	now := time.Now().UTC()
	show.CreatedAt, show.UpdatedAt = now, now
	m.shows[show.ID] = show.DeepCopy()
	return nil
}

func (m *mockRepository) Update(_ context.Context, show *Show) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.shows[show.ID]; !ok {
		return ErrShowNotFound
	}
	for id, s := range m.shows {
		if id != show.ID && s.Slug == show.Slug {
			return ErrShowExists
		}
	}
	show.UpdatedAt = time.Now().UTC()
	m.shows[show.ID] = show.DeepCopy()
	return nil
}

func (m *mockRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.shows[id]; !ok {
		return ErrShowNotFound
	}
	delete(m.shows, id)
	return nil
}

func (m *mockRepository) CreatePlayback(_ context.Context, p *Playback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cpy := *p
	m.playbacks[p.ID] = &cpy
	return nil
}

func (m *mockRepository) EndPlayback(_ context.Context, id string, status PlaybackStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.playbacks[id]
	if !ok || p.EndedAt != nil {
		return ErrPlaybackNotFound
	}
	p.Status = status
	p.EndedAt = &at
	return nil
}

func (m *mockRepository) GetPlayback(_ context.Context, id string) (*Playback, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.playbacks[id]
	if !ok {
		return nil, ErrPlaybackNotFound
	}
	cpy := *p
	return &cpy, nil
}

func (m *mockRepository) ListPlaybacks(_ context.Context, showID string, _ int) ([]Playback, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Playback
	for _, p := range m.playbacks {
		if p.ShowID == showID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockRepository) EndOpenPlaybacks(_ context.Context, status PlaybackStatus, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, p := range m.playbacks {
		if p.EndedAt == nil {
			p.Status = status
			p.EndedAt = &at
			n++
		}
	}
	return n, nil
}

// ─── Cache ──────────────────────────────────────────────────────────────────

func TestRegistry_RefreshCache(t *testing.T) {
	repo := newMockRepository()
	repo.shows["s1"] = testShow("s1", "Wiggle")
	repo.shows["s2"] = testShow("s2", "Blink")

	reg := NewRegistry(repo)
	if err := reg.RefreshCache(context.Background()); err != nil {
		t.Fatalf("RefreshCache() error = %v", err)
	}

	if reg.GetShowCount() != 2 {
		t.Errorf("GetShowCount() = %d, want 2", reg.GetShowCount())
	}
	if s, err := reg.GetShowBySlug(context.Background(), "blink"); err != nil || s.ID != "s2" {
		t.Errorf("GetShowBySlug(blink) = %v, %v", s, err)
	}
}

func TestRegistry_RefreshCacheError(t *testing.T) {
	repo := newMockRepository()
	repo.listErr = errors.New("database locked")

	reg := NewRegistry(repo)
	if err := reg.RefreshCache(context.Background()); err == nil {
		t.Fatal("RefreshCache() should fail when the repository does")
	}
}

func TestRegistry_ReturnsCopies(t *testing.T) {
	repo := newMockRepository()
	reg := NewRegistry(repo)
	ctx := context.Background()

	show := testShow("", "Wiggle")
	if err := reg.CreateShow(ctx, show); err != nil {
		t.Fatalf("CreateShow() error = %v", err)
	}

	got, _ := reg.GetShow(ctx, show.ID)
	got.Name = "Mutated"
	got.Cues[0].Set.Module = "mutated"

	again, _ := reg.GetShow(ctx, show.ID)
	if again.Name != "Wiggle" || again.Cues[0].Set.Module != "ears" {
		t.Error("mutating a returned show must not affect the cache")
	}
}

// ─── CRUD ───────────────────────────────────────────────────────────────────

func TestRegistry_CreateShow(t *testing.T) {
	repo := newMockRepository()
	reg := NewRegistry(repo)
	ctx := context.Background()

	show := &Show{Name: "Tail Wag"}
	if err := reg.CreateShow(ctx, show); err != nil {
		t.Fatalf("CreateShow() error = %v", err)
	}
	if show.ID == "" {
		t.Error("CreateShow() should generate an ID")
	}
	if show.Slug != "tail-wag" {
		t.Errorf("Slug = %q, want tail-wag", show.Slug)
	}
	if show.Cues == nil {
		t.Error("Cues should default to an empty list")
	}
	if _, ok := repo.shows[show.ID]; !ok {
		t.Error("show was not persisted")
	}

	if err := reg.CreateShow(ctx, &Show{Name: "Tail Wag"}); !errors.Is(err, ErrShowExists) {
		t.Errorf("duplicate CreateShow() error = %v, want ErrShowExists", err)
	}
	if err := reg.CreateShow(ctx, &Show{Name: ""}); !errors.Is(err, ErrInvalidName) {
		t.Errorf("invalid CreateShow() error = %v, want ErrInvalidName", err)
	}
	if reg.GetShowCount() != 1 {
		t.Errorf("failed creates must not be cached, count = %d", reg.GetShowCount())
	}
}

func TestRegistry_UpdateShowChangesSlug(t *testing.T) {
	repo := newMockRepository()
	reg := NewRegistry(repo)
	ctx := context.Background()

	show := &Show{Name: "Tail Wag"}
	_ = reg.CreateShow(ctx, show)

	show.Name = "Tail Swish"
	show.Slug = "tail-swish"
	if err := reg.UpdateShow(ctx, show); err != nil {
		t.Fatalf("UpdateShow() error = %v", err)
	}

	if _, err := reg.GetShowBySlug(ctx, "tail-wag"); !errors.Is(err, ErrShowNotFound) {
		t.Errorf("old slug should be gone, got %v", err)
	}
	if s, err := reg.GetShowBySlug(ctx, "tail-swish"); err != nil || s.Name != "Tail Swish" {
		t.Errorf("GetShowBySlug(tail-swish) = %v, %v", s, err)
	}

	if err := reg.UpdateShow(ctx, &Show{ID: "missing", Name: "Missing"}); !errors.Is(err, ErrShowNotFound) {
		t.Errorf("UpdateShow(missing) error = %v", err)
	}
}

func TestRegistry_DeleteShow(t *testing.T) {
	repo := newMockRepository()
	reg := NewRegistry(repo)
	ctx := context.Background()

	show := &Show{Name: "Blink"}
	_ = reg.CreateShow(ctx, show)

	if err := reg.DeleteShow(ctx, show.ID); err != nil {
		t.Fatalf("DeleteShow() error = %v", err)
	}
	if _, err := reg.GetShow(ctx, show.ID); !errors.Is(err, ErrShowNotFound) {
		t.Errorf("GetShow() after delete error = %v", err)
	}
	if _, err := reg.GetShowBySlug(ctx, "blink"); !errors.Is(err, ErrShowNotFound) {
		t.Errorf("GetShowBySlug() after delete error = %v", err)
	}
	if err := reg.DeleteShow(ctx, show.ID); !errors.Is(err, ErrShowNotFound) {
		t.Errorf("second DeleteShow() error = %v", err)
	}
}

func TestRegistry_ResolveAndList(t *testing.T) {
	reg := NewRegistry(newMockRepository())
	ctx := context.Background()

	for _, name := range []string{"Wiggle", "Blink", "Alpha"} {
		if err := reg.CreateShow(ctx, &Show{Name: name}); err != nil {
			t.Fatalf("CreateShow(%s) error = %v", name, err)
		}
	}

	bySlug, err := reg.Resolve(ctx, "blink")
	if err != nil {
		t.Fatalf("Resolve(slug) error = %v", err)
	}
	byID, err := reg.Resolve(ctx, bySlug.ID)
	if err != nil || byID.Slug != "blink" {
		t.Errorf("Resolve(id) = %v, %v", byID, err)
	}
	if _, err := reg.Resolve(ctx, "nothing"); !errors.Is(err, ErrShowNotFound) {
		t.Errorf("Resolve(unknown) error = %v", err)
	}

	list, _ := reg.ListShows(ctx)
	if len(list) != 3 || list[0].Name != "Alpha" || list[1].Name != "Blink" || list[2].Name != "Wiggle" {
		t.Errorf("ListShows() order wrong: %v", list)
	}
}

// ─── Import ─────────────────────────────────────────────────────────────────

func TestRegistry_Import(t *testing.T) {
	repo := newMockRepository()
	reg := NewRegistry(repo)
	ctx := context.Background()

	existing := &Show{Name: "Blink", Tempo: 60}
	_ = reg.CreateShow(ctx, existing)

	created, updated, err := reg.Import(ctx, []*Show{
		{Name: "Blink", Slug: "blink", Tempo: 120},
		{Name: "Wiggle", Slug: "wiggle"},
	})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if created != 1 || updated != 1 {
		t.Errorf("Import() = %d created, %d updated; want 1, 1", created, updated)
	}

	blink, _ := reg.GetShowBySlug(ctx, "blink")
	if blink.ID != existing.ID {
		t.Error("Import() must keep the ID of an existing show")
	}
	if blink.Tempo != 120 {
		t.Errorf("Tempo = %v, want the imported 120", blink.Tempo)
	}
	if reg.GetShowCount() != 2 {
		t.Errorf("GetShowCount() = %d, want 2", reg.GetShowCount())
	}
}

func TestRegistry_ImportStopsOnInvalidShow(t *testing.T) {
	reg := NewRegistry(newMockRepository())

	created, _, err := reg.Import(context.Background(), []*Show{
		{Name: "Good", Slug: "good"},
		{Name: "Bad", Slug: "bad", Tempo: -1},
	})
	if !errors.Is(err, ErrInvalidShow) {
		t.Fatalf("Import() error = %v, want ErrInvalidShow", err)
	}
	if created != 1 {
		t.Errorf("created = %d, want 1", created)
	}
}
