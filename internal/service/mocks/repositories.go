package mocks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mkorchagin/shortener/internal/codegen"
	"github.com/mkorchagin/shortener/internal/models"
	"github.com/mkorchagin/shortener/internal/repository"
)

// ErrUnavailable simulates an infrastructure failure
var ErrUnavailable = errors.New("backend unavailable")

// MockLinkRepository implements repository.LinkRepository for testing.
// Mirrors the real store: ids are allocated from a sequence and the
// short code is derived from the id, expired rows are invisible to reads.
type MockLinkRepository struct {
	mu       sync.RWMutex
	gen      *codegen.Generator
	links    map[string]*models.Link
	nextID   int64
	getCalls int64

	// FailAll makes every call return ErrUnavailable
	FailAll bool
}

func NewMockLinkRepository() *MockLinkRepository {
	return &MockLinkRepository{
		gen:    codegen.Default(),
		links:  make(map[string]*models.Link),
		nextID: 1,
	}
}

func (m *MockLinkRepository) Create(ctx context.Context, link *models.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailAll {
		return ErrUnavailable
	}

	link.ID = m.nextID
	m.nextID++
	link.ShortCode = m.gen.Encode(uint64(link.ID))
	m.links[link.ShortCode] = link
	return nil
}

func (m *MockLinkRepository) GetByShortCode(ctx context.Context, code string) (*models.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.getCalls++
	if m.FailAll {
		return nil, ErrUnavailable
	}

	link, exists := m.links[code]
	if !exists || link.IsExpired() {
		return nil, repository.ErrLinkNotFound
	}
	return link, nil
}

// GetCalls returns the number of GetByShortCode calls.
// Used to verify the cache actually shields the store.
func (m *MockLinkRepository) GetCalls() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getCalls
}

func (m *MockLinkRepository) Delete(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailAll {
		return ErrUnavailable
	}
	if _, exists := m.links[code]; !exists {
		return repository.ErrLinkNotFound
	}
	delete(m.links, code)
	return nil
}

func (m *MockLinkRepository) IncrementClicks(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailAll {
		return ErrUnavailable
	}
	link, exists := m.links[code]
	if !exists {
		return repository.ErrLinkNotFound
	}
	link.ClickCount++
	return nil
}

func (m *MockLinkRepository) GetLinkIDByShortCode(ctx context.Context, code string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.FailAll {
		return 0, ErrUnavailable
	}
	link, exists := m.links[code]
	if !exists {
		return 0, repository.ErrLinkNotFound
	}
	return link.ID, nil
}

func (m *MockLinkRepository) ListRecent(ctx context.Context, limit int) ([]models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.FailAll {
		return nil, ErrUnavailable
	}

	links := make([]models.Link, 0, len(m.links))
	for _, link := range m.links {
		links = append(links, *link)
	}
	// Newest first
	for i := 0; i < len(links); i++ {
		for j := i + 1; j < len(links); j++ {
			if links[j].ID > links[i].ID {
				links[i], links[j] = links[j], links[i]
			}
		}
	}
	if len(links) > limit {
		links = links[:limit]
	}
	return links, nil
}

func (m *MockLinkRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links = make(map[string]*models.Link)
	m.nextID = 1
	m.getCalls = 0
}

// MockCacheRepository implements repository.CacheRepository for testing
type MockCacheRepository struct {
	mu    sync.RWMutex
	cache map[string]*models.Link

	// FailAll simulates a cache outage: every operation errors
	FailAll bool
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{
		cache: make(map[string]*models.Link),
	}
}

func (m *MockCacheRepository) Get(ctx context.Context, key string) (*models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.FailAll {
		return nil, ErrUnavailable
	}
	link, exists := m.cache[key]
	if !exists {
		return nil, repository.ErrLinkNotFound
	}
	return link, nil
}

func (m *MockCacheRepository) Set(ctx context.Context, key string, link *models.Link, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailAll {
		return ErrUnavailable
	}
	m.cache[key] = link
	return nil
}

func (m *MockCacheRepository) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailAll {
		return ErrUnavailable
	}
	delete(m.cache, key)
	return nil
}

// Contains reports whether the key is currently cached (direct inspection)
func (m *MockCacheRepository) Contains(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.cache[key]
	return exists
}

func (m *MockCacheRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache = make(map[string]*models.Link)
}

// MockClickRepository implements repository.ClickRepository for testing
type MockClickRepository struct {
	mu     sync.RWMutex
	clicks map[int64][]*models.Click // link_id -> clicks

	// FailAll makes RecordClick fail, exercising the retry/drop path
	FailAll bool
}

func NewMockClickRepository() *MockClickRepository {
	return &MockClickRepository{
		clicks: make(map[int64][]*models.Click),
	}
}

func (m *MockClickRepository) RecordClick(ctx context.Context, click *models.Click) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailAll {
		return ErrUnavailable
	}
	m.clicks[click.LinkID] = append(m.clicks[click.LinkID], click)
	return nil
}

// TotalClicks returns the number of persisted clicks across all links
func (m *MockClickRepository) TotalClicks() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := 0
	for _, clicks := range m.clicks {
		total += len(clicks)
	}
	return total
}

func (m *MockClickRepository) GetStats(ctx context.Context, shortCode string) (*models.ClickStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var totalClicks int64
	uniqueIPs := make(map[string]bool)

	for _, clicks := range m.clicks {
		for _, click := range clicks {
			if click.ShortCode == shortCode {
				totalClicks++
				uniqueIPs[click.IPAddress] = true
			}
		}
	}

	return &models.ClickStats{
		ShortCode:    shortCode,
		TotalClicks:  totalClicks,
		UniqueClicks: int64(len(uniqueIPs)),
	}, nil
}

func (m *MockClickRepository) GetDailyStats(ctx context.Context, shortCode string, days int) ([]models.DailyClickStats, error) {
	return []models.DailyClickStats{}, nil
}

func (m *MockClickRepository) GetCountryStats(ctx context.Context) ([]models.CountryClickStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[string]int64)
	for _, clicks := range m.clicks {
		for _, click := range clicks {
			counts[click.Country]++
		}
	}

	stats := make([]models.CountryClickStats, 0, len(counts))
	for country, clicks := range counts {
		stats = append(stats, models.CountryClickStats{Country: country, Clicks: clicks})
	}
	return stats, nil
}

func (m *MockClickRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clicks = make(map[int64][]*models.Click)
}
