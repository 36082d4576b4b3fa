package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mkorchagin/shortener/internal/models"
	"github.com/mkorchagin/shortener/internal/service"
	"github.com/mkorchagin/shortener/internal/service/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupClickProcessor создаёт процессор кликов с моковыми репозиториями
func setupClickProcessor(queueSize, workers int) (service.ClickProcessor, *mocks.MockLinkRepository, *mocks.MockClickRepository) {
	linkRepo := mocks.NewMockLinkRepository()
	clickRepo := mocks.NewMockClickRepository()
	logger, _ := zap.NewDevelopment()
	proc := service.NewClickProcessor(clickRepo, linkRepo, logger, queueSize, workers)
	return proc, linkRepo, clickRepo
}

// createTestLink кладёт ссылку напрямую в моковое хранилище
func createTestLink(t *testing.T, linkRepo *mocks.MockLinkRepository, url string) *models.Link {
	t.Helper()
	link := &models.Link{OriginalURL: url, CreatedAt: time.Now()}
	require.NoError(t, linkRepo.Create(context.Background(), link))
	return link
}

// TestClickProcessor_RecordClick проверяет асинхронную запись клика и инкремент счётчика
func TestClickProcessor_RecordClick(t *testing.T) {
	proc, linkRepo, clickRepo := setupClickProcessor(100, 2)
	proc.Start()
	defer proc.Stop()

	link := createTestLink(t, linkRepo, "https://example.com/test")

	ctx := context.Background()
	err := proc.RecordClick(ctx, &models.ClickEvent{
		ShortCode: link.ShortCode,
		IPAddress: "203.0.113.1",
		UserAgent: "test-agent",
		Country:   "DE",
		Timestamp: time.Now(),
	})
	require.NoError(t, err)

	// Запись происходит в фоне - ждём воркеров
	assert.Eventually(t, func() bool {
		return clickRepo.TotalClicks() == 1
	}, 2*time.Second, 10*time.Millisecond)

	// click_count на самой ссылке тоже увеличен
	assert.Eventually(t, func() bool {
		current, err := linkRepo.GetByShortCode(ctx, link.ShortCode)
		return err == nil && current.ClickCount == 1
	}, 2*time.Second, 10*time.Millisecond)
}

// TestClickProcessor_OverflowDrops проверяет отбрасывание событий при переполнении очереди
func TestClickProcessor_OverflowDrops(t *testing.T) {
	// Воркеры не запущены - очередь заполняется и переполняется
	proc, linkRepo, _ := setupClickProcessor(10, 1)

	link := createTestLink(t, linkRepo, "https://example.com/test")

	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 100; i++ {
		err := proc.RecordClick(ctx, &models.ClickEvent{
			ShortCode: link.ShortCode,
			IPAddress: fmt.Sprintf("203.0.113.%d", i%250),
		})
		require.NoError(t, err, "RecordClick не должен возвращать ошибку даже при переполнении")
	}
	elapsed := time.Since(start)

	// 10 событий поместились, 90 отброшены; вызов ни разу не блокировался
	assert.EqualValues(t, 90, proc.Dropped())
	assert.Less(t, elapsed, 100*time.Millisecond, "RecordClick обязан быть неблокирующим")
}

// TestClickProcessor_RetryThenDrop проверяет ограниченный retry с последующей потерей события
func TestClickProcessor_RetryThenDrop(t *testing.T) {
	proc, linkRepo, clickRepo := setupClickProcessor(10, 1)
	clickRepo.FailAll = true

	proc.Start()
	defer proc.Stop()

	link := createTestLink(t, linkRepo, "https://example.com/test")

	ctx := context.Background()
	require.NoError(t, proc.RecordClick(ctx, &models.ClickEvent{ShortCode: link.ShortCode}))

	// Все попытки исчерпаны - событие учтено как потерянное
	assert.Eventually(t, func() bool {
		return proc.Dropped() == 1
	}, 3*time.Second, 20*time.Millisecond)
	assert.Zero(t, clickRepo.TotalClicks())
}

// TestClickProcessor_UnknownCode проверяет, что клик по неизвестному коду не ломает воркер
func TestClickProcessor_UnknownCode(t *testing.T) {
	proc, linkRepo, clickRepo := setupClickProcessor(10, 1)
	proc.Start()
	defer proc.Stop()

	ctx := context.Background()
	require.NoError(t, proc.RecordClick(ctx, &models.ClickEvent{ShortCode: "zzzzzz"}))

	link := createTestLink(t, linkRepo, "https://example.com/test")
	require.NoError(t, proc.RecordClick(ctx, &models.ClickEvent{ShortCode: link.ShortCode}))

	// Событие с неизвестным кодом молча пропущено, следующее обработано
	assert.Eventually(t, func() bool {
		return clickRepo.TotalClicks() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

// TestClickProcessor_StopDrains проверяет дообработку очереди при остановке
func TestClickProcessor_StopDrains(t *testing.T) {
	proc, linkRepo, clickRepo := setupClickProcessor(100, 2)
	proc.Start()

	link := createTestLink(t, linkRepo, "https://example.com/test")

	ctx := context.Background()
	const n = 20
	for i := 0; i < n; i++ {
		require.NoError(t, proc.RecordClick(ctx, &models.ClickEvent{
			ShortCode: link.ShortCode,
			IPAddress: fmt.Sprintf("203.0.113.%d", i),
		}))
	}

	// Stop ждёт воркеров: всё, что влезло в очередь, должно быть записано
	proc.Stop()
	assert.Equal(t, n, clickRepo.TotalClicks())
}

// TestClickProcessor_GetStats проверяет чтение агрегированной статистики
func TestClickProcessor_GetStats(t *testing.T) {
	proc, linkRepo, clickRepo := setupClickProcessor(100, 1)
	proc.Start()
	defer proc.Stop()

	link := createTestLink(t, linkRepo, "https://example.com/test")

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, proc.RecordClick(ctx, &models.ClickEvent{
			ShortCode: link.ShortCode,
			IPAddress: "203.0.113.1", // один и тот же IP
			Country:   "NL",
		}))
	}

	assert.Eventually(t, func() bool {
		return clickRepo.TotalClicks() == 3
	}, 2*time.Second, 10*time.Millisecond)

	stats, err := proc.GetStats(ctx, link.ShortCode)
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.TotalClicks)
	assert.EqualValues(t, 1, stats.UniqueClicks)

	countries, err := proc.GetCountryStats(ctx)
	require.NoError(t, err)
	require.Len(t, countries, 1)
	assert.Equal(t, "NL", countries[0].Country)
	assert.EqualValues(t, 3, countries[0].Clicks)
}
