package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mkorchagin/shortener/internal/models"
	"github.com/mkorchagin/shortener/internal/repository"
	"go.uber.org/zap"
)

// Константы worker pool
const (
	defaultWorkerCount   = 3    // Количество воркеров
	defaultChannelBuffer = 1000 // Размер буфера канала
	maxRetries           = 3    // Максимальное количество попыток записи
	drainGracePeriod     = 3 * time.Second
)

// ClickProcessor интерфейс для асинхронного отслеживания кликов.
// RecordClick никогда не блокирует вызывающего: событие либо встаёт
// в очередь, либо отбрасывается со счётчиком потерь.
type ClickProcessor interface {
	Start()
	Stop()
	RecordClick(ctx context.Context, event *models.ClickEvent) error
	GetStats(ctx context.Context, shortCode string) (*models.ClickStats, error)
	GetDailyStats(ctx context.Context, shortCode string, days int) ([]models.DailyClickStats, error)
	GetCountryStats(ctx context.Context) ([]models.CountryClickStats, error)
	GetChannelStats() ChannelStats
	Dropped() int64
}

// clickProcessor реализация процессора кликов с использованием Worker Pool
type clickProcessor struct {
	clickRepo    repository.ClickRepository
	linkRepo     repository.LinkRepository
	logger       *zap.Logger
	clickChannel chan *models.ClickEvent // Канал для событий кликов
	workerCount  int                     // Количество воркеров
	dropped      atomic.Int64            // Счётчик отброшенных событий
	wg           sync.WaitGroup          // WaitGroup для ожидания завершения воркеров
	ctx          context.Context
	cancel       context.CancelFunc
}

// NewClickProcessor создаёт новый экземпляр процессора кликов.
// queueSize ограничивает память под необработанные события: при
// переполнении новые события отбрасываются, а не копятся.
func NewClickProcessor(
	clickRepo repository.ClickRepository,
	linkRepo repository.LinkRepository,
	logger *zap.Logger,
	queueSize int,
	workerCount int,
) ClickProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if queueSize <= 0 {
		queueSize = defaultChannelBuffer
	}
	if workerCount <= 0 {
		workerCount = defaultWorkerCount
	}

	return &clickProcessor{
		clickRepo:    clickRepo,
		linkRepo:     linkRepo,
		logger:       logger,
		clickChannel: make(chan *models.ClickEvent, queueSize),
		workerCount:  workerCount,
	}
}

// Start запускает worker pool
func (p *clickProcessor) Start() {
	p.ctx, p.cancel = context.WithCancel(context.Background())

	p.logger.Info("Запуск воркеров процессора кликов", zap.Int("count", p.workerCount))

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop корректно останавливает worker pool. Воркеры дорабатывают
// накопившиеся события в пределах drainGracePeriod, остальное
// сознательно теряется - выход процесса не блокируется.
func (p *clickProcessor) Stop() {
	p.logger.Info("Остановка процессора кликов...")
	p.cancel()
	p.wg.Wait()

	if n := p.dropped.Load(); n > 0 {
		p.logger.Warn("События кликов были потеряны", zap.Int64("dropped", n))
	}
	p.logger.Info("Процессор кликов остановлен")
}

// worker обрабатывает события кликов из канала
func (p *clickProcessor) worker(id int) {
	defer p.wg.Done()

	p.logger.Debug("Воркер кликов запущен", zap.Int("id", id))

	for {
		select {
		case <-p.ctx.Done():
			p.drain(id)
			return

		case event, ok := <-p.clickChannel:
			if !ok {
				return
			}
			p.processClick(event)
		}
	}
}

// drain дорабатывает остаток очереди после остановки в пределах grace-периода
func (p *clickProcessor) drain(id int) {
	deadline := time.Now().Add(drainGracePeriod)

	for time.Now().Before(deadline) {
		select {
		case event := <-p.clickChannel:
			p.processClick(event)
		default:
			p.logger.Debug("Воркер кликов остановлен", zap.Int("id", id))
			return
		}
	}

	// Grace-период истёк: оставшееся в канале считается потерянным
	remaining := int64(len(p.clickChannel))
	if remaining > 0 {
		p.dropped.Add(remaining)
	}
	p.logger.Debug("Воркер кликов остановлен по таймауту", zap.Int("id", id))
}

// processClick обрабатывает одно событие клика с retry логикой
func (p *clickProcessor) processClick(event *models.ClickEvent) {
	// Свой контекст: события дорабатываются и после отмены p.ctx
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Получаем ID ссылки по короткому коду
	linkID, err := p.linkRepo.GetLinkIDByShortCode(ctx, event.ShortCode)
	if err != nil {
		p.logger.Warn("Не удалось получить ID ссылки для клика",
			zap.String("short_code", event.ShortCode),
			zap.Error(err),
		)
		return
	}

	clickedAt := event.Timestamp
	if clickedAt.IsZero() {
		clickedAt = time.Now()
	}

	click := &models.Click{
		LinkID:    linkID,
		ShortCode: event.ShortCode,
		IPAddress: event.IPAddress,
		UserAgent: event.UserAgent,
		Referer:   event.Referer,
		Country:   event.Country,
		ClickedAt: clickedAt,
	}

	// Retry логика для записи в БД
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		if lastErr = p.clickRepo.RecordClick(ctx, click); lastErr == nil {
			break
		}
		if i < maxRetries-1 {
			p.logger.Debug("Повторная попытка записи клика",
				zap.String("short_code", event.ShortCode),
				zap.Int("attempt", i+1),
				zap.Error(lastErr),
			)
			time.Sleep(time.Duration(i+1) * 100 * time.Millisecond)
		}
	}
	if lastErr != nil {
		p.dropped.Add(1)
		p.logger.Error("Не удалось записать клик после всех попыток",
			zap.String("short_code", event.ShortCode),
			zap.Error(lastErr),
		)
		return
	}

	// Счётчик на самой ссылке. Единственный писатель click_count -
	// этот процессор; инкремент в БД не теряет конкурентные обновления
	if err := p.linkRepo.IncrementClicks(ctx, event.ShortCode); err != nil {
		p.logger.Warn("Не удалось увеличить счётчик переходов",
			zap.String("short_code", event.ShortCode),
			zap.Error(err),
		)
	}
}

// RecordClick отправляет событие клика в worker pool (неблокирующая операция)
func (p *clickProcessor) RecordClick(ctx context.Context, event *models.ClickEvent) error {
	select {
	case p.clickChannel <- event:
		return nil
	default:
		// Канал заполнен: событие теряем, редирект не задерживаем
		p.dropped.Add(1)
		p.logger.Warn("Буфер канала кликов заполнен, событие потеряно",
			zap.String("short_code", event.ShortCode),
		)
		return nil
	}
}

// Dropped возвращает количество потерянных событий (для мониторинга)
func (p *clickProcessor) Dropped() int64 {
	return p.dropped.Load()
}

// GetStats получает статистику кликов для короткого кода
func (p *clickProcessor) GetStats(ctx context.Context, shortCode string) (*models.ClickStats, error) {
	return p.clickRepo.GetStats(ctx, shortCode)
}

// GetDailyStats получает дневную статистику кликов
func (p *clickProcessor) GetDailyStats(ctx context.Context, shortCode string, days int) ([]models.DailyClickStats, error) {
	return p.clickRepo.GetDailyStats(ctx, shortCode, days)
}

// GetCountryStats получает распределение переходов по странам
func (p *clickProcessor) GetCountryStats(ctx context.Context) ([]models.CountryClickStats, error) {
	return p.clickRepo.GetCountryStats(ctx)
}

// GetChannelStats возвращает статистику канала для мониторинга
func (p *clickProcessor) GetChannelStats() ChannelStats {
	return ChannelStats{
		BufferSize:    cap(p.clickChannel),
		BufferUsed:    len(p.clickChannel),
		WorkerCount:   p.workerCount,
		DroppedEvents: p.dropped.Load(),
	}
}

// ChannelStats статистика канала worker pool
type ChannelStats struct {
	BufferSize    int   `json:"buffer_size"`    // Общая ёмкость канала
	BufferUsed    int   `json:"buffer_used"`    // Текущее использование
	WorkerCount   int   `json:"worker_count"`   // Количество воркеров
	DroppedEvents int64 `json:"dropped_events"` // Потерянные события
}
