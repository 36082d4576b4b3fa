package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/mkorchagin/shortener/internal/codegen"
	"github.com/mkorchagin/shortener/internal/models"
	"github.com/mkorchagin/shortener/internal/repository"
	"go.uber.org/zap"
)

// Ошибки сервиса
var (
	ErrInvalidURL       = errors.New("невалидный URL")
	ErrSpamDomain       = errors.New("домен в чёрном списке")
	ErrLinkExpired      = errors.New("срок жизни ссылки истёк")
	ErrStoreUnavailable = errors.New("хранилище недоступно")
)

// Константы сервиса
const (
	maxTTL             = 30 * 24 * time.Hour
	defaultRecentLimit = 50
)

// Чёрный список доменов (можно вынести в конфиг или БД)
var blacklistedDomains = []string{
	"malware.com",
	"phishing.com",
	"spam.com",
}

var urlPattern = regexp.MustCompile(`^https?://[^\s]+$`)

// LinkService интерфейс сервиса ссылок
type LinkService interface {
	CreateLink(ctx context.Context, input *models.CreateLinkInput) (*models.Link, error)
	GetLink(ctx context.Context, code string) (*models.Link, error)
	DeleteLink(ctx context.Context, code string) error
	ListRecent(ctx context.Context, limit int) ([]models.Link, error)
}

// Timeouts - таймауты обращений к кэшу и хранилищу на пути resolve.
// Обе операции ограничиваются независимо: таймаут кэша - это промах,
// таймаут хранилища - отказ запроса.
type Timeouts struct {
	CacheOp    time.Duration
	StoreQuery time.Duration
}

func (t *Timeouts) withDefaults() {
	if t.CacheOp == 0 {
		t.CacheOp = 150 * time.Millisecond
	}
	if t.StoreQuery == 0 {
		t.StoreQuery = 2 * time.Second
	}
}

// linkService реализация сервиса ссылок
type linkService struct {
	linkRepo  repository.LinkRepository
	cacheRepo repository.CacheRepository
	gen       *codegen.Generator
	logger    *zap.Logger
	cacheTTL  time.Duration
	timeouts  Timeouts
}

// NewLinkService создаёт новый экземпляр сервиса
func NewLinkService(
	linkRepo repository.LinkRepository,
	cacheRepo repository.CacheRepository,
	gen *codegen.Generator,
	logger *zap.Logger,
	cacheTTL time.Duration,
	timeouts Timeouts,
) LinkService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL == 0 {
		cacheTTL = time.Hour
	}
	timeouts.withDefaults()

	return &linkService{
		linkRepo:  linkRepo,
		cacheRepo: cacheRepo,
		gen:       gen,
		logger:    logger,
		cacheTTL:  cacheTTL,
		timeouts:  timeouts,
	}
}

// CreateLink создаёт новую короткую ссылку.
// Одинаковые URL намеренно не дедуплицируются: каждый запрос получает
// свой id и свой код.
func (s *linkService) CreateLink(ctx context.Context, input *models.CreateLinkInput) (*models.Link, error) {
	// Валидация URL
	if err := s.validateURL(input.OriginalURL); err != nil {
		return nil, err
	}

	// Проверка на спам-домены
	if err := s.checkSpamDomain(input.OriginalURL); err != nil {
		return nil, err
	}

	// Расчёт времени жизни
	var expiresAt *time.Time
	if input.ExpiresIn != nil && *input.ExpiresIn > 0 {
		ttl := time.Duration(*input.ExpiresIn) * time.Minute
		if ttl > maxTTL {
			ttl = maxTTL
		}
		t := time.Now().Add(ttl)
		expiresAt = &t
	}

	link := &models.Link{
		OriginalURL: input.OriginalURL,
		ExpiresAt:   expiresAt,
		CreatedAt:   time.Now(),
	}

	// Хранилище выделяет id и выводит из него короткий код.
	// Если Create вернул ошибку, считаем что ссылки не существует.
	if err := s.linkRepo.Create(ctx, link); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	// Прогрев кэша. Ошибка кэша создание не отменяет
	if err := s.cacheSet(ctx, link); err != nil {
		s.logger.Warn("Failed to cache link after create",
			zap.String("short_code", link.ShortCode),
			zap.Error(err),
		)
	}

	return link, nil
}

// GetLink разрешает короткий код в ссылку: кэш → БД → прогрев кэша.
// Кэш опрашивается первым, попадание не трогает БД вовсе.
func (s *linkService) GetLink(ctx context.Context, code string) (*models.Link, error) {
	// Мусорный код отсекается до любых обращений к кэшу и БД
	if _, err := s.gen.Decode(code); err != nil {
		return nil, repository.ErrLinkNotFound
	}

	// Проверка кэша. Любая ошибка кэша, включая таймаут, - это промах
	cacheCtx, cancel := context.WithTimeout(ctx, s.timeouts.CacheOp)
	link, err := s.cacheRepo.Get(cacheCtx, code)
	cancel()
	if err == nil {
		// Кэш может пережить саму ссылку - срок жизни перепроверяется
		// и на попадании
		if link.IsExpired() {
			s.cacheDelete(ctx, code)
			return nil, ErrLinkExpired
		}
		return link, nil
	}

	// Промах - идём в хранилище. Его отказ, в отличие от кэша,
	// фатален для запроса и отличим от "не найдено"
	storeCtx, cancel := context.WithTimeout(ctx, s.timeouts.StoreQuery)
	link, err = s.linkRepo.GetByShortCode(storeCtx, code)
	cancel()
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	// Прогрев кэша найденным значением. Ответ не ждёт успеха записи:
	// ошибка лишь логируется
	if err := s.cacheSet(ctx, link); err != nil {
		s.logger.Warn("Failed to populate cache",
			zap.String("short_code", code),
			zap.Error(err),
		)
	}

	return link, nil
}

// DeleteLink удаляет ссылку по короткому коду.
// Сначала инвалидация кэша: следующий Get гарантированно уйдёт в БД.
func (s *linkService) DeleteLink(ctx context.Context, code string) error {
	s.cacheDelete(ctx, code)

	storeCtx, cancel := context.WithTimeout(ctx, s.timeouts.StoreQuery)
	defer cancel()

	return s.linkRepo.Delete(storeCtx, code)
}

// ListRecent возвращает последние созданные ссылки для дашборда
func (s *linkService) ListRecent(ctx context.Context, limit int) ([]models.Link, error) {
	if limit < 1 || limit > 200 {
		limit = defaultRecentLimit
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.timeouts.StoreQuery)
	defer cancel()

	links, err := s.linkRepo.ListRecent(storeCtx, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return links, nil
}

// cacheSet пишет ссылку в кэш. TTL записи обрезается по expires_at:
// кэш не должен отдавать ссылку дольше, чем она живёт.
func (s *linkService) cacheSet(ctx context.Context, link *models.Link) error {
	ttl := s.cacheTTL
	if link.ExpiresAt != nil {
		if until := time.Until(*link.ExpiresAt); until < ttl {
			ttl = until
		}
	}
	if ttl <= 0 {
		return nil
	}

	cacheCtx, cancel := context.WithTimeout(ctx, s.timeouts.CacheOp)
	defer cancel()

	return s.cacheRepo.Set(cacheCtx, link.ShortCode, link, ttl)
}

func (s *linkService) cacheDelete(ctx context.Context, code string) {
	cacheCtx, cancel := context.WithTimeout(ctx, s.timeouts.CacheOp)
	defer cancel()

	if err := s.cacheRepo.Delete(cacheCtx, code); err != nil {
		s.logger.Warn("Failed to invalidate cache", zap.String("short_code", code), zap.Error(err))
	}
}

// validateURL проверяет формат URL
func (s *linkService) validateURL(url string) error {
	if !urlPattern.MatchString(url) {
		return ErrInvalidURL
	}
	return nil
}

// checkSpamDomain проверяет наличие URL в чёрном списке доменов
func (s *linkService) checkSpamDomain(url string) error {
	for _, domain := range blacklistedDomains {
		if strings.Contains(url, domain) {
			return ErrSpamDomain
		}
	}
	return nil
}
