package tests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mkorchagin/shortener/internal/codegen"
	"github.com/mkorchagin/shortener/internal/config"
	"github.com/mkorchagin/shortener/internal/handler"
	"github.com/mkorchagin/shortener/internal/middleware"
	"github.com/mkorchagin/shortener/internal/repository"
	"github.com/mkorchagin/shortener/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestMain настраивает тестовые контейнеры
func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// TestEnv хранит окружение для интеграционных тестов
type TestEnv struct {
	router         *gin.Engine
	linkService    service.LinkService
	clickProc      service.ClickProcessor
	dbContainer    testcontainers.Container
	redisContainer testcontainers.Container
	db             *repository.PostgresDB
	redis          *repository.RedisDB
}

// setupTestEnv создаёт тестовое окружение с PostgreSQL и Redis контейнерами
func setupTestEnv(t *testing.T) *TestEnv {
	ctx := t.Context()

	// Запускаем контейнер PostgreSQL
	dbContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("shortener"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	// Запускаем контейнер Redis
	redisContainer, err := redis.Run(ctx,
		"redis:7-alpine",
	)
	require.NoError(t, err)

	// Получаем данные для подключения
	dbHost, err := dbContainer.Host(ctx)
	require.NoError(t, err)
	dbPort, err := dbContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	redisHost, err := redisContainer.Host(ctx)
	require.NoError(t, err)
	redisPort, err := redisContainer.MappedPort(ctx, "6379")
	require.NoError(t, err)

	// Создаём подключение к БД
	db, err := repository.NewPostgresDB(config.DBConfig{
		Host:     dbHost,
		Port:     dbPort.Port(),
		User:     "user",
		Password: "password",
		Name:     "shortener",
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx))

	// Создаём подключение к Redis
	redisClient, err := repository.NewRedisClient(config.RedisConfig{
		Host: redisHost,
		Port: redisPort.Port(),
	})
	require.NoError(t, err)

	// Формат кодов - как в продакшене
	gen := codegen.Default()

	// Инициализируем репозитории и сервисы
	linkRepo := repository.NewLinkRepository(db, gen)
	cacheRepo := repository.NewCacheRepository(redisClient)
	clickRepo := repository.NewClickRepository(db)

	linkService := service.NewLinkService(linkRepo, cacheRepo, gen, nil, time.Hour, service.Timeouts{})
	clickProc := service.NewClickProcessor(clickRepo, linkRepo, nil, 1000, 3)
	clickProc.Start()

	// Настраиваем роутер с middleware
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: 100, // Высокий лимит для тестов
		BurstSize:         200,
		CleanupInterval:   time.Minute,
	})

	router := handler.NewRouter(linkService, clickProc, rateLimiter, nil, nil, handler.RouterConfig{
		BaseURL:        "http://localhost:8080",
		AllowedOrigins: []string{"*"},
	})

	return &TestEnv{
		router:         router,
		linkService:    linkService,
		clickProc:      clickProc,
		dbContainer:    dbContainer,
		redisContainer: redisContainer,
		db:             db,
		redis:          redisClient,
	}
}

// teardown очищает ресурсы после теста
func (env *TestEnv) teardown(t *testing.T) {
	env.clickProc.Stop()
	env.db.Close()
	env.redis.Close()

	ctx := t.Context()
	if env.dbContainer != nil {
		env.dbContainer.Terminate(ctx)
	}
	if env.redisContainer != nil {
		env.redisContainer.Terminate(ctx)
	}
}

// CreateLinkRequest представляет тело запроса для создания ссылки
type CreateLinkRequest struct {
	URL       string `json:"url"`
	ExpiresIn *int   `json:"expires_in,omitempty"`
}

// CreateLinkResponse представляет тело ответа при создании ссылки
type CreateLinkResponse struct {
	ShortCode   string     `json:"short_code"`
	ShortURL    string     `json:"short_url"`
	OriginalURL string     `json:"original_url"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// createLink хелпер: создаёт ссылку через API и возвращает ответ
func createLink(t *testing.T, env *TestEnv, url string) CreateLinkResponse {
	t.Helper()

	body, _ := json.Marshal(CreateLinkRequest{URL: url})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/links", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, "body: %s", w.Body.String())

	var resp CreateLinkResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// TestIntegration_CreateLink тестирует создание ссылок через API
func TestIntegration_CreateLink(t *testing.T) {
	if testing.Short() {
		t.Skip("Пропускаем интеграционный тест в коротком режиме")
	}

	env := setupTestEnv(t)
	defer env.teardown(t)

	tests := []struct {
		name           string
		request        CreateLinkRequest
		expectedStatus int
		expectError    bool
	}{
		{
			name: "валидный URL",
			request: CreateLinkRequest{
				URL: "https://example.com/test",
			},
			expectedStatus: http.StatusCreated,
			expectError:    false,
		},
		{
			name: "невалидный URL",
			request: CreateLinkRequest{
				URL: "not-a-url",
			},
			expectedStatus: http.StatusBadRequest,
			expectError:    true,
		},
		{
			name: "спам домен",
			request: CreateLinkRequest{
				URL: "https://malware.com/bad",
			},
			expectedStatus: http.StatusBadRequest,
			expectError:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := json.Marshal(tt.request)
			w := httptest.NewRecorder()
			req, _ := http.NewRequest("POST", "/api/v1/links", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")

			env.router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)

			if tt.expectError {
				var errResp ErrorResponse
				json.Unmarshal(w.Body.Bytes(), &errResp)
				assert.NotEmpty(t, errResp.Error)
			} else {
				var resp CreateLinkResponse
				json.Unmarshal(w.Body.Bytes(), &resp)
				assert.NotEmpty(t, resp.ShortCode)
				assert.GreaterOrEqual(t, len(resp.ShortCode), 6)
				assert.Equal(t, tt.request.URL, resp.OriginalURL)
			}
		})
	}
}

// TestIntegration_Redirect тестирует редирект и прогрев кэша
func TestIntegration_Redirect(t *testing.T) {
	if testing.Short() {
		t.Skip("Пропускаем интеграционный тест в коротком режиме")
	}

	env := setupTestEnv(t)
	defer env.teardown(t)

	createResp := createLink(t, env, "https://example.com/integration-test")

	t.Run("редирект на оригинальный URL", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/"+createResp.ShortCode, nil)
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "https://example.com/integration-test", w.Header().Get("Location"))
	})

	t.Run("ссылка лежит в кэше после резолва", func(t *testing.T) {
		ctx := t.Context()
		exists, err := env.redis.Client.Exists(ctx, "link:"+createResp.ShortCode).Result()
		require.NoError(t, err)
		assert.EqualValues(t, 1, exists)
	})

	t.Run("несуществующий код", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/zzzzzz", nil)
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("мусорный код", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/not_a-code!", nil)
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

// TestIntegration_CodeFormat проверяет, что код детерминированно выводится из id
func TestIntegration_CodeFormat(t *testing.T) {
	if testing.Short() {
		t.Skip("Пропускаем интеграционный тест в коротком режиме")
	}

	env := setupTestEnv(t)
	defer env.teardown(t)

	gen := codegen.Default()

	first := createLink(t, env, "https://example.com/a")
	second := createLink(t, env, "https://example.com/b")

	assert.NotEqual(t, first.ShortCode, second.ShortCode)

	// Коды декодируются в последовательные id
	firstID, err := gen.Decode(first.ShortCode)
	require.NoError(t, err)
	secondID, err := gen.Decode(second.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, firstID+1, secondID)
}

// TestIntegration_DeleteLink тестирует удаление ссылок
func TestIntegration_DeleteLink(t *testing.T) {
	if testing.Short() {
		t.Skip("Пропускаем интеграционный тест в коротком режиме")
	}

	env := setupTestEnv(t)
	defer env.teardown(t)

	createResp := createLink(t, env, "https://example.com/delete-test")

	// Удаляем ссылку
	t.Run("удаление существующей ссылки", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("DELETE", "/api/v1/links/"+createResp.ShortCode, nil)
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	// После удаления кэш инвалидирован - редирект отдаёт 404
	t.Run("редирект после удаления", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/"+createResp.ShortCode, nil)
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	// Пытаемся удалить повторно (должна быть ошибка)
	t.Run("удаление несуществующей ссылки", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("DELETE", "/api/v1/links/"+createResp.ShortCode, nil)
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

// TestIntegration_ClickStats тестирует статистику кликов
func TestIntegration_ClickStats(t *testing.T) {
	if testing.Short() {
		t.Skip("Пропускаем интеграционный тест в коротком режиме")
	}

	env := setupTestEnv(t)
	defer env.teardown(t)

	createResp := createLink(t, env, "https://example.com/stats-test")

	// Симулируем несколько кликов (вызовом редиректа)
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/"+createResp.ShortCode, nil)
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("192.168.1.%d", i))
		req.Header.Set("CF-IPCountry", "DE")
		env.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusFound, w.Code)
	}

	// Даём worker pool время обработать клики
	time.Sleep(500 * time.Millisecond)

	t.Run("получение статистики кликов", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/links/"+createResp.ShortCode+"/stats", nil)
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var stats map[string]interface{}
		json.Unmarshal(w.Body.Bytes(), &stats)
		assert.Equal(t, createResp.ShortCode, stats["short_code"])
		// Примечание: клики могут быть не полностью обработаны в тестовой среде
	})

	t.Run("распределение по странам", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/analytics/countries", nil)
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var stats []map[string]interface{}
		json.Unmarshal(w.Body.Bytes(), &stats)
		if assert.NotEmpty(t, stats) {
			assert.Equal(t, "DE", stats[0]["name"])
		}
	})
}

// TestIntegration_RecentLinks тестирует выдачу последних ссылок для дашборда
func TestIntegration_RecentLinks(t *testing.T) {
	if testing.Short() {
		t.Skip("Пропускаем интеграционный тест в коротком режиме")
	}

	env := setupTestEnv(t)
	defer env.teardown(t)

	for i := 0; i < 3; i++ {
		createLink(t, env, fmt.Sprintf("https://example.com/page/%d", i))
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/links?limit=2", nil)
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var links []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &links))
	assert.Len(t, links, 2)
	// Последняя созданная - первая в выдаче
	assert.Equal(t, "https://example.com/page/2", links[0]["original_url"])
}

// TestIntegration_HealthCheck тестирует endpoint проверки здоровья
func TestIntegration_HealthCheck(t *testing.T) {
	if testing.Short() {
		t.Skip("Пропускаем интеграционный тест в коротком режиме")
	}

	env := setupTestEnv(t)
	defer env.teardown(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/health", nil)
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &resp)
	assert.Equal(t, "ok", resp["status"])
}
