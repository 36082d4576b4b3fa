package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// APIKeyConfig параметры аутентификации по API ключу
type APIKeyConfig struct {
	// ValidKeys отображение валидного ключа в его человекочитаемое имя
	ValidKeys map[string]string
	// HeaderName заголовок с ключом (по умолчанию X-API-Key)
	HeaderName string
	// Optional если true, запрос без ключа пропускается дальше без привилегий
	Optional bool
}

const defaultAPIKeyHeader = "X-API-Key"

// APIKey middleware аутентификации по API ключу.
// Ключ принимается из заголовка, query параметра api_key
// или Authorization: Bearer.
type APIKey struct {
	config APIKeyConfig
}

// NewAPIKey создаёт middleware с заданной конфигурацией
func NewAPIKey(config APIKeyConfig) *APIKey {
	if config.HeaderName == "" {
		config.HeaderName = defaultAPIKeyHeader
	}
	return &APIKey{config: config}
}

// extractKey достаёт ключ из запроса, проверяя источники по порядку
func (ak *APIKey) extractKey(c *gin.Context) string {
	if key := c.GetHeader(ak.config.HeaderName); key != "" {
		return key
	}
	if key := c.Query("api_key"); key != "" {
		return key
	}
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// lookup ищет ключ среди валидных. Сравнение за константное время,
// чтобы не давать тайминговой подсказки о длине совпавшего префикса.
func (ak *APIKey) lookup(key string) (string, bool) {
	for valid, name := range ak.config.ValidKeys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(valid)) == 1 {
			return name, true
		}
	}
	return "", false
}

// Middleware возвращает gin handler, проверяющий API ключ
func (ak *APIKey) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := ak.extractKey(c)

		if key == "" {
			if ak.config.Optional {
				c.Set("api_key_validated", false)
				c.Next()
				return
			}
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "missing_api_key",
				"message": "Требуется API ключ: заголовок X-API-Key, query параметр api_key или Authorization: Bearer",
			})
			c.Abort()
			return
		}

		name, ok := ak.lookup(key)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_api_key",
				"message": "Невалидный API ключ",
			})
			c.Abort()
			return
		}

		// Данные ключа доступны последующим handlers через контекст
		c.Set("api_key_validated", true)
		c.Set("api_key_name", name)
		c.Set("api_key", key)

		c.Next()
	}
}

// RequireAPIKey сокращение для обязательной проверки ключа со стандартным заголовком
func RequireAPIKey(validKeys map[string]string) gin.HandlerFunc {
	return NewAPIKey(APIKeyConfig{ValidKeys: validKeys}).Middleware()
}
