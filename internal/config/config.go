package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Cache     CacheConfig
	Code      CodeConfig
	Clicks    ClicksConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
}

type AppConfig struct {
	Port    string
	BaseURL string
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	// Таймаут одного запроса к БД на пути resolve
	QueryTimeout time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type CacheConfig struct {
	// TTL записи в кэше; срок жизни самой ссылки может быть короче,
	// поэтому TTL дополнительно обрезается по expires_at
	TTL time.Duration
	// Таймаут одного обращения к кэшу; по истечении - считаем промахом
	OpTimeout time.Duration
}

type CodeConfig struct {
	// Смещение id при кодировании. Менять после запуска нельзя:
	// уже выданные коды перестанут декодироваться
	Offset uint64
	// Минимальная длина выдаваемого кода
	MinLength int
}

type ClicksConfig struct {
	// Размер буфера очереди событий; при переполнении события отбрасываются
	QueueSize int
	// Количество воркеров, разгребающих очередь
	Workers int
}

type AuthConfig struct {
	APIKeys map[string]string // API key -> name/description
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

type CORSConfig struct {
	AllowedOrigins []string
}

func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	cfg.App.Port = viper.GetString("APP_PORT")
	cfg.App.BaseURL = viper.GetString("APP_BASE_URL")
	if cfg.App.BaseURL == "" {
		cfg.App.BaseURL = "http://localhost:" + cfg.App.Port
	}

	cfg.DB.Host = viper.GetString("DB_HOST")
	cfg.DB.Port = viper.GetString("DB_PORT")
	cfg.DB.User = viper.GetString("DB_USER")
	cfg.DB.Password = viper.GetString("DB_PASSWORD")
	cfg.DB.Name = viper.GetString("DB_NAME")
	cfg.DB.QueryTimeout = viper.GetDuration("DB_QUERY_TIMEOUT")
	if cfg.DB.QueryTimeout == 0 {
		cfg.DB.QueryTimeout = 2 * time.Second
	}

	cfg.Redis.Host = viper.GetString("REDIS_HOST")
	cfg.Redis.Port = viper.GetString("REDIS_PORT")
	cfg.Redis.Password = viper.GetString("REDIS_PASSWORD")
	cfg.Redis.DB = viper.GetInt("REDIS_DB")

	cfg.Cache.TTL = viper.GetDuration("CACHE_TTL")
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = time.Hour
	}
	cfg.Cache.OpTimeout = viper.GetDuration("CACHE_OP_TIMEOUT")
	if cfg.Cache.OpTimeout == 0 {
		cfg.Cache.OpTimeout = 150 * time.Millisecond
	}

	cfg.Code.Offset = viper.GetUint64("CODE_OFFSET")
	if cfg.Code.Offset == 0 {
		cfg.Code.Offset = 10000
	}
	cfg.Code.MinLength = viper.GetInt("CODE_MIN_LENGTH")
	if cfg.Code.MinLength == 0 {
		cfg.Code.MinLength = 6
	}

	cfg.Clicks.QueueSize = viper.GetInt("CLICKS_QUEUE_SIZE")
	if cfg.Clicks.QueueSize == 0 {
		cfg.Clicks.QueueSize = 1000
	}
	cfg.Clicks.Workers = viper.GetInt("CLICKS_WORKERS")
	if cfg.Clicks.Workers == 0 {
		cfg.Clicks.Workers = 3
	}

	// Auth config - parse API keys from comma-separated string
	// Format: key1:name1,key2:name2
	apiKeysRaw := viper.GetString("API_KEYS")
	cfg.Auth.APIKeys = parseAPIKeys(apiKeysRaw)

	// Rate limit config
	cfg.RateLimit.RequestsPerSecond = viper.GetFloat64("RATE_LIMIT_RPS")
	if cfg.RateLimit.RequestsPerSecond == 0 {
		cfg.RateLimit.RequestsPerSecond = 10
	}
	cfg.RateLimit.BurstSize = viper.GetInt("RATE_LIMIT_BURST")
	if cfg.RateLimit.BurstSize == 0 {
		cfg.RateLimit.BurstSize = 20
	}

	// CORS config - comma-separated origins, "*" допустим для локальной разработки
	corsRaw := viper.GetString("CORS_ORIGINS")
	if corsRaw == "" {
		cfg.CORS.AllowedOrigins = []string{"*"}
	} else {
		for _, origin := range strings.Split(corsRaw, ",") {
			cfg.CORS.AllowedOrigins = append(cfg.CORS.AllowedOrigins, strings.TrimSpace(origin))
		}
	}

	return &cfg, nil
}

// parseAPIKeys parses comma-separated API keys in format "key1:name1,key2:name2"
func parseAPIKeys(raw string) map[string]string {
	keys := make(map[string]string)
	if raw == "" {
		return keys
	}

	pairs := strings.Split(raw, ",")
	for _, pair := range pairs {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) == 2 {
			keys[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}

	return keys
}
