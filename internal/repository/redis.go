package repository

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/mkorchagin/shortener/internal/config"
	"github.com/redis/go-redis/v9"
)

// Параметры пула подобраны под редиректный трафик: много коротких
// конкурентных GET, профиль нагрузки сильно смещён в чтение
const (
	redisPoolSize     = 100
	redisMinIdleConns = 10
	redisDialTimeout  = 5 * time.Second
)

type RedisDB struct {
	Client *redis.Client
}

// NewRedisClient подключается к Redis и проверяет соединение ping-ом
func NewRedisClient(cfg config.RedisConfig) (*RedisDB, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     redisPoolSize,
		MinIdleConns: redisMinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisDialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisDB{Client: client}, nil
}

func (db *RedisDB) Close() error {
	return db.Client.Close()
}
