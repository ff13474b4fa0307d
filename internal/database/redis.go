package database

import (
	"context"
	"fmt"
	"time"

	"github.com/kallpa-labs/viaticos-service/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Redis representa la conexión a Redis
type Redis struct {
	*redis.Client
}

// ConnectRedis establece la conexión a Redis
func ConnectRedis(cfg *config.Config) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("error pinging Redis: %w", err)
	}

	return &Redis{client}, nil
}

// Close cierra la conexión a Redis
func (r *Redis) Close() error {
	return r.Client.Close()
}

// HealthCheck verifica la salud de Redis
func (r *Redis) HealthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return r.Ping(ctx).Err()
}

const sunatTokenKey = "sunat:token"

// TokenCache adapta Redis al caché opcional de tokens de SUNAT
type TokenCache struct {
	redis  *Redis
	logger *logrus.Logger
}

// NewTokenCache crea el caché de tokens sobre Redis
func NewTokenCache(r *Redis, logger *logrus.Logger) *TokenCache {
	return &TokenCache{redis: r, logger: logger}
}

// Get retorna el token cacheado si aún existe
func (c *TokenCache) Get(ctx context.Context) (string, bool) {
	value, err := c.redis.Client.Get(ctx, sunatTokenKey).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.WithError(err).Warn("Error leyendo token de SUNAT del caché")
		}
		return "", false
	}
	return value, true
}

// Set guarda el token con el TTL declarado por SUNAT, con un margen
// para no entregar tokens al borde de expirar
func (c *TokenCache) Set(ctx context.Context, token string, ttl time.Duration) {
	if ttl > 30*time.Second {
		ttl -= 30 * time.Second
	}
	if err := c.redis.Client.Set(ctx, sunatTokenKey, token, ttl).Err(); err != nil {
		c.logger.WithError(err).Warn("Error guardando token de SUNAT en el caché")
	}
}
