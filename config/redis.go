package config

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
)

var RedisClient *redis.Client

// InitRedis connects the client shared by the processing stream, the status
// pub/sub channels and the listing cache. The address is taken from the first
// of REDIS_ADDR, REDIS_URI, REDIS_URL; URL forms go through ParseURL so
// credentials and TLS survive.
func InitRedis() error {
	addr := firstEnv("REDIS_ADDR", "REDIS_URI", "REDIS_URL")
	if addr == "" {
		return errors.New("REDIS_ADDR (or REDIS_URI/REDIS_URL) environment variable is not set")
	}

	if strings.Contains(addr, "://") {
		opt, err := redis.ParseURL(addr)
		if err != nil {
			return err
		}
		RedisClient = redis.NewClient(opt)
	} else {
		RedisClient = redis.NewClient(&redis.Options{Addr: addr})
	}

	return RedisClient.Ping(context.Background()).Err()
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
