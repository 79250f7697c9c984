/*
 *    Copyright 2025 Jeff Galyan
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

package quokka

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// rateLimitWithStore is the RateLimit variant used when cfg.Store is set,
// delegating the allow/deny decision to shared state instead of the
// in-process token bucket map.
func rateLimitWithStore(cfg RateLimitConfig) Middleware {
	return func(next Handler) Handler {
		return func(c *Context) {
			key := cfg.KeyFunc(c)
			allowed, retryAfter, err := cfg.Store.Allow(c.Context(), key, cfg.Rate, cfg.Burst)
			if err != nil {
				slog.Error("rate limit store error", slog.Any("err", err))
				next(c)
				return
			}
			if !allowed {
				c.Set("rate_limit", RateLimitInfo{Key: key, RetryAfter: retryAfter})
				c.SetHeader("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
				c.JSON(429, ErrorResponse{Error: "rate limit exceeded"})
				return
			}
			c.Set("rate_limit", RateLimitInfo{Key: key, Allowed: true})
			next(c)
		}
	}
}

// RedisLimiterStore implements LimiterStore on top of a redis client,
// sharing rate-limit state across every process pointed at the same redis
// instance. Each key tracks a request count in a window that resets every
// burst/rate seconds plus one second (burst/rate being the time to refill a
// full burst at the sustained rate), via INCR + an EXPIRE set only on the
// first increment in a window.
type RedisLimiterStore struct {
	Client *redis.Client
	Prefix string // key prefix, default "quokka:ratelimit:"
}

// NewRedisLimiterStore constructs a RedisLimiterStore with the given client.
func NewRedisLimiterStore(client *redis.Client) *RedisLimiterStore {
	return &RedisLimiterStore{Client: client, Prefix: "quokka:ratelimit:"}
}

func (s *RedisLimiterStore) Allow(ctx context.Context, key string, rate float64, burst int) (bool, time.Duration, error) {
	prefix := s.Prefix
	if prefix == "" {
		prefix = "quokka:ratelimit:"
	}
	window := time.Duration(float64(burst)/rate*float64(time.Second)) + time.Second
	fullKey := prefix + key

	count, err := s.Client.Incr(ctx, fullKey).Result()
	if err != nil {
		return false, 0, err
	}
	if count == 1 {
		if err := s.Client.Expire(ctx, fullKey, window).Err(); err != nil {
			return false, 0, err
		}
	}
	if int(count) > burst {
		ttl, err := s.Client.TTL(ctx, fullKey).Result()
		if err != nil || ttl < 0 {
			ttl = window
		}
		return false, ttl, nil
	}
	return true, 0, nil
}
