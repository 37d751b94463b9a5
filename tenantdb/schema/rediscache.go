// Copyright 2025 LedgerHub
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package schema

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"ledgerhub/platform/shared/logger"
)

// verdictKeyPrefix namespaces verdict keys in a shared Redis instance
const verdictKeyPrefix = "tenantdb:verdict:"

// redisOpTimeout bounds every cache round trip; a slow Redis must never
// stall the validation path
const redisOpTimeout = 2 * time.Second

// RedisVerdictStore shares validation verdicts across replicas through
// Redis. Every operation is best-effort: a Redis failure is logged and
// reported as a miss, so the validator falls back to introspection instead
// of failing the request.
type RedisVerdictStore struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

// NewRedisVerdictStore creates a Redis-backed verdict store with the given
// TTL, applied server-side via key expiry
func NewRedisVerdictStore(client *redis.Client, ttl time.Duration, log *logger.Logger) *RedisVerdictStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if log == nil {
		log = logger.New("tenantdb")
	}
	return &RedisVerdictStore{client: client, ttl: ttl, log: log}
}

// Get returns the shared verdict for a tenant, if present and unexpired
func (s *RedisVerdictStore) Get(tenantKey string) (*Verdict, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	data, err := s.client.Get(ctx, verdictKeyPrefix+tenantKey).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		s.log.Warn(tenantKey, "", "Redis verdict read failed, treating as miss", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, false
	}

	var verdict Verdict
	if err := json.Unmarshal(data, &verdict); err != nil {
		s.log.Warn(tenantKey, "", "Corrupt verdict in Redis, treating as miss", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, false
	}

	return &verdict, true
}

// Set stores a verdict with the configured expiry
func (s *RedisVerdictStore) Set(tenantKey string, verdict *Verdict) {
	data, err := json.Marshal(verdict)
	if err != nil {
		s.log.Warn(tenantKey, "", "Failed to marshal verdict for Redis", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := s.client.Set(ctx, verdictKeyPrefix+tenantKey, data, s.ttl).Err(); err != nil {
		s.log.Warn(tenantKey, "", "Redis verdict write failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// Invalidate removes one tenant's shared verdict
func (s *RedisVerdictStore) Invalidate(tenantKey string) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := s.client.Del(ctx, verdictKeyPrefix+tenantKey).Err(); err != nil {
		s.log.Warn(tenantKey, "", "Redis verdict delete failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// InvalidateAll removes every shared verdict, scanning rather than FLUSH so
// unrelated keys in a shared Redis survive
func (s *RedisVerdictStore) InvalidateAll() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	iter := s.client.Scan(ctx, 0, verdictKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			s.log.Warn("", "", "Redis verdict delete failed during clear", map[string]interface{}{
				"key":   iter.Val(),
				"error": err.Error(),
			})
		}
	}
	if err := iter.Err(); err != nil {
		s.log.Warn("", "", "Redis verdict scan failed during clear", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
