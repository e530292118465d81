package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/ianbrucey/war-room-sub000/internal/compress"
	"github.com/ianbrucey/war-room-sub000/internal/model"
)

func manifestKey(caseID string) string {
	return "case:manifest:" + caseID
}

func manifestGenKey(caseID string) string {
	return "case:manifest:gen:" + caseID
}

// ManifestCache caches derived case manifests. The pipeline invalidates the
// entry on every document mutation. Get returns a generation token alongside
// the entry; Set stores only while that generation is still current, so a
// manifest built before a concurrent invalidation is never cached over it.
type ManifestCache interface {
	// Get returns the cached manifest, or nil on a miss, plus the current
	// generation token.
	Get(ctx context.Context, caseID string) (*model.CaseManifest, string, error)
	// Set stores the manifest unless the generation has moved on since Get.
	Set(ctx context.Context, caseID string, manifest *model.CaseManifest, gen string) error
	Invalidate(ctx context.Context, caseID string) error
}

var _ ManifestCache = (*RedisManifestCache)(nil)

type RedisManifestCache struct {
	client  *redis.Client
	encoder compress.Compress
	ttl     time.Duration
}

func NewRedisManifestCache(addr, password string) *RedisManifestCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	return &RedisManifestCache{client: client, encoder: compress.NewLZ4(), ttl: time.Hour}
}

func (r *RedisManifestCache) Get(ctx context.Context, caseID string) (*model.CaseManifest, string, error) {
	pipe := r.client.Pipeline()
	genCmd := pipe.Get(ctx, manifestGenKey(caseID))
	entryCmd := pipe.Get(ctx, manifestKey(caseID))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, "", err
	}

	gen, err := genCmd.Result()
	if errors.Is(err, redis.Nil) {
		gen = "0"
	} else if err != nil {
		return nil, "", err
	}

	buf, err := entryCmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, gen, nil
	}
	if err != nil {
		return nil, gen, err
	}

	decoded, err := r.encoder.Decode(buf)
	if err != nil {
		return nil, gen, err
	}

	manifest := &model.CaseManifest{}
	if err := json.Unmarshal(decoded, manifest); err != nil {
		return nil, gen, err
	}

	return manifest, gen, nil
}

func (r *RedisManifestCache) Set(ctx context.Context, caseID string, manifest *model.CaseManifest, gen string) error {
	marshal, err := json.Marshal(manifest)
	if err != nil {
		return err
	}

	encoded, err := r.encoder.Encode(marshal)
	if err != nil {
		return err
	}

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, manifestGenKey(caseID)).Result()
		if errors.Is(err, redis.Nil) {
			cur = "0"
		} else if err != nil {
			return err
		}
		if cur != gen {
			// An invalidation landed while the manifest was being built;
			// the build is stale, drop it.
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, manifestKey(caseID), encoded, r.ttl)
			return nil
		})
		return err
	}, manifestGenKey(caseID))
	if errors.Is(err, redis.TxFailedErr) {
		// The generation moved between the check and the write.
		return nil
	}
	return err
}

func (r *RedisManifestCache) Invalidate(ctx context.Context, caseID string) error {
	pipe := r.client.TxPipeline()
	pipe.Incr(ctx, manifestGenKey(caseID))
	pipe.Del(ctx, manifestKey(caseID))
	_, err := pipe.Exec(ctx)
	return err
}

// NopManifestCache disables caching; every manifest query regenerates.
type NopManifestCache struct {
}

func NewNopManifestCache() NopManifestCache {
	return NopManifestCache{}
}

func (NopManifestCache) Get(ctx context.Context, caseID string) (*model.CaseManifest, string, error) {
	return nil, "", nil
}

func (NopManifestCache) Set(ctx context.Context, caseID string, manifest *model.CaseManifest, gen string) error {
	return nil
}

func (NopManifestCache) Invalidate(ctx context.Context, caseID string) error {
	return nil
}
