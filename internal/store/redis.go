package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clearclaim/billaudit/internal/common"
	"github.com/clearclaim/billaudit/internal/entity"
)

const (
	redisRecordPrefix = "billaudit:fp:"
	redisIndexPrefix  = "billaudit:sk:"
)

// Redis is the shared backend for multi-node deployments. SET NX gives the
// atomic check-and-insert; secondary keys are plain sets of fingerprints.
type Redis struct {
	client *redis.Client
}

func NewRedis(cfg common.StoreConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return &Redis{client: client}, nil
}

func (r *Redis) Lookup(ctx context.Context, fp entity.Fingerprint) (*entity.BillRecord, error) {
	data, err := r.client.Get(ctx, redisRecordPrefix+fp.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis lookup: %w", err)
	}
	var rec entity.BillRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshaling record: %w", err)
	}
	return &rec, nil
}

func (r *Redis) Candidates(ctx context.Context, keys []string) ([]*entity.BillRecord, error) {
	var out []*entity.BillRecord
	for _, key := range keys {
		members, err := r.client.SMembers(ctx, redisIndexPrefix+key).Result()
		if err != nil {
			return nil, fmt.Errorf("redis candidates: %w", err)
		}
		for _, hexFP := range members {
			data, err := r.client.Get(ctx, redisRecordPrefix+hexFP).Bytes()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("redis candidates: %w", err)
			}
			var rec entity.BillRecord
			if err := json.Unmarshal(data, &rec); err != nil {
				return nil, fmt.Errorf("unmarshaling record: %w", err)
			}
			out = append(out, &rec)
		}
	}
	return out, nil
}

func (r *Redis) Commit(ctx context.Context, rec *entity.BillRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}
	ok, err := r.client.SetNX(ctx, redisRecordPrefix+rec.Fingerprint.String(), data, 0).Result()
	if err != nil {
		return fmt.Errorf("redis commit: %w", err)
	}
	if !ok {
		return common.ErrAlreadyExists
	}
	if err := r.client.SAdd(ctx, redisIndexPrefix+rec.SecondaryKey, rec.Fingerprint.String()).Err(); err != nil {
		return fmt.Errorf("redis index: %w", err)
	}
	return nil
}

func (r *Redis) Close() error { return r.client.Close() }
