package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/redis/go-redis/v9"

	"github.com/skribas/audio-scribe/internal/secure"
)

// RedisRecords keeps transcription records in Redis, encrypted at rest.
// A secondary index maps the linked audio ID back to the record.
type RedisRecords struct {
	client *redis.Client
	sealer *secure.Sealer
}

// NewRedisRecords connects to Redis and prepares the at-rest cipher.
func NewRedisRecords(connStr string, passphrase string) (*RedisRecords, error) {
	opt, err := redis.ParseURL(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	goapp.Log.Info().Str("redis", opt.Addr).Int("db", opt.DB).Send()
	sealer, err := secure.NewSealer(passphrase)
	if err != nil {
		return nil, fmt.Errorf("create sealer: %w", err)
	}
	return &RedisRecords{client: redis.NewClient(opt), sealer: sealer}, nil
}

func keyRecord(id string) string {
	return fmt.Sprintf("rec:%s", id)
}

func keyAudioIndex(audioID string) string {
	return fmt.Sprintf("aud-idx:%s", audioID)
}

func (r *RedisRecords) put(ctx context.Context, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	sealed, err := r.sealer.Seal(data)
	if err != nil {
		return fmt.Errorf("seal: %w", err)
	}
	if err := r.client.Set(ctx, keyRecord(rec.ID), sealed, 0).Err(); err != nil {
		return err
	}
	if rec.AudioID != "" {
		if err := r.client.Set(ctx, keyAudioIndex(rec.AudioID), rec.ID, 0).Err(); err != nil {
			return err
		}
	}
	return nil
}

func (r *RedisRecords) Create(ctx context.Context, rec *Record) error {
	goapp.Log.Trace().Str("id", rec.ID).Msg("Create record")
	now := time.Now()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	return r.put(ctx, rec)
}

func (r *RedisRecords) Update(ctx context.Context, rec *Record) error {
	goapp.Log.Trace().Str("id", rec.ID).Msg("Update record")
	old, err := r.Get(ctx, rec.ID)
	if err != nil {
		return err
	}
	rec.CreatedAt = old.CreatedAt
	rec.UpdatedAt = time.Now()
	return r.put(ctx, rec)
}

func (r *RedisRecords) Get(ctx context.Context, id string) (*Record, error) {
	b, err := r.client.Get(ctx, keyRecord(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("record '%s': %w", id, ErrNotFound)
		}
		return nil, err
	}
	data, err := r.sealer.Open(b)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *RedisRecords) GetByAudioID(ctx context.Context, audioID string) (*Record, error) {
	id, err := r.client.Get(ctx, keyAudioIndex(audioID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("audio '%s': %w", audioID, ErrNotFound)
		}
		return nil, err
	}
	return r.Get(ctx, id)
}

func (r *RedisRecords) Delete(ctx context.Context, id string) error {
	rec, err := r.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	if rec.AudioID != "" {
		if err := r.client.Del(ctx, keyAudioIndex(rec.AudioID)).Err(); err != nil {
			return err
		}
	}
	return r.client.Del(ctx, keyRecord(id)).Err()
}

func (r *RedisRecords) Close() error {
	return r.client.Close()
}
