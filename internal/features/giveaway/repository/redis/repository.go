package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"giveaway-engine/internal/common/logger"
	"giveaway-engine/internal/features/giveaway/models"
	"giveaway-engine/internal/features/giveaway/repository"
)

const (
	keyPrefixRecord    = "giveaway:record:"
	keyPrefixLock      = "giveaway:lock:"
	keyPrefixMessages  = "giveaway:messages:"
	keyAllGiveaways    = "giveaways:all"
	keyActiveGiveaways = "giveaways:active"
	keyEndedGiveaways  = "giveaways:ended"
)

type redisRepository struct {
	client *redis.Client
}

func NewRedisGiveawayRepository(client *redis.Client) repository.GiveawayRepository {
	return &redisRepository{client: client}
}

func makeRecordKey(id int64) string {
	return keyPrefixRecord + strconv.FormatInt(id, 10)
}

func makeLockKey(id int64) string {
	return keyPrefixLock + strconv.FormatInt(id, 10)
}

func makeMessagesKey(id int64) string {
	return keyPrefixMessages + strconv.FormatInt(id, 10)
}

func (r *redisRepository) Save(ctx context.Context, rec *models.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal giveaway record: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, makeRecordKey(rec.MessageID), data, 0)
	pipe.SAdd(ctx, keyAllGiveaways, rec.MessageID)

	_, err = pipe.Exec(ctx)
	return err
}

func (r *redisRepository) Get(ctx context.Context, messageID int64) (*models.Record, error) {
	data, err := r.client.Get(ctx, makeRecordKey(messageID)).Bytes()
	if err == redis.Nil {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var rec models.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal giveaway record: %w", err)
	}
	return &rec, nil
}

func (r *redisRepository) Delete(ctx context.Context, messageID int64) error {
	pipe := r.client.Pipeline()
	pipe.Del(ctx, makeRecordKey(messageID))
	pipe.Del(ctx, makeMessagesKey(messageID))
	pipe.SRem(ctx, keyAllGiveaways, messageID)
	pipe.SRem(ctx, keyEndedGiveaways, messageID)
	pipe.ZRem(ctx, keyActiveGiveaways, messageID)

	_, err := pipe.Exec(ctx)
	return err
}

func (r *redisRepository) List(ctx context.Context) ([]*models.Record, error) {
	ids, err := r.client.SMembers(ctx, keyAllGiveaways).Result()
	if err != nil {
		return nil, err
	}

	records := make([]*models.Record, 0, len(ids))
	for _, raw := range ids {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			logger.Warn().Str("member", raw).Msg("Skipping malformed giveaway index entry")
			continue
		}
		rec, err := r.Get(ctx, id)
		if err == repository.ErrNotFound {
			// Index entry without a record; drop it.
			r.client.SRem(ctx, keyAllGiveaways, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (r *redisRepository) AddActive(ctx context.Context, rec *models.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal giveaway record: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, makeRecordKey(rec.MessageID), data, 0)
	pipe.SAdd(ctx, keyAllGiveaways, rec.MessageID)
	pipe.ZAdd(ctx, keyActiveGiveaways, redis.Z{
		Score:  float64(rec.EndsAt),
		Member: rec.MessageID,
	})

	_, err = pipe.Exec(ctx)
	return err
}

func (r *redisRepository) RemoveActive(ctx context.Context, messageID int64) error {
	return r.client.ZRem(ctx, keyActiveGiveaways, messageID).Err()
}

func (r *redisRepository) ActiveIDs(ctx context.Context) ([]int64, error) {
	raw, err := r.client.ZRange(ctx, keyActiveGiveaways, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	return parseIDs(raw), nil
}

func (r *redisRepository) ExpiredActive(ctx context.Context, now time.Time) ([]int64, error) {
	raw, err := r.client.ZRangeByScore(ctx, keyActiveGiveaways, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, err
	}
	return parseIDs(raw), nil
}

func (r *redisRepository) MarkEnded(ctx context.Context, messageID int64) error {
	pipe := r.client.Pipeline()
	pipe.ZRem(ctx, keyActiveGiveaways, messageID)
	pipe.SAdd(ctx, keyEndedGiveaways, messageID)

	_, err := pipe.Exec(ctx)
	return err
}

func (r *redisRepository) TryLock(ctx context.Context, messageID int64, token string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, makeLockKey(messageID), token, ttl).Result()
}

func (r *redisRepository) Unlock(ctx context.Context, messageID int64, token string) error {
	key := makeLockKey(messageID)
	held, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	// Only release a lock we still own; an expired lock may have been
	// re-acquired by someone else.
	if held != token {
		return nil
	}
	return r.client.Del(ctx, key).Err()
}

func (r *redisRepository) IncrMessageCount(ctx context.Context, messageID, userID int64) (int64, error) {
	return r.client.HIncrBy(ctx, makeMessagesKey(messageID), strconv.FormatInt(userID, 10), 1).Result()
}

func (r *redisRepository) MessageCount(ctx context.Context, messageID, userID int64) (int64, error) {
	raw, err := r.client.HGet(ctx, makeMessagesKey(messageID), strconv.FormatInt(userID, 10)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(raw, 10, 64)
}

func parseIDs(raw []string) []int64 {
	ids := make([]int64, 0, len(raw))
	for _, s := range raw {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			logger.Warn().Str("member", s).Msg("Skipping malformed giveaway id")
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
