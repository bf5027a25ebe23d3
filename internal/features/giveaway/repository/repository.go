package repository

import (
	"context"
	"errors"
	"time"

	"giveaway-engine/internal/features/giveaway/models"
)

var ErrNotFound = errors.New("giveaway not found")

// GiveawayRepository persists giveaway records and the supporting indexes:
// the active registry (scored by end time), the ended set, per-event
// processing locks and message-activity counters.
type GiveawayRepository interface {
	Save(ctx context.Context, rec *models.Record) error
	Get(ctx context.Context, messageID int64) (*models.Record, error)
	Delete(ctx context.Context, messageID int64) error
	List(ctx context.Context) ([]*models.Record, error)

	// Active registry, keyed by message id.
	AddActive(ctx context.Context, rec *models.Record) error
	RemoveActive(ctx context.Context, messageID int64) error
	ActiveIDs(ctx context.Context) ([]int64, error)
	ExpiredActive(ctx context.Context, now time.Time) ([]int64, error)
	MarkEnded(ctx context.Context, messageID int64) error

	// Processing locks for end-of-giveaway handling.
	TryLock(ctx context.Context, messageID int64, token string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, messageID int64, token string) error

	// Message-activity counters, per giveaway per user.
	IncrMessageCount(ctx context.Context, messageID, userID int64) (int64, error)
	MessageCount(ctx context.Context, messageID, userID int64) (int64, error)
}
