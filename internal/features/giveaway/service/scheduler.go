package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"giveaway-engine/internal/common/logger"
	"giveaway-engine/internal/features/giveaway/models"
	"giveaway-engine/internal/features/giveaway/repository"
)

const (
	maxConcurrentEnds = 5
	endAttempts       = 3
	endRetryDelay     = 2 * time.Second
	lockTTL           = time.Minute
)

// Supervisor owns the time-driven transitions: per-giveaway waiters that
// fire the start once the scheduled time arrives, and a sweep loop that ends
// expired giveaways found in the active registry. Constructing a giveaway
// never arms a timer; Schedule does.
type Supervisor struct {
	repo   repository.GiveawayRepository
	engine *Engine

	pollInterval  time.Duration
	sweepInterval time.Duration

	root   context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	waiters map[int64]context.CancelFunc
	wg      sync.WaitGroup
}

func NewSupervisor(repo repository.GiveawayRepository, engine *Engine, pollInterval, sweepInterval time.Duration) *Supervisor {
	root, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		repo:          repo,
		engine:        engine,
		pollInterval:  pollInterval,
		sweepInterval: sweepInterval,
		root:          root,
		cancel:        cancel,
		waiters:       make(map[int64]context.CancelFunc),
	}
}

// Run drives the sweep loop until ctx is cancelled or StopAll is called.
func (s *Supervisor) Run(ctx context.Context) {
	logger.Info().
		Dur("poll_interval", s.pollInterval).
		Dur("sweep_interval", s.sweepInterval).
		Msg("Giveaway supervisor started")

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.root.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// Schedule arms a waiter for a scheduled giveaway, keyed by its current
// message id. A giveaway whose start time has already passed is started on
// the first poll. Re-scheduling the same id replaces the old waiter.
func (s *Supervisor) Schedule(g *models.Giveaway) {
	messageID := g.MessageID

	s.mu.Lock()
	if cancel, ok := s.waiters[messageID]; ok {
		cancel()
	}
	ctx, cancel := context.WithCancel(s.root)
	s.waiters[messageID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.wait(ctx, messageID, g.StartsAt)
}

func (s *Supervisor) wait(ctx context.Context, messageID int64, startsAt time.Time) {
	defer s.wg.Done()
	defer s.dropWaiter(messageID)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if time.Now().UTC().Before(startsAt) {
				continue
			}
			s.fireStart(ctx, messageID)
			return
		}
	}
}

// fireStart reloads the record before publishing so edits made while waiting
// are honored. The in-memory copy handed to Schedule may be stale.
func (s *Supervisor) fireStart(ctx context.Context, messageID int64) {
	rec, err := s.repo.Get(ctx, messageID)
	if err == repository.ErrNotFound {
		logger.Debug().Int64("message_id", messageID).Msg("Scheduled giveaway deleted before start")
		return
	}
	if err != nil {
		logger.Error().Int64("message_id", messageID).Err(err).Msg("Failed to load scheduled giveaway")
		return
	}
	if rec.Ended() {
		return
	}

	g, err := models.FromRecord(rec)
	if err != nil {
		logger.Error().Int64("message_id", messageID).Err(err).Msg("Failed to reconstruct scheduled giveaway")
		return
	}

	if err := s.engine.Start(ctx, g); err != nil {
		logger.Error().Int64("message_id", messageID).Err(err).Msg("Failed to start scheduled giveaway")
		return
	}

	// Publishing re-keys the giveaway under the announcement message id;
	// drop the placeholder record.
	if g.MessageID != messageID {
		if err := s.repo.Delete(ctx, messageID); err != nil {
			logger.Warn().Int64("message_id", messageID).Err(err).Msg("Failed to drop placeholder record")
		}
	}
	if err := s.repo.Save(ctx, g.Record()); err != nil {
		logger.Error().Int64("message_id", g.MessageID).Err(err).Msg("Failed to persist started giveaway")
	}
}

// Cancel stops the waiter for a message id, if one is armed.
func (s *Supervisor) Cancel(messageID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.waiters[messageID]; ok {
		cancel()
		delete(s.waiters, messageID)
	}
}

// StopAll cancels every waiter and the sweep loop, then waits for them to
// drain. Persisted state is untouched; Restore re-arms after a restart.
func (s *Supervisor) StopAll() {
	s.cancel()
	s.wg.Wait()

	s.mu.Lock()
	s.waiters = make(map[int64]context.CancelFunc)
	s.mu.Unlock()

	logger.Info().Msg("Giveaway supervisor stopped")
}

func (s *Supervisor) dropWaiter(messageID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.waiters, messageID)
}

// Restore re-arms waiters for persisted scheduled giveaways after a restart.
// Started giveaways stay in the active registry and are picked up by the
// sweep; no side effects are replayed.
func (s *Supervisor) Restore(ctx context.Context) error {
	records, err := s.repo.List(ctx)
	if err != nil {
		return err
	}

	scheduled := 0
	for _, rec := range records {
		if rec.Ended() {
			continue
		}
		g, err := models.FromRecord(rec)
		if err != nil {
			logger.Warn().Int64("message_id", rec.MessageID).Err(err).Msg("Skipping malformed persisted giveaway")
			continue
		}
		if g.Started() {
			continue
		}
		s.Schedule(g)
		scheduled++
	}

	logger.Info().Int("scheduled", scheduled).Int("records", len(records)).Msg("Giveaway state restored")
	return nil
}

func (s *Supervisor) sweep(ctx context.Context) {
	ids, err := s.repo.ExpiredActive(ctx, time.Now().UTC())
	if err != nil {
		logger.Error().Err(err).Msg("Failed to query expired giveaways")
		return
	}
	if len(ids) == 0 {
		return
	}

	sem := make(chan struct{}, maxConcurrentEnds)
	var wg sync.WaitGroup
	for _, id := range ids {
		sem <- struct{}{}
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			defer func() { <-sem }()
			s.endExpired(ctx, id)
		}(id)
	}
	wg.Wait()
}

// endExpired finishes one expired giveaway under a processing lock so that
// concurrent sweeps (or multiple processes) end it exactly once.
func (s *Supervisor) endExpired(ctx context.Context, messageID int64) {
	token := uuid.NewString()
	ok, err := s.repo.TryLock(ctx, messageID, token, lockTTL)
	if err != nil {
		logger.Error().Int64("message_id", messageID).Err(err).Msg("Failed to acquire end lock")
		return
	}
	if !ok {
		return
	}
	defer func() {
		if err := s.repo.Unlock(ctx, messageID, token); err != nil {
			logger.Warn().Int64("message_id", messageID).Err(err).Msg("Failed to release end lock")
		}
	}()

	rec, err := s.repo.Get(ctx, messageID)
	if err == repository.ErrNotFound {
		if err := s.repo.RemoveActive(ctx, messageID); err != nil {
			logger.Warn().Int64("message_id", messageID).Err(err).Msg("Failed to drop orphaned registry entry")
		}
		return
	}
	if err != nil {
		logger.Error().Int64("message_id", messageID).Err(err).Msg("Failed to load expired giveaway")
		return
	}
	if rec.Ended() {
		if err := s.repo.MarkEnded(ctx, messageID); err != nil {
			logger.Warn().Int64("message_id", messageID).Err(err).Msg("Failed to mark giveaway ended")
		}
		return
	}

	g, err := models.FromRecord(rec)
	if err != nil {
		logger.Error().Int64("message_id", messageID).Err(err).Msg("Failed to reconstruct expired giveaway")
		return
	}

	var ended *models.EndedGiveaway
	for attempt := 1; attempt <= endAttempts; attempt++ {
		ended, err = s.engine.End(ctx, g, "")
		if err == nil {
			break
		}
		logger.Warn().
			Int64("message_id", messageID).
			Int("attempt", attempt).
			Err(err).
			Msg("Failed to end giveaway, retrying")
		select {
		case <-ctx.Done():
			return
		case <-time.After(endRetryDelay):
		}
	}
	if err != nil {
		logger.Error().Int64("message_id", messageID).Err(err).Msg("Giving up on ending giveaway")
		return
	}

	if err := s.repo.Save(ctx, ended.Record()); err != nil {
		logger.Error().Int64("message_id", messageID).Err(err).Msg("Failed to persist ended giveaway")
		return
	}
	if err := s.repo.MarkEnded(ctx, messageID); err != nil {
		logger.Warn().Int64("message_id", messageID).Err(err).Msg("Failed to mark giveaway ended")
	}
}
