package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"giveaway-engine/internal/features/giveaway/models"
	"giveaway-engine/internal/features/giveaway/repository"
	"giveaway-engine/internal/features/giveaway/service"
	settingsmodels "giveaway-engine/internal/features/settings/models"
)

type stubChat struct {
	members map[int64]*models.Member
}

func (s *stubChat) SendMessage(ctx context.Context, channelID int64, content string) (*models.Message, error) {
	return &models.Message{ID: 9001, ChannelID: channelID, Content: content}, nil
}

func (s *stubChat) FetchMessage(ctx context.Context, channelID, messageID int64) (*models.Message, error) {
	return &models.Message{ID: messageID, ChannelID: channelID}, nil
}

func (s *stubChat) EditMessage(ctx context.Context, channelID, messageID int64, content string) error {
	return nil
}

func (s *stubChat) AddReaction(ctx context.Context, channelID, messageID int64, emoji string) error {
	return nil
}

func (s *stubChat) SendDM(ctx context.Context, userID int64, content string) error {
	return nil
}

func (s *stubChat) GuildMember(ctx context.Context, guildID, userID int64) (*models.Member, error) {
	if m, ok := s.members[userID]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("member %d not found", userID)
}

func (s *stubChat) ResolveChannel(ctx context.Context, channelID int64) error {
	return nil
}

type stubSettings struct{}

func (stubSettings) Guild(ctx context.Context, guildID int64) (*settingsmodels.GuildSettings, error) {
	return settingsmodels.Defaults(guildID), nil
}

type stubReputation struct{}

func (stubReputation) Score(ctx context.Context, guildID, userID int64) (*models.Score, error) {
	return &models.Score{}, nil
}

type identityExpander struct{}

func (identityExpander) Expand(ctx context.Context, guildID int64, entrants []int64) ([]int64, error) {
	return entrants, nil
}

// stubRepo is an in-memory GiveawayRepository with the same non-blocking
// lock semantics as the redis implementation.
type stubRepo struct {
	mu      sync.Mutex
	records map[int64]*models.Record
	active  map[int64]int64
	ended   map[int64]struct{}
	locks   map[int64]string
	counts  map[int64]map[int64]int64
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		records: make(map[int64]*models.Record),
		active:  make(map[int64]int64),
		ended:   make(map[int64]struct{}),
		locks:   make(map[int64]string),
		counts:  make(map[int64]map[int64]int64),
	}
}

func (r *stubRepo) Save(ctx context.Context, rec *models.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.MessageID] = rec
	return nil
}

func (r *stubRepo) Get(ctx context.Context, messageID int64) (*models.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[messageID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return rec, nil
}

func (r *stubRepo) Delete(ctx context.Context, messageID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, messageID)
	delete(r.active, messageID)
	delete(r.ended, messageID)
	return nil
}

func (r *stubRepo) List(ctx context.Context) ([]*models.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	return out, nil
}

func (r *stubRepo) AddActive(ctx context.Context, rec *models.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.MessageID] = rec
	r.active[rec.MessageID] = rec.EndsAt
	return nil
}

func (r *stubRepo) RemoveActive(ctx context.Context, messageID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, messageID)
	return nil
}

func (r *stubRepo) ActiveIDs(ctx context.Context) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int64, 0, len(r.active))
	for id := range r.active {
		out = append(out, id)
	}
	return out, nil
}

func (r *stubRepo) ExpiredActive(ctx context.Context, now time.Time) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []int64
	for id, endsAt := range r.active {
		if endsAt <= now.Unix() {
			out = append(out, id)
		}
	}
	return out, nil
}

func (r *stubRepo) MarkEnded(ctx context.Context, messageID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, messageID)
	r.ended[messageID] = struct{}{}
	return nil
}

func (r *stubRepo) TryLock(ctx context.Context, messageID int64, token string, ttl time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, held := r.locks[messageID]; held {
		return false, nil
	}
	r.locks[messageID] = token
	return true, nil
}

func (r *stubRepo) Unlock(ctx context.Context, messageID int64, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.locks[messageID] == token {
		delete(r.locks, messageID)
	}
	return nil
}

func (r *stubRepo) IncrMessageCount(ctx context.Context, messageID, userID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts[messageID] == nil {
		r.counts[messageID] = make(map[int64]int64)
	}
	r.counts[messageID][userID]++
	return r.counts[messageID][userID], nil
}

func (r *stubRepo) MessageCount(ctx context.Context, messageID, userID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[messageID][userID], nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *stubRepo) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := newStubRepo()
	members := make(map[int64]*models.Member)
	for id := int64(1); id <= 20; id++ {
		members[id] = &models.Member{ID: id, Username: fmt.Sprintf("user%d", id)}
	}
	chat := &stubChat{members: members}

	eval := service.NewEvaluator(stubReputation{}, repo)
	engine := service.NewEngine(chat, stubSettings{}, repo, identityExpander{}, eval)
	supervisor := service.NewSupervisor(repo, engine, time.Hour, time.Hour)
	t.Cleanup(supervisor.StopAll)

	router := gin.New()
	NewGiveawayHandler(repo, engine, supervisor, chat).RegisterRoutes(router.Group("/api/v1"))
	return router, repo
}

func seedActive(t *testing.T, repo *stubRepo, entrants ...int64) int64 {
	t.Helper()
	g, err := models.New(models.CreateParams{
		MessageID:   100,
		ChannelID:   200,
		GuildID:     300,
		HostID:      400,
		WinnerCount: 1,
		StartsAt:    time.Now().Add(-time.Hour),
		EndsAt:      time.Now().Add(time.Hour),
		Entrants:    entrants,
	})
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), g.Record()))
	return g.MessageID
}

func postJSON(router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestJoinPersistsEntrant(t *testing.T) {
	router, repo := newTestRouter(t)
	id := seedActive(t, repo)

	w := postJSON(router, fmt.Sprintf("/api/v1/giveaways/%d/join", id), gin.H{"user_id": 1})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	rec, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, rec.Entrants)
}

func TestJoinConflictsWhileLocked(t *testing.T) {
	router, repo := newTestRouter(t)
	id := seedActive(t, repo)

	locked, err := repo.TryLock(context.Background(), id, "held-elsewhere", time.Minute)
	require.NoError(t, err)
	require.True(t, locked)

	w := postJSON(router, fmt.Sprintf("/api/v1/giveaways/%d/join", id), gin.H{"user_id": 1})
	assert.Equal(t, http.StatusConflict, w.Code)

	require.NoError(t, repo.Unlock(context.Background(), id, "held-elsewhere"))

	w = postJSON(router, fmt.Sprintf("/api/v1/giveaways/%d/join", id), gin.H{"user_id": 1})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestConcurrentJoinsLoseNoEntrants(t *testing.T) {
	router, repo := newTestRouter(t)
	id := seedActive(t, repo)
	path := fmt.Sprintf("/api/v1/giveaways/%d/join", id)

	var accepted int32
	var wg sync.WaitGroup
	for user := int64(1); user <= 10; user++ {
		wg.Add(1)
		go func(user int64) {
			defer wg.Done()
			w := postJSON(router, path, gin.H{"user_id": user})
			if w.Code == http.StatusOK {
				atomic.AddInt32(&accepted, 1)
			}
		}(user)
	}
	wg.Wait()

	rec, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, accepted, int32(1))
	assert.Len(t, rec.Entrants, int(accepted), "every accepted entry is persisted")
}

func TestLeaveRemovesEntrant(t *testing.T) {
	router, repo := newTestRouter(t)
	id := seedActive(t, repo, 1, 2)

	w := postJSON(router, fmt.Sprintf("/api/v1/giveaways/%d/leave", id), gin.H{"user_id": 1})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	rec, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, rec.Entrants)
}
