package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"giveaway-engine/internal/features/giveaway/models"
	"giveaway-engine/internal/features/giveaway/repository"
	settingsmodels "giveaway-engine/internal/features/settings/models"
)

type sentMessage struct {
	channelID int64
	content   string
}

type fakeChat struct {
	mu sync.Mutex

	nextMessageID int64
	sent          []sentMessage
	edits         map[int64]string
	reactions     map[int64]string
	dms           map[int64][]string
	members       map[int64]*models.Member

	fetchErr   error
	resolveErr error
	sendErr    error
}

func newFakeChat() *fakeChat {
	return &fakeChat{
		nextMessageID: 5000,
		edits:         make(map[int64]string),
		reactions:     make(map[int64]string),
		dms:           make(map[int64][]string),
		members:       make(map[int64]*models.Member),
	}
}

func (f *fakeChat) addMember(id int64, roles ...int64) {
	f.members[id] = &models.Member{ID: id, Username: fmt.Sprintf("user%d", id), RoleIDs: roles}
}

func (f *fakeChat) SendMessage(ctx context.Context, channelID int64, content string) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.nextMessageID++
	f.sent = append(f.sent, sentMessage{channelID: channelID, content: content})
	return &models.Message{ID: f.nextMessageID, ChannelID: channelID, Content: content}, nil
}

func (f *fakeChat) FetchMessage(ctx context.Context, channelID, messageID int64) (*models.Message, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return &models.Message{ID: messageID, ChannelID: channelID}, nil
}

func (f *fakeChat) EditMessage(ctx context.Context, channelID, messageID int64, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits[messageID] = content
	return nil
}

func (f *fakeChat) AddReaction(ctx context.Context, channelID, messageID int64, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions[messageID] = emoji
	return nil
}

func (f *fakeChat) SendDM(ctx context.Context, userID int64, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dms[userID] = append(f.dms[userID], content)
	return nil
}

func (f *fakeChat) GuildMember(ctx context.Context, guildID, userID int64) (*models.Member, error) {
	if m, ok := f.members[userID]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("member %d not found", userID)
}

func (f *fakeChat) ResolveChannel(ctx context.Context, channelID int64) error {
	return f.resolveErr
}

func (f *fakeChat) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeChat) lastSent() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1].content
}

type fakeSettings struct {
	settings *settingsmodels.GuildSettings
	err      error
}

func (f *fakeSettings) Guild(ctx context.Context, guildID int64) (*settingsmodels.GuildSettings, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.settings != nil {
		return f.settings, nil
	}
	return settingsmodels.Defaults(guildID), nil
}

type fakeRegistry struct {
	mu     sync.Mutex
	active map[int64]*models.Record
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{active: make(map[int64]*models.Record)}
}

func (f *fakeRegistry) AddActive(ctx context.Context, rec *models.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active[rec.MessageID] = rec
	return nil
}

func (f *fakeRegistry) RemoveActive(ctx context.Context, messageID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.active, messageID)
	return nil
}

type multiplyingExpander struct {
	times int
}

func (m multiplyingExpander) Expand(ctx context.Context, guildID int64, entrants []int64) ([]int64, error) {
	out := make([]int64, 0, len(entrants)*m.times)
	for _, id := range entrants {
		for i := 0; i < m.times; i++ {
			out = append(out, id)
		}
	}
	return out, nil
}

type identityExpander struct{}

func (identityExpander) Expand(ctx context.Context, guildID int64, entrants []int64) ([]int64, error) {
	return entrants, nil
}

type fakeReputation struct {
	scores map[int64]*models.Score
	err    error
}

func (f *fakeReputation) Score(ctx context.Context, guildID, userID int64) (*models.Score, error) {
	if f.err != nil {
		return nil, f.err
	}
	if s, ok := f.scores[userID]; ok {
		return s, nil
	}
	return &models.Score{}, nil
}

type fakeActivity struct {
	counts map[int64]int64
	err    error
}

func (f *fakeActivity) MessageCount(ctx context.Context, messageID, userID int64) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.counts[userID], nil
}

// memoryRepo is an in-memory GiveawayRepository for supervisor tests.
type memoryRepo struct {
	mu      sync.Mutex
	records map[int64]*models.Record
	active  map[int64]int64 // message id -> ends_at
	ended   map[int64]struct{}
	locks   map[int64]string
	counts  map[int64]map[int64]int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		records: make(map[int64]*models.Record),
		active:  make(map[int64]int64),
		ended:   make(map[int64]struct{}),
		locks:   make(map[int64]string),
		counts:  make(map[int64]map[int64]int64),
	}
}

func (r *memoryRepo) Save(ctx context.Context, rec *models.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.MessageID] = rec
	return nil
}

func (r *memoryRepo) Get(ctx context.Context, messageID int64) (*models.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[messageID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return rec, nil
}

func (r *memoryRepo) Delete(ctx context.Context, messageID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, messageID)
	delete(r.active, messageID)
	delete(r.ended, messageID)
	return nil
}

func (r *memoryRepo) List(ctx context.Context) ([]*models.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	return out, nil
}

func (r *memoryRepo) AddActive(ctx context.Context, rec *models.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.MessageID] = rec
	r.active[rec.MessageID] = rec.EndsAt
	return nil
}

func (r *memoryRepo) RemoveActive(ctx context.Context, messageID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, messageID)
	return nil
}

func (r *memoryRepo) ActiveIDs(ctx context.Context) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int64, 0, len(r.active))
	for id := range r.active {
		out = append(out, id)
	}
	return out, nil
}

func (r *memoryRepo) ExpiredActive(ctx context.Context, now time.Time) ([]int64, error) {
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

func (r *memoryRepo) MarkEnded(ctx context.Context, messageID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, messageID)
	r.ended[messageID] = struct{}{}
	return nil
}

func (r *memoryRepo) TryLock(ctx context.Context, messageID int64, token string, ttl time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, held := r.locks[messageID]; held {
		return false, nil
	}
	r.locks[messageID] = token
	return true, nil
}

func (r *memoryRepo) Unlock(ctx context.Context, messageID int64, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.locks[messageID] == token {
		delete(r.locks, messageID)
	}
	return nil
}

func (r *memoryRepo) IncrMessageCount(ctx context.Context, messageID, userID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts[messageID] == nil {
		r.counts[messageID] = make(map[int64]int64)
	}
	r.counts[messageID][userID]++
	return r.counts[messageID][userID], nil
}

func (r *memoryRepo) MessageCount(ctx context.Context, messageID, userID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[messageID][userID], nil
}
