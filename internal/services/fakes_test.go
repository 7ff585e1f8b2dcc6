package services_test

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hibiken/asynq"

	"muninn/internal/models"
	"muninn/internal/oracle"
	"muninn/internal/store"
)

// stubTransport plays back scripted completions in order. A response can
// be an error instead of text.
type stubTransport struct {
	mu      sync.Mutex
	script  []stubReply
	prompts []string
}

type stubReply struct {
	text string
	err  error
}

func reply(text string) stubReply  { return stubReply{text: text} }
func replyErr(err error) stubReply { return stubReply{err: err} }

func newStub(script ...stubReply) *stubTransport {
	return &stubTransport{script: script}
}

func (t *stubTransport) Complete(ctx context.Context, messages []oracle.Message, maxTokens int) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var prompt string
	for _, m := range messages {
		prompt += m.Content + "\n"
	}
	t.prompts = append(t.prompts, prompt)
	if len(t.script) == 0 {
		return "", errors.New("stub transport: script exhausted")
	}
	next := t.script[0]
	t.script = t.script[1:]
	return next.text, next.err
}

func (t *stubTransport) Name() string      { return "stub" }
func (t *stubTransport) ModelName() string { return "stub-model" }

func testOracle(transport oracle.Transport) *oracle.Client {
	return oracle.NewClient(transport, time.Second)
}

// memStore is an in-memory implementation of the store interfaces with
// transaction rollback via snapshotting.
type memStore struct {
	mu       sync.Mutex
	nextID   int64
	topics   map[int64]*models.Topic
	entries  map[int64]*models.Entry
	threads  map[int64]*models.ChatThread
	messages map[int64]*models.ChatMessage
	accounts map[int64]*models.User

	// failSetEntryTopic makes SetEntryTopic fail for the given entry ids,
	// to exercise transactional rollback.
	failSetEntryTopic map[int64]error
}

func newMemStore() *memStore {
	return &memStore{
		topics:            make(map[int64]*models.Topic),
		entries:           make(map[int64]*models.Entry),
		threads:           make(map[int64]*models.ChatThread),
		messages:          make(map[int64]*models.ChatMessage),
		accounts:          make(map[int64]*models.User),
		failSetEntryTopic: make(map[int64]error),
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func copyTopics(src map[int64]*models.Topic) map[int64]*models.Topic {
	out := make(map[int64]*models.Topic, len(src))
	for k, v := range src {
		c := *v
		out[k] = &c
	}
	return out
}

func copyEntries(src map[int64]*models.Entry) map[int64]*models.Entry {
	out := make(map[int64]*models.Entry, len(src))
	for k, v := range src {
		c := *v
		if v.TopicID != nil {
			id := *v.TopicID
			c.TopicID = &id
		}
		out[k] = &c
	}
	return out
}

// RunInTx snapshots topics and entries and restores them when fn fails.
func (m *memStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	topicSnap := copyTopics(m.topics)
	entrySnap := copyEntries(m.entries)
	idSnap := m.nextID
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.topics = topicSnap
		m.entries = entrySnap
		m.nextID = idSnap
		m.mu.Unlock()
		return err
	}
	return nil
}

// --- TopicStore ---

func (m *memStore) CreateTopic(ctx context.Context, topic *models.Topic) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.topics {
		if t.OwnerID == topic.OwnerID && strings.EqualFold(t.Name, topic.Name) {
			return store.ErrDuplicate
		}
	}
	topic.ID = m.id()
	c := *topic
	m.topics[topic.ID] = &c
	return nil
}

func (m *memStore) GetTopic(ctx context.Context, ownerID, id int64) (*models.Topic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.topics[id]
	if !ok || t.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	c := *t
	return &c, nil
}

func (m *memStore) ListTopics(ctx context.Context, ownerID int64) ([]*models.Topic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Topic
	for _, t := range m.topics {
		if t.OwnerID == ownerID {
			c := *t
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) UpdateTopic(ctx context.Context, topic *models.Topic) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.topics[topic.ID]
	if !ok || t.OwnerID != topic.OwnerID {
		return store.ErrNotFound
	}
	c := *topic
	m.topics[topic.ID] = &c
	return nil
}

func (m *memStore) DeleteTopic(ctx context.Context, ownerID, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.topics[id]
	if !ok || t.OwnerID != ownerID {
		return store.ErrNotFound
	}
	delete(m.topics, id)
	for _, e := range m.entries {
		if e.TopicID != nil && *e.TopicID == id {
			e.TopicID = nil
		}
	}
	return nil
}

func (m *memStore) ListTopicOverviews(ctx context.Context, ownerID int64) ([]*models.TopicOverview, error) {
	topics, _ := m.ListTopics(ctx, ownerID)
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.TopicOverview, 0, len(topics))
	for _, t := range topics {
		o := &models.TopicOverview{Topic: *t}
		for _, e := range m.entries {
			if e.OwnerID == ownerID && e.TopicID != nil && *e.TopicID == t.ID {
				o.EntryCount++
				o.LatestPreview = e.Content
			}
		}
		out = append(out, o)
	}
	return out, nil
}

func (m *memStore) GetTopicStats(ctx context.Context, ownerID, topicID int64) (*models.TopicStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &models.TopicStats{TopicID: topicID}
	if topicID == models.UncategorizedTopicID {
		stats.Name = models.UncategorizedTopicName
		for _, e := range m.entries {
			if e.OwnerID == ownerID && e.TopicID == nil {
				stats.EntryCount++
			}
		}
		return stats, nil
	}
	t, ok := m.topics[topicID]
	if !ok || t.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	stats.Name = t.Name
	for _, e := range m.entries {
		if e.OwnerID == ownerID && e.TopicID != nil && *e.TopicID == topicID {
			stats.EntryCount++
		}
	}
	return stats, nil
}

// --- EntryStore ---

func (m *memStore) CreateEntry(ctx context.Context, entry *models.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.ID = m.id()
	c := *entry
	m.entries[entry.ID] = &c
	return nil
}

func (m *memStore) GetEntry(ctx context.Context, ownerID, id int64) (*models.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok || e.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	c := *e
	return &c, nil
}

func (m *memStore) GetEntriesByIDs(ctx context.Context, ownerID int64, ids []int64) ([]*models.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Entry
	for _, id := range ids {
		if e, ok := m.entries[id]; ok && e.OwnerID == ownerID {
			c := *e
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *memStore) ListEntries(ctx context.Context, ownerID int64, filter store.EntryFilter) ([]*models.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Entry
	for _, e := range m.entries {
		if e.OwnerID != ownerID {
			continue
		}
		switch filter.Scope.Kind {
		case models.ScopeSpecific:
			if e.TopicID == nil || *e.TopicID != filter.Scope.TopicID {
				continue
			}
		case models.ScopeUncategorized:
			if e.TopicID != nil {
				continue
			}
		}
		c := *e
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *memStore) UpdateEntry(ctx context.Context, entry *models.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[entry.ID]
	if !ok || e.OwnerID != entry.OwnerID {
		return store.ErrNotFound
	}
	c := *entry
	m.entries[entry.ID] = &c
	return nil
}

func (m *memStore) DeleteEntry(ctx context.Context, ownerID, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok || e.OwnerID != ownerID {
		return store.ErrNotFound
	}
	delete(m.entries, id)
	return nil
}

func (m *memStore) SearchEntries(ctx context.Context, ownerID int64, query string, limit int) ([]*models.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := strings.ToLower(query)
	var out []*models.Entry
	for _, e := range m.entries {
		if e.OwnerID == ownerID && strings.Contains(strings.ToLower(e.Content), q) {
			c := *e
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) SetEntryTopic(ctx context.Context, ownerID, entryID int64, topicID *int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failSetEntryTopic[entryID]; ok {
		return err
	}
	e, ok := m.entries[entryID]
	if !ok || e.OwnerID != ownerID {
		return store.ErrNotFound
	}
	if topicID == nil {
		e.TopicID = nil
		return nil
	}
	id := *topicID
	e.TopicID = &id
	return nil
}

// --- ChatStore ---

func (m *memStore) CreateThread(ctx context.Context, thread *models.ChatThread) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	thread.ID = m.id()
	now := time.Now()
	thread.CreatedAt = now
	thread.LastActivityAt = now
	c := *thread
	m.threads[thread.ID] = &c
	return nil
}

func (m *memStore) GetThread(ctx context.Context, ownerID, id int64) (*models.ChatThread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.threads[id]
	if !ok || t.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	c := *t
	return &c, nil
}

func (m *memStore) ListThreads(ctx context.Context, ownerID int64, filter store.ThreadFilter) ([]*models.ChatThread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.ChatThread
	for _, t := range m.threads {
		if t.OwnerID != ownerID {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.Scope != nil && t.Scope != *filter.Scope {
			continue
		}
		c := *t
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *memStore) UpdateThread(ctx context.Context, thread *models.ChatThread) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.threads[thread.ID]
	if !ok || t.OwnerID != thread.OwnerID {
		return store.ErrNotFound
	}
	c := *thread
	m.threads[thread.ID] = &c
	return nil
}

func (m *memStore) SearchThreads(ctx context.Context, ownerID int64, query string, limit, offset int) ([]*models.ChatThread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := strings.ToLower(query)
	seen := make(map[int64]bool)
	var out []*models.ChatThread
	for _, t := range m.threads {
		if t.OwnerID != ownerID {
			continue
		}
		match := strings.Contains(strings.ToLower(t.Title), q)
		if !match {
			for _, msg := range m.messages {
				if msg.ThreadID == t.ID && strings.Contains(strings.ToLower(msg.Content), q) {
					match = true
					break
				}
			}
		}
		if match && !seen[t.ID] {
			seen[t.ID] = true
			c := *t
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// TouchThread mirrors the SQL GREATEST(last_activity_at, now()) update:
// the timestamp only ever moves forward.
func (m *memStore) TouchThread(ctx context.Context, ownerID, threadID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.threads[threadID]
	if !ok || t.OwnerID != ownerID {
		return store.ErrNotFound
	}
	if now := time.Now(); now.After(t.LastActivityAt) {
		t.LastActivityAt = now
	}
	return nil
}

func (m *memStore) CreateMessage(ctx context.Context, msg *models.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.ID = m.id()
	c := *msg
	m.messages[msg.ID] = &c
	return nil
}

func (m *memStore) GetMessage(ctx context.Context, ownerID, threadID, messageID int64) (*models.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[messageID]
	if !ok || msg.OwnerID != ownerID || msg.ThreadID != threadID {
		return nil, store.ErrNotFound
	}
	c := *msg
	return &c, nil
}

func (m *memStore) threadMessages(ownerID, threadID int64) []*models.ChatMessage {
	var out []*models.ChatMessage
	for _, msg := range m.messages {
		if msg.OwnerID == ownerID && msg.ThreadID == threadID {
			c := *msg
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memStore) ListMessages(ctx context.Context, ownerID, threadID int64, limit, offset int) ([]*models.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.threadMessages(ownerID, threadID)
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) RecentMessages(ctx context.Context, ownerID, threadID int64, limit int) ([]*models.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.threadMessages(ownerID, threadID)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *memStore) DeleteMessage(ctx context.Context, ownerID, threadID, messageID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[messageID]
	if !ok || msg.OwnerID != ownerID || msg.ThreadID != threadID {
		return store.ErrNotFound
	}
	delete(m.messages, messageID)
	return nil
}

func (m *memStore) CountMessages(ctx context.Context, ownerID, threadID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.threadMessages(ownerID, threadID)), nil
}

// --- UserStore ---

func (m *memStore) CreateUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.accounts {
		if u.Email == user.Email {
			return store.ErrDuplicate
		}
	}
	user.ID = m.id()
	c := *user
	m.accounts[user.ID] = &c
	return nil
}

func (m *memStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.accounts {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.accounts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *u
	return &c, nil
}

// fakeJobClient records enqueued titling jobs.
type fakeJobClient struct {
	mu        sync.Mutex
	titleJobs [][2]int64
}

func (f *fakeJobClient) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) error {
	return nil
}

func (f *fakeJobClient) EnqueueThreadTitleJob(ctx context.Context, ownerID, threadID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.titleJobs = append(f.titleJobs, [2]int64{ownerID, threadID})
	return nil
}

func (f *fakeJobClient) Close() error { return nil }
