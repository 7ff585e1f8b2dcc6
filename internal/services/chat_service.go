package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"muninn/internal/models"
	"muninn/internal/oracle"
	"muninn/internal/store"
	"muninn/internal/tools"
)

const (
	// DefaultThreadTitle marks a thread that has not been auto-titled yet.
	DefaultThreadTitle = "New Chat"
	// defaultContextMessages bounds how much history the pipeline feeds
	// back into the oracle.
	defaultContextMessages = 10
)

// ChatService owns thread/message lifecycle and the send-message pipeline:
// persist the user message, pick data tools, run them, generate a reply,
// persist it. Messages within one thread are processed serially.
type ChatService struct {
	oracle          *oracle.Client
	chat            store.ChatStore
	topics          store.TopicStore
	executor        *tools.Executor
	jobs            store.JobClient
	contextMessages int

	mu          sync.Mutex
	threadLocks map[int64]*sync.Mutex
}

// NewChatService wires the orchestrator. jobs may be nil when no worker is
// running; auto-titling is then skipped. A non-positive contextMessages
// falls back to the default.
func NewChatService(oc *oracle.Client, chat store.ChatStore, topics store.TopicStore, entries store.EntryStore, jobs store.JobClient, contextMessages int) *ChatService {
	if contextMessages <= 0 {
		contextMessages = defaultContextMessages
	}
	return &ChatService{
		oracle:          oc,
		chat:            chat,
		topics:          topics,
		executor:        tools.NewExecutor(topics, entries),
		jobs:            jobs,
		contextMessages: contextMessages,
		threadLocks:     make(map[int64]*sync.Mutex),
	}
}

// lockThread serializes pipeline runs per thread id. Locks are never
// reclaimed; the map is bounded by the number of threads touched since
// startup.
func (s *ChatService) lockThread(threadID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.threadLocks[threadID]
	if !ok {
		m = &sync.Mutex{}
		s.threadLocks[threadID] = m
	}
	return m
}

// --- Thread lifecycle ---

// CreateThread opens a thread. An empty title defaults to DefaultThreadTitle
// so the worker knows it may auto-title later; a nil scope defaults to
// uncategorized. A specific-topic scope must name a topic the owner has.
func (s *ChatService) CreateThread(ctx context.Context, ownerID int64, title string, scope *models.TopicScope) (*models.ChatThread, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultThreadTitle
	}
	sc := models.UncategorizedOnly
	if scope != nil {
		sc = *scope
	}
	if sc.Kind == models.ScopeSpecific {
		if _, err := s.topics.GetTopic(ctx, ownerID, sc.TopicID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("%w: topic %d", models.ErrNotFound, sc.TopicID)
			}
			return nil, fmt.Errorf("verify scope topic: %w", err)
		}
	}

	thread := &models.ChatThread{
		OwnerID: ownerID,
		Scope:   sc,
		Title:   title,
		Status:  models.ThreadStatusActive,
	}
	if err := s.chat.CreateThread(ctx, thread); err != nil {
		return nil, fmt.Errorf("create thread: %w", err)
	}
	return thread, nil
}

func (s *ChatService) GetThread(ctx context.Context, ownerID, threadID int64) (*models.ChatThread, error) {
	thread, err := s.chat.GetThread(ctx, ownerID, threadID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: thread %d", models.ErrNotFound, threadID)
	}
	if err != nil {
		return nil, fmt.Errorf("get thread: %w", err)
	}
	return thread, nil
}

func (s *ChatService) ListThreads(ctx context.Context, ownerID int64, filter store.ThreadFilter) ([]*models.ChatThread, error) {
	threads, err := s.chat.ListThreads(ctx, ownerID, filter)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	return threads, nil
}

// SearchThreads matches the query against thread titles and message bodies.
func (s *ChatService) SearchThreads(ctx context.Context, ownerID int64, query string, limit, offset int) ([]*models.ChatThread, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: search query must not be empty", models.ErrValidation)
	}
	threads, err := s.chat.SearchThreads(ctx, ownerID, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("search threads: %w", err)
	}
	return threads, nil
}

// RenameThread sets a new title. Renaming clears auto-title eligibility by
// definition since the title no longer equals the default.
func (s *ChatService) RenameThread(ctx context.Context, ownerID, threadID int64, title string) (*models.ChatThread, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: thread title must not be empty", models.ErrValidation)
	}
	thread, err := s.GetThread(ctx, ownerID, threadID)
	if err != nil {
		return nil, err
	}
	thread.Title = title
	if err := s.chat.UpdateThread(ctx, thread); err != nil {
		return nil, fmt.Errorf("rename thread: %w", err)
	}
	return thread, nil
}

// SetThreadStatus archives or reactivates a thread.
func (s *ChatService) SetThreadStatus(ctx context.Context, ownerID, threadID int64, status models.ThreadStatus) (*models.ChatThread, error) {
	if status != models.ThreadStatusActive && status != models.ThreadStatusArchived {
		return nil, fmt.Errorf("%w: unknown thread status %q", models.ErrValidation, status)
	}
	thread, err := s.GetThread(ctx, ownerID, threadID)
	if err != nil {
		return nil, err
	}
	thread.Status = status
	if err := s.chat.UpdateThread(ctx, thread); err != nil {
		return nil, fmt.Errorf("update thread status: %w", err)
	}
	return thread, nil
}

func (s *ChatService) ListMessages(ctx context.Context, ownerID, threadID int64, limit, offset int) ([]*models.ChatMessage, error) {
	if _, err := s.GetThread(ctx, ownerID, threadID); err != nil {
		return nil, err
	}
	msgs, err := s.chat.ListMessages(ctx, ownerID, threadID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// DeleteMessage removes one of the owner's own user messages. Assistant and
// system messages are part of the record and cannot be deleted.
func (s *ChatService) DeleteMessage(ctx context.Context, ownerID, threadID, messageID int64) error {
	msg, err := s.chat.GetMessage(ctx, ownerID, threadID, messageID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: message %d", models.ErrNotFound, messageID)
	}
	if err != nil {
		return fmt.Errorf("get message: %w", err)
	}
	if msg.Role != models.MessageRoleUser {
		return fmt.Errorf("%w: only user messages can be deleted", models.ErrForbidden)
	}
	if err := s.chat.DeleteMessage(ctx, ownerID, threadID, messageID); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// --- Send-message pipeline ---

// ProcessMessage runs the full pipeline for one incoming user message. When
// threadID is nil a fresh thread is created first. The user message is
// persisted before any oracle work, so a downstream failure never loses it;
// in that case the error surfaces and no assistant message is written.
func (s *ChatService) ProcessMessage(ctx context.Context, ownerID int64, threadID *int64, text string) (*models.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: message text must not be empty", models.ErrValidation)
	}

	var thread *models.ChatThread
	var err error
	if threadID == nil {
		thread, err = s.CreateThread(ctx, ownerID, "", nil)
	} else {
		thread, err = s.GetThread(ctx, ownerID, *threadID)
	}
	if err != nil {
		return nil, err
	}
	if thread.Status == models.ThreadStatusArchived {
		return nil, fmt.Errorf("%w: thread %d", models.ErrThreadArchived, thread.ID)
	}

	lock := s.lockThread(thread.ID)
	lock.Lock()
	defer lock.Unlock()

	pipelineID := uuid.NewString()
	logger := log.WithFields(log.Fields{"pipeline_id": pipelineID, "thread_id": thread.ID})

	userMsg := &models.ChatMessage{
		ThreadID: thread.ID,
		OwnerID:  ownerID,
		Role:     models.MessageRoleUser,
		Content:  text,
	}
	if err := s.chat.CreateMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("persist user message: %w", err)
	}
	if err := s.chat.TouchThread(ctx, ownerID, thread.ID); err != nil {
		logger.Warnf("chat: failed to bump thread activity: %v", err)
	}

	history, err := s.chat.RecentMessages(ctx, ownerID, thread.ID, s.contextMessages)
	if err != nil {
		return nil, fmt.Errorf("load conversation context: %w", err)
	}

	calls := s.selectTools(ctx, logger, thread, history)
	results := s.runTools(ctx, logger, ownerID, calls)

	reply, err := s.generate(ctx, thread, history, results)
	if err != nil {
		logger.Warnf("chat: response generation failed, user message kept: %v", err)
		return nil, err
	}

	assistantMsg := &models.ChatMessage{
		ThreadID: thread.ID,
		OwnerID:  ownerID,
		Role:     models.MessageRoleAssistant,
		Content:  reply,
	}
	if err := s.chat.CreateMessage(ctx, assistantMsg); err != nil {
		return nil, fmt.Errorf("persist assistant message: %w", err)
	}
	if err := s.chat.TouchThread(ctx, ownerID, thread.ID); err != nil {
		logger.Warnf("chat: failed to bump thread activity: %v", err)
	}

	s.maybeEnqueueTitling(ctx, logger, thread)

	return assistantMsg, nil
}

// selectTools asks the oracle which data tools to run for the current turn.
// Any failure, including an unparseable response, means no tools run; the
// generation step still proceeds on conversation context alone.
func (s *ChatService) selectTools(ctx context.Context, logger *log.Entry, thread *models.ChatThread, history []*models.ChatMessage) []tools.Call {
	var b strings.Builder
	b.WriteString("You are deciding which data tools to run before answering the user's latest message.\n")
	fmt.Fprintf(&b, "The conversation is thread %d (%q), scoped to: %s.\n\nAvailable tools:\n", thread.ID, thread.Title, thread.Scope.String())
	for _, spec := range tools.Registry {
		fmt.Fprintf(&b, "- %s\n", spec.Description)
	}
	b.WriteString("\nConversation (oldest first):\n")
	for _, m := range history {
		fmt.Fprintf(&b, "[%s] %s\n", m.Role, m.Content)
	}
	b.WriteString("\nReturn ONLY a JSON object mapping each tool name you want to run to its parameters, for example {\"search_entries\": {\"query\": \"running\"}}. Return {} to run no tools.")

	raw, ok := s.oracle.CompleteStructured(ctx, b.String(), oracle.ShapeJSONObject)
	if !ok {
		logger.Warnf("chat: tool selection produced no usable output, running no tools")
		return nil
	}

	var requested map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &requested); err != nil {
		logger.Warnf("chat: tool selection response is not an object, running no tools: %v", err)
		return nil
	}
	calls := tools.ParseCalls(requested)
	logger.Debugf("chat: %d tool calls selected", len(calls))
	return calls
}

// toolResult pairs a call with either its data or a captured error. Failed
// tools never abort the pipeline; the oracle sees the error text instead.
type toolResult struct {
	Tool   tools.Kind  `json:"tool"`
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

func (s *ChatService) runTools(ctx context.Context, logger *log.Entry, ownerID int64, calls []tools.Call) []toolResult {
	results := make([]toolResult, 0, len(calls))
	for _, call := range calls {
		out, err := s.executor.Execute(ctx, ownerID, call)
		if err != nil {
			logger.Warnf("chat: tool %s failed: %v", call.Kind(), err)
			results = append(results, toolResult{Tool: call.Kind(), Error: err.Error()})
			continue
		}
		results = append(results, toolResult{Tool: call.Kind(), Result: out})
	}
	return results
}

// generate produces the assistant reply from the conversation plus tool
// results. Oracle failures surface to the caller.
func (s *ChatService) generate(ctx context.Context, thread *models.ChatThread, history []*models.ChatMessage, results []toolResult) (string, error) {
	var system strings.Builder
	system.WriteString("You are a personal knowledge assistant answering questions about the user's own notes.\n")
	fmt.Fprintf(&system, "This conversation is thread %d (%q), scoped to: %s.\n", thread.ID, thread.Title, thread.Scope.String())
	if len(results) > 0 {
		system.WriteString("\nData tool results for this turn:\n")
		for _, r := range results {
			encoded, err := json.Marshal(r)
			if err != nil {
				return "", fmt.Errorf("encode tool result: %w", err)
			}
			system.Write(encoded)
			system.WriteByte('\n')
		}
	}
	system.WriteString("\nAnswer using the tool results and conversation. If a tool reported an error, say what could not be retrieved instead of guessing.")

	messages := make([]oracle.Message, 0, len(history)+1)
	messages = append(messages, oracle.Message{Role: oracle.RoleSystem, Content: system.String()})
	for _, m := range history {
		role := oracle.RoleUser
		if m.Role == models.MessageRoleAssistant {
			role = oracle.RoleAssistant
		}
		messages = append(messages, oracle.Message{Role: role, Content: m.Content})
	}

	return s.oracle.GenerateChat(ctx, messages)
}

// maybeEnqueueTitling schedules background auto-titling after the first
// completed exchange on a still-untitled thread. Enqueue failures only log;
// the reply has already been persisted.
func (s *ChatService) maybeEnqueueTitling(ctx context.Context, logger *log.Entry, thread *models.ChatThread) {
	if s.jobs == nil || thread.Title != DefaultThreadTitle {
		return
	}
	count, err := s.chat.CountMessages(ctx, thread.OwnerID, thread.ID)
	if err != nil {
		logger.Warnf("chat: could not count messages for auto-titling: %v", err)
		return
	}
	if count != 2 {
		return
	}
	if err := s.jobs.EnqueueThreadTitleJob(ctx, thread.OwnerID, thread.ID); err != nil {
		logger.Warnf("chat: failed to enqueue thread titling job: %v", err)
	}
}
