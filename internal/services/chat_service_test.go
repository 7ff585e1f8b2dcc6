package services_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"muninn/internal/models"
	"muninn/internal/services"
)

func newChatFixture(t *testing.T, stub *stubTransport) (*services.ChatService, *memStore, *fakeJobClient) {
	t.Helper()
	ms := newMemStore()
	jobs := &fakeJobClient{}
	svc := services.NewChatService(testOracle(stub), ms, ms, ms, jobs, 10)
	return svc, ms, jobs
}

func TestCreateThreadDefaults(t *testing.T) {
	svc, _, _ := newChatFixture(t, newStub())

	thread, err := svc.CreateThread(context.Background(), 1, "  ", nil)
	require.NoError(t, err)
	assert.Equal(t, services.DefaultThreadTitle, thread.Title)
	assert.Equal(t, models.UncategorizedOnly, thread.Scope)
	assert.Equal(t, models.ThreadStatusActive, thread.Status)
}

func TestCreateThreadValidatesScopeTopic(t *testing.T) {
	svc, ms, _ := newChatFixture(t, newStub())
	topic := seedTopic(t, ms, 1, "Health")

	scope := models.ScopeTopic(topic.ID)
	thread, err := svc.CreateThread(context.Background(), 1, "health chat", &scope)
	require.NoError(t, err)
	assert.Equal(t, scope, thread.Scope)

	missing := models.ScopeTopic(999)
	_, err = svc.CreateThread(context.Background(), 1, "", &missing)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestProcessMessageFullPipeline(t *testing.T) {
	stub := newStub(
		// Tool selection: run one search.
		reply(`{"search_entries": {"query": "lisbon"}}`),
		// Response generation.
		reply("You noted flights to Lisbon in May."),
	)
	svc, ms, _ := newChatFixture(t, stub)
	seedEntry(t, ms, 1, "flights to Lisbon in May", nil)

	msg, err := svc.ProcessMessage(context.Background(), 1, nil, "when was my lisbon trip?")
	require.NoError(t, err)
	assert.Equal(t, models.MessageRoleAssistant, msg.Role)
	assert.Equal(t, "You noted flights to Lisbon in May.", msg.Content)

	// Both the user and assistant messages were persisted in order.
	history, err := ms.RecentMessages(context.Background(), 1, msg.ThreadID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.MessageRoleUser, history[0].Role)
	assert.Equal(t, models.MessageRoleAssistant, history[1].Role)

	// The generation prompt carried the tool result.
	require.Len(t, stub.prompts, 2)
	assert.Contains(t, stub.prompts[1], "search_entries")
	assert.Contains(t, stub.prompts[1], "Lisbon")
}

func TestProcessMessageKeepsUserMessageWhenGenerationFails(t *testing.T) {
	stub := newStub(
		reply(`{}`),
		replyErr(errors.New("provider down")),
	)
	svc, ms, _ := newChatFixture(t, stub)
	thread, err := svc.CreateThread(context.Background(), 1, "", nil)
	require.NoError(t, err)

	_, err = svc.ProcessMessage(context.Background(), 1, &thread.ID, "hello?")
	assert.ErrorIs(t, err, models.ErrOracleUnavailable)

	history, listErr := ms.RecentMessages(context.Background(), 1, thread.ID, 10)
	require.NoError(t, listErr)
	require.Len(t, history, 1)
	assert.Equal(t, models.MessageRoleUser, history[0].Role)
	assert.Equal(t, "hello?", history[0].Content)
}

func TestProcessMessageToolSelectionFailureStillAnswers(t *testing.T) {
	stub := newStub(
		// Tool selection yields garbage with no JSON object.
		reply("I cannot decide."),
		reply("Answering from context alone."),
	)
	svc, _, _ := newChatFixture(t, stub)

	msg, err := svc.ProcessMessage(context.Background(), 1, nil, "anything")
	require.NoError(t, err)
	assert.Equal(t, "Answering from context alone.", msg.Content)
}

func TestProcessMessageToolErrorsAreCaptured(t *testing.T) {
	stub := newStub(
		// get_topic for a topic that does not exist.
		reply(`{"get_topic": {"topic_id": 424242}}`),
		reply("That topic does not exist."),
	)
	svc, _, _ := newChatFixture(t, stub)

	msg, err := svc.ProcessMessage(context.Background(), 1, nil, "tell me about topic 424242")
	require.NoError(t, err)
	assert.NotEmpty(t, msg.Content)
	// The captured error reached the generation prompt.
	require.Len(t, stub.prompts, 2)
	assert.Contains(t, stub.prompts[1], "error")
}

func TestProcessMessageArchivedThreadRejected(t *testing.T) {
	svc, _, _ := newChatFixture(t, newStub())
	thread, err := svc.CreateThread(context.Background(), 1, "old", nil)
	require.NoError(t, err)
	_, err = svc.SetThreadStatus(context.Background(), 1, thread.ID, models.ThreadStatusArchived)
	require.NoError(t, err)

	_, err = svc.ProcessMessage(context.Background(), 1, &thread.ID, "anyone home?")
	assert.ErrorIs(t, err, models.ErrThreadArchived)
}

func TestProcessMessageNeverRewindsThreadActivity(t *testing.T) {
	stub := newStub(
		reply(`{}`),
		reply("first"),
		reply(`{}`),
		reply("second"),
	)
	svc, ms, _ := newChatFixture(t, stub)
	thread, err := svc.CreateThread(context.Background(), 1, "activity log", nil)
	require.NoError(t, err)
	created := thread.LastActivityAt

	_, err = svc.ProcessMessage(context.Background(), 1, &thread.ID, "one")
	require.NoError(t, err)
	first, err := ms.GetThread(context.Background(), 1, thread.ID)
	require.NoError(t, err)
	assert.False(t, first.LastActivityAt.Before(created))

	_, err = svc.ProcessMessage(context.Background(), 1, &thread.ID, "two")
	require.NoError(t, err)
	second, err := ms.GetThread(context.Background(), 1, thread.ID)
	require.NoError(t, err)
	assert.False(t, second.LastActivityAt.Before(first.LastActivityAt))

	// A timestamp already ahead of the clock stays put.
	future := time.Now().Add(time.Hour)
	second.LastActivityAt = future
	require.NoError(t, ms.UpdateThread(context.Background(), second))
	require.NoError(t, ms.TouchThread(context.Background(), 1, thread.ID))
	got, err := ms.GetThread(context.Background(), 1, thread.ID)
	require.NoError(t, err)
	assert.True(t, got.LastActivityAt.Equal(future))
}

func TestProcessMessagePromptsCarryThreadMetadata(t *testing.T) {
	stub := newStub(
		reply(`{}`),
		reply("noted"),
	)
	svc, _, _ := newChatFixture(t, stub)
	thread, err := svc.CreateThread(context.Background(), 1, "Trip Planning", nil)
	require.NoError(t, err)

	_, err = svc.ProcessMessage(context.Background(), 1, &thread.ID, "where to next?")
	require.NoError(t, err)

	// Both the tool-selection and generation prompts identify the thread.
	require.Len(t, stub.prompts, 2)
	for _, prompt := range stub.prompts {
		assert.Contains(t, prompt, fmt.Sprintf("thread %d", thread.ID))
		assert.Contains(t, prompt, "Trip Planning")
	}
}

func TestGetAllTopicsListsEmptyUncategorizedBucket(t *testing.T) {
	stub := newStub(
		reply(`{"get_all_topics": {}}`),
		reply("You have one topic so far."),
	)
	svc, ms, _ := newChatFixture(t, stub)
	topic := seedTopic(t, ms, 1, "Health")
	entry := seedEntry(t, ms, 1, "ran 5k this morning", nil)
	require.NoError(t, ms.SetEntryTopic(context.Background(), 1, entry.ID, &topic.ID))

	_, err := svc.ProcessMessage(context.Background(), 1, nil, "what topics do I have?")
	require.NoError(t, err)

	// Even with no uncategorized entries the virtual bucket shows up.
	require.Len(t, stub.prompts, 2)
	assert.Contains(t, stub.prompts[1], "Health")
	assert.Contains(t, stub.prompts[1], models.UncategorizedTopicName)
}

func TestProcessMessageEmptyTextRejected(t *testing.T) {
	svc, _, _ := newChatFixture(t, newStub())
	_, err := svc.ProcessMessage(context.Background(), 1, nil, "   ")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestProcessMessageEnqueuesTitlingAfterFirstExchange(t *testing.T) {
	stub := newStub(
		reply(`{}`), reply("first answer"),
		reply(`{}`), reply("second answer"),
	)
	svc, _, jobs := newChatFixture(t, stub)

	msg, err := svc.ProcessMessage(context.Background(), 1, nil, "first message")
	require.NoError(t, err)
	require.Len(t, jobs.titleJobs, 1)
	assert.Equal(t, [2]int64{1, msg.ThreadID}, jobs.titleJobs[0])

	// The second exchange does not enqueue again.
	_, err = svc.ProcessMessage(context.Background(), 1, &msg.ThreadID, "second message")
	require.NoError(t, err)
	assert.Len(t, jobs.titleJobs, 1)
}

func TestRenamedThreadSkipsTitling(t *testing.T) {
	stub := newStub(reply(`{}`), reply("answer"))
	svc, _, jobs := newChatFixture(t, stub)
	thread, err := svc.CreateThread(context.Background(), 1, "My Own Title", nil)
	require.NoError(t, err)

	_, err = svc.ProcessMessage(context.Background(), 1, &thread.ID, "hello")
	require.NoError(t, err)
	assert.Empty(t, jobs.titleJobs)
}

func TestDeleteMessageOnlyUserMessages(t *testing.T) {
	stub := newStub(reply(`{}`), reply("the answer"))
	svc, ms, _ := newChatFixture(t, stub)

	assistant, err := svc.ProcessMessage(context.Background(), 1, nil, "a question")
	require.NoError(t, err)

	history, err := ms.RecentMessages(context.Background(), 1, assistant.ThreadID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	userMsg := history[0]

	// Assistant messages cannot be deleted.
	err = svc.DeleteMessage(context.Background(), 1, assistant.ThreadID, assistant.ID)
	assert.ErrorIs(t, err, models.ErrForbidden)

	// Someone else's message is simply not found.
	err = svc.DeleteMessage(context.Background(), 2, assistant.ThreadID, userMsg.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	// The owner's own user message goes away.
	require.NoError(t, svc.DeleteMessage(context.Background(), 1, assistant.ThreadID, userMsg.ID))
	history, err = ms.RecentMessages(context.Background(), 1, assistant.ThreadID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.MessageRoleAssistant, history[0].Role)
}

func TestSearchThreadsValidatesQuery(t *testing.T) {
	svc, _, _ := newChatFixture(t, newStub())
	_, err := svc.SearchThreads(context.Background(), 1, "  ", 10, 0)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestSearchThreadsMatchesTitleAndBody(t *testing.T) {
	stub := newStub(reply(`{}`), reply("about lisbon"))
	svc, _, _ := newChatFixture(t, stub)

	msg, err := svc.ProcessMessage(context.Background(), 1, nil, "planning my Lisbon trip")
	require.NoError(t, err)
	other, err := svc.CreateThread(context.Background(), 1, "Lisbon itinerary", nil)
	require.NoError(t, err)

	threads, err := svc.SearchThreads(context.Background(), 1, "lisbon", 10, 0)
	require.NoError(t, err)
	require.Len(t, threads, 2)
	ids := []int64{threads[0].ID, threads[1].ID}
	assert.ElementsMatch(t, []int64{msg.ThreadID, other.ID}, ids)
}

func TestRenameThread(t *testing.T) {
	svc, _, _ := newChatFixture(t, newStub())
	thread, err := svc.CreateThread(context.Background(), 1, "", nil)
	require.NoError(t, err)

	renamed, err := svc.RenameThread(context.Background(), 1, thread.ID, "Trip Planning")
	require.NoError(t, err)
	assert.Equal(t, "Trip Planning", renamed.Title)

	_, err = svc.RenameThread(context.Background(), 1, thread.ID, "  ")
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = svc.RenameThread(context.Background(), 2, thread.ID, "Stolen")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
