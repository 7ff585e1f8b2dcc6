package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"muninn/internal/models"
	"muninn/internal/services"
	"muninn/internal/store"
)

func newTopicFixture(t *testing.T) (*services.TopicService, *memStore) {
	t.Helper()
	ms := newMemStore()
	return services.NewTopicService(ms, services.NewTopicCache(ms)), ms
}

func TestCreateTopicRejectsReservedName(t *testing.T) {
	svc, _ := newTopicFixture(t)
	_, err := svc.CreateTopic(context.Background(), 1, "uncategorized")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestCreateTopicRejectsDuplicate(t *testing.T) {
	svc, _ := newTopicFixture(t)
	_, err := svc.CreateTopic(context.Background(), 1, "Recipes")
	require.NoError(t, err)
	_, err = svc.CreateTopic(context.Background(), 1, "recipes")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestGetTopicSynthesizesUncategorized(t *testing.T) {
	svc, _ := newTopicFixture(t)
	topic, err := svc.GetTopic(context.Background(), 1, models.UncategorizedTopicID)
	require.NoError(t, err)
	assert.Equal(t, models.UncategorizedTopicName, topic.Name)
}

func TestVirtualTopicCannotBeMutated(t *testing.T) {
	svc, _ := newTopicFixture(t)
	_, err := svc.RenameTopic(context.Background(), 1, models.UncategorizedTopicID, "Other")
	assert.ErrorIs(t, err, models.ErrValidation)
	err = svc.DeleteTopic(context.Background(), 1, models.UncategorizedTopicID)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestDeleteTopicOrphansEntries(t *testing.T) {
	svc, ms := newTopicFixture(t)
	topic, err := svc.CreateTopic(context.Background(), 1, "Recipes")
	require.NoError(t, err)
	entry := seedEntry(t, ms, 1, "lasagna", &topic.ID)

	require.NoError(t, svc.DeleteTopic(context.Background(), 1, topic.ID))

	got, err := ms.GetEntry(context.Background(), 1, entry.ID)
	require.NoError(t, err)
	assert.Nil(t, got.TopicID)
}

func TestTopicOwnershipEnforced(t *testing.T) {
	svc, _ := newTopicFixture(t)
	topic, err := svc.CreateTopic(context.Background(), 1, "Mine")
	require.NoError(t, err)

	_, err = svc.GetTopic(context.Background(), 2, topic.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	err = svc.DeleteTopic(context.Background(), 2, topic.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestEntryServiceValidation(t *testing.T) {
	ms := newMemStore()
	svc := services.NewEntryService(ms, ms)

	_, err := svc.CreateEntry(context.Background(), 1, "   ", nil)
	assert.ErrorIs(t, err, models.ErrValidation)

	bogus := int64(99)
	_, err = svc.CreateEntry(context.Background(), 1, "note", &bogus)
	assert.ErrorIs(t, err, models.ErrNotFound)

	virtual := models.UncategorizedTopicID
	_, err = svc.CreateEntry(context.Background(), 1, "note", &virtual)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestEntryServiceScopedListing(t *testing.T) {
	ms := newMemStore()
	svc := services.NewEntryService(ms, ms)
	topic := seedTopic(t, ms, 1, "Recipes")

	inTopic, err := svc.CreateEntry(context.Background(), 1, "lasagna", &topic.ID)
	require.NoError(t, err)
	loose, err := svc.CreateEntry(context.Background(), 1, "loose note", nil)
	require.NoError(t, err)

	got, err := svc.ListEntries(context.Background(), 1, store.EntryFilter{Scope: models.ScopeTopic(topic.ID)})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, inTopic.ID, got[0].ID)

	got, err = svc.ListEntries(context.Background(), 1, store.EntryFilter{Scope: models.UncategorizedOnly})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, loose.ID, got[0].ID)

	got, err = svc.ListEntries(context.Background(), 1, store.EntryFilter{Scope: models.AllTopics})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
