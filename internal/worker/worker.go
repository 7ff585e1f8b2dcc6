// Package worker holds the asynq task handlers.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"muninn/internal/oracle"
	"muninn/internal/services"
	"muninn/internal/store"
	"muninn/internal/tasks"
)

// TitlingDeps are the dependencies of the thread auto-titling handler.
type TitlingDeps struct {
	Chat   store.ChatStore
	Topics store.TopicStore
	Oracle *oracle.Client
}

// RegisterHandlers wires every task handler into the mux.
func RegisterHandlers(mux *asynq.ServeMux, deps TitlingDeps) {
	mux.HandleFunc(tasks.TypeThreadTitle, HandleThreadTitleJob(deps))
}

// HandleThreadTitleJob renames a thread based on its first exchange. The
// whole operation is best-effort: when the oracle has nothing usable the
// thread keeps its default title and the task succeeds anyway.
func HandleThreadTitleJob(deps TitlingDeps) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var payload tasks.ThreadTitlePayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			// Malformed payloads never become valid; don't retry.
			return fmt.Errorf("unmarshal thread title payload: %v: %w", err, asynq.SkipRetry)
		}

		thread, err := deps.Chat.GetThread(ctx, payload.OwnerID, payload.ThreadID)
		if errors.Is(err, store.ErrNotFound) {
			log.Debugf("worker: thread %d gone before titling, skipping", payload.ThreadID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("load thread %d: %w", payload.ThreadID, err)
		}
		// The user may have renamed it while the task was queued.
		if thread.Title != services.DefaultThreadTitle {
			return nil
		}

		msgs, err := deps.Chat.ListMessages(ctx, payload.OwnerID, payload.ThreadID, 4, 0)
		if err != nil {
			return fmt.Errorf("load messages for thread %d: %w", payload.ThreadID, err)
		}
		if len(msgs) == 0 {
			return nil
		}
		var text string
		for _, m := range msgs {
			text += fmt.Sprintf("[%s] %s\n", m.Role, m.Content)
		}

		var contextLabels []string
		if topics, err := deps.Topics.ListTopics(ctx, payload.OwnerID); err == nil {
			for _, t := range topics {
				contextLabels = append(contextLabels, t.Name)
			}
		}

		title := deps.Oracle.SuggestLabel(ctx, text, contextLabels)
		if title == oracle.SentinelLabel {
			log.Debugf("worker: no usable title for thread %d, keeping default", payload.ThreadID)
			return nil
		}

		thread.Title = title
		if err := deps.Chat.UpdateThread(ctx, thread); err != nil {
			return fmt.Errorf("rename thread %d: %w", payload.ThreadID, err)
		}
		log.Infof("worker: titled thread %d %q", payload.ThreadID, title)
		return nil
	}
}
