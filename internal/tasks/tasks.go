// Package tasks defines the asynq task types and payloads shared by the
// job client and the worker.
package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// TypeThreadTitle asks the worker to auto-title a chat thread from its
	// first exchange.
	TypeThreadTitle = "thread:title"
)

// ThreadTitlePayload identifies the thread to title.
type ThreadTitlePayload struct {
	OwnerID  int64 `json:"owner_id"`
	ThreadID int64 `json:"thread_id"`
}

// NewThreadTitleTask builds the asynq task for one thread.
func NewThreadTitleTask(ownerID, threadID int64) (*asynq.Task, error) {
	payload, err := json.Marshal(ThreadTitlePayload{OwnerID: ownerID, ThreadID: threadID})
	if err != nil {
		return nil, fmt.Errorf("marshal thread title payload: %w", err)
	}
	return asynq.NewTask(TypeThreadTitle, payload), nil
}
