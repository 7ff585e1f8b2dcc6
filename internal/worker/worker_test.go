package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"muninn/internal/tasks"
)

func TestRegisterHandlers(t *testing.T) {
	mux := asynq.NewServeMux()
	RegisterHandlers(mux, TitlingDeps{})

	info := mux.HandlerInfo(tasks.TypeThreadTitle)
	require.NotNil(t, info.Handler, "handler for %s must be registered", tasks.TypeThreadTitle)
}

func TestThreadTitleJobMalformedPayloadNotRetried(t *testing.T) {
	handler := HandleThreadTitleJob(TitlingDeps{})
	task := asynq.NewTask(tasks.TypeThreadTitle, []byte("not json"))

	err := handler(context.Background(), task)
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}
