package service

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"paperflow_backend/internal/model"
	"paperflow_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProcessor struct {
	mu   sync.Mutex
	ids  []string
	done chan string
}

func (p *recordingProcessor) StartProcessing(ctx context.Context, id string) (*model.TestPaper, error) {
	p.mu.Lock()
	p.ids = append(p.ids, id)
	p.mu.Unlock()
	p.done <- id
	if id == "bad" {
		return nil, util.ErrInvalidState
	}
	return &model.TestPaper{}, nil
}

func TestLocalDispatcher_ProcessesQueuedJobs(t *testing.T) {
	proc := &recordingProcessor{done: make(chan string, 8)}
	d := NewLocalDispatcher(proc, 2, 8)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error, 1)
	go func() { stopped <- d.Run(ctx) }()

	for _, id := range []string{"a", "bad", "c"} {
		require.NoError(t, d.Enqueue(context.Background(), id))
	}

	seen := map[string]bool{}
	for len(seen) < 3 {
		select {
		case id := <-proc.done:
			seen[id] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out, processed %v", seen)
		}
	}

	cancel()
	select {
	case err := <-stopped:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop")
	}
}

func TestLocalDispatcher_FullQueue(t *testing.T) {
	d := NewLocalDispatcher(&recordingProcessor{done: make(chan string, 1)}, 1, 1)

	require.NoError(t, d.Enqueue(context.Background(), "a"))
	err := d.Enqueue(context.Background(), "b")
	assert.ErrorIs(t, err, util.ErrQueueUnavailable)
	assert.NotErrorIs(t, err, util.ErrStorageUnavailable)
	assert.Equal(t, http.StatusServiceUnavailable, util.StatusForError(err))
}

func TestLocalDispatcher_DrivesPipeline(t *testing.T) {
	env := newTestEnv(t)
	env.extractor.set(threeCandidates(), nil)
	paper := env.upload(t, "owner-1")

	d := NewLocalDispatcher(env.pipeline, 1, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	require.NoError(t, d.Enqueue(context.Background(), paper.ID))
	require.Eventually(t, func() bool {
		return env.status(t, paper.ID).Status == model.JobReview
	}, 2*time.Second, 10*time.Millisecond)
}
