package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ludo-technologies/astsim/domain"
)

func TestEventHub(t *testing.T) {
	ctx := context.Background()
	hub := NewEventHub(4)

	require.NoError(t, hub.PublishProgress(ctx, "g1", 1, 3), "no subscribers is fine")

	events, cancel := hub.Subscribe("g1")
	other, cancelOther := hub.Subscribe("g2")
	defer cancelOther()
	assert.Equal(t, 1, hub.Subscribers("g1"))

	require.NoError(t, hub.PublishProgress(ctx, "g1", 2, 3))
	require.NoError(t, hub.PublishCompleted(ctx, domain.BatchMessage{GroupID: "g1", SubmissionIDs: []int64{1, 2, 3}}))

	ev := <-events
	assert.Equal(t, EventProgress, ev.Type)
	assert.Equal(t, 2, ev.Processed)
	assert.Equal(t, 3, ev.Total)

	ev = <-events
	assert.Equal(t, EventCompleted, ev.Type)
	require.NotNil(t, ev.Message)
	assert.Equal(t, 3, ev.Total)

	assert.Empty(t, other, "events stay within their group")

	cancel()
	cancel()
	_, open := <-events
	assert.False(t, open)
	assert.Zero(t, hub.Subscribers("g1"))
}

func TestEventHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewEventHub(1)
	events, cancel := hub.Subscribe("g")
	defer cancel()

	for i := 0; i < 5; i++ {
		require.NoError(t, hub.PublishProgress(context.Background(), "g", i, 5))
	}
	assert.Len(t, events, 1)
}

func TestMultiPublisher(t *testing.T) {
	ctx := context.Background()
	ok := &recordingPublisher{}
	failing := &recordingPublisher{err: errors.New("down")}
	multi := MultiPublisher{ok, NewLogPublisher(discardLogger()), failing}

	err := multi.PublishCompleted(ctx, domain.BatchMessage{GroupID: "g"})
	assert.ErrorContains(t, err, "down")
	assert.Len(t, ok.completed, 1)
	assert.Len(t, failing.completed, 1)

	assert.Error(t, multi.PublishProgress(ctx, "g", 1, 1))
	assert.Equal(t, []int{1}, ok.progress)
	assert.NoError(t, MultiPublisher{}.PublishProgress(ctx, "g", 1, 1))
}

type recordingProgress struct {
	updates  [][2]int
	complete bool
}

func (r *recordingProgress) Initialize(int)        {}
func (r *recordingProgress) Start()                {}
func (r *recordingProgress) Complete(success bool) { r.complete = success }
func (r *recordingProgress) SetWriter(io.Writer)   {}
func (r *recordingProgress) IsInteractive() bool   { return false }
func (r *recordingProgress) Close()                {}

func (r *recordingProgress) Update(processed, total int) {
	r.updates = append(r.updates, [2]int{processed, total})
}

func TestProgressPublisher(t *testing.T) {
	progress := &recordingProgress{}
	var publisher domain.EventPublisher = NewProgressPublisher(progress)

	require.NoError(t, publisher.PublishProgress(context.Background(), "g", 2, 5))
	require.NoError(t, publisher.PublishCompleted(context.Background(), domain.BatchMessage{}))
	assert.Equal(t, [][2]int{{2, 5}}, progress.updates)
	assert.True(t, progress.complete)
}

func TestProgressManager_NonInteractiveWriter(t *testing.T) {
	pm := NewProgressManager()
	var buf bytes.Buffer
	pm.SetWriter(&buf)
	assert.False(t, pm.IsInteractive())

	pm.Initialize(3)
	pm.Start()
	pm.Update(1, 3)
	pm.Complete(true)
	pm.Close()
	assert.Empty(t, buf.String())
}
