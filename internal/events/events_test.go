package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	err    error
	events []*Event
}

func (h *recordingHandler) HandleEvent(_ context.Context, event *Event) error {
	h.events = append(h.events, event)
	return h.err
}

func TestNew(t *testing.T) {
	payload := UserRegistered{UserID: uuid.New(), HumanID: "USER-01", Username: "alice", Email: "alice@example.com"}

	event, err := New(TypeUserRegistered, payload)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, TypeUserRegistered, event.Type)
	assert.WithinDuration(t, time.Now(), event.CreatedAt, 2*time.Second)

	var decoded UserRegistered
	require.NoError(t, event.UnmarshalPayload(&decoded))
	assert.Equal(t, payload, decoded)
}

func TestNewRejectsUnencodablePayload(t *testing.T) {
	_, err := New("broken", make(chan int))
	assert.Error(t, err)
}

func TestInMemoryEmitter(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	event, err := New(TypeUserRegistered, UserRegistered{})
	require.NoError(t, err)

	t.Run("no handlers", func(t *testing.T) {
		assert.NoError(t, NewInMemoryEmitter(logger).EmitEvent(context.Background(), event))
	})

	t.Run("every handler sees the event", func(t *testing.T) {
		emitter := NewInMemoryEmitter(logger)
		h1, h2 := &recordingHandler{}, &recordingHandler{}
		emitter.RegisterHandler(h1)
		emitter.RegisterHandler(h2)

		require.NoError(t, emitter.EmitEvent(context.Background(), event))
		assert.Equal(t, []*Event{event}, h1.events)
		assert.Equal(t, []*Event{event}, h2.events)
	})

	t.Run("failing handler does not stop the rest", func(t *testing.T) {
		emitter := NewInMemoryEmitter(logger)
		failing := &recordingHandler{err: errors.New("handler error")}
		after := &recordingHandler{}
		emitter.RegisterHandler(failing)
		emitter.RegisterHandler(after)

		err := emitter.EmitEvent(context.Background(), event)
		assert.EqualError(t, err, "handler error")
		assert.Len(t, after.events, 1)
	})

	t.Run("handler func", func(t *testing.T) {
		emitter := NewInMemoryEmitter(nil)
		var got string
		emitter.RegisterHandler(HandlerFunc(func(_ context.Context, e *Event) error {
			got = e.Type
			return nil
		}))
		require.NoError(t, emitter.EmitEvent(context.Background(), event))
		assert.Equal(t, TypeUserRegistered, got)
	})
}
