// Package notify pushes task lifecycle events to connected users.
//
// Delivery is best effort and at most once: nothing is queued for identities
// without a live connection, and a missing or failing channel is reported as
// an Outcome rather than an error.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhub/internal/platform/logger"
)

// Event names a push message type.
type Event string

const (
	EventNewTask               Event = "new-task"
	EventTaskAssigned          Event = "task-assigned"
	EventTaskAssignmentUpdated Event = "task-assignment-updated"
	EventTaskUpdated           Event = "task-updated"
)

// Message is the frame written to a connection.
type Message struct {
	Event     Event     `json:"event"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Channel is the transport behind the dispatcher. Hub implements it.
type Channel interface {
	// HasMembers reports whether any connection has joined group.
	HasMembers(group string) bool
	// Emit writes msg to every connection in group.
	Emit(group string, msg Message) error
}

// GroupFor returns the broadcast group of an identity.
func GroupFor(id uuid.UUID) string {
	return "user-" + id.String()
}

// Status classifies a delivery attempt.
type Status string

const (
	StatusSent               Status = "sent"
	StatusUnconnected        Status = "unconnected"
	StatusChannelUnavailable Status = "channel-unavailable"
	StatusError              Status = "error"
)

// Outcome is the result of one Notify call.
type Outcome struct {
	Status Status
	Target uuid.UUID
	// Reason is set when Status is StatusError.
	Reason string
	At     time.Time
}

// Sent reports whether the message reached at least one connection.
func (o Outcome) Sent() bool {
	return o.Status == StatusSent
}

// Describe renders the outcome for API responses.
func (o Outcome) Describe() string {
	switch o.Status {
	case StatusSent:
		return fmt.Sprintf("Real-time notification sent to user %s", o.Target)
	case StatusUnconnected:
		return fmt.Sprintf("User %s is not connected. The notification was not delivered.", o.Target)
	case StatusChannelUnavailable:
		return "Real-time channel not initialized. Real-time notification unavailable."
	}
	return "Error sending notification: " + o.Reason
}

// Dispatcher routes events to identity groups on a Channel.
type Dispatcher struct {
	channel Channel
	logger  *slog.Logger
	now     func() time.Time
}

// NewDispatcher creates a Dispatcher. A nil channel makes every Notify report
// StatusChannelUnavailable.
func NewDispatcher(channel Channel, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		channel: channel,
		logger:  log.With(slog.String("component", "notify")),
		now:     time.Now,
	}
}

// Notify sends event with payload to target's group when it has a live
// connection. It never panics and never returns an error.
func (d *Dispatcher) Notify(ctx context.Context, target uuid.UUID, event Event, payload any) (out Outcome) {
	if d == nil {
		return Outcome{Status: StatusChannelUnavailable, Target: target, At: time.Now().UTC()}
	}
	log := logger.FromContextOrDefault(ctx, d.logger)
	out = Outcome{Target: target, At: d.now().UTC()}

	if d.channel == nil {
		out.Status = StatusChannelUnavailable
		log.Warn("notification channel unavailable", slog.String("event", string(event)))
		return out
	}

	defer func() {
		if p := recover(); p != nil {
			out.Status = StatusError
			out.Reason = fmt.Sprint(p)
			log.Error("notification dispatch panicked", slog.String("event", string(event)), slog.Any("panic", p))
		}
	}()

	group := GroupFor(target)
	if !d.channel.HasMembers(group) {
		out.Status = StatusUnconnected
		log.Debug("notification target not connected",
			slog.String("event", string(event)), slog.String("target", target.String()))
		return out
	}

	msg := Message{Event: event, Data: payload, Timestamp: out.At}
	if err := d.channel.Emit(group, msg); err != nil {
		if errors.Is(err, ErrNoMembers) {
			// The last connection left after HasMembers.
			out.Status = StatusUnconnected
			log.Debug("notification target disconnected before emit",
				slog.String("event", string(event)), slog.String("target", target.String()))
			return out
		}
		out.Status = StatusError
		out.Reason = err.Error()
		log.Warn("notification emit failed",
			slog.String("event", string(event)), slog.String("target", target.String()), slog.String("error", err.Error()))
		return out
	}

	out.Status = StatusSent
	log.Debug("notification sent", slog.String("event", string(event)), slog.String("target", target.String()))
	return out
}
