package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhub/internal/events"
	"github.com/phrazzld/taskhub/internal/platform/mail"
)

// TypeWelcomeEmail is the job type of WelcomeEmailJob.
const TypeWelcomeEmail = "welcome_email"

// WelcomeEmailPayload is stored with a welcome email job.
type WelcomeEmailPayload struct {
	UserID   uuid.UUID `json:"user_id"`
	HumanID  string    `json:"human_id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
}

// WelcomeEmailJob sends the signup confirmation.
type WelcomeEmailJob struct {
	id      uuid.UUID
	payload WelcomeEmailPayload
	mailer  mail.Mailer
}

var _ Job = (*WelcomeEmailJob)(nil)

// NewWelcomeEmailJob creates a job for payload.
func NewWelcomeEmailJob(payload WelcomeEmailPayload, mailer mail.Mailer) *WelcomeEmailJob {
	return &WelcomeEmailJob{id: uuid.New(), payload: payload, mailer: mailer}
}

func (j *WelcomeEmailJob) ID() uuid.UUID { return j.id }

func (j *WelcomeEmailJob) Type() string { return TypeWelcomeEmail }

func (j *WelcomeEmailJob) Payload() []byte {
	data, _ := json.Marshal(j.payload)
	return data
}

// Execute sends the email.
func (j *WelcomeEmailJob) Execute(ctx context.Context) error {
	msg := mail.Message{
		To:      j.payload.Email,
		Subject: "Welcome to taskhub",
		Body: fmt.Sprintf(
			"Hi %s,\n\nYour account %s is ready. You can now sign in and start creating tasks.\n",
			j.payload.Username, j.payload.HumanID,
		),
	}
	return j.mailer.Send(ctx, msg)
}

// WelcomeEmailDecoder rebuilds stored welcome email jobs with mailer.
func WelcomeEmailDecoder(mailer mail.Mailer) Decoder {
	return func(rec Record) (Job, error) {
		var payload WelcomeEmailPayload
		if err := json.Unmarshal(rec.Payload, &payload); err != nil {
			return nil, fmt.Errorf("invalid welcome email payload: %w", err)
		}
		return &WelcomeEmailJob{id: rec.ID, payload: payload, mailer: mailer}, nil
	}
}

// Submitter accepts jobs. *Runner implements it.
type Submitter interface {
	Submit(ctx context.Context, job Job) error
}

// SignupEmailHandler turns user.registered events into welcome email jobs.
type SignupEmailHandler struct {
	runner Submitter
	mailer mail.Mailer
	logger *slog.Logger
}

var _ events.Handler = (*SignupEmailHandler)(nil)

// NewSignupEmailHandler creates the handler.
func NewSignupEmailHandler(runner Submitter, mailer mail.Mailer, logger *slog.Logger) *SignupEmailHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SignupEmailHandler{
		runner: runner,
		mailer: mailer,
		logger: logger.With("component", "signup_email_handler"),
	}
}

// HandleEvent submits a welcome email for user.registered and ignores
// every other event type.
func (h *SignupEmailHandler) HandleEvent(ctx context.Context, event *events.Event) error {
	if event.Type != events.TypeUserRegistered {
		return nil
	}

	var registered events.UserRegistered
	if err := event.UnmarshalPayload(&registered); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	job := NewWelcomeEmailJob(WelcomeEmailPayload(registered), h.mailer)
	if err := h.runner.Submit(ctx, job); err != nil {
		return fmt.Errorf("failed to submit welcome email: %w", err)
	}

	h.logger.Debug("welcome email queued",
		"job_id", job.ID(),
		"user_id", registered.UserID,
		"event_id", event.ID)
	return nil
}
