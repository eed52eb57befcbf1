package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/backoffice/backoffice/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	Template string `json:"template,omitempty"`
	To       string `json:"to"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
}

// TemplateWelcome labels the registration mail.
const TemplateWelcome = "welcome"

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	if strings.TrimSpace(payload.To) == "" {
		return nil, fmt.Errorf("send email: recipient required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data, asynq.MaxRetry(5)), nil
}

// WelcomeEmail builds the mail sent after registration.
func WelcomeEmail(email, name string) SendEmailPayload {
	greeting := strings.TrimSpace(name)
	if greeting == "" {
		greeting = email
	}
	return SendEmailPayload{
		Template: TemplateWelcome,
		To:       email,
		Subject:  "Welcome to Backoffice",
		Body:     fmt.Sprintf("Hi %s,\n\nYour account is ready. Create an organization or ask an administrator to add you to one.\n", greeting),
	}
}

// Sender delivers a single email.
type Sender interface {
	Send(ctx context.Context, from string, msg SendEmailPayload) error
}

// LogSender writes outgoing mail to the logger instead of delivering it.
type LogSender struct {
	Logger *slog.Logger
}

// Send implements Sender.
func (s LogSender) Send(_ context.Context, from string, msg SendEmailPayload) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("send email", slog.String("from", from), slog.String("to", msg.To), slog.String("subject", msg.Subject))
	return nil
}

// MailJob processes TaskTypeSendEmail tasks.
type MailJob struct {
	sender  Sender
	from    string
	metrics *jobmetrics.Metrics
	logger  *slog.Logger
}

// NewMailJob wires a mail job. metrics may be nil.
func NewMailJob(sender Sender, from string, metrics *jobmetrics.Metrics, logger *slog.Logger) *MailJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &MailJob{sender: sender, from: from, metrics: metrics, logger: logger}
}

// Handle executes a mail task. Malformed payloads are not retried.
func (j *MailJob) Handle(ctx context.Context, t *asynq.Task) error {
	attempt := jobmetrics.AttemptFromContext(ctx)
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		j.logger.Error("decode mail payload", slog.Any("error", err))
		return j.metrics.Begin("", "", attempt).Finish(fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry))
	}
	delivery := j.metrics.Begin(payload.Template, payload.To, attempt)
	if err := j.sender.Send(ctx, j.from, payload); err != nil {
		j.logger.Warn("send email failed",
			slog.String("to", payload.To),
			slog.Int("retry", attempt.Retry),
			slog.Int("max_retry", attempt.MaxRetry),
			slog.Any("error", err))
		return delivery.Finish(err)
	}
	return delivery.Finish(nil)
}
