// Package queue publishes outbound email jobs to RabbitMQ. A separate mailer
// worker consumes the queue and renders/sends the messages; this service only
// enqueues. Publishing is best effort so a broker outage never fails the
// booking or cancellation operation that triggered the email.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// EmailJob is one message for the mailer worker
type EmailJob struct {
	To       string                 `json:"to"`
	ToName   string                 `json:"to_name,omitempty"`
	Template string                 `json:"template"`
	Subject  string                 `json:"subject"`
	Data     map[string]interface{} `json:"data,omitempty"`
	QueuedAt time.Time              `json:"queued_at"`
}

// Email templates consumed by the mailer worker
const (
	TemplateBookingConfirmed     = "booking_confirmed"
	TemplateCancellationReceived = "cancellation_received"
	TemplateCancellationApproved = "cancellation_approved"
	TemplateCancellationRejected = "cancellation_rejected"
	TemplatePaymentReceived      = "payment_received"
)

// EmailPublisher enqueues email jobs
type EmailPublisher interface {
	Publish(ctx context.Context, job EmailJob)
}

// RabbitMQPublisher implements EmailPublisher over a durable queue
type RabbitMQPublisher struct {
	channel   *amqp.Channel
	queueName string
	logger    *logrus.Logger
}

// NewRabbitMQPublisher connects to the broker and declares the durable
// email queue
func NewRabbitMQPublisher(url, queueName string, logger *logrus.Logger) (*RabbitMQPublisher, func(), error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("failed to declare queue %s: %w", queueName, err)
	}

	cleanup := func() {
		ch.Close()
		conn.Close()
	}

	return &RabbitMQPublisher{channel: ch, queueName: queueName, logger: logger}, cleanup, nil
}

// Publish enqueues one email job. Failures are logged and swallowed.
func (p *RabbitMQPublisher) Publish(ctx context.Context, job EmailJob) {
	if job.QueuedAt.IsZero() {
		job.QueuedAt = time.Now()
	}

	body, err := json.Marshal(job)
	if err != nil {
		p.logger.WithError(err).WithField("template", job.Template).Warn("Failed to marshal email job")
		return
	}

	err = p.channel.PublishWithContext(ctx,
		"",          // default exchange
		p.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    job.QueuedAt,
			Body:         body,
		},
	)
	if err != nil {
		p.logger.WithError(err).WithFields(logrus.Fields{
			"template": job.Template,
			"to":       job.To,
		}).Warn("Failed to publish email job")
		return
	}

	p.logger.WithFields(logrus.Fields{
		"template": job.Template,
		"to":       job.To,
	}).Debug("Email job queued")
}

// NopPublisher discards email jobs. Used when RabbitMQ is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, job EmailJob) {}

// RecorderPublisher captures jobs in memory for tests
type RecorderPublisher struct {
	Jobs []EmailJob
}

func (p *RecorderPublisher) Publish(ctx context.Context, job EmailJob) {
	p.Jobs = append(p.Jobs, job)
}
