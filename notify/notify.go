// Package notify forwards incident responses to operations.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	log "github.com/sirupsen/logrus"

	"access-api/fail"
	"access-api/response"
)

// Notifier receives every incident response built by the dispatcher.
type Notifier interface {
	Notify(ctx context.Context, incident response.Response) error
}

// Nop drops notifications. It is used when no incident queue is configured.
type Nop struct{}

func (Nop) Notify(context.Context, response.Response) error { return nil }

type queueClient interface {
	EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error)
}

// QueueNotifier enqueues the encoded incident response on an Azure Storage
// queue.
type QueueNotifier struct {
	queue   queueClient
	timeout time.Duration
	ttl     *int32
}

type QueueOption func(*QueueNotifier)

// WithTimeout bounds each enqueue call.
func WithTimeout(d time.Duration) QueueOption {
	return func(q *QueueNotifier) { q.timeout = d }
}

// WithMessageTTL sets how long an incident message stays on the queue.
func WithMessageTTL(d time.Duration) QueueOption {
	return func(q *QueueNotifier) {
		if d <= 0 {
			q.ttl = nil
			return
		}
		secs := int32(d / time.Second)
		q.ttl = &secs
	}
}

func NewQueueNotifier(queue *azqueue.QueueClient, opts ...QueueOption) *QueueNotifier {
	return newQueueNotifier(queue, opts...)
}

func newQueueNotifier(queue queueClient, opts ...QueueOption) *QueueNotifier {
	q := &QueueNotifier{queue: queue, timeout: 5 * time.Second}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *QueueNotifier) Notify(ctx context.Context, incident response.Response) error {
	if incident.Status != response.StatusIncident {
		return fmt.Errorf("notify: response %s is not an incident", incident.ID)
	}
	data, err := response.Encode(incident)
	if err != nil {
		return fmt.Errorf("encode incident: %w", err)
	}
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}
	var opts *azqueue.EnqueueMessageOptions
	if q.ttl != nil {
		opts = &azqueue.EnqueueMessageOptions{TimeToLive: q.ttl}
	}
	if _, err := q.queue.EnqueueMessage(ctx, string(data), opts); err != nil {
		return fmt.Errorf("enqueue incident: %w", err)
	}
	return nil
}

// Logging writes incidents to the log at their incident level and then hands
// them to next, if any.
type Logging struct {
	logger *log.Logger
	next   Notifier
}

func NewLogging(logger *log.Logger, next Notifier) *Logging {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Logging{logger: logger, next: next}
}

func (l *Logging) Notify(ctx context.Context, incident response.Response) error {
	fields := log.Fields{"command_id": incident.ID, "version": incident.Version}
	level := log.ErrorLevel
	if inc, ok := incident.Result.(response.Incident); ok {
		fields["incident_id"] = inc.ID
		fields["incident_level"] = string(inc.Level)
		if len(inc.Details) > 0 {
			fields["code"] = inc.Details[0].Code
			fields["description"] = inc.Details[0].Description
		}
		switch inc.Level {
		case fail.LevelWarning:
			level = log.WarnLevel
		case fail.LevelInfo:
			level = log.InfoLevel
		}
	}
	l.logger.WithFields(fields).Log(level, "incident")
	if l.next == nil {
		return nil
	}
	return l.next.Notify(ctx, incident)
}
