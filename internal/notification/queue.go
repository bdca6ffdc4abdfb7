package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"github.com/example/pricelist/internal/domain/order"
)

const (
	QueueMail = "mail"

	TaskSendNewOrder     = "mail:order_committed"
	TaskSendOrderDeleted = "mail:order_deleted"
)

// Enqueuer is the part of asynq.Client used to queue mail.
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type newOrderPayload struct {
	To    string      `json:"to"`
	Order order.Order `json:"order"`
}

type orderDeletedPayload struct {
	To      string             `json:"to"`
	Deleted order.OrderDeleted `json:"deleted"`
}

// QueueMailer satisfies Mailer by queueing delivery tasks, so a slow or
// failing SMTP server is retried by the worker instead of blocking the
// event consumer.
type QueueMailer struct {
	client Enqueuer
	opts   []asynq.Option
}

func NewQueueMailer(client Enqueuer, opts ...asynq.Option) *QueueMailer {
	if len(opts) == 0 {
		opts = []asynq.Option{asynq.Queue(QueueMail), asynq.MaxRetry(10)}
	}
	return &QueueMailer{client: client, opts: opts}
}

func (q *QueueMailer) SendNewOrder(to string, o order.Order) error {
	return q.enqueue(TaskSendNewOrder, newOrderPayload{To: to, Order: o})
}

func (q *QueueMailer) SendOrderDeleted(to string, e order.OrderDeleted) error {
	return q.enqueue(TaskSendOrderDeleted, orderDeletedPayload{To: to, Deleted: e})
}

func (q *QueueMailer) enqueue(taskType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	info, err := q.client.Enqueue(asynq.NewTask(taskType, data), q.opts...)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	log.Printf("[Notifier] Queued %s as task %s", taskType, info.ID)
	return nil
}

// RegisterTasks installs the handlers that deliver queued mail through
// mailer.
func RegisterTasks(mux *asynq.ServeMux, mailer Mailer) {
	mux.HandleFunc(TaskSendNewOrder, func(ctx context.Context, t *asynq.Task) error {
		var p newOrderPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("decode %s: %v: %w", t.Type(), err, asynq.SkipRetry)
		}
		return mailer.SendNewOrder(p.To, p.Order)
	})
	mux.HandleFunc(TaskSendOrderDeleted, func(ctx context.Context, t *asynq.Task) error {
		var p orderDeletedPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("decode %s: %v: %w", t.Type(), err, asynq.SkipRetry)
		}
		return mailer.SendOrderDeleted(p.To, p.Deleted)
	})
}
