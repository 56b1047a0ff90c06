package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/config"
	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/domain"
)

// SearchJobMessage 为投递到搜索队列中的消息，任务详情从数据库中读取
type SearchJobMessage struct {
	JobID string `json:"jobID"`
}

func DecodeSearchJobMessage(body []byte) (string, error) {
	var msg SearchJobMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return "", err
	}
	if msg.JobID == "" {
		return "", errors.New("消息中缺少任务 ID")
	}
	return msg.JobID, nil
}

// DeclareQueues 声明持久化的队列
func DeclareQueues(ch *amqp.Channel, names ...string) error {
	for _, name := range names {
		_, err := ch.QueueDeclare(
			name,  // 队列名称
			true,  // 是否持久化
			false, // 是否自动删除
			false, // 是否独占
			false, // 是否不等待
			nil,   // 额外参数
		)
		if err != nil {
			return err
		}
	}
	return nil
}

type Publisher struct {
	cfg *config.Config
	ch  *amqp.Channel
	mu  sync.Mutex
}

func NewPublisher(cfg *config.Config, ch *amqp.Channel) *Publisher {
	return &Publisher{
		cfg: cfg,
		ch:  ch,
	}
}

func (p *Publisher) PublishMail(ctx context.Context, msg domain.MailMessage) error {
	return p.publish(ctx, p.cfg.RabbitMQ.MailQueue, msg)
}

func (p *Publisher) PublishSearchJob(ctx context.Context, jobID string) error {
	return p.publish(ctx, p.cfg.RabbitMQ.JobQueue, SearchJobMessage{JobID: jobID})
}

func (p *Publisher) publish(ctx context.Context, queue string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.ch.PublishWithContext(
		ctx,
		"",
		queue,
		true,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}
