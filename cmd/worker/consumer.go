package main

import (
	"context"
	"errors"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/queue"
)

// handleFunc 执行任务，lastAttempt 为 true 时失败的消息不会重新入队
type handleFunc func(ctx context.Context, jobID string, lastAttempt bool) error

// consume 执行 msgs 中的搜索任务，直到 ctx 被取消或者通道被关闭
func consume(ctx context.Context, msgs <-chan amqp.Delivery, handle handleFunc) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("消息通道已关闭")
			}
			process(ctx, msg, handle)
		}
	}
}

func process(ctx context.Context, msg amqp.Delivery, handle handleFunc) {
	jobID, err := queue.DecodeSearchJobMessage(msg.Body)
	if err != nil {
		slog.Error("无法解析搜索任务消息", "error", err)
		_ = msg.Nack(false, false)
		return
	}

	// 只重新入队一次
	lastAttempt := msg.Redelivered

	// 退出时等待正在执行的任务结束
	if err := handle(context.WithoutCancel(ctx), jobID, lastAttempt); err != nil {
		slog.Error("无法执行搜索任务", "job", jobID, "error", err)
		_ = msg.Nack(false, !lastAttempt)
		return
	}

	_ = msg.Ack(false)
}
