package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/config"
	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/metrics"
	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/progress"
	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/queue"
	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/repository"
	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/worker"
	"golang.org/x/sync/errgroup"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	/**********************************************
	 * 创建 logger
	 **********************************************/
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	/**********************************************
	 * 加载配置
	 **********************************************/
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法加载配置文件", "error", err)
		return
	}

	/**********************************************
	 * 连接数据库
	 **********************************************/
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("无法创建数据库连接池", "error", err)
		return
	}
	defer dbpool.Close()

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	pingCtx, pingCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer pingCancel()

	if err := dbpool.PingContext(pingCtx); err != nil {
		logger.Error("无法连接到数据库", "error", err)
		return
	}

	repo := repository.NewRepository(cfg, dbpool)

	/**********************************************
	 * 连接 redis
	 **********************************************/
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       0,
	})
	defer rdb.Close()

	redisCtx, redisCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Redis.ConnectTimeout)*time.Second)
	defer redisCancel()

	if err := rdb.Ping(redisCtx).Err(); err != nil {
		logger.Error("无法连接到 redis", "error", err)
		return
	}

	/**********************************************
	 * 连接 rabbitmq
	 **********************************************/
	conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
	if err != nil {
		logger.Error("无法连接到 rabbitmq", "error", err)
		return
	}
	defer conn.Close()

	// 消费和发布使用不同的通道
	consumeCh, err := conn.Channel()
	if err != nil {
		logger.Error("无法建立通道", "error", err)
		return
	}
	defer consumeCh.Close()

	publishCh, err := conn.Channel()
	if err != nil {
		logger.Error("无法建立通道", "error", err)
		return
	}
	defer publishCh.Close()

	if err := queue.DeclareQueues(consumeCh, cfg.RabbitMQ.JobQueue, cfg.RabbitMQ.MailQueue); err != nil {
		logger.Error("无法声明队列", "error", err)
		return
	}

	// 每个消费者同时只处理 Prefetch 个任务
	if err := consumeCh.Qos(cfg.Worker.Prefetch, 0, false); err != nil {
		logger.Error("无法设置预取数量", "error", err)
		return
	}

	msgs, err := consumeCh.Consume(
		cfg.RabbitMQ.JobQueue, // 队列
		"",                    // 消费者标识
		false,                 // 是否自动确认消息
		false,                 // 是否独占队列
		false,                 // 是否禁止消费者接受自己发送的消息
		false,                 // 是否不等待
		nil,                   // 额外参数
	)
	if err != nil {
		logger.Error("无法消费消息", "error", err)
		return
	}

	/**********************************************
	 * 创建 worker
	 **********************************************/
	w := worker.New(cfg, repo, progress.NewStore(cfg, rdb), queue.NewPublisher(cfg, publishCh), metrics.New(nil))

	/**********************************************
	 * 启动消费者和指标服务器
	 **********************************************/
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i < max(cfg.Worker.Prefetch, 1); i++ {
		g.Go(func() error {
			return consume(gctx, msgs, w.Handle)
		})
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:     fmt.Sprintf(":%s", cfg.Worker.MetricsPort),
		Handler:  mux,
		ErrorLog: slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	g.Go(func() error {
		logger.Info("正在启动指标服务器...", "port", cfg.Worker.MetricsPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	logger.Info("等待搜索任务...（按 CTRL+C 退出）")
	if err := g.Wait(); err != nil {
		logger.Error("worker 异常退出", "error", err)
		return
	}
	logger.Info("worker 已成功关闭")
}
