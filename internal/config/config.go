package config

import (
	"errors"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Server      struct {
		Port            string `env:"PORT" envDefault:"3000"`
		ReadTimeout     int    `env:"READ_TIMEOUT" envDefault:"10"`
		WriteTimeout    int    `env:"WRITE_TIMEOUT" envDefault:"15"`
		IdleTimeout     int    `env:"IDLE_TIMEOUT" envDefault:"60"`
		ShutdownTimeout int    `env:"SHUTDOWN_TIMEOUT" envDefault:"10"`
		MaxUploadSize   int64  `env:"MAX_UPLOAD_SIZE" envDefault:"1048576"` // CSV 导入的最大字节数
	} `envPrefix:"SERVER_"`
	Database struct {
		DSN                string `env:"DSN,required"`
		ConnectTimeout     int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		QueryTimeout       int    `env:"QUERY_TIMEOUT" envDefault:"10"`
		TransactionTimeout int    `env:"TRANSACTION_TIMEOUT" envDefault:"20"`
		MaxOpenConns       int    `env:"MAX_OPEN_CONNS" envDefault:"10"`
		MaxIdleConns       int    `env:"MAX_IDLE_CONNS" envDefault:"10"`
		MaxIdleTime        int    `env:"MAX_IDLE_TIME" envDefault:"60"`
	} `envPrefix:"DATABASE_"`
	Seed struct {
		Sessions int `env:"SESSIONS" envDefault:"3"`
		Paddlers int `env:"PADDLERS" envDefault:"24"`
	} `envPrefix:"SEED_"`
	Email struct {
		From string `env:"FROM"`
		SMTP struct {
			Username    string `env:"USERNAME,required"`
			Password    string `env:"PASSWORD,required"`
			Host        string `env:"HOST,required"`
			Port        int    `env:"PORT" envDefault:"465"`
			DialTimeout int    `env:"DIAL_TIMEOUT" envDefault:"10"`
		} `envPrefix:"SMTP_"`
	} `envPrefix:"EMAIL_"`
	RabbitMQ struct {
		DSN            string `env:"DSN,required"`
		PublishTimeout int    `env:"PUBLISH_TIMEOUT" envDefault:"10"`
		JobQueue       string `env:"JOB_QUEUE" envDefault:"search_jobs"`
		MailQueue      string `env:"MAIL_QUEUE" envDefault:"email_queue"`
	} `envPrefix:"RABBITMQ_"`
	Redis struct {
		Host                string `env:"HOST" envDefault:"localhost"`
		Port                int    `env:"PORT" envDefault:"6379"`
		Password            string `env:"PASSWORD,required"`
		ConnectTimeout      int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		OperationExpiration int    `env:"OPERATION_EXPIRATION" envDefault:"10"`
		LockExpiration      int    `env:"LOCK_EXPIRATION" envDefault:"1800"`     // 搜索锁的过期时间，worker 执行任务期间会续期
		ProgressExpiration  int    `env:"PROGRESS_EXPIRATION" envDefault:"3600"` // 搜索进度的保留时间
	} `envPrefix:"REDIS_"`
	Worker struct {
		MetricsPort      string `env:"METRICS_PORT" envDefault:"9100"`
		Prefetch         int    `env:"PREFETCH" envDefault:"1"`
		ProgressInterval int    `env:"PROGRESS_INTERVAL" envDefault:"1"` // 写入进度的最小间隔（秒）
		JobTimeout       int    `env:"JOB_TIMEOUT" envDefault:"600"`
	} `envPrefix:"WORKER_"`
	Search struct {
		CombinationCeiling uint64  `env:"COMBINATION_CEILING" envDefault:"1000000"`
		SavedLineupLimit   int     `env:"SAVED_LINEUP_LIMIT" envDefault:"200"`
		ExhaustiveCeiling  uint64  `env:"EXHAUSTIVE_CEILING" envDefault:"5000000"`
		SampleLimit        int     `env:"SAMPLE_LIMIT" envDefault:"1000000"`
		SampleTarget       int     `env:"SAMPLE_TARGET" envDefault:"5000"`
		ZeroResultCutoff   int     `env:"ZERO_RESULT_CUTOFF" envDefault:"100000"`
		TopLineupCount     int     `env:"TOP_LINEUP_COUNT" envDefault:"20"`
		TopLineupBias      float64 `env:"TOP_LINEUP_BIAS" envDefault:"0.7"`
		RacePlanLimit      int     `env:"RACE_PLAN_LIMIT" envDefault:"1000"`
		SavedRacePlanLimit int     `env:"SAVED_RACE_PLAN_LIMIT" envDefault:"100"`
	} `envPrefix:"SEARCH_"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		aggErr := env.AggregateError{}
		if ok := errors.As(err, &aggErr); ok {
			// 只返回第一个错误使得日志更清晰
			return nil, aggErr.Errors[0]
		}
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (cfg *Config) validate() error {
	switch {
	case cfg.Search.SavedLineupLimit <= 0:
		return errors.New("SEARCH_SAVED_LINEUP_LIMIT 必须大于 0")
	case cfg.Search.RacePlanLimit <= 0:
		return errors.New("SEARCH_RACE_PLAN_LIMIT 必须大于 0")
	case cfg.Search.SavedRacePlanLimit <= 0:
		return errors.New("SEARCH_SAVED_RACE_PLAN_LIMIT 必须大于 0")
	case cfg.Worker.JobTimeout <= 0:
		return errors.New("WORKER_JOB_TIMEOUT 必须大于 0")
	case cfg.Redis.LockExpiration <= cfg.Worker.JobTimeout:
		return errors.New("REDIS_LOCK_EXPIRATION 必须大于 WORKER_JOB_TIMEOUT")
	}
	return nil
}
