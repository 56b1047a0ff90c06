package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/config"
	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/repository"
	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/seed"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	var op int
	var n int
	var paddlers int
	var randomSeed int64
	var name string
	var file string

	flag.IntVar(&op, "op", 0, "要执行的操作 (1: 插入随机队伍, 2: 从名单 CSV 创建队伍)")
	flag.IntVar(&n, "n", 0, "要插入的队伍数量，默认使用 SEED_SESSIONS")
	flag.IntVar(&paddlers, "paddlers", 0, "每支队伍的桨手数量，默认使用 SEED_PADDLERS")
	flag.Int64Var(&randomSeed, "seed", 0, "随机数种子，为 0 时使用当前时间")
	flag.StringVar(&name, "name", "", "从 CSV 创建的队伍名称")
	flag.StringVar(&file, "file", "", "名单 CSV 文件路径")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 读取配置文件
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := repository.MigrateDB(cfg.Database.DSN); err != nil {
		logger.Error("无法执行数据库迁移", "error", err)
		return
	}

	// 创建数据库连接池
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("无法创建数据库连接池", "error", err)
		return
	}
	defer dbpool.Close()

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	// sql.Open 只是创建数据库连接池对象，并不会立即连接到数据库，因此需要显式地 ping 一下
	if err := dbpool.PingContext(ctx); err != nil {
		logger.Error("无法连接到数据库", "error", err)
		return
	}

	// 创建 repository
	repo := repository.NewRepository(cfg, dbpool)

	// 执行操作
	switch op {
	case 0:
		slog.Error("未指定操作")
	case 1:
		if n == 0 {
			n = cfg.Seed.Sessions
		}
		if paddlers == 0 {
			paddlers = cfg.Seed.Paddlers
		}
		if n <= 0 || paddlers <= 0 {
			slog.Error("请输入合法的队伍数量和桨手数量")
			return
		}
		if randomSeed == 0 {
			randomSeed = time.Now().UnixNano()
		}

		cnt := seed.RandomSessions(repo, rand.New(rand.NewSource(randomSeed)), n, paddlers)
		slog.Info("插入队伍成功", slog.Int("count", cnt), slog.Int64("seed", randomSeed))
	case 2:
		if name == "" || file == "" {
			slog.Error("请指定队伍名称和名单文件")
			return
		}

		s, report, err := seed.FromCSV(repo, name, file)
		if err != nil {
			slog.Error("无法从 CSV 创建队伍", slog.String("error", err.Error()))
			return
		}
		slog.Info("创建队伍成功", slog.String("id", s.ID), slog.Int("added", report.Added), slog.Int("rejected", len(report.Rejected)))
	default:
		slog.Error("指定的操作非法")
	}
}
