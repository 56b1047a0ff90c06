package seed

import (
	"fmt"
	"log/slog"
	"math/rand"
	"os"

	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/domain"
	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/export"
	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/utils"
)

// SessionCreator 由 repository.Repository 实现
type SessionCreator interface {
	CreateSession(s *domain.Session) error
}

// RandomSessions 插入 n 支随机队伍，返回成功插入的数量
func RandomSessions(r SessionCreator, rng *rand.Rand, n, paddlers int) int {
	cnt := 0
	for i := 0; i < n; i++ {
		s, err := utils.GenerateRandomSession(rng, paddlers)
		if err != nil {
			slog.Error("无法生成随机队伍", "error", err)
			continue
		}

		if err := r.CreateSession(s); err != nil {
			slog.Error("无法插入队伍", "error", err)
			continue
		}

		cnt++
	}

	return cnt
}

// FromCSV 用名单 CSV 文件创建一支队伍
func FromCSV(r SessionCreator, name, path string) (*domain.Session, *export.ImportReport, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("打开文件失败: %w", err)
	}
	defer file.Close()

	s := domain.NewSession(name)
	report, err := export.ImportRoster(s, file)
	if err != nil {
		return nil, nil, err
	}
	for _, rejected := range report.Rejected {
		slog.Warn("忽略无效的行", "line", rejected.Line, "reason", rejected.Reason)
	}

	if err := r.CreateSession(s); err != nil {
		return nil, nil, err
	}

	return s, report, nil
}
