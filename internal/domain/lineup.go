package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/zeebo/xxh3"
)

// LineupCandidate 是枚举得到的一个完整阵容，创建后不再修改
type LineupCandidate struct {
	ID        string     `json:"id"`
	SessionID string     `json:"sessionID"`
	Boat      Boat       `json:"boat"`
	Seated    []*Paddler `json:"paddlersInBoat"`
	Unseated  []*Paddler `json:"paddlersNotInBoat"`
	CreatedAt time.Time  `json:"createdAt"`
	LineupStats
}

// NewLineupCandidate 根据座位表生成阵容，roster 用于计算不在船上的桨手
func NewLineupCandidate(sessionID string, boat Boat, roster []*Paddler) *LineupCandidate {
	seated := boat.Occupants()
	inBoat := make(map[string]bool, len(seated))
	for _, p := range seated {
		inBoat[p.ID] = true
	}
	unseated := make([]*Paddler, 0, len(roster))
	for _, p := range roster {
		if !inBoat[p.ID] {
			unseated = append(unseated, p)
		}
	}

	return &LineupCandidate{
		ID:          LineupID(&boat),
		SessionID:   sessionID,
		Boat:        boat,
		Seated:      seated,
		Unseated:    unseated,
		CreatedAt:   time.Now(),
		LineupStats: boat.Stats(),
	}
}

// LineupID 为座位表的内容哈希，相同的座位安排得到相同的 ID
func LineupID(b *Boat) string {
	var sb strings.Builder
	for i := 0; i < Rows; i++ {
		for j := 0; j < Sides; j++ {
			if b[i][j] != nil {
				sb.WriteString(b[i][j].ID)
			}
			sb.WriteByte('|')
		}
	}
	return fmt.Sprintf("%016x", xxh3.HashString(sb.String()))
}

// LineupLess 为阵容的排序规则
// 有计时赛成绩的阵容按成绩之和升序排在前面，没有成绩的排在后面并按左右重量差升序
func LineupLess(a, b *LineupCandidate) bool {
	switch {
	case a.TTSum > 0 && b.TTSum > 0:
		if a.TTSum != b.TTSum {
			return a.TTSum < b.TTSum
		}
	case a.TTSum > 0:
		return true
	case b.TTSum > 0:
		return false
	}
	if a.WeightDiff != b.WeightDiff {
		return a.WeightDiff < b.WeightDiff
	}
	return a.ID < b.ID
}
