package domain

import (
	"encoding/json"
	"time"
)

type SearchJobKind string

const (
	SearchJobEnumerateLineups SearchJobKind = "enumerate_lineups"
	SearchJobPlanRaces        SearchJobKind = "plan_races"
)

type SearchJobStatus string

const (
	SearchJobPending   SearchJobStatus = "pending"
	SearchJobRunning   SearchJobStatus = "running"
	SearchJobSucceeded SearchJobStatus = "succeeded"
	SearchJobNoResults SearchJobStatus = "no_results"
	SearchJobFailed    SearchJobStatus = "failed"
)

type EnumerateLineupsParams struct {
	MaxWeightDifference float64 `json:"maxWeightDifference"`
	MinMalePaddlers     int     `json:"minMalePaddlers"`
	MaxMalePaddlers     int     `json:"maxMalePaddlers"`
}

type FixedRace struct {
	LineupIndex int `json:"lineupIndex"` // 已保存阵容中的下标
	Race        int `json:"race"`        // 从 1 开始，0 表示放在第一个空闲场次
}

type PlanRacesParams struct {
	NumRaces           int         `json:"numRaces"`
	MinRacesPerPaddler int         `json:"minRacesPerPaddler"`
	FixedLineups       []FixedRace `json:"fixedLineups"`
	Seed               int64       `json:"seed"`
}

// SearchJob 是交给 worker 执行的长时间搜索任务
type SearchJob struct {
	ID          string          `json:"id"`
	SessionID   string          `json:"sessionID"`
	Kind        SearchJobKind   `json:"kind"`
	Status      SearchJobStatus `json:"status"`
	Params      json.RawMessage `json:"params"`
	Error       string          `json:"error"`
	ResultCount int             `json:"resultCount"`
	NotifyEmail string          `json:"notifyEmail,omitempty"`
	Progress    float64         `json:"progress"`
	CreatedAt   time.Time       `json:"createdAt"`
	FinishedAt  *time.Time      `json:"finishedAt"`
	Version     int32           `json:"-"`
}

func (j *SearchJob) Finished() bool {
	return j.Status == SearchJobSucceeded || j.Status == SearchJobNoResults || j.Status == SearchJobFailed
}
