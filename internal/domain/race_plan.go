package domain

import "time"

type PaddlerParticipation struct {
	Paddler           *Paddler `json:"paddler"`
	RacesParticipated int      `json:"racesParticipated"`
	RaceNumbers       []int    `json:"raceNumbers"` // 从 1 开始
	SitOutRaces       []int    `json:"sitOutRaces"`
}

type RacePlanStats struct {
	Participation       []PaddlerParticipation `json:"paddlerParticipation"`
	MinRaces            int                    `json:"minRaces"`
	MaxRaces            int                    `json:"maxRaces"`
	AverageRaces        float64                `json:"averageRaces"`
	MaxSitOuts          int                    `json:"maxSitOuts"`
	ParticipationStdDev float64                `json:"participationStdDev"`
	TotalScore          float64                `json:"totalScore"`
	AverageScore        float64                `json:"averageScore"`
}

// SitOutPaddlers 返回至少休息一场的桨手
func (st *RacePlanStats) SitOutPaddlers() []PaddlerParticipation {
	res := make([]PaddlerParticipation, 0)
	for _, p := range st.Participation {
		if len(p.SitOutRaces) > 0 {
			res = append(res, p)
		}
	}
	return res
}

// RacePlan 为多场比赛的阵容安排，同一个阵容可以出现在多场比赛中
type RacePlan struct {
	ID        string             `json:"id"`
	SessionID string             `json:"sessionID"`
	Races     []*LineupCandidate `json:"races"`
	Stats     RacePlanStats      `json:"stats"`
	Sampled   bool               `json:"isSampled"`
	CreatedAt time.Time          `json:"createdAt"`
}

func (p *RacePlan) TotalScore() float64 {
	return p.Stats.TotalScore
}

func (p *RacePlan) LineupIDs() []string {
	ids := make([]string, len(p.Races))
	for i, race := range p.Races {
		ids[i] = race.ID
	}
	return ids
}
