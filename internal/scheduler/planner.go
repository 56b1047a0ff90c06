package scheduler

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"slices"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/domain"
	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/utils"
)

// 比赛方案搜索参数
type PlannerParameters struct {
	NumRaces           int                // 比赛场数 R
	MinRacesPerPaddler int                // 每个桨手至少参加的场数 M
	FixedLineups       []domain.FixedRace // 必须出现在方案中的阵容
	ExhaustiveCeiling  uint64             // 可重复组合数不超过该值时穷举，否则抽样
	SampleLimit        int                // 最多抽样次数
	SampleTarget       int                // 抽样找到这么多方案后停止
	ZeroResultCutoff   int                // 抽样这么多次仍然没有方案则认为无解
	TopLineupCount     int                // 抽样时优先选择的阵容数量
	TopLineupBias      float64            // 抽样时从优先阵容中选择的概率
	ResultLimit        int                // 最多保留的方案数量
	ProgressInterval   int                // 每检查多少个方案汇报一次进度
	Rand               *rand.Rand         // 抽样使用的随机数生成器，为 nil 时使用当前时间作为种子
}

func DefaultPlannerParameters() *PlannerParameters {
	return &PlannerParameters{
		ExhaustiveCeiling: 5_000_000,
		SampleLimit:       1_000_000,
		SampleTarget:      5000,
		ZeroResultCutoff:  100_000,
		TopLineupCount:    20,
		TopLineupBias:     0.7,
		ResultLimit:       1000,
		ProgressInterval:  10_000,
	}
}

// SavedRacePlanLimit 为保存的比赛方案数量上限
const SavedRacePlanLimit = 100

type Planner struct {
	parameters *PlannerParameters
	sessionID  string
	pool       []*domain.LineupCandidate
	paddlers   []*domain.Paddler // 阵容池中出现过的所有桨手
	members    [][]int           // members[i] 为第 i 个阵容中坐在船上的桨手下标
	slots      []int             // 每场比赛使用的阵容下标，-1 表示待搜索
	freeSlots  []int             // 待搜索的比赛场次（从 0 开始）
	nonFixed   []int             // 非固定的阵容下标
}

// planEntry 为搜索过程中的候选方案，races 为每场比赛使用的阵容下标
type planEntry struct {
	races []int
	score float64
}

func planEntryLess(a, b planEntry) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	return slices.Compare(a.races, b.races) < 0
}

func NewPlanner(parameters *PlannerParameters, sessionID string, pool []*domain.LineupCandidate) (*Planner, error) {
	pl := &Planner{
		parameters: parameters,
		sessionID:  sessionID,
		pool:       pool,
	}
	if err := pl.checkFeasibility(); err != nil {
		return nil, err
	}
	return pl, nil
}

func impossible(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrImpossibleConstraints, fmt.Sprintf(format, args...))
}

// checkFeasibility 在搜索之前检查约束是否明显无法满足
func (pl *Planner) checkFeasibility() error {
	numRaces := pl.parameters.NumRaces
	minRaces := pl.parameters.MinRacesPerPaddler

	if len(pl.pool) == 0 {
		return impossible("没有已保存的阵容")
	}
	if numRaces <= 0 {
		return impossible("比赛场数必须大于 0")
	}
	if minRaces < 0 || minRaces > numRaces {
		return impossible("每人最少参赛场数 %d 必须在 0 到 %d 之间", minRaces, numRaces)
	}

	// 收集所有桨手
	paddlerIndex := make(map[string]int)
	addPaddler := func(p *domain.Paddler) int {
		if idx, ok := paddlerIndex[p.ID]; ok {
			return idx
		}
		paddlerIndex[p.ID] = len(pl.paddlers)
		pl.paddlers = append(pl.paddlers, p)
		return len(pl.paddlers) - 1
	}
	pl.members = make([][]int, len(pl.pool))
	for i, lineup := range pl.pool {
		for _, p := range lineup.Seated {
			pl.members[i] = append(pl.members[i], addPaddler(p))
		}
		for _, p := range lineup.Unseated {
			addPaddler(p)
		}
	}

	// 安排固定阵容
	fixed := pl.parameters.FixedLineups
	if len(fixed) > numRaces {
		return impossible("固定阵容有 %d 个，但只有 %d 场比赛", len(fixed), numRaces)
	}
	pl.slots = make([]int, numRaces)
	for i := range pl.slots {
		pl.slots[i] = -1
	}
	isFixed := make(map[int]bool)
	for _, f := range fixed {
		if f.LineupIndex < 0 || f.LineupIndex >= len(pl.pool) {
			return impossible("固定阵容 %d 不存在", f.LineupIndex+1)
		}
		if isFixed[f.LineupIndex] {
			return impossible("阵容 %d 被重复固定", f.LineupIndex+1)
		}
		isFixed[f.LineupIndex] = true
		if f.Race < 0 || f.Race > numRaces {
			return impossible("固定阵容 %d 的比赛场次 %d 不存在", f.LineupIndex+1, f.Race)
		}
		if f.Race > 0 {
			if pl.slots[f.Race-1] != -1 {
				return impossible("第 %d 场比赛被多个固定阵容占用", f.Race)
			}
			pl.slots[f.Race-1] = f.LineupIndex
		}
	}
	// 没有指定场次的固定阵容放在第一个空闲场次
	for _, f := range fixed {
		if f.Race == 0 {
			slot := slices.Index(pl.slots, -1)
			pl.slots[slot] = f.LineupIndex
		}
	}
	for i, idx := range pl.slots {
		if idx == -1 {
			pl.freeSlots = append(pl.freeSlots, i)
		}
	}
	for i := range pl.pool {
		if !isFixed[i] {
			pl.nonFixed = append(pl.nonFixed, i)
		}
	}

	totalSlots := numRaces * domain.SeatsNum
	required := len(pl.paddlers) * minRaces
	if required > totalSlots {
		return impossible("需要 %d 人次（%d 名桨手 × 每人 %d 场），但 %d 场比赛只有 %d 个座位", required, len(pl.paddlers), minRaces, numRaces, totalSlots)
	}

	remaining := len(pl.freeSlots)
	if remaining > 0 && len(pl.nonFixed) == 0 {
		return impossible("还有 %d 场比赛没有可用的阵容", remaining)
	}

	fixedCount := make([]int, len(pl.paddlers))
	for _, idx := range pl.slots {
		if idx == -1 {
			continue
		}
		for _, m := range pl.members[idx] {
			fixedCount[m]++
		}
	}
	inNonFixed := make([]bool, len(pl.paddlers))
	for _, idx := range pl.nonFixed {
		for _, m := range pl.members[idx] {
			inNonFixed[m] = true
		}
	}
	for i, p := range pl.paddlers {
		if fixedCount[i] > numRaces {
			return impossible("桨手 %s 在固定阵容中出现了 %d 次，但只有 %d 场比赛", p.Name, fixedCount[i], numRaces)
		}
		need := minRaces - fixedCount[i]
		if need > remaining {
			return impossible("桨手 %s 还需要参加 %d 场比赛，但只剩 %d 场", p.Name, need, remaining)
		}
		if need > 0 && !inNonFixed[i] {
			return impossible("桨手 %s 还需要参加 %d 场比赛，但不在任何可选阵容中", p.Name, need)
		}
	}

	return nil
}

// Plan 搜索满足最少参赛场数的比赛方案，按总成绩降序返回
func (pl *Planner) Plan(ctx context.Context, progress ProgressFunc) ([]*domain.RacePlan, error) {
	best := newTopK(pl.parameters.ResultLimit, planEntryLess)
	k := len(pl.freeSlots)
	n := len(pl.nonFixed)

	sampled := false
	var err error
	if count := MultisetCountCapped(n, k, pl.parameters.ExhaustiveCeiling); count <= pl.parameters.ExhaustiveCeiling {
		err = pl.searchExhaustive(ctx, progress, best, count)
	} else {
		sampled = true
		err = pl.searchSampled(ctx, progress, best)
	}
	if err != nil {
		return nil, err
	}

	if progress != nil {
		progress(1)
	}

	entries := best.Sorted()
	if len(entries) == 0 {
		if sampled {
			return nil, fmt.Errorf("%w: 抽样没有找到满足条件的方案，约束可能无法满足", domain.ErrNoValidResults)
		}
		return nil, domain.ErrNoValidResults
	}

	now := time.Now()
	plans := make([]*domain.RacePlan, 0, len(entries))
	for _, e := range entries {
		races := lo.Map(e.races, func(idx int, _ int) *domain.LineupCandidate {
			return pl.pool[idx]
		})
		plan := &domain.RacePlan{
			ID:        uuid.NewString(),
			SessionID: pl.sessionID,
			Races:     races,
			Stats:     BuildRacePlanStats(races, pl.paddlers),
			Sampled:   sampled,
			CreatedAt: now,
		}

		// 检查结果是否满足约束条件
		if err := utils.ValidateRacePlan(plan, pl.parameters.MinRacesPerPaddler); err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

func (pl *Planner) searchExhaustive(ctx context.Context, progress ProgressFunc, best *topK[planEntry], total uint64) error {
	races := slices.Clone(pl.slots)
	counts := make([]int, len(pl.paddlers))

	var processed uint64
	it := NewMultisetIterator(len(pl.nonFixed), len(pl.freeSlots))
	for it.Next() {
		processed++
		if pl.parameters.ProgressInterval > 0 && processed%uint64(pl.parameters.ProgressInterval) == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			if progress != nil {
				progress(float64(processed) / float64(total))
			}
		}

		for i, idx := range it.Indices() {
			races[pl.freeSlots[i]] = pl.nonFixed[idx]
		}
		pl.evaluate(races, counts, best)
	}
	return nil
}

func (pl *Planner) searchSampled(ctx context.Context, progress ProgressFunc, best *topK[planEntry]) error {
	rng := pl.parameters.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	// 按计时赛成绩之和降序排列，抽样时偏向前面的阵容
	sorted := slices.Clone(pl.nonFixed)
	sort.SliceStable(sorted, func(i, j int) bool {
		return pl.pool[sorted[i]].TTSum > pl.pool[sorted[j]].TTSum
	})
	top := min(pl.parameters.TopLineupCount, len(sorted))

	races := slices.Clone(pl.slots)
	counts := make([]int, len(pl.paddlers))
	seq := make([]int, len(pl.freeSlots))
	seen := make(map[string]bool)
	valid := 0

	for samples := 1; samples <= pl.parameters.SampleLimit && valid < pl.parameters.SampleTarget; samples++ {
		if pl.parameters.ProgressInterval > 0 && samples%pl.parameters.ProgressInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			if progress != nil {
				progress(max(float64(samples)/float64(pl.parameters.SampleLimit), float64(valid)/float64(pl.parameters.SampleTarget)))
			}
		}

		for i := range seq {
			if top > 0 && rng.Float64() < pl.parameters.TopLineupBias {
				seq[i] = sorted[rng.Intn(top)]
			} else {
				seq[i] = sorted[rng.Intn(len(sorted))]
			}
		}
		// 相同阵容组成的方案只保留一个
		slices.Sort(seq)
		key := sequenceKey(seq)
		if !seen[key] {
			for i, idx := range seq {
				races[pl.freeSlots[i]] = idx
			}
			if pl.evaluate(races, counts, best) {
				seen[key] = true
				valid++
			}
		}

		if samples >= pl.parameters.ZeroResultCutoff && valid == 0 {
			break
		}
	}
	return nil
}

// evaluate 先用参赛次数快速排除不满足条件的方案，再计算成绩并尝试加入结果
func (pl *Planner) evaluate(races []int, counts []int, best *topK[planEntry]) bool {
	if !pl.canSatisfySitOutConstraint(races, counts) {
		return false
	}

	score := 0.0
	for _, idx := range races {
		score += pl.pool[idx].TTSum
	}
	entry := planEntry{races: races, score: score}
	if best.Accepts(entry) {
		entry.races = slices.Clone(races)
		best.Offer(entry)
	}
	return true
}

// canSatisfySitOutConstraint 统计每个桨手的参赛次数，休息场数超过 R - M 的方案直接排除
func (pl *Planner) canSatisfySitOutConstraint(races []int, counts []int) bool {
	for i := range counts {
		counts[i] = 0
	}
	for _, idx := range races {
		for _, m := range pl.members[idx] {
			counts[m]++
		}
	}

	maxSitOuts := len(races) - pl.parameters.MinRacesPerPaddler
	for _, c := range counts {
		if len(races)-c > maxSitOuts {
			return false
		}
	}
	return true
}

func sequenceKey(seq []int) string {
	buf := make([]byte, 0, len(seq)*4)
	for _, idx := range seq {
		buf = strconv.AppendInt(buf, int64(idx), 10)
		buf = append(buf, ',')
	}
	return string(buf)
}

// BuildRacePlanStats 计算方案中每个桨手的参赛情况
func BuildRacePlanStats(races []*domain.LineupCandidate, paddlers []*domain.Paddler) domain.RacePlanStats {
	st := domain.RacePlanStats{
		Participation: make([]domain.PaddlerParticipation, len(paddlers)),
	}

	index := make(map[string]int, len(paddlers))
	for i, p := range paddlers {
		index[p.ID] = i
		st.Participation[i] = domain.PaddlerParticipation{
			Paddler:     p,
			RaceNumbers: make([]int, 0, len(races)),
			SitOutRaces: make([]int, 0),
		}
	}

	for r, race := range races {
		st.TotalScore += race.TTSum
		inRace := make(map[string]bool, len(race.Seated))
		for _, p := range race.Seated {
			inRace[p.ID] = true
		}
		for i, p := range paddlers {
			if inRace[p.ID] {
				st.Participation[i].RacesParticipated++
				st.Participation[i].RaceNumbers = append(st.Participation[i].RaceNumbers, r+1)
			} else {
				st.Participation[i].SitOutRaces = append(st.Participation[i].SitOutRaces, r+1)
			}
		}
	}

	if len(races) > 0 {
		st.AverageScore = st.TotalScore / float64(len(races))
	}
	if len(paddlers) == 0 {
		return st
	}

	counts := lo.Map(st.Participation, func(p domain.PaddlerParticipation, _ int) int {
		return p.RacesParticipated
	})
	st.MinRaces = lo.Min(counts)
	st.MaxRaces = lo.Max(counts)
	st.MaxSitOuts = len(races) - st.MinRaces
	st.AverageRaces = float64(lo.Sum(counts)) / float64(len(counts))

	variance := 0.0
	for _, c := range counts {
		variance += (float64(c) - st.AverageRaces) * (float64(c) - st.AverageRaces)
	}
	st.ParticipationStdDev = math.Sqrt(variance / float64(len(counts)))

	return st
}

// ApplyRacePlan 将方案中第一场比赛的阵容放到船上
func ApplyRacePlan(s *domain.Session, plan *domain.RacePlan) error {
	if len(plan.Races) == 0 {
		return fmt.Errorf("%w: 方案中没有比赛", domain.ErrValidation)
	}
	if err := utils.ValidIfExistsDuplicatePaddler(&plan.Races[0].Boat); err != nil {
		return err
	}
	s.ApplyBoat(plan.Races[0].Boat)
	return nil
}
