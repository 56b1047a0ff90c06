package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/domain"
	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/utils"
)

// ProgressFunc 接收搜索完成的比例（0 到 1）
type ProgressFunc func(fraction float64)

// 枚举参数
type EnumeratorParameters struct {
	MaxWeightDifference float64 // 左右重量差上限
	MinMalePaddlers     int     // 男性人数下限
	MaxMalePaddlers     int     // 男性人数上限
	CombinationCeiling  uint64  // 组合数上限，超过则不搜索
	ResultLimit         int     // 最多保留的阵容数量
	ProgressInterval    int     // 每处理多少个组合汇报一次进度
}

func DefaultEnumeratorParameters() *EnumeratorParameters {
	return &EnumeratorParameters{
		MaxWeightDifference: 20,
		MinMalePaddlers:     0,
		MaxMalePaddlers:     domain.SeatsNum,
		CombinationCeiling:  1_000_000,
		ResultLimit:         SavedLineupLimit,
		ProgressInterval:    1000,
	}
}

// SavedLineupLimit 为已保存阵容池的容量
const SavedLineupLimit = 200

type Enumerator struct {
	parameters *EnumeratorParameters
	sessionID  string
	roster     []*domain.Paddler
	fixed      domain.Boat       // 只包含固定座位上的桨手
	fixedPins  domain.Pins       // 有桨手的固定座位
	available  []*domain.Paddler // 不在固定座位上的桨手
	needLeft   int
	needRight  int
	total      uint64
}

func NewEnumerator(parameters *EnumeratorParameters, sessionID string, roster []*domain.Paddler, boat domain.Boat, pins domain.Pins) (*Enumerator, error) {
	if len(roster) < domain.SeatsNum {
		return nil, fmt.Errorf("%w: 至少需要 %d 名桨手，当前只有 %d 名", domain.ErrInsufficientRoster, domain.SeatsNum, len(roster))
	}
	if parameters.MinMalePaddlers > parameters.MaxMalePaddlers {
		return nil, fmt.Errorf("%w: 男性人数下限 %d 大于上限 %d", domain.ErrInvalidSeatConfiguration, parameters.MinMalePaddlers, parameters.MaxMalePaddlers)
	}

	e := &Enumerator{
		parameters: parameters,
		sessionID:  sessionID,
		roster:     roster,
		fixedPins:  make(domain.Pins),
	}

	used := make(map[string]bool)
	fixedLeft, fixedRight := 0, 0
	for pos := range pins {
		p := boat.Get(pos)
		if p == nil {
			continue
		}
		e.fixed.Set(pos, p)
		e.fixedPins[pos] = true
		used[p.ID] = true
		if pos.Side == domain.SeatLeft {
			fixedLeft++
		} else {
			fixedRight++
		}
	}
	if fixedLeft > domain.Rows || fixedRight > domain.Rows {
		return nil, fmt.Errorf("%w: 固定座位超过了每边 %d 个", domain.ErrInvalidSeatConfiguration, domain.Rows)
	}
	if err := utils.ValidIfExistsDuplicatePaddler(&e.fixed); err != nil {
		return nil, err
	}

	e.available = lo.Filter(roster, func(p *domain.Paddler, _ int) bool {
		return !used[p.ID]
	})
	e.needLeft = domain.Rows - fixedLeft
	e.needRight = domain.Rows - fixedRight

	needed := e.needLeft + e.needRight
	if len(e.available) < needed {
		return nil, fmt.Errorf("%w: 还需要 %d 名桨手，但只有 %d 名可用", domain.ErrInsufficientRoster, needed, len(e.available))
	}

	e.total = BinomialCapped(len(e.available), needed, parameters.CombinationCeiling)
	if e.total > parameters.CombinationCeiling {
		return nil, fmt.Errorf("%w: 组合数超过 %d，请固定更多座位或减少桨手", domain.ErrSearchSpaceTooLarge, parameters.CombinationCeiling)
	}

	return e, nil
}

// Combinations 返回需要检查的组合数
func (e *Enumerator) Combinations() uint64 {
	return e.total
}

// Enumerate 检查所有可能的阵容，返回排好序的最好的 ResultLimit 个阵容和满足约束的阵容总数
// 没有满足约束的阵容时返回 ErrNoValidResults
func (e *Enumerator) Enumerate(ctx context.Context, progress ProgressFunc) ([]*domain.LineupCandidate, int, error) {
	best := newTopK(e.parameters.ResultLimit, domain.LineupLess)
	found := 0

	fixedStats := e.fixed.Stats()
	needed := e.needLeft + e.needRight
	subset := make([]*domain.Paddler, needed)

	var processed uint64
	it := NewCombinationIterator(len(e.available), needed)
	for it.Next() {
		processed++
		if e.parameters.ProgressInterval > 0 && processed%uint64(e.parameters.ProgressInterval) == 0 {
			if err := ctx.Err(); err != nil {
				return nil, found, err
			}
			if progress != nil {
				progress(float64(processed) / float64(e.total))
			}
		}

		for i, idx := range it.Indices() {
			subset[i] = e.available[idx]
		}
		found += e.trySubset(subset, fixedStats, best)
	}

	if progress != nil {
		progress(1)
	}

	results := best.Sorted()
	now := time.Now()
	for _, c := range results {
		c.SessionID = e.sessionID
		c.CreatedAt = now
		c.Seated = c.Boat.Occupants()
		c.Unseated = unseatedOf(e.roster, &c.Boat)
	}

	if found == 0 {
		return results, 0, domain.ErrNoValidResults
	}
	return results, found, nil
}

// trySubset 枚举一个组合的所有左右分配，返回满足约束的阵容数量
func (e *Enumerator) trySubset(subset []*domain.Paddler, fixedStats domain.LineupStats, best *topK[*domain.LineupCandidate]) int {
	var leftOnly, rightOnly, both []*domain.Paddler
	males := fixedStats.MaleCount
	for _, p := range subset {
		switch p.Side {
		case domain.SideLeft:
			leftOnly = append(leftOnly, p)
		case domain.SideRight:
			rightOnly = append(rightOnly, p)
		default:
			both = append(both, p)
		}
		if p.Gender == domain.GenderMale {
			males++
		}
	}

	// 男性人数只取决于组合本身
	if males < e.parameters.MinMalePaddlers || males > e.parameters.MaxMalePaddlers {
		return 0
	}
	if len(leftOnly) > e.needLeft || len(rightOnly) > e.needRight {
		return 0
	}

	baseLeft := fixedStats.LeftWeight + lo.SumBy(leftOnly, paddlerWeight)
	baseRight := fixedStats.RightWeight + lo.SumBy(rightOnly, paddlerWeight)
	bothWeight := lo.SumBy(both, paddlerWeight)

	found := 0
	leftGroup := make([]*domain.Paddler, 0, e.needLeft)
	rightGroup := make([]*domain.Paddler, 0, e.needRight)
	chosen := make([]bool, len(both))

	split := NewCombinationIterator(len(both), e.needLeft-len(leftOnly))
	for split.Next() {
		for i := range chosen {
			chosen[i] = false
		}
		leftWeight := baseLeft
		for _, idx := range split.Indices() {
			chosen[idx] = true
			leftWeight += both[idx].Weight
		}
		rightWeight := baseRight + bothWeight - (leftWeight - baseLeft)
		if diff := leftWeight - rightWeight; diff > e.parameters.MaxWeightDifference+1e-6 || -diff > e.parameters.MaxWeightDifference+1e-6 {
			continue
		}

		leftGroup = append(leftGroup[:0], leftOnly...)
		rightGroup = append(rightGroup[:0], rightOnly...)
		for i, p := range both {
			if chosen[i] {
				leftGroup = append(leftGroup, p)
			} else {
				rightGroup = append(rightGroup, p)
			}
		}

		boat := e.buildBoat(leftGroup, rightGroup)
		if err := utils.ValidateLineup(&boat, e.parameters.MaxWeightDifference, e.parameters.MinMalePaddlers, e.parameters.MaxMalePaddlers); err != nil {
			continue
		}

		found++
		candidate := &domain.LineupCandidate{
			ID:          domain.LineupID(&boat),
			Boat:        boat,
			LineupStats: boat.Stats(),
		}
		best.Offer(candidate)
	}

	return found
}

// buildBoat 保留固定座位，其余座位按排数从小到大填入，再做排位优化
func (e *Enumerator) buildBoat(left, right []*domain.Paddler) domain.Boat {
	boat := e.fixed.Clone()
	for _, p := range left {
		seatFirstFree(&boat, e.fixedPins, domain.SeatLeft, p)
	}
	for _, p := range right {
		seatFirstFree(&boat, e.fixedPins, domain.SeatRight, p)
	}
	return OptimizeRows(boat, e.fixedPins)
}

// MergeIntoPool 将新的阵容加入已保存的阵容池，按 ID 去重后重新排序，只保留最好的 limit 个
func MergeIntoPool(pool, results []*domain.LineupCandidate, limit int) []*domain.LineupCandidate {
	merged := make([]*domain.LineupCandidate, 0, len(pool)+len(results))
	merged = append(merged, pool...)
	merged = append(merged, results...)
	merged = lo.UniqBy(merged, func(c *domain.LineupCandidate) string {
		return c.ID
	})

	sort.SliceStable(merged, func(i, j int) bool {
		return domain.LineupLess(merged[i], merged[j])
	})
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

func paddlerWeight(p *domain.Paddler) float64 {
	return p.Weight
}

func unseatedOf(roster []*domain.Paddler, boat *domain.Boat) []*domain.Paddler {
	return lo.Filter(roster, func(p *domain.Paddler, _ int) bool {
		_, ok := boat.SeatOf(p.ID)
		return !ok
	})
}
