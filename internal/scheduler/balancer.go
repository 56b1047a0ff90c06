package scheduler

import (
	"fmt"
	"math"
	"sort"

	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/domain"
)

// ExhaustiveSplitLimit 为穷举左右分配的最大人数，2^15 = 32768 种分配
const ExhaustiveSplitLimit = 15

// Balance 重新安排所有未固定的桨手，使左右重量差尽量小
// 传入的 boat 不会被修改，失败时调用方的座位表保持原样
func Balance(boat domain.Boat, pins domain.Pins) (domain.Boat, error) {
	work := boat.Clone()

	var leftOnly, rightOnly, both []*domain.Paddler
	for i := 0; i < domain.Rows; i++ {
		for j := 0; j < domain.Sides; j++ {
			pos := domain.SeatPosition{Row: i, Side: j}
			p := work.Get(pos)
			if p == nil || pins.Has(pos) {
				continue
			}
			switch p.Side {
			case domain.SideLeft:
				leftOnly = append(leftOnly, p)
			case domain.SideRight:
				rightOnly = append(rightOnly, p)
			default:
				both = append(both, p)
			}
			work.Set(pos, nil)
		}
	}

	if len(leftOnly)+len(rightOnly)+len(both) == 0 {
		return boat, domain.ErrNothingToBalance
	}

	freeLeft := countFreeSeats(&work, pins, domain.SeatLeft)
	freeRight := countFreeSeats(&work, pins, domain.SeatRight)
	if len(leftOnly) > freeLeft {
		return boat, fmt.Errorf("%w: 左边需要 %d 个座位，但只有 %d 个", domain.ErrInsufficientSeats, len(leftOnly), freeLeft)
	}
	if len(rightOnly) > freeRight {
		return boat, fmt.Errorf("%w: 右边需要 %d 个座位，但只有 %d 个", domain.ErrInsufficientSeats, len(rightOnly), freeRight)
	}

	for _, p := range leftOnly {
		seatFirstFree(&work, pins, domain.SeatLeft, p)
	}
	for _, p := range rightOnly {
		seatFirstFree(&work, pins, domain.SeatRight, p)
	}

	if len(both) > 0 {
		st := work.Stats()
		capLeft := freeLeft - len(leftOnly)
		capRight := freeRight - len(rightOnly)
		if len(both) > capLeft+capRight {
			return boat, fmt.Errorf("%w: 两边都可以划的桨手有 %d 人，但只剩 %d 个座位", domain.ErrInsufficientSeats, len(both), capLeft+capRight)
		}

		sortByWeightDesc(both)
		left, right := SplitEither(both, st.LeftWeight, st.RightWeight, capLeft, capRight)
		for _, p := range left {
			seatFirstFree(&work, pins, domain.SeatLeft, p)
		}
		for _, p := range right {
			seatFirstFree(&work, pins, domain.SeatRight, p)
		}
	}

	return OptimizeRows(work, pins), nil
}

// SplitEither 将两边都可以划的桨手分到左右两边，使最终左右重量差最小
// both 需要已经按重量降序排列；人数不超过 ExhaustiveSplitLimit 时穷举，否则使用贪心
func SplitEither(both []*domain.Paddler, leftWeight, rightWeight float64, capLeft, capRight int) (left, right []*domain.Paddler) {
	if len(both) <= ExhaustiveSplitLimit {
		return splitExhaustive(both, leftWeight, rightWeight, capLeft, capRight)
	}
	return splitGreedy(both, leftWeight, rightWeight, capLeft, capRight)
}

// splitExhaustive 中第 j 位为 1 表示第 j 个桨手在左边，差值相同时保留最先找到的分配
func splitExhaustive(both []*domain.Paddler, leftWeight, rightWeight float64, capLeft, capRight int) (left, right []*domain.Paddler) {
	k := len(both)
	bestMask := -1
	bestDiff := math.Inf(1)

	for mask := 0; mask < 1<<k; mask++ {
		l, r := leftWeight, rightWeight
		leftCnt := 0
		for j := 0; j < k; j++ {
			if mask&(1<<j) != 0 {
				l += both[j].Weight
				leftCnt++
			} else {
				r += both[j].Weight
			}
		}
		if leftCnt > capLeft || k-leftCnt > capRight {
			continue
		}
		if diff := math.Abs(l - r); diff < bestDiff {
			bestDiff = diff
			bestMask = mask
		}
	}

	if bestMask == -1 {
		return nil, nil
	}
	for j := 0; j < k; j++ {
		if bestMask&(1<<j) != 0 {
			left = append(left, both[j])
		} else {
			right = append(right, both[j])
		}
	}
	return left, right
}

// splitGreedy 依次把桨手放到当前较轻的一边，一边坐满后只能放另一边
func splitGreedy(both []*domain.Paddler, leftWeight, rightWeight float64, capLeft, capRight int) (left, right []*domain.Paddler) {
	for _, p := range both {
		switch {
		case len(left) >= capLeft:
			right = append(right, p)
			rightWeight += p.Weight
		case len(right) >= capRight:
			left = append(left, p)
			leftWeight += p.Weight
		case leftWeight <= rightWeight:
			left = append(left, p)
			leftWeight += p.Weight
		default:
			right = append(right, p)
			rightWeight += p.Weight
		}
	}
	return left, right
}

// OptimizeRows 将每一边未固定的桨手按重量降序重新放到中间的排
// 不改变左右两边的人员，因此不会影响左右重量差
func OptimizeRows(boat domain.Boat, pins domain.Pins) domain.Boat {
	work := boat.Clone()

	for side := 0; side < domain.Sides; side++ {
		movable := make([]*domain.Paddler, 0, domain.Rows)
		for i := 0; i < domain.Rows; i++ {
			pos := domain.SeatPosition{Row: i, Side: side}
			if p := work.Get(pos); p != nil && !pins.Has(pos) {
				movable = append(movable, p)
				work.Set(pos, nil)
			}
		}

		sortByWeightDesc(movable)
		for _, p := range movable {
			for _, row := range domain.RowPriority {
				pos := domain.SeatPosition{Row: row, Side: side}
				if work.Get(pos) == nil && !pins.Has(pos) {
					work.Set(pos, p)
					break
				}
			}
		}
	}

	return work
}

// AutoGenerate 保留固定座位，用名单中的其他桨手填满剩余座位后再做平衡
// 先放只能划左边和只能划右边的桨手，两边都可以的桨手放到空位更多的一边
func AutoGenerate(roster []*domain.Paddler, boat domain.Boat, pins domain.Pins) (domain.Boat, error) {
	var work domain.Boat
	used := make(map[string]bool)
	for pos := range pins {
		if p := boat.Get(pos); p != nil {
			work.Set(pos, p)
			used[p.ID] = true
		}
	}

	emptyLeft := countFreeSeats(&work, pins, domain.SeatLeft)
	emptyRight := countFreeSeats(&work, pins, domain.SeatRight)

	var both []*domain.Paddler
	for _, p := range roster {
		if used[p.ID] {
			continue
		}
		switch p.Side {
		case domain.SideLeft:
			if emptyLeft > 0 && seatFirstFree(&work, pins, domain.SeatLeft, p) {
				emptyLeft--
			}
		case domain.SideRight:
			if emptyRight > 0 && seatFirstFree(&work, pins, domain.SeatRight, p) {
				emptyRight--
			}
		default:
			both = append(both, p)
		}
	}

	for _, p := range both {
		if emptyLeft <= 0 && emptyRight <= 0 {
			break
		}
		if emptyLeft > emptyRight {
			seatFirstFree(&work, pins, domain.SeatLeft, p)
			emptyLeft--
		} else {
			seatFirstFree(&work, pins, domain.SeatRight, p)
			emptyRight--
		}
	}

	return Balance(work, pins)
}

func countFreeSeats(b *domain.Boat, pins domain.Pins, side int) int {
	cnt := 0
	for i := 0; i < domain.Rows; i++ {
		pos := domain.SeatPosition{Row: i, Side: side}
		if b.Get(pos) == nil && !pins.Has(pos) {
			cnt++
		}
	}
	return cnt
}

func seatFirstFree(b *domain.Boat, pins domain.Pins, side int, p *domain.Paddler) bool {
	pos, ok := domain.FindEmptySeat(b, pins, side)
	if !ok {
		return false
	}
	b.Set(pos, p)
	return true
}

// 重量相同时按 ID 排序，保证结果稳定
func sortByWeightDesc(paddlers []*domain.Paddler) {
	sort.SliceStable(paddlers, func(i, j int) bool {
		if paddlers[i].Weight != paddlers[j].Weight {
			return paddlers[i].Weight > paddlers[j].Weight
		}
		return paddlers[i].ID < paddlers[j].ID
	})
}
