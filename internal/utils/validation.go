package utils

import (
	"errors"
	"fmt"

	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/domain"
)

// 比较重量时允许的浮点误差
const weightEpsilon = 1e-9

func ValidIfExistsDuplicatePaddler(boat *domain.Boat) error {
	seen := make(map[string]domain.SeatPosition)
	for i := 0; i < domain.Rows; i++ {
		for j := 0; j < domain.Sides; j++ {
			p := boat[i][j]
			if p == nil {
				continue
			}
			pos := domain.SeatPosition{Row: i, Side: j}
			if prev, exists := seen[p.ID]; exists {
				return fmt.Errorf("%w: 桨手 %s 同时坐在 %s 和 %s", domain.ErrInvalidSeatConfiguration, p.Name, prev, pos)
			}
			seen[p.ID] = pos
		}
	}
	return nil
}

// ValidateSeatSides 检查每个桨手的座位是否符合其划桨边
func ValidateSeatSides(boat *domain.Boat) error {
	for i := 0; i < domain.Rows; i++ {
		for j := 0; j < domain.Sides; j++ {
			p := boat[i][j]
			if p != nil && !p.CanSit(j) {
				return fmt.Errorf("%w: 桨手 %s 不能坐在 %s", domain.ErrSideNotAllowed, p.Name, domain.SeatPosition{Row: i, Side: j})
			}
		}
	}
	return nil
}

// ValidateLineup 检查一个完整阵容是否满足约束：
//  1. 没有重复的桨手
//  2. 左右两边各 10 人
//  3. 座位符合划桨边
//  4. 左右重量差不超过 maxWeightDiff
//  5. 男性人数在 [minMale, maxMale] 之间
func ValidateLineup(boat *domain.Boat, maxWeightDiff float64, minMale, maxMale int) error {
	if err := ValidIfExistsDuplicatePaddler(boat); err != nil {
		return err
	}

	if boat.CountSide(domain.SeatLeft) != domain.Rows || boat.CountSide(domain.SeatRight) != domain.Rows {
		return errors.New("阵容的左右两边必须各有 10 人")
	}

	if err := ValidateSeatSides(boat); err != nil {
		return err
	}

	st := boat.Stats()
	if st.WeightDiff > maxWeightDiff+weightEpsilon {
		return fmt.Errorf("左右重量差 %.1f 超过了 %.1f", st.WeightDiff, maxWeightDiff)
	}
	if st.MaleCount < minMale || st.MaleCount > maxMale {
		return fmt.Errorf("男性人数 %d 不在 [%d, %d] 之间", st.MaleCount, minMale, maxMale)
	}

	return nil
}

// ValidateRacePlan 检查比赛方案中每个桨手的参赛场数和休息场数
func ValidateRacePlan(plan *domain.RacePlan, minRaces int) error {
	numRaces := len(plan.Races)
	for _, p := range plan.Stats.Participation {
		if p.RacesParticipated+len(p.SitOutRaces) != numRaces {
			return fmt.Errorf("桨手 %s 的参赛场数与休息场数之和不等于 %d", p.Paddler.Name, numRaces)
		}
		if p.RacesParticipated < minRaces {
			return fmt.Errorf("桨手 %s 只参加了 %d 场比赛，少于 %d 场", p.Paddler.Name, p.RacesParticipated, minRaces)
		}
	}
	for i, race := range plan.Races {
		if err := ValidIfExistsDuplicatePaddler(&race.Boat); err != nil {
			return fmt.Errorf("第 %d 场比赛: %w", i+1, err)
		}
	}
	return nil
}
