package scheduler

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/domain"
	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/utils"
)

func TestBalanceSideOnlyPaddlers(t *testing.T) {
	// 10 名只划左边和 10 名只划右边的桨手，初始时故意坐反
	var boat domain.Boat
	for i := 0; i < domain.Rows; i++ {
		boat[i][domain.SeatLeft] = newPaddler(fmt.Sprintf("r%d", i), 60, domain.SideRight, domain.GenderMale)
		boat[i][domain.SeatRight] = newPaddler(fmt.Sprintf("l%d", i), 60, domain.SideLeft, domain.GenderMale)
	}

	res, err := Balance(boat, domain.Pins{})
	require.NoError(t, err)

	st := res.Stats()
	assert.Equal(t, 0.0, st.WeightDiff)
	assert.Len(t, res.Occupants(), domain.SeatsNum)
	assert.NoError(t, utils.ValidateSeatSides(&res))
	assert.NoError(t, utils.ValidIfExistsDuplicatePaddler(&res))
}

func TestBalanceLargeEitherGroup(t *testing.T) {
	paddlers := make([]*domain.Paddler, 0, domain.SeatsNum)
	for w := 50; w <= 69; w++ {
		paddlers = append(paddlers, newPaddler(fmt.Sprintf("b%d", w), float64(w), domain.SideBoth, domain.GenderMale))
	}

	res, err := Balance(fillBoat(paddlers), domain.Pins{})
	require.NoError(t, err)

	st := res.Stats()
	assert.LessOrEqual(t, st.WeightDiff, 2.0)
	assert.Equal(t, domain.Rows, res.CountSide(domain.SeatLeft))
	assert.Equal(t, domain.Rows, res.CountSide(domain.SeatRight))
	assert.NoError(t, utils.ValidIfExistsDuplicatePaddler(&res))
}

func TestBalanceNothingToBalance(t *testing.T) {
	var boat domain.Boat
	boat[0][0] = newPaddler("a", 70, domain.SideLeft, domain.GenderMale)
	boat[3][1] = newPaddler("b", 65, domain.SideRight, domain.GenderFemale)
	pins := domain.Pins{
		{Row: 0, Side: 0}: true,
		{Row: 3, Side: 1}: true,
	}

	res, err := Balance(boat, pins)
	require.ErrorIs(t, err, domain.ErrNothingToBalance)
	assert.Equal(t, boatIDs(&boat), boatIDs(&res))
}

func TestBalanceInsufficientSeats(t *testing.T) {
	// 11 名只划左边的桨手
	var boat domain.Boat
	for i := 0; i < domain.Rows; i++ {
		boat[i][domain.SeatLeft] = newPaddler(fmt.Sprintf("l%d", i), 60, domain.SideLeft, domain.GenderMale)
	}
	boat[0][domain.SeatRight] = newPaddler("l10", 61, domain.SideLeft, domain.GenderMale)
	before := boatIDs(&boat)

	res, err := Balance(boat, domain.Pins{})
	require.ErrorIs(t, err, domain.ErrInsufficientSeats)
	assert.Equal(t, before, boatIDs(&res))
	assert.Equal(t, before, boatIDs(&boat))
}

func TestBalanceKeepsPinnedSeats(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	roster := randomRoster(rng, domain.SeatsNum)
	boat := fillBoat(roster)
	pins := domain.Pins{
		{Row: 0, Side: 0}: true,
		{Row: 9, Side: 1}: true,
	}

	res, err := Balance(boat, pins)
	require.NoError(t, err)
	assert.Same(t, boat[0][0], res[0][0])
	assert.Same(t, boat[9][1], res[9][1])
	assert.Len(t, res.Occupants(), domain.SeatsNum)
}

// 穷举分配的结果应当不差于任何满足座位数限制的分配
func TestBalanceEitherSplitIsOptimal(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 50; round++ {
		var boat domain.Boat
		pins := domain.Pins{}

		pinnedLeft := rng.Intn(4)
		pinnedRight := rng.Intn(4)
		for i := 0; i < pinnedLeft; i++ {
			boat[i][domain.SeatLeft] = newPaddler(fmt.Sprintf("pl%d", i), float64(50+rng.Intn(40)), domain.SideLeft, domain.GenderMale)
			pins[domain.SeatPosition{Row: i, Side: domain.SeatLeft}] = true
		}
		for i := 0; i < pinnedRight; i++ {
			boat[i][domain.SeatRight] = newPaddler(fmt.Sprintf("pr%d", i), float64(50+rng.Intn(40)), domain.SideRight, domain.GenderMale)
			pins[domain.SeatPosition{Row: i, Side: domain.SeatRight}] = true
		}

		k := rng.Intn(10) + 1
		either := make([]*domain.Paddler, k)
		for i := range either {
			either[i] = newPaddler(fmt.Sprintf("e%d", i), float64(400+rng.Intn(500))/10, domain.SideBoth, domain.GenderFemale)
		}
		// 先全部放在右边的空位，再放左边
		placed := 0
		for _, side := range []int{domain.SeatRight, domain.SeatLeft} {
			for i := domain.Rows - 1; i >= 0 && placed < k; i-- {
				if boat[i][side] == nil {
					boat[i][side] = either[placed]
					placed++
				}
			}
		}
		require.Equal(t, k, placed)

		res, err := Balance(boat, pins)
		require.NoError(t, err)

		capLeft := domain.Rows - pinnedLeft
		capRight := domain.Rows - pinnedRight
		var pinL, pinR float64
		for pos := range pins {
			if pos.Side == domain.SeatLeft {
				pinL += boat.Get(pos).Weight
			} else {
				pinR += boat.Get(pos).Weight
			}
		}
		bestDiff := math.Inf(1)
		for mask := 0; mask < 1<<k; mask++ {
			l, r, cnt := pinL, pinR, 0
			for j := 0; j < k; j++ {
				if mask&(1<<j) != 0 {
					l += either[j].Weight
					cnt++
				} else {
					r += either[j].Weight
				}
			}
			if cnt > capLeft || k-cnt > capRight {
				continue
			}
			bestDiff = math.Min(bestDiff, math.Abs(l-r))
		}

		assert.InDelta(t, bestDiff, res.Stats().WeightDiff, 1e-6, "round %d", round)
		assert.NoError(t, utils.ValidIfExistsDuplicatePaddler(&res))
	}
}

func TestSplitEitherGreedyForcesWhenSideFull(t *testing.T) {
	both := make([]*domain.Paddler, 16)
	for i := range both {
		both[i] = newPaddler(fmt.Sprintf("b%02d", i), float64(80-i), domain.SideBoth, domain.GenderMale)
	}

	left, right := SplitEither(both, 0, 500, 1, 20)
	assert.Len(t, left, 1)
	assert.Len(t, right, 15)
}

func TestOptimizeRowsPutsHeaviestAmidships(t *testing.T) {
	var boat domain.Boat
	for i := 0; i < domain.Rows; i++ {
		boat[i][domain.SeatLeft] = newPaddler(fmt.Sprintf("l%d", i), float64(50+i), domain.SideLeft, domain.GenderMale)
	}
	pins := domain.Pins{{Row: 9, Side: domain.SeatLeft}: true}

	res := OptimizeRows(boat, pins)

	// 第 9 排被固定，剩下的最重的桨手是 l8
	assert.Equal(t, "l8", res[4][domain.SeatLeft].ID)
	assert.Equal(t, "l7", res[5][domain.SeatLeft].ID)
	assert.Equal(t, "l6", res[3][domain.SeatLeft].ID)
	assert.Equal(t, "l9", res[9][domain.SeatLeft].ID)
	assert.Equal(t, boat.Stats().LeftWeight, res.Stats().LeftWeight)
}

func TestOptimizeRowsIsIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for round := 0; round < 30; round++ {
		roster := randomRoster(rng, domain.SeatsNum)
		// 制造相同体重
		roster[1].Weight = roster[0].Weight

		var boat domain.Boat
		pins := domain.Pins{}
		perm := rng.Perm(domain.SeatsNum)
		for i, p := range roster[:15+rng.Intn(6)] {
			pos := domain.SeatPosition{Row: perm[i] / domain.Sides, Side: perm[i] % domain.Sides}
			boat.Set(pos, p)
			if rng.Intn(5) == 0 {
				pins[pos] = true
			}
		}

		once := OptimizeRows(boat, pins)
		twice := OptimizeRows(once, pins)
		assert.Equal(t, boatIDs(&once), boatIDs(&twice), "round %d", round)
	}
}

func TestAutoGenerate(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	roster := randomRoster(rng, 24)
	roster[0].Side = domain.SideLeft
	roster[1].Side = domain.SideRight
	roster[2].Side = domain.SideLeft

	var boat domain.Boat
	boat[2][domain.SeatRight] = roster[5]
	pins := domain.Pins{{Row: 2, Side: domain.SeatRight}: true}

	res, err := AutoGenerate(roster, boat, pins)
	require.NoError(t, err)

	assert.Same(t, roster[5], res[2][domain.SeatRight])
	assert.Len(t, res.Occupants(), domain.SeatsNum)
	assert.NoError(t, utils.ValidIfExistsDuplicatePaddler(&res))
	assert.NoError(t, utils.ValidateSeatSides(&res))

	// 只能划一边的桨手都应当上船
	for _, p := range roster[:3] {
		_, ok := res.SeatOf(p.ID)
		assert.True(t, ok, p.ID)
	}
}
