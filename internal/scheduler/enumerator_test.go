package scheduler

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/domain"
	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/utils"
)

// enumeratorRoster 生成 22 名桨手：6 名只划左边，6 名只划右边，10 名两边都可以
func enumeratorRoster() []*domain.Paddler {
	rng := rand.New(rand.NewSource(11))
	roster := make([]*domain.Paddler, 0, 22)
	for i := 0; i < 22; i++ {
		side := domain.SideBoth
		switch {
		case i < 6:
			side = domain.SideLeft
		case i < 12:
			side = domain.SideRight
		}
		gender := domain.GenderMale
		if i%2 == 1 {
			gender = domain.GenderFemale
		}
		p := newPaddler(fmt.Sprintf("p%02d", i), float64(550+rng.Intn(300))/10, side, gender)
		if i%3 == 0 {
			p.TTResults = float64(100 + rng.Intn(50))
		}
		roster = append(roster, p)
	}
	return roster
}

func TestEnumeratorInsufficientRoster(t *testing.T) {
	roster := randomRoster(rand.New(rand.NewSource(1)), 19)

	_, err := NewEnumerator(DefaultEnumeratorParameters(), "s", roster, domain.Boat{}, domain.Pins{})
	require.ErrorIs(t, err, domain.ErrInsufficientRoster)
}

func TestEnumeratorInvalidMaleRange(t *testing.T) {
	params := DefaultEnumeratorParameters()
	params.MinMalePaddlers = 12
	params.MaxMalePaddlers = 8

	_, err := NewEnumerator(params, "s", enumeratorRoster(), domain.Boat{}, domain.Pins{})
	require.ErrorIs(t, err, domain.ErrInvalidSeatConfiguration)
}

func TestEnumeratorSearchSpaceTooLarge(t *testing.T) {
	roster := randomRoster(rand.New(rand.NewSource(1)), 40)

	_, err := NewEnumerator(DefaultEnumeratorParameters(), "s", roster, domain.Boat{}, domain.Pins{})
	require.ErrorIs(t, err, domain.ErrSearchSpaceTooLarge)
}

func TestEnumerateLineupsSatisfyConstraints(t *testing.T) {
	roster := enumeratorRoster()
	var boat domain.Boat
	boat[0][domain.SeatLeft] = roster[0]
	pins := domain.Pins{{Row: 0, Side: domain.SeatLeft}: true}

	params := DefaultEnumeratorParameters()
	params.MaxWeightDifference = 10
	params.MinMalePaddlers = 8
	params.MaxMalePaddlers = 12
	params.ProgressInterval = 10

	e, err := NewEnumerator(params, "session", roster, boat, pins)
	require.NoError(t, err)
	assert.Equal(t, uint64(210), e.Combinations()) // C(21, 19)

	var fractions []float64
	results, found, err := e.Enumerate(context.Background(), func(f float64) {
		fractions = append(fractions, f)
	})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.GreaterOrEqual(t, found, len(results))
	assert.LessOrEqual(t, len(results), params.ResultLimit)

	require.NotEmpty(t, fractions)
	assert.Equal(t, 1.0, fractions[len(fractions)-1])
	assert.True(t, sort.Float64sAreSorted(fractions))

	ids := make(map[string]bool)
	for _, c := range results {
		assert.False(t, ids[c.ID], "重复的阵容 %s", c.ID)
		ids[c.ID] = true

		assert.NoError(t, utils.ValidateLineup(&c.Boat, params.MaxWeightDifference, params.MinMalePaddlers, params.MaxMalePaddlers))
		assert.Equal(t, domain.Rows, c.Boat.CountSide(domain.SeatLeft))
		assert.Equal(t, domain.Rows, c.Boat.CountSide(domain.SeatRight))
		assert.LessOrEqual(t, c.WeightDiff, params.MaxWeightDifference+1e-9)
		assert.GreaterOrEqual(t, c.MaleCount, params.MinMalePaddlers)
		assert.LessOrEqual(t, c.MaleCount, params.MaxMalePaddlers)
		assert.Same(t, roster[0], c.Boat[0][domain.SeatLeft])
		assert.Len(t, c.Seated, domain.SeatsNum)
		assert.Len(t, c.Unseated, len(roster)-domain.SeatsNum)
		assert.Equal(t, "session", c.SessionID)
	}

	assert.True(t, sort.SliceIsSorted(results, func(i, j int) bool {
		return domain.LineupLess(results[i], results[j])
	}))
}

func TestEnumerateResultLimit(t *testing.T) {
	params := DefaultEnumeratorParameters()
	params.MaxWeightDifference = 100
	params.ResultLimit = 5

	e, err := NewEnumerator(params, "s", enumeratorRoster(), domain.Boat{}, domain.Pins{})
	require.NoError(t, err)

	results, found, err := e.Enumerate(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, results, 5)
	assert.Greater(t, found, 5)
}

func TestEnumerateNoValidResults(t *testing.T) {
	params := DefaultEnumeratorParameters()
	params.MinMalePaddlers = domain.SeatsNum
	params.MaxMalePaddlers = domain.SeatsNum

	e, err := NewEnumerator(params, "s", enumeratorRoster(), domain.Boat{}, domain.Pins{})
	require.NoError(t, err)

	results, found, err := e.Enumerate(context.Background(), nil)
	require.ErrorIs(t, err, domain.ErrNoValidResults)
	assert.Empty(t, results)
	assert.Zero(t, found)
}

func TestEnumerateCancelled(t *testing.T) {
	params := DefaultEnumeratorParameters()
	params.ProgressInterval = 1

	e, err := NewEnumerator(params, "s", enumeratorRoster(), domain.Boat{}, domain.Pins{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err = e.Enumerate(ctx, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestMergeIntoPool(t *testing.T) {
	mk := func(id string, tt, diff float64) *domain.LineupCandidate {
		return &domain.LineupCandidate{ID: id, LineupStats: domain.LineupStats{TTSum: tt, WeightDiff: diff}}
	}

	pool := []*domain.LineupCandidate{mk("a", 0, 3), mk("b", 120, 5)}
	results := []*domain.LineupCandidate{mk("a", 0, 3), mk("c", 110, 9), mk("d", 0, 1)}

	merged := MergeIntoPool(pool, results, 10)
	ids := make([]string, len(merged))
	for i, c := range merged {
		ids[i] = c.ID
	}
	assert.Equal(t, []string{"c", "b", "d", "a"}, ids)

	capped := MergeIntoPool(pool, results, 2)
	assert.Len(t, capped, 2)
	assert.Equal(t, "c", capped[0].ID)
	assert.Equal(t, "b", capped[1].ID)
}
