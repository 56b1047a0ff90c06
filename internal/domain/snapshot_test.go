package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRoundTrip(t *testing.T) {
	s := testSession(t, 6)
	s.Boat[0][SeatLeft] = s.Paddlers[0]
	s.Boat[3][SeatRight] = s.Paddlers[2]
	s.Boat[9][SeatLeft] = s.Paddlers[4]
	s.Pins[SeatPosition{Row: 0, Side: SeatLeft}] = true
	s.Pins[SeatPosition{Row: 3, Side: SeatRight}] = true

	data, err := s.MarshalSnapshot()
	require.NoError(t, err)

	loaded := NewSession("另一个队")
	require.NoError(t, loaded.UnmarshalSnapshot(data))

	assert.Equal(t, s.Boat, loaded.Boat)
	assert.Equal(t, s.Pins, loaded.Pins)
	assert.Equal(t, s.Paddlers, loaded.Paddlers)

	// 船上的桨手与名单中是同一条记录
	assert.Same(t, loaded.FindPaddler("p00"), loaded.Boat[0][SeatLeft])
}

func TestSnapshotFormat(t *testing.T) {
	s := testSession(t, 1)
	s.Boat[2][SeatRight] = s.Paddlers[0]
	s.Pins[SeatPosition{Row: 2, Side: SeatRight}] = true

	data, err := s.MarshalSnapshot()
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.JSONEq(t, `["2-1"]`, string(raw["fixedSeats"]))

	var boat [][]json.RawMessage
	require.NoError(t, json.Unmarshal(raw["boat"], &boat))
	require.Len(t, boat, Rows)
	assert.Len(t, boat[0], Sides)
	assert.Equal(t, "null", string(boat[0][0]))
}

func TestRestoreLegacySnapshot(t *testing.T) {
	// 旧数据没有性别字段，且船上有名单中没有的桨手
	data := `{
		"paddlers": [{"id": "a", "name": "张三", "weight": 70, "side": "left"}],
		"boat": [
			[{"id": "a", "name": "张三", "weight": 70, "side": "left"}, {"id": "b", "name": "李四", "weight": 65, "side": "right", "gender": "F"}],
			[null, null], [null, null], [null, null], [null, null],
			[null, null], [null, null], [null, null], [null, null], [null, null]
		],
		"fixedSeats": ["0-0", "5-1"]
	}`

	s := NewSession("旧数据")
	require.NoError(t, s.UnmarshalSnapshot([]byte(data)))

	require.Len(t, s.Paddlers, 2)
	assert.Equal(t, GenderMale, s.FindPaddler("a").Gender)
	assert.Same(t, s.FindPaddler("a"), s.Boat[0][SeatLeft])
	assert.Same(t, s.FindPaddler("b"), s.Boat[0][SeatRight])

	// 5-1 没有桨手，固定状态被丢弃
	assert.Equal(t, []string{"0-0"}, s.Pins.Strings())
}

func TestRestoreRejectsDuplicateSeat(t *testing.T) {
	p := &Paddler{ID: "a", Name: "张三", Weight: 70, Side: SideBoth, Gender: GenderMale}
	var boat Boat
	boat[0][SeatLeft] = p
	boat[1][SeatRight] = p

	s := NewSession("重复")
	err := s.Restore(Snapshot{Paddlers: []*Paddler{p}, Boat: boat})
	require.ErrorIs(t, err, ErrInvalidSeatConfiguration)
}

func TestSeatPositionParse(t *testing.T) {
	pos, err := ParseSeatPosition("7-1")
	require.NoError(t, err)
	assert.Equal(t, SeatPosition{Row: 7, Side: 1}, pos)
	assert.Equal(t, "7-1", pos.String())

	for _, s := range []string{"", "7", "a-1", "7-b", "10-0", "3-2", "-1-0"} {
		_, err := ParseSeatPosition(s)
		assert.Error(t, err, s)
	}
}

func TestBoatStats(t *testing.T) {
	var b Boat
	b[0][SeatLeft] = &Paddler{ID: "a", Weight: 70, Gender: GenderMale, TTResults: 100}
	b[6][SeatRight] = &Paddler{ID: "b", Weight: 60, Gender: GenderFemale}
	b[9][SeatLeft] = &Paddler{ID: "c", Weight: 55, Gender: GenderMale, TTResults: 90}

	st := b.Stats()
	assert.Equal(t, 125.0, st.LeftWeight)
	assert.Equal(t, 60.0, st.RightWeight)
	assert.Equal(t, 65.0, st.WeightDiff)
	assert.Equal(t, 70.0, st.FrontWeight)
	assert.Equal(t, 115.0, st.BackWeight)
	assert.Equal(t, 45.0, st.FrontBackDiff)
	assert.Equal(t, 190.0, st.TTSum)
	assert.Equal(t, 2, st.MaleCount)
	assert.Equal(t, 1, st.FemaleCount)
}

func TestLineupLess(t *testing.T) {
	mk := func(id string, tt, diff float64) *LineupCandidate {
		return &LineupCandidate{ID: id, LineupStats: LineupStats{TTSum: tt, WeightDiff: diff}}
	}

	assert.True(t, LineupLess(mk("a", 100, 9), mk("b", 120, 0)))
	assert.True(t, LineupLess(mk("a", 100, 9), mk("b", 0, 0)))
	assert.False(t, LineupLess(mk("a", 0, 0), mk("b", 300, 9)))
	assert.True(t, LineupLess(mk("a", 0, 1), mk("b", 0, 2)))
	assert.True(t, LineupLess(mk("a", 100, 1), mk("b", 100, 2)))
}

func TestLineupIDDependsOnSeats(t *testing.T) {
	a := &Paddler{ID: "a"}
	b := &Paddler{ID: "b"}

	var x, y Boat
	x[0][SeatLeft], x[0][SeatRight] = a, b
	y[0][SeatLeft], y[0][SeatRight] = b, a

	assert.NotEqual(t, LineupID(&x), LineupID(&y))
	z := x.Clone()
	assert.Equal(t, LineupID(&x), LineupID(&z))
}
