package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	Rows     = 10
	Sides    = 2
	SeatsNum = Rows * Sides

	SeatLeft  = 0
	SeatRight = 1

	// 前半船为第 0~4 排
	FrontRows = 5
)

// RowPriority 为行分配时的优先顺序，中间的排优先
var RowPriority = [Rows]int{4, 5, 3, 6, 2, 7, 1, 8, 0, 9}

type SeatPosition struct {
	Row  int
	Side int
}

func (p SeatPosition) String() string {
	return fmt.Sprintf("%d-%d", p.Row, p.Side)
}

func (p SeatPosition) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *SeatPosition) UnmarshalText(text []byte) error {
	pos, err := ParseSeatPosition(string(text))
	if err != nil {
		return err
	}
	*p = pos
	return nil
}

func (p SeatPosition) Valid() bool {
	return p.Row >= 0 && p.Row < Rows && (p.Side == SeatLeft || p.Side == SeatRight)
}

// ParseSeatPosition 解析 "<row>-<side>" 格式的座位
func ParseSeatPosition(s string) (SeatPosition, error) {
	rowPart, sidePart, ok := strings.Cut(s, "-")
	if !ok {
		return SeatPosition{}, fmt.Errorf("座位格式错误: %q", s)
	}
	row, err := strconv.Atoi(rowPart)
	if err != nil {
		return SeatPosition{}, fmt.Errorf("座位排数错误: %q", s)
	}
	side, err := strconv.Atoi(sidePart)
	if err != nil {
		return SeatPosition{}, fmt.Errorf("座位边错误: %q", s)
	}
	pos := SeatPosition{Row: row, Side: side}
	if !pos.Valid() {
		return SeatPosition{}, fmt.Errorf("座位超出范围: %q", s)
	}
	return pos, nil
}

// Boat 为 10 排 x 2 边的座位表，nil 表示空座位
type Boat [Rows][Sides]*Paddler

func (b *Boat) Get(pos SeatPosition) *Paddler {
	return b[pos.Row][pos.Side]
}

func (b *Boat) Set(pos SeatPosition, p *Paddler) {
	b[pos.Row][pos.Side] = p
}

// Clone 只复制座位表本身，桨手记录是只读的，可以共享
func (b *Boat) Clone() Boat {
	return *b
}

func (b *Boat) Clear() {
	*b = Boat{}
}

// SeatOf 返回桨手所在的座位
func (b *Boat) SeatOf(paddlerID string) (SeatPosition, bool) {
	for i := 0; i < Rows; i++ {
		for j := 0; j < Sides; j++ {
			if b[i][j] != nil && b[i][j].ID == paddlerID {
				return SeatPosition{Row: i, Side: j}, true
			}
		}
	}
	return SeatPosition{}, false
}

// Occupants 按 (排, 左, 右) 的顺序返回所有已入座的桨手
func (b *Boat) Occupants() []*Paddler {
	res := make([]*Paddler, 0, SeatsNum)
	for i := 0; i < Rows; i++ {
		for j := 0; j < Sides; j++ {
			if b[i][j] != nil {
				res = append(res, b[i][j])
			}
		}
	}
	return res
}

func (b *Boat) CountSide(side int) int {
	cnt := 0
	for i := 0; i < Rows; i++ {
		if b[i][side] != nil {
			cnt++
		}
	}
	return cnt
}

type LineupStats struct {
	LeftWeight    float64 `json:"leftWeight"`
	RightWeight   float64 `json:"rightWeight"`
	WeightDiff    float64 `json:"weightDiff"`
	FrontWeight   float64 `json:"frontWeight"`
	BackWeight    float64 `json:"backWeight"`
	FrontBackDiff float64 `json:"frontBackDiff"`
	TTSum         float64 `json:"ttSum"`
	MaleCount     int     `json:"maleCount"`
	FemaleCount   int     `json:"femaleCount"`
}

func (b *Boat) Stats() LineupStats {
	var st LineupStats
	for i := 0; i < Rows; i++ {
		for j := 0; j < Sides; j++ {
			p := b[i][j]
			if p == nil {
				continue
			}
			if j == SeatLeft {
				st.LeftWeight += p.Weight
			} else {
				st.RightWeight += p.Weight
			}
			if i < FrontRows {
				st.FrontWeight += p.Weight
			} else {
				st.BackWeight += p.Weight
			}
			st.TTSum += p.TTResults
			if p.Gender == GenderMale {
				st.MaleCount++
			} else {
				st.FemaleCount++
			}
		}
	}
	st.WeightDiff = math.Abs(st.LeftWeight - st.RightWeight)
	st.FrontBackDiff = math.Abs(st.FrontWeight - st.BackWeight)
	return st
}

// Pins 记录被固定的座位，固定座位上的桨手不参与任何自动调整
type Pins map[SeatPosition]bool

func (p Pins) Has(pos SeatPosition) bool {
	return p[pos]
}

func (p Pins) Clone() Pins {
	res := make(Pins, len(p))
	for pos, ok := range p {
		if ok {
			res[pos] = true
		}
	}
	return res
}

// Strings 按座位顺序返回 "<row>-<side>" 列表
func (p Pins) Strings() []string {
	res := make([]string, 0, len(p))
	for i := 0; i < Rows; i++ {
		for j := 0; j < Sides; j++ {
			pos := SeatPosition{Row: i, Side: j}
			if p[pos] {
				res = append(res, pos.String())
			}
		}
	}
	return res
}

func (p Pins) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Strings())
}

func (p *Pins) UnmarshalJSON(data []byte) error {
	var seats []string
	if err := json.Unmarshal(data, &seats); err != nil {
		return err
	}
	res := make(Pins, len(seats))
	for _, s := range seats {
		pos, err := ParseSeatPosition(s)
		if err != nil {
			return err
		}
		res[pos] = true
	}
	*p = res
	return nil
}
