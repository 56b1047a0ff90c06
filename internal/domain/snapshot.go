package domain

import (
	"encoding/json"
	"fmt"
)

// Snapshot 是队伍状态的持久化格式
// {paddlers: Paddler[], boat: (Paddler|null)[10][2], fixedSeats: ["<row>-<side>"]}
type Snapshot struct {
	Paddlers   []*Paddler `json:"paddlers"`
	Boat       Boat       `json:"boat"`
	FixedSeats []string   `json:"fixedSeats"`
}

func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		Paddlers:   s.Paddlers,
		Boat:       s.Boat,
		FixedSeats: s.Pins.Strings(),
	}
}

func (s *Session) MarshalSnapshot() ([]byte, error) {
	return json.Marshal(s.Snapshot())
}

func (s *Session) UnmarshalSnapshot(data []byte) error {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	return s.Restore(snap)
}

// Restore 用快照替换队伍状态
// 船上的桨手会重新指向名单中的同一条记录，没有桨手的固定座位会被忽略
func (s *Session) Restore(snap Snapshot) error {
	paddlers := make([]*Paddler, 0, len(snap.Paddlers))
	byID := make(map[string]*Paddler, len(snap.Paddlers))
	for _, p := range snap.Paddlers {
		if p == nil {
			continue
		}
		normalizeLegacyPaddler(p)
		if err := p.Validate(); err != nil {
			return err
		}
		if _, exists := byID[p.ID]; exists {
			return fmt.Errorf("%w: 桨手 %s 重复", ErrValidation, p.ID)
		}
		byID[p.ID] = p
		paddlers = append(paddlers, p)
	}

	var boat Boat
	seen := make(map[string]bool)
	for i := 0; i < Rows; i++ {
		for j := 0; j < Sides; j++ {
			p := snap.Boat[i][j]
			if p == nil {
				continue
			}
			if seen[p.ID] {
				return fmt.Errorf("%w: 桨手 %s 同时占用了多个座位", ErrInvalidSeatConfiguration, p.ID)
			}
			seen[p.ID] = true

			if rosterPaddler, ok := byID[p.ID]; ok {
				boat[i][j] = rosterPaddler
				continue
			}
			// 船上有但名单中没有的桨手补回名单
			normalizeLegacyPaddler(p)
			if err := p.Validate(); err != nil {
				return err
			}
			byID[p.ID] = p
			paddlers = append(paddlers, p)
			boat[i][j] = p
		}
	}

	pins := make(Pins)
	for _, str := range snap.FixedSeats {
		pos, err := ParseSeatPosition(str)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidSeatConfiguration, err)
		}
		if boat.Get(pos) != nil {
			pins[pos] = true
		}
	}

	s.Paddlers = paddlers
	s.Boat = boat
	s.Pins = pins
	return nil
}

// 旧数据中没有性别字段，默认为男性
func normalizeLegacyPaddler(p *Paddler) {
	if p.Gender == "" {
		p.Gender = GenderMale
	}
}
