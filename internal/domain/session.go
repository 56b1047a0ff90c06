package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Session 是一支队伍的完整状态：名单、船上座位和固定座位
// 所有调整算法都只读取 Session 的副本，成功后再整体替换 Boat
type Session struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Paddlers  []*Paddler `json:"paddlers"`
	Boat      Boat       `json:"boat"`
	Pins      Pins       `json:"fixedSeats"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	Version   int32      `json:"-"`
}

func NewSession(name string) *Session {
	return &Session{
		ID:       uuid.NewString(),
		Name:     name,
		Paddlers: make([]*Paddler, 0),
		Pins:     make(Pins),
	}
}

type PaddlerUpdate struct {
	Name      *string  `json:"name"`
	Weight    *float64 `json:"weight"`
	Side      *Side    `json:"side"`
	Gender    *Gender  `json:"gender"`
	TTResults *float64 `json:"ttResults"`
}

func (s *Session) FindPaddler(id string) *Paddler {
	for _, p := range s.Paddlers {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (s *Session) FindPaddlerByName(name string) *Paddler {
	for _, p := range s.Paddlers {
		if p.Name == name {
			return p
		}
	}
	return nil
}

func (s *Session) AddPaddler(p *Paddler) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if s.FindPaddler(p.ID) != nil {
		return fmt.Errorf("%w: 桨手 %s 已存在", ErrValidation, p.ID)
	}

	s.Paddlers = append(s.Paddlers, p)
	return nil
}

// UpdatePaddler 原地更新桨手记录，船上引用的是同一个对象
// 如果修改了划桨边且与当前座位冲突，则将其移出船
func (s *Session) UpdatePaddler(id string, upd PaddlerUpdate) (*Paddler, error) {
	p := s.FindPaddler(id)
	if p == nil {
		return nil, ErrPaddlerNotFound
	}

	updated := *p
	if upd.Name != nil {
		updated.Name = *upd.Name
	}
	if upd.Weight != nil {
		updated.Weight = *upd.Weight
	}
	if upd.Side != nil {
		updated.Side = *upd.Side
	}
	if upd.Gender != nil {
		updated.Gender = *upd.Gender
	}
	if upd.TTResults != nil {
		updated.TTResults = *upd.TTResults
	}
	if err := updated.Validate(); err != nil {
		return nil, err
	}

	*p = updated
	s.evictIfSideConflict(p)
	return p, nil
}

// RemovePaddler 从名单中删除桨手，同时清除其座位和固定状态
func (s *Session) RemovePaddler(id string) error {
	idx := -1
	for i, p := range s.Paddlers {
		if p.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return ErrPaddlerNotFound
	}

	s.removeFromBoat(id)
	s.Paddlers = append(s.Paddlers[:idx], s.Paddlers[idx+1:]...)
	return nil
}

func (s *Session) removeFromBoat(id string) {
	for i := 0; i < Rows; i++ {
		for j := 0; j < Sides; j++ {
			if s.Boat[i][j] != nil && s.Boat[i][j].ID == id {
				pos := SeatPosition{Row: i, Side: j}
				delete(s.Pins, pos)
				s.Boat.Set(pos, nil)
			}
		}
	}
}

func (s *Session) evictIfSideConflict(p *Paddler) {
	pos, ok := s.Boat.SeatOf(p.ID)
	if ok && !p.CanSit(pos.Side) {
		s.removeFromBoat(p.ID)
	}
}

// TogglePin 切换座位的固定状态，返回切换后是否处于固定状态
func (s *Session) TogglePin(pos SeatPosition) (bool, error) {
	if !pos.Valid() {
		return false, fmt.Errorf("%w: 座位 %s 不存在", ErrInvalidSeatConfiguration, pos)
	}
	if s.Pins == nil {
		s.Pins = make(Pins)
	}

	if s.Pins.Has(pos) {
		delete(s.Pins, pos)
		return false, nil
	}
	if s.Boat.Get(pos) == nil {
		return false, ErrSeatEmpty
	}
	s.Pins[pos] = true
	return true, nil
}

func (s *Session) IsSeated(id string) bool {
	_, ok := s.Boat.SeatOf(id)
	return ok
}

// FindEmptySeat 从第 0 排开始寻找 side 一侧第一个空的、未固定的座位
func (s *Session) FindEmptySeat(side int) (SeatPosition, bool) {
	return FindEmptySeat(&s.Boat, s.Pins, side)
}

func FindEmptySeat(b *Boat, pins Pins, side int) (SeatPosition, bool) {
	for i := 0; i < Rows; i++ {
		pos := SeatPosition{Row: i, Side: side}
		if b.Get(pos) == nil && !pins.Has(pos) {
			return pos, true
		}
	}
	return SeatPosition{}, false
}

// ToggleInBoat 将桨手放入（或移出）船，放入时优先左边，返回操作后是否在船上
func (s *Session) ToggleInBoat(id string) (bool, error) {
	p := s.FindPaddler(id)
	if p == nil {
		return false, ErrPaddlerNotFound
	}

	if s.IsSeated(id) {
		s.removeFromBoat(id)
		return false, nil
	}

	for _, side := range []int{SeatLeft, SeatRight} {
		if !p.CanSit(side) {
			continue
		}
		if pos, ok := s.FindEmptySeat(side); ok {
			s.Boat.Set(pos, p)
			return true, nil
		}
	}
	return false, fmt.Errorf("%w: %s 可以坐的一侧已经没有空位", ErrInsufficientSeats, p.Name)
}

func (s *Session) CycleSide(id string) (*Paddler, error) {
	p := s.FindPaddler(id)
	if p == nil {
		return nil, ErrPaddlerNotFound
	}

	p.Side = p.Side.Next()
	s.evictIfSideConflict(p)
	return p, nil
}

// MoveToSeat 将桨手移动到指定座位
//  1. 目标座位为空：直接放入（如果原来在船上则离开原座位）
//  2. 目标座位有人且桨手原来在船上：对方能坐原座位则交换，否则对方被挤出船
//  3. 目标座位有人且桨手原来不在船上：替换对方
func (s *Session) MoveToSeat(id string, pos SeatPosition) error {
	if !pos.Valid() {
		return fmt.Errorf("%w: 座位 %s 不存在", ErrInvalidSeatConfiguration, pos)
	}
	p := s.FindPaddler(id)
	if p == nil {
		return ErrPaddlerNotFound
	}
	if !p.CanSit(pos.Side) {
		return ErrSideNotAllowed
	}
	if s.Pins.Has(pos) {
		return ErrSeatPinned
	}

	origin, fromBoat := s.Boat.SeatOf(id)
	if fromBoat && origin == pos {
		return nil
	}
	if fromBoat && s.Pins.Has(origin) {
		return ErrSeatPinned
	}

	existing := s.Boat.Get(pos)
	switch {
	case existing == nil:
		if fromBoat {
			s.Boat.Set(origin, nil)
		}
	case fromBoat:
		if existing.CanSit(origin.Side) {
			s.Boat.Set(origin, existing)
		} else {
			s.Boat.Set(origin, nil)
		}
	}
	s.Boat.Set(pos, p)
	return nil
}

// ClearBoat 清空船上座位，保留名单
func (s *Session) ClearBoat() {
	s.Boat.Clear()
	s.Pins = make(Pins)
}

func (s *Session) ClearRoster() {
	s.ClearBoat()
	s.Paddlers = make([]*Paddler, 0)
}

// ApplyBoat 用一个新的座位表整体替换当前座位表
// 座位上的桨手会重新指向名单中的记录，已经不在名单中的桨手会被丢弃
// 只有座位上的桨手没有变化时才保留固定状态
func (s *Session) ApplyBoat(b Boat) {
	var next Boat
	for i := 0; i < Rows; i++ {
		for j := 0; j < Sides; j++ {
			if b[i][j] == nil {
				continue
			}
			if p := s.FindPaddler(b[i][j].ID); p != nil {
				next[i][j] = p
			}
		}
	}

	for pos := range s.Pins {
		prev, cur := s.Boat.Get(pos), next.Get(pos)
		if prev == nil || cur == nil || prev.ID != cur.ID {
			delete(s.Pins, pos)
		}
	}
	s.Boat = next
	s.PruneDanglingPins()
}

// PruneDanglingPins 取消固定那些已经没有桨手的座位
func (s *Session) PruneDanglingPins() {
	for pos := range s.Pins {
		occupant := s.Boat.Get(pos)
		if occupant == nil || s.FindPaddler(occupant.ID) == nil {
			delete(s.Pins, pos)
		}
	}
}

// Unseated 返回不在船上的桨手
func (s *Session) Unseated() []*Paddler {
	res := make([]*Paddler, 0)
	for _, p := range s.Paddlers {
		if !s.IsSeated(p.ID) {
			res = append(res, p)
		}
	}
	return res
}
