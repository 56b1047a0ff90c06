package domain

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
	SideBoth  Side = "both" // 左右两边都可以划
)

type Gender string

const (
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
)

type Paddler struct {
	ID        string  `json:"id"`
	Name      string  `json:"name" validate:"required"`
	Weight    float64 `json:"weight" validate:"gt=0,lte=300"`
	Side      Side    `json:"side" validate:"oneof=left right both"`
	Gender    Gender  `json:"gender" validate:"oneof=M F"`
	TTResults float64 `json:"ttResults,omitempty" validate:"gte=0"` // 计时赛成绩，只作为优化目标使用
}

var paddlerValidate = validator.New(validator.WithRequiredStructEnabled())

func (p *Paddler) Validate() error {
	if err := paddlerValidate.Struct(p); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return nil
}

// CanSit 判断桨手是否可以坐在 side 一侧
func (p *Paddler) CanSit(side int) bool {
	switch p.Side {
	case SideBoth:
		return true
	case SideLeft:
		return side == SeatLeft
	case SideRight:
		return side == SeatRight
	}
	return false
}

// Next 按 left -> right -> both -> left 的顺序轮换
func (s Side) Next() Side {
	switch s {
	case SideLeft:
		return SideRight
	case SideRight:
		return SideBoth
	default:
		return SideLeft
	}
}
