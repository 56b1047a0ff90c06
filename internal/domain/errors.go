package domain

import "errors"

var (
	ErrValidation               = errors.New("桨手信息不合法")
	ErrPaddlerNotFound          = errors.New("桨手不存在")
	ErrSeatEmpty                = errors.New("座位上没有桨手")
	ErrSeatPinned               = errors.New("座位已被固定")
	ErrSideNotAllowed           = errors.New("桨手不能坐在这一侧")
	ErrInsufficientSeats        = errors.New("座位数量不足")
	ErrNothingToBalance         = errors.New("没有可以移动的桨手")
	ErrInsufficientRoster       = errors.New("桨手数量不足")
	ErrInvalidSeatConfiguration = errors.New("座位配置不合法")
	ErrSearchSpaceTooLarge      = errors.New("搜索空间过大")
	ErrImpossibleConstraints    = errors.New("约束条件无法满足")
	ErrNoValidResults           = errors.New("没有找到符合条件的结果")
	ErrSearchInProgress         = errors.New("该队伍正在进行搜索")
)
