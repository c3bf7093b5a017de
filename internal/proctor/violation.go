package proctor

import (
	"fmt"
	"proctor_backend/internal/util"
	"strings"
)

// ViolationType 浏览器端监考上报的违规类型
type ViolationType string

const (
	FullscreenExit     ViolationType = "fullscreen_exit"
	TabSwitch          ViolationType = "tab_switch"
	BackButton         ViolationType = "back_button"
	Refresh            ViolationType = "refresh"
	RefreshAttempt     ViolationType = "refresh_attempt"
	AltTab             ViolationType = "alt_tab"
	F11Fullscreen      ViolationType = "f11_fullscreen"
	CtrlT              ViolationType = "ctrl_t"
	RestrictedShortcut ViolationType = "restricted_shortcut"
)

// tally 决定一次上报额外累加到哪个分项计数，升级判定只看总次数
type tally int

const (
	tallyNone tally = iota
	tallyTabSwitch
	tallyRefresh
)

var violationTallies = map[ViolationType]tally{
	FullscreenExit:     tallyNone,
	TabSwitch:          tallyTabSwitch,
	BackButton:         tallyNone,
	Refresh:            tallyRefresh,
	RefreshAttempt:     tallyRefresh,
	AltTab:             tallyNone,
	F11Fullscreen:      tallyNone,
	CtrlT:              tallyNone,
	RestrictedShortcut: tallyNone,
}

func ParseViolationType(s string) (ViolationType, error) {
	t := ViolationType(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := violationTallies[t]; !ok {
		return "", fmt.Errorf("unknown violation type %q: %w", s, util.ErrInvalidArgument)
	}
	return t, nil
}

func (t ViolationType) CountsAsTabSwitch() bool {
	return violationTallies[t] == tallyTabSwitch
}

func (t ViolationType) CountsAsRefresh() bool {
	return violationTallies[t] == tallyRefresh
}

// ViolationTypes 返回全部可识别的类型
func ViolationTypes() []ViolationType {
	return []ViolationType{
		FullscreenExit, TabSwitch, BackButton, Refresh, RefreshAttempt,
		AltTab, F11Fullscreen, CtrlT, RestrictedShortcut,
	}
}
