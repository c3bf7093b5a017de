// Package proctor 监考违规升级策略：无状态，只依据累计违规次数判定
package proctor

type Decision string

const (
	DecisionNone       Decision = "none"
	DecisionWarn1      Decision = "warn1"
	DecisionWarn2Final Decision = "warn2_final"
	DecisionDisqualify Decision = "disqualify"
)

// DisqualifyThreshold 第几次违规时取消资格并自动交卷
const DisqualifyThreshold = 3

var escalation = [DisqualifyThreshold + 1]Decision{
	DecisionNone,
	DecisionWarn1,
	DecisionWarn2Final,
	DecisionDisqualify,
}

var warnings = map[Decision]string{
	DecisionWarn1:      "Violation recorded. Further attempts will eliminate you.",
	DecisionWarn2Final: "Final warning. One more violation will eliminate you and submit your test.",
	DecisionDisqualify: "You have been disqualified. Your test has been submitted.",
}

// Decide 根据本次上报后的累计违规次数给出处理结果
func Decide(count int) Decision {
	if count <= 0 {
		return DecisionNone
	}
	if count >= DisqualifyThreshold {
		return DecisionDisqualify
	}
	return escalation[count]
}

// Warning 返回展示给参赛者的提示语
func Warning(d Decision) string {
	return warnings[d]
}
