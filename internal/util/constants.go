package util

// 提交原因，用于日志与指标
const (
	SubmitReasonManual     = "manual"
	SubmitReasonTimeExpiry = "time_expired"
	SubmitReasonViolation  = "disqualified"
	SubmitReasonRoundEnded = "round_ended"
	SubmitReasonOverride   = "admin_override"
)
