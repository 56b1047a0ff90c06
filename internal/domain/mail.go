package domain

type MailMessage struct {
	Type string `json:"type"`
	To   string `json:"to"`
	Data any    `json:"data"`
}

const MailTypeRacePlansReady = "race_plans_ready"

// RacePlansReadyMailData 为比赛方案生成完成后的通知邮件内容
type RacePlansReadyMailData struct {
	SessionID   string  `json:"sessionID"`
	SessionName string  `json:"sessionName"`
	JobID       string  `json:"jobID"`
	PlanCount   int     `json:"planCount"`
	BestScore   float64 `json:"bestScore"`
	NumRaces    int     `json:"numRaces"`
	Sampled     bool    `json:"sampled"`

	AttachmentName string `json:"attachmentName"`
	Attachment     []byte `json:"attachment"` // 比赛方案 CSV
}
