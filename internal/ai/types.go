package ai

// AuditInput feeds the audit prompt.
type AuditInput struct {
	SituationDetails string
	Lang             string // "id" or "en"
	IsPremiumUser    bool
}

// AuditOutput is the structured diagnosis the model returns.
type AuditOutput struct {
	DiagnosisTitle     string   `json:"diagnosis_title"`
	BrutalDiagnosis    string   `json:"brutal_diagnosis"`
	OpportunityCostIDR int64    `json:"opportunity_cost_idr"`
	GrowthLossPct      float64  `json:"growth_loss_percentage"`
	DarkAnalogy        string   `json:"dark_analogy"`
	StrategicCommands  []string `json:"strategic_commands"`
	Type               string   `json:"type"`
}

// VerifyExecutionInput feeds the execution-integrity prompt.
type VerifyExecutionInput struct {
	TaskTitle      string
	ExecutionProof string
	UserName       string
}

// VerifyExecutionOutput is the model's judgement of an execution claim.
type VerifyExecutionOutput struct {
	IntegrityScore    int    `json:"integrity_score"`
	IsValid           bool   `json:"is_valid"`
	Analysis          string `json:"analysis"`
	ResolutionMessage string `json:"resolution_message"`
}

// AcknowledgeInput feeds the completion-acknowledgement prompt.
type AcknowledgeInput struct {
	TaskTitle string
	UserName  string
}

// AcknowledgeOutput carries the cold acknowledgement line.
type AcknowledgeOutput struct {
	Message string `json:"message"`
}

// FailedTask is one failure fed into the weekly roast.
type FailedTask struct {
	Title     string
	Excuse    string
	Diagnosis string
}

// WeeklyRoastInput feeds the weekly roast prompt.
type WeeklyRoastInput struct {
	UserName          string
	TotalLossThisWeek int64
	FailedTasks       []FailedTask
	CurrentRole       string
}

// WeeklyRoastOutput is the structured weekly failure report.
type WeeklyRoastOutput struct {
	Subject        string `json:"subject"`
	Opening        string `json:"opening"`
	MathAnalysis   string `json:"mathAnalysis"`
	TheRoast       string `json:"theRoast"`
	ClosingCommand string `json:"closingCommand"`
}
