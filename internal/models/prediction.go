package models

// SensorPrediction is the demo forecast contract for one sensor: bounded
// risk, nullable time-to-threshold, suggestion list. The arithmetic behind
// it is illustrative only.
type SensorPrediction struct {
	MachineID       string   `json:"machine_id"`
	SensorType      string   `json:"sensor_type"`
	CurrentValue    float64  `json:"current_value"`
	FutureValue     float64  `json:"future_value"`
	TimeToThreshold *int     `json:"time_to_threshold"`
	RiskProbability int      `json:"risk_probability"`
	Message         string   `json:"prediction"`
	Suggestions     []string `json:"suggestions"`
	WillHaveIssue   bool     `json:"will_have_issue"`
}

type MachineForecast struct {
	MachineName     string             `json:"machine_name"`
	MachineStatus   MachineStatus      `json:"machine_status"`
	Sensors         []SensorPrediction `json:"sensors"`
	HasFutureIssues bool               `json:"has_future_issues"`
	SoonestIssue    *int               `json:"soonest_issue"`
	Message         string             `json:"message"`
}

// PauseAnalysis is the response of the workers analyze-pause endpoint.
type PauseAnalysis struct {
	IsSafe                bool   `json:"is_safe"`
	RiskProbability       int    `json:"risk_probability"`
	EstimatedIssueTime    string `json:"estimated_issue_time,omitempty"`
	RecommendedReturnTime string `json:"recommended_return_time,omitempty"`
}
