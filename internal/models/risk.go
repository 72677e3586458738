package models

// RiskLevel classifies a composite risk score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// RiskLevels lists levels from most to least severe.
var RiskLevels = []RiskLevel{RiskCritical, RiskHigh, RiskMedium, RiskLow}

var riskLevelLabels = map[RiskLevel]string{
	RiskLow:      "Low risk",
	RiskMedium:   "Medium risk",
	RiskHigh:     "High risk",
	RiskCritical: "Critical risk",
}

// Label returns the display label.
func (l RiskLevel) Label() string {
	if label, ok := riskLevelLabels[l]; ok {
		return label
	}
	return string(l)
}

// RiskFlag marks an individual concern in a risk profile.
type RiskFlag string

const (
	FlagDecliningPerformance RiskFlag = "DECLINING_PERFORMANCE"
	FlagAttendanceWarning    RiskFlag = "ATTENDANCE_WARNING"
	FlagMultipleRetakes      RiskFlag = "MULTIPLE_RETAKES"
	FlagGraduationDelayRisk  RiskFlag = "GRADUATION_DELAY_RISK"
	FlagWorkloadImbalance    RiskFlag = "WORKLOAD_IMBALANCE"
)

// RiskFactor is one weighted component of the composite score.
type RiskFactor struct {
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
	Weight float64 `json:"weight"`
}

// RiskProfile is the result of scoring one student.
type RiskProfile struct {
	StudentID       string       `json:"student_id"`
	Score           int          `json:"score"`
	Level           RiskLevel    `json:"level"`
	LevelLabel      string       `json:"level_label"`
	Factors         []RiskFactor `json:"factors"`
	Flags           []RiskFlag   `json:"flags"`
	Recommendations []string     `json:"recommendations"`
}

// Factor returns the named factor value.
func (p RiskProfile) Factor(name string) (float64, bool) {
	for _, f := range p.Factors {
		if f.Name == name {
			return f.Value, true
		}
	}
	return 0, false
}

// HasFlag reports whether flag was raised.
func (p RiskProfile) HasFlag(flag RiskFlag) bool {
	for _, f := range p.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// IsHighRisk reports HIGH or CRITICAL.
func (p RiskProfile) IsHighRisk() bool {
	return p.Level == RiskHigh || p.Level == RiskCritical
}

// IsCritical reports CRITICAL.
func (p RiskProfile) IsCritical() bool {
	return p.Level == RiskCritical
}

// AdviseeRisk is one row of the advisor risk overview.
type AdviseeRisk struct {
	Student             Student       `json:"student"`
	Risk                RiskProfile   `json:"risk"`
	PendingRegistration *Registration `json:"pending_registration,omitempty"`
	NeedsAttention      bool          `json:"needs_attention"`
}

// AdviseeRiskStats summarises the overview.
type AdviseeRiskStats struct {
	Total          int `json:"total"`
	Pending        int `json:"pending"`
	HighRisk       int `json:"high_risk"`
	NeedsAttention int `json:"needs_attention"`
}

// AdviseeRiskOverview is the advisor dashboard payload.
type AdviseeRiskOverview struct {
	AdvisorID string                      `json:"advisor_id"`
	Advisees  []AdviseeRisk               `json:"advisees"`
	ByLevel   map[RiskLevel][]AdviseeRisk `json:"by_level"`
	Stats     AdviseeRiskStats            `json:"stats"`
}
