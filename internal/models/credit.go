package models

// CreditBreakpoint grants MaxCredits to a last-term GPA at or above MinGPA.
type CreditBreakpoint struct {
	MinGPA     float64 `mapstructure:"min_gpa" json:"min_gpa"`
	MaxCredits int     `mapstructure:"max_credits" json:"max_credits"`
}

// CreditCeilingRules configures the credit ceiling step function.
type CreditCeilingRules struct {
	DefaultGPA   float64            `mapstructure:"default_gpa" json:"default_gpa"`
	FloorCredits int                `mapstructure:"floor_credits" json:"floor_credits"`
	Breakpoints  []CreditBreakpoint `mapstructure:"breakpoints" json:"breakpoints"`
}

// DefaultCreditCeilingRules is the standard ceiling table.
func DefaultCreditCeilingRules() CreditCeilingRules {
	return CreditCeilingRules{
		DefaultGPA:   3.0,
		FloorCredits: 12,
		Breakpoints: []CreditBreakpoint{
			{MinGPA: 3.0, MaxCredits: 24},
			{MinGPA: 2.5, MaxCredits: 21},
			{MinGPA: 2.0, MaxCredits: 18},
			{MinGPA: 1.5, MaxCredits: 15},
		},
	}
}
