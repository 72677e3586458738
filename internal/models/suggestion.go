package models

// SuggestionReason explains why a section was suggested.
type SuggestionReason string

const (
	ReasonRetake   SuggestionReason = "RETAKE"
	ReasonRequired SuggestionReason = "REQUIRED"
	ReasonOptional SuggestionReason = "OPTIONAL"
)

// SuggestedSection is one recommended section.
type SuggestedSection struct {
	SectionID   string           `json:"section_id"`
	SectionName string           `json:"section_name"`
	CourseID    string           `json:"course_id"`
	CourseCode  string           `json:"course_code"`
	CourseName  string           `json:"course_name"`
	Credits     int              `json:"credits"`
	Semester    int              `json:"semester"`
	SeatsLeft   int              `json:"seats_left"`
	Reason      SuggestionReason `json:"reason"`
}

// WarningType identifies a recommendation warning.
type WarningType string

const (
	WarningLowGPA         WarningType = "LOW_GPA"
	WarningManyRetakes    WarningType = "MANY_RETAKES"
	WarningBehindSchedule WarningType = "BEHIND_SCHEDULE"
)

// SuggestionWarning is an advisory attached to a suggestion.
type SuggestionWarning struct {
	Type    WarningType `json:"type"`
	Message string      `json:"message"`
}

// Suggestion is the ranked recommendation for a student's current registration.
type Suggestion struct {
	StudentID        string              `json:"student_id"`
	CurrentSemester  int                 `json:"current_semester"`
	MaxCredits       int                 `json:"max_credits"`
	CurrentCredits   int                 `json:"current_credits"`
	RemainingCredits int                 `json:"remaining_credits"`
	Priority         []SuggestedSection  `json:"priority"`
	Optional         []SuggestedSection  `json:"optional"`
	Warnings         []SuggestionWarning `json:"warnings"`
}

// HasSuggestions reports whether any section was suggested.
func (s Suggestion) HasSuggestions() bool {
	return len(s.Priority) > 0 || len(s.Optional) > 0
}

// HasWarnings reports whether any warning was raised.
func (s Suggestion) HasWarnings() bool {
	return len(s.Warnings) > 0
}

// Warning returns the warning of the given type.
func (s Suggestion) Warning(t WarningType) (SuggestionWarning, bool) {
	for _, w := range s.Warnings {
		if w.Type == t {
			return w, true
		}
	}
	return SuggestionWarning{}, false
}

// TotalSuggestedCredits sums credits across both lists.
func (s Suggestion) TotalSuggestedCredits() int {
	total := 0
	for _, list := range [][]SuggestedSection{s.Priority, s.Optional} {
		for _, item := range list {
			total += item.Credits
		}
	}
	return total
}

// CanAddMore reports whether the student has credits left.
func (s Suggestion) CanAddMore() bool {
	return s.RemainingCredits > 0
}
