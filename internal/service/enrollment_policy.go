package service

import (
	"github.com/noah-isme/siakad-krs/internal/models"
	appErrors "github.com/noah-isme/siakad-krs/pkg/errors"
)

// Names of the enrollment checks, in evaluation order.
const (
	CheckEnrollmentOpen     = "enrollment_open"
	CheckEditable           = "editable"
	CheckCapacity           = "capacity"
	CheckNoDuplicate        = "no_duplicate"
	CheckCreditCeiling      = "credit_ceiling"
	CheckNoScheduleConflict = "no_schedule_conflict"
	CheckPrerequisite       = "prerequisite"
)

// EnrollmentFacts is everything an add decision depends on, captured under the registration lock.
type EnrollmentFacts struct {
	EnrollmentOpen     bool
	LateEnrollmentOpen bool
	Registration       models.Registration
	Lines              []models.RegistrationLineDetail
	Section            models.SectionDetail
	Prerequisite       *models.Course
	MaxCredits         int
	Passed             map[string]struct{}
}

// CurrentCredits sums the credits already in the registration.
func (f EnrollmentFacts) CurrentCredits() int {
	return models.TotalCredits(f.Lines)
}

type enrollmentCheck struct {
	name  string
	check func(EnrollmentFacts) *appErrors.Error
}

var enrollmentChecks = []enrollmentCheck{
	{CheckEnrollmentOpen, checkEnrollmentOpen},
	{CheckEditable, checkEditable},
	{CheckCapacity, checkCapacity},
	{CheckNoDuplicate, checkNoDuplicate},
	{CheckCreditCeiling, checkCreditCeiling},
	{CheckNoScheduleConflict, checkNoScheduleConflict},
	{CheckPrerequisite, checkPrerequisite},
}

// PolicyResult is the outcome of an enrollment evaluation. Check names the failed check.
type PolicyResult struct {
	Check string
	Err   *appErrors.Error
}

// Allowed reports whether every check passed.
func (r PolicyResult) Allowed() bool {
	return r.Err == nil
}

// AsError returns the violation as an error, or nil when allowed.
func (r PolicyResult) AsError() error {
	if r.Err == nil {
		return nil
	}
	return r.Err
}

// EnrollmentCheckNames lists the checks in evaluation order.
func EnrollmentCheckNames() []string {
	names := make([]string, len(enrollmentChecks))
	for i, c := range enrollmentChecks {
		names[i] = c.name
	}
	return names
}

// EvaluateEnrollment runs the checks in order and stops at the first violation.
func EvaluateEnrollment(facts EnrollmentFacts) PolicyResult {
	for _, c := range enrollmentChecks {
		if err := c.check(facts); err != nil {
			return PolicyResult{Check: c.name, Err: err}
		}
	}
	return PolicyResult{}
}

// ValidateSubmission rejects a registration without lines.
func ValidateSubmission(lines []models.RegistrationLineDetail) error {
	if len(lines) == 0 {
		return appErrors.RegistrationEmpty()
	}
	return nil
}

// EnrollmentStatusSummary renders the registration situation of a student. A nil registration reads as draft.
func EnrollmentStatusSummary(reg *models.Registration, lines []models.RegistrationLineDetail, maxCredits int, snap *CalendarSnapshot) models.EnrollmentStatus {
	status := models.RegistrationDraft
	if reg != nil {
		status = reg.Status
	}
	current := models.TotalCredits(lines)
	remaining := maxCredits - current
	if remaining < 0 {
		remaining = 0
	}
	return models.EnrollmentStatus{
		RegistrationStatus:        status,
		CurrentCredits:            current,
		MaxCredits:                maxCredits,
		RemainingCredits:          remaining,
		CanAddMore:                current < maxCredits,
		EnrollmentOpen:            snap.IsEnrollmentOpen(),
		LateEnrollmentOpen:        snap.IsLateEnrollmentOpen(),
		DaysUntilEnrollmentCloses: snap.DaysUntilEnrollmentCloses(),
		Phase:                     snap.CurrentPhase(),
	}
}

func checkEnrollmentOpen(f EnrollmentFacts) *appErrors.Error {
	if f.EnrollmentOpen || f.LateEnrollmentOpen {
		return nil
	}
	return appErrors.EnrollmentClosed()
}

func checkEditable(f EnrollmentFacts) *appErrors.Error {
	if f.Registration.Status.Editable() {
		return nil
	}
	return appErrors.RegistrationLocked(string(f.Registration.Status))
}

func checkCapacity(f EnrollmentFacts) *appErrors.Error {
	if f.Section.HasSeat() {
		return nil
	}
	return appErrors.ClassFull(f.Section.Course.Name, f.Section.Capacity)
}

func checkNoDuplicate(f EnrollmentFacts) *appErrors.Error {
	for _, line := range f.Lines {
		if line.CourseID == f.Section.CourseID || line.Section.Course.ID == f.Section.CourseID {
			return appErrors.DuplicateCourse(f.Section.Course.Name)
		}
	}
	return nil
}

func checkCreditCeiling(f EnrollmentFacts) *appErrors.Error {
	current, adding := f.CurrentCredits(), f.Section.Course.Credits
	if current+adding > f.MaxCredits {
		return appErrors.SksLimitExceeded(current, f.MaxCredits, adding)
	}
	return nil
}

func checkNoScheduleConflict(f EnrollmentFacts) *appErrors.Error {
	for _, slot := range f.Section.TimeSlots {
		for _, line := range f.Lines {
			for _, existing := range line.Section.TimeSlots {
				if slot.Overlaps(existing) {
					return appErrors.ScheduleConflict(f.Section.Course.Name, line.Section.Course.Name, slot.StartLabel())
				}
			}
		}
	}
	return nil
}

func checkPrerequisite(f EnrollmentFacts) *appErrors.Error {
	id := f.Section.Course.PrerequisiteID
	if id == nil || *id == "" {
		return nil
	}
	if _, ok := f.Passed[*id]; ok {
		return nil
	}
	name := *id
	if f.Prerequisite != nil && f.Prerequisite.Name != "" {
		name = f.Prerequisite.Name
	}
	return appErrors.PrerequisiteNotMet(f.Section.Course.Name, name)
}
