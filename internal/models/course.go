package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Course is a catalogue entry with its credit weight and target semester.
type Course struct {
	ID             string  `db:"id" json:"id"`
	Code           string  `db:"code" json:"code"`
	Name           string  `db:"name" json:"name"`
	Credits        int     `db:"credits" json:"credits"`
	Semester       int     `db:"semester" json:"semester"`
	PrerequisiteID *string `db:"prerequisite_id" json:"prerequisite_id,omitempty"`
	Required       bool    `db:"is_required" json:"required"`
}

// Section is one offering of a course in a period.
type Section struct {
	ID           string  `db:"id" json:"id"`
	CourseID     string  `db:"course_id" json:"course_id"`
	PeriodID     string  `db:"period_id" json:"period_id"`
	Name         string  `db:"name" json:"name"`
	Capacity     int     `db:"capacity" json:"capacity"`
	InstructorID *string `db:"instructor_id" json:"instructor_id,omitempty"`
}

// TimeSlot is a weekly meeting of a section.
type TimeSlot struct {
	SectionID string       `db:"section_id" json:"section_id"`
	Day       time.Weekday `db:"day_of_week" json:"day"`
	Start     string       `db:"start_time" json:"start"`
	End       string       `db:"end_time" json:"end"`
}

// SectionDetail joins a section with its course, slots and current enrollment count.
type SectionDetail struct {
	Section
	Course        Course     `db:"-" json:"course"`
	TimeSlots     []TimeSlot `db:"-" json:"time_slots"`
	EnrolledCount int        `db:"enrolled_count" json:"enrolled_count"`
}

// HasSeat reports whether the section still has capacity.
func (d SectionDetail) HasSeat() bool {
	return d.EnrolledCount < d.Capacity
}

// Overlaps reports a same-day overlap using half-open intervals, so back-to-back slots do not conflict.
func (t TimeSlot) Overlaps(other TimeSlot) bool {
	if t.Day != other.Day {
		return false
	}
	aStart, aEnd := ClockMinutes(t.Start), ClockMinutes(t.End)
	bStart, bEnd := ClockMinutes(other.Start), ClockMinutes(other.End)
	return aStart < bEnd && aEnd > bStart
}

// Label renders the slot as "MONDAY 08:00-09:40".
func (t TimeSlot) Label() string {
	return fmt.Sprintf("%s %s-%s", strings.ToUpper(t.Day.String()), clockLabel(t.Start), clockLabel(t.End))
}

// StartLabel renders the slot start as "MONDAY 08:00".
func (t TimeSlot) StartLabel() string {
	return fmt.Sprintf("%s %s", strings.ToUpper(t.Day.String()), clockLabel(t.Start))
}

// ClockMinutes converts "HH:MM" or "HH:MM:SS" into minutes after midnight. Malformed values yield -1.
func ClockMinutes(raw string) int {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) < 2 {
		return -1
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return -1
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return -1
	}
	return h*60 + m
}

func clockLabel(raw string) string {
	minutes := ClockMinutes(raw)
	if minutes < 0 {
		return raw
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
