package entities

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TimeOfDay is an offset from midnight, used for recurring working hours.
type TimeOfDay time.Duration

const day = TimeOfDay(24 * time.Hour)

// NewTimeOfDay builds a TimeOfDay from hours and minutes.
func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

// ParseTimeOfDay accepts "15:04" or "15:04:05".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	layout := "15:04"
	if strings.Count(s, ":") == 2 {
		layout = "15:04:05"
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return TimeOfDay(time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second), nil
}

// TimeOfDayOf returns the wall-clock offset of t in its own location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	return TimeOfDay(time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(t.Nanosecond()))
}

// On returns the instant at this time of day on the date of t, in t's location.
func (d TimeOfDay) On(t time.Time) time.Time {
	y, mo, dd := t.Date()
	return time.Date(y, mo, dd, 0, 0, 0, 0, t.Location()).Add(time.Duration(d))
}

func (d TimeOfDay) String() string {
	total := time.Duration(d)
	h := int(total / time.Hour)
	m := int((total % time.Hour) / time.Minute)
	return fmt.Sprintf("%02d:%02d", h, m)
}

// MarshalJSON encodes as "HH:MM".
func (d TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes "HH:MM" or "HH:MM:SS".
func (d *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value stores the offset as a PostgreSQL time literal.
func (d TimeOfDay) Value() (driver.Value, error) {
	total := time.Duration(d)
	return fmt.Sprintf("%02d:%02d:%02d",
		int(total/time.Hour), int((total%time.Hour)/time.Minute), int((total%time.Minute)/time.Second)), nil
}

// Scan reads a PostgreSQL time column.
func (d *TimeOfDay) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = 0
		return nil
	case string:
		parsed, err := ParseTimeOfDay(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case []byte:
		return d.Scan(string(v))
	case time.Time:
		*d = TimeOfDayOf(v)
		return nil
	default:
		return fmt.Errorf("cannot scan %T into TimeOfDay", src)
	}
}

// Schedule is a doctor's recurring weekly working window
type Schedule struct {
	ID        string       `json:"id" db:"id" goqu:"skipupdate"`
	DoctorID  string       `json:"doctor_id" db:"doctor_id"`
	DayOfWeek time.Weekday `json:"day_of_week" db:"day_of_week"`
	StartTime TimeOfDay    `json:"start_time" db:"start_time"`
	EndTime   TimeOfDay    `json:"end_time" db:"end_time"`
	CreatedAt time.Time    `json:"created_at" db:"created_at" goqu:"skipupdate"`
	UpdatedAt time.Time    `json:"updated_at" db:"updated_at"`
}

// Validate checks the schedule's own invariants.
func (s *Schedule) Validate() error {
	if s.DoctorID == "" {
		return fmt.Errorf("%w: doctor_id is required", ErrInvalidSchedule)
	}
	if s.DayOfWeek < time.Sunday || s.DayOfWeek > time.Saturday {
		return fmt.Errorf("%w: day_of_week %d out of range", ErrInvalidSchedule, s.DayOfWeek)
	}
	if s.StartTime < 0 || s.EndTime > day {
		return fmt.Errorf("%w: times must be within a single day", ErrInvalidSchedule)
	}
	if s.StartTime >= s.EndTime {
		return fmt.Errorf("%w: start time %s must be before end time %s", ErrInvalidSchedule, s.StartTime, s.EndTime)
	}
	return nil
}

// Window returns the working window described by the schedule.
func (s *Schedule) Window() WorkingWindow {
	return WorkingWindow{
		DoctorID: s.DoctorID,
		Weekday:  s.DayOfWeek,
		Start:    s.StartTime,
		End:      s.EndTime,
	}
}

// WorkingWindow is a doctor's [Start, End) time of day on a weekday
type WorkingWindow struct {
	DoctorID string       `json:"doctor_id"`
	Weekday  time.Weekday `json:"weekday"`
	Start    TimeOfDay    `json:"start"`
	End      TimeOfDay    `json:"end"`
}

// Contains reports whether t falls on the window's weekday and inside
// [Start, End). t is interpreted in its own location.
func (w WorkingWindow) Contains(t time.Time) bool {
	if t.Weekday() != w.Weekday {
		return false
	}
	tod := TimeOfDayOf(t)
	return tod >= w.Start && tod < w.End
}
