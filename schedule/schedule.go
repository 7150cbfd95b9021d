// Package schedule models per-user class schedules and decides which class
// is currently active. Matching is pure: no clocks are read here, callers
// pass the current time explicitly.
package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/absenlab/absen/errors"
)

// MatchWindow is how long after its start time a class is considered active
// for attendance purposes. An entry matches in [Start, Start+MatchWindow).
const MatchWindow = 15 * time.Minute

// MinuteOfDay is a wall-clock time with minute precision, counted from
// midnight. Entries never span midnight.
type MinuteOfDay int

// Hour returns the hour component (0-23).
func (m MinuteOfDay) Hour() int { return int(m) / 60 }

// Minute returns the minute component (0-59).
func (m MinuteOfDay) Minute() int { return int(m) % 60 }

func (m MinuteOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", m.Hour(), m.Minute())
}

// ParseMinute parses a "HH:MM" wall-clock string.
func ParseMinute(s string) (MinuteOfDay, error) {
	var h, min int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d:%d", &h, &min); err != nil {
		return 0, errors.NewConfigurationError("invalid time %q: want HH:MM", s)
	}
	if h < 0 || h > 23 || min < 0 || min > 59 {
		return 0, errors.NewConfigurationError("time %q out of range", s)
	}
	return MinuteOfDay(h*60 + min), nil
}

// minuteOf truncates a timestamp to its minute-of-day in local wall-clock.
func minuteOf(t time.Time) MinuteOfDay {
	return MinuteOfDay(t.Hour()*60 + t.Minute())
}

// dayNames maps schedule day labels to weekdays. The portal community writes
// schedules with Indonesian day names; English is accepted as well.
var dayNames = map[string]time.Weekday{
	"senin":  time.Monday,
	"selasa": time.Tuesday,
	"rabu":   time.Wednesday,
	"kamis":  time.Thursday,
	"jumat":  time.Friday,
	"sabtu":  time.Saturday,
	"minggu": time.Sunday,

	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sunday":    time.Sunday,
}

// indonesianNames is the canonical rendering used in user-facing output.
var indonesianNames = map[time.Weekday]string{
	time.Monday:    "Senin",
	time.Tuesday:   "Selasa",
	time.Wednesday: "Rabu",
	time.Thursday:  "Kamis",
	time.Friday:    "Jumat",
	time.Saturday:  "Sabtu",
	time.Sunday:    "Minggu",
}

// ParseDay parses a day-of-week label (Indonesian or English, any case).
func ParseDay(s string) (time.Weekday, error) {
	d, ok := dayNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, errors.NewConfigurationError("unknown day %q", s)
	}
	return d, nil
}

// DayName renders a weekday the way schedules are written (Indonesian).
func DayName(d time.Weekday) string {
	return indonesianNames[d]
}

// Entry is one class meeting in a weekly schedule.
type Entry struct {
	Course string
	Day    time.Weekday
	Start  MinuteOfDay
	End    MinuteOfDay
}

// Validate rejects malformed entries. This runs at ingestion time; matching
// assumes well-formed input.
func (e Entry) Validate() error {
	if strings.TrimSpace(e.Course) == "" {
		return errors.NewConfigurationError("entry missing course name")
	}
	if e.Start >= e.End {
		return errors.NewConfigurationError(
			"course %q: start %s must be before end %s", e.Course, e.Start, e.End)
	}
	return nil
}

func (e Entry) String() string {
	return fmt.Sprintf("%s %s %s - %s", e.Course, DayName(e.Day), e.Start, e.End)
}

// Set is one user's ordered weekly schedule. Order matters: when entries
// overlap, the first match in schedule order wins.
type Set []Entry

// Validate checks every entry; the row index is included so users can fix
// their CSV.
func (s Set) Validate() error {
	for i, e := range s {
		if err := e.Validate(); err != nil {
			return errors.Wrapf(err, "entry %d", i+1)
		}
	}
	return nil
}
