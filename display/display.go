// Package display renders CLI output tables.
package display

import (
	"fmt"
	"time"

	"github.com/pterm/pterm"

	"github.com/absenlab/absen/config"
	"github.com/absenlab/absen/schedule"
	"github.com/absenlab/absen/workflow"
)

// RenderResults prints a pass summary table.
func RenderResults(results []workflow.Result) error {
	data := pterm.TableData{{"User", "Course", "Outcome", "Attempts", "Duration", "Error"}}
	for _, res := range results {
		errText := ""
		if res.Err != nil {
			errText = res.Err.Error()
		}
		course := res.Course
		if course == "" {
			course = "-"
		}
		data = append(data, []string{
			res.UserID,
			course,
			outcomeLabel(res.Outcome),
			fmt.Sprintf("%d", res.Attempts),
			res.Duration.Round(time.Millisecond).String(),
			errText,
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func outcomeLabel(o workflow.Outcome) string {
	switch o {
	case workflow.OutcomeSuccess:
		return pterm.Green(o.String())
	case workflow.OutcomeTransientFailure, workflow.OutcomePermanentFailure:
		return pterm.Red(o.String())
	case workflow.OutcomeSkipped:
		return pterm.Yellow(o.String())
	default:
		return o.String()
	}
}

// RenderUsers prints the configured users. Passwords stay out of it.
func RenderUsers(users []config.UserConfig) error {
	data := pterm.TableData{{"Username", "Schedule", "Notify"}}
	for _, u := range users {
		notifyVia := "-"
		if u.NotifyChannel != "" {
			notifyVia = fmt.Sprintf("%s (%s)", u.NotifyChannel, u.NotifyAddress)
		}
		data = append(data, []string{u.Username, u.Schedule, notifyVia})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

// RenderSchedule prints one user's timetable.
func RenderSchedule(set schedule.Set) error {
	data := pterm.TableData{{"Course", "Day", "Start", "End"}}
	for _, e := range set {
		data = append(data, []string{
			e.Course,
			schedule.DayName(e.Day),
			e.Start.String(),
			e.End.String(),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
