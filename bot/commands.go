package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/absenlab/absen/schedule"
	"github.com/absenlab/absen/state"
)

const helpText = `I keep your attendance submitted. Commands:
/mystatus - what happened today
/pause - stop submitting until /resume
/pauseonce - skip just the next class
/resume - start submitting again
/setup - enroll a new account
/cancel - abort a running setup`

func (b *Bot) registerBuiltins() {
	b.register("/start", b.cmdHelp)
	b.register("/help", b.cmdHelp)
	b.register("/mystatus", b.cmdMyStatus)
	b.register("/pause", b.cmdPause)
	b.register("/pauseonce", b.cmdPauseOnce)
	b.register("/resume", b.cmdResume)
	b.register("/setup", b.cmdSetup)
	b.register("/cancel", b.cmdCancel)
}

func (b *Bot) cmdHelp(ctx context.Context, req Request) (string, error) {
	return helpText, nil
}

func (b *Bot) cmdMyStatus(ctx context.Context, req Request) (string, error) {
	if req.Username == "" {
		return "This chat isn't linked to an account yet. Use /setup first.", nil
	}

	var lines []string

	mode, course, paused, err := b.store.PauseState(ctx, req.Username)
	if err != nil {
		return "", err
	}
	switch {
	case paused && mode == state.PauseIndefinite:
		lines = append(lines, "⏸ Paused until you send /resume.")
	case paused && mode == state.PauseOnce:
		lines = append(lines, fmt.Sprintf("⏸ %s will be skipped once.", course))
	}

	entries, err := b.store.TodayLog(ctx, req.Username, time.Now())
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		lines = append(lines, "Nothing submitted yet today.")
	} else {
		lines = append(lines, "Today:")
		for _, e := range entries {
			mark := "✅"
			if e.Outcome == state.OutcomeAlreadySubmitted {
				mark = "ℹ️"
			}
			lines = append(lines, fmt.Sprintf("%s %s", mark, e.Course))
		}
	}
	return strings.Join(lines, "\n"), nil
}

func (b *Bot) cmdPause(ctx context.Context, req Request) (string, error) {
	if req.Username == "" {
		return "This chat isn't linked to an account yet. Use /setup first.", nil
	}
	if err := b.store.Pause(ctx, req.Username); err != nil {
		return "", err
	}
	return "Paused. I won't submit attendance until you send /resume.", nil
}

func (b *Bot) cmdPauseOnce(ctx context.Context, req Request) (string, error) {
	if req.Username == "" {
		return "This chat isn't linked to an account yet. Use /setup first.", nil
	}
	set, ok := b.schedules(req.Username)
	if !ok {
		return "I don't have a schedule on file for you yet.", nil
	}
	entry, ok := schedule.NextEntry(set, b.now())
	if !ok {
		return "No upcoming class today, nothing to skip.", nil
	}
	if err := b.store.PauseNext(ctx, req.Username, entry.Course); err != nil {
		return "", err
	}
	return fmt.Sprintf("Got it, %s will be skipped once and then I'll resume on my own.", entry.Course), nil
}

func (b *Bot) cmdResume(ctx context.Context, req Request) (string, error) {
	if req.Username == "" {
		return "This chat isn't linked to an account yet. Use /setup first.", nil
	}
	if err := b.store.Resume(ctx, req.Username); err != nil {
		return "", err
	}
	return "Resumed. Attendance submission is back on.", nil
}

func (b *Bot) cmdSetup(ctx context.Context, req Request) (string, error) {
	return b.startSetup(req.ChatID), nil
}

func (b *Bot) cmdCancel(ctx context.Context, req Request) (string, error) {
	if b.cancelSetup(req.ChatID) {
		return "Setup cancelled.", nil
	}
	return "Nothing to cancel.", nil
}
