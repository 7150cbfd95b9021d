package bot

import (
	"context"
	"fmt"

	"github.com/absenlab/absen/config"
)

// setupStage is where a chat's enrollment conversation stands.
type setupStage int

const (
	awaitingUsername setupStage = iota
	awaitingPassword
	awaitingSchedule
)

type setupFlow struct {
	stage    setupStage
	username string
	password string
}

func (b *Bot) setupActive(chatID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.setups[chatID]
	return ok
}

func (b *Bot) startSetup(chatID string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setups[chatID] = &setupFlow{stage: awaitingUsername}
	return "Let's enroll an account. What's the portal username? (/cancel to abort)"
}

func (b *Bot) cancelSetup(chatID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.setups[chatID]; !ok {
		return false
	}
	delete(b.setups, chatID)
	return true
}

// advanceSetup feeds one non-command message into the chat's flow and
// returns the next prompt.
func (b *Bot) advanceSetup(ctx context.Context, chatID, text string) string {
	b.mu.Lock()
	flow, ok := b.setups[chatID]
	b.mu.Unlock()
	if !ok {
		return ""
	}

	switch flow.stage {
	case awaitingUsername:
		flow.username = text
		flow.stage = awaitingPassword
		return "And the portal password?"

	case awaitingPassword:
		flow.password = text
		flow.stage = awaitingSchedule
		return "Last one: path to the schedule CSV on the server."

	case awaitingSchedule:
		user := config.UserConfig{
			Username:      flow.username,
			Password:      flow.password,
			Schedule:      text,
			NotifyChannel: "telegram",
			NotifyAddress: chatID,
		}
		b.mu.Lock()
		delete(b.setups, chatID)
		b.mu.Unlock()

		if err := config.AddUser(b.configPath, user); err != nil {
			b.log.Errorw("Failed to persist enrolled user", "user", user.Username, "error", err)
			return "I couldn't save that account. Check the daemon logs and try /setup again."
		}
		return fmt.Sprintf("Done! %s is enrolled and will be picked up on the next pass.", user.Username)
	}
	return ""
}
