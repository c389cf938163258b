package botapp

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	tginfra "github.com/Monu5641000/Telegram-bot/internal/infra/telegram"
	pgrepo "github.com/Monu5641000/Telegram-bot/internal/repo/postgres"
	redrepo "github.com/Monu5641000/Telegram-bot/internal/repo/redis"
	"github.com/Monu5641000/Telegram-bot/internal/services/cursor"
	planssvc "github.com/Monu5641000/Telegram-bot/internal/services/plans"
)

const (
	noContentText      = "No content is available right now. Please check back later."
	expiredAlertText   = "Your subscription has expired. Please renew to continue."
	demoUsedAlertText  = "You have already used the demo plan. Pick a paid plan to continue."
	demoActivatedText  = "Demo activated! Enjoy your preview."
	loopedText         = "Playlist ended. Restarting from the beginning."
	selectPlanText     = "Please select a plan first. Send /start to see the options."
	startFirstText     = "Please send /start first."
	uploadDisabledText = "Screenshot uploads are temporarily unavailable. Please try again later."
)

func (a *App) handleCommand(ctx context.Context, update tginfra.CommandUpdate) error {
	switch strings.ToLower(strings.TrimSpace(update.Command)) {
	case "start":
		return a.handleStart(ctx, update)
	default:
		return nil
	}
}

func (a *App) handleStart(ctx context.Context, update tginfra.CommandUpdate) error {
	user, err := a.users.GetOrCreate(ctx, update.UserID, a.cfg.Content.StartRef)
	if err != nil {
		return err
	}

	access, err := a.ledger.CheckAccess(ctx, user.UserID)
	if err != nil {
		return err
	}

	if !access.Active {
		return a.sendPlanMenu(ctx, update.ChatID, user)
	}

	delivery, err := a.engine.DeliverCurrent(ctx, user.UserID, user.Cursor)
	if err != nil {
		if errors.Is(err, cursor.ErrNoContent) {
			return a.chat.SendText(ctx, update.ChatID, noContentText)
		}
		return err
	}

	a.withdrawDelivered(ctx, user, delivery.Handle)

	a.logger.Debug("content resumed",
		zap.Int64("user_id", user.UserID),
		zap.Int64("ref", delivery.Ref))
	return nil
}

func (a *App) handleCallback(ctx context.Context, update tginfra.CallbackUpdate) error {
	data := strings.TrimSpace(update.Data)
	switch {
	case strings.HasPrefix(data, "plan_"):
		return a.handlePlanPick(ctx, update, strings.TrimPrefix(data, "plan_"))
	case data == "nav_next":
		return a.handleNavigation(ctx, update, cursor.Next)
	case data == "nav_prev":
		return a.handleNavigation(ctx, update, cursor.Prev)
	default:
		return a.chat.AnswerCallback(ctx, update.CallbackID, "Unknown action")
	}
}

func (a *App) handlePlanPick(ctx context.Context, update tginfra.CallbackUpdate, planName string) error {
	selection, err := a.plans.Select(ctx, update.UserID, planName)
	if err != nil {
		switch {
		case errors.Is(err, planssvc.ErrDemoUsed):
			return a.chat.AnswerCallbackAlert(ctx, update.CallbackID, demoUsedAlertText)
		case errors.Is(err, planssvc.ErrUnknownUser):
			return a.chat.AnswerCallbackAlert(ctx, update.CallbackID, startFirstText)
		case errors.Is(err, planssvc.ErrPlanNotFound):
			return a.chat.AnswerCallback(ctx, update.CallbackID, "Unknown plan")
		default:
			_ = a.chat.AnswerCallback(ctx, update.CallbackID, "Something went wrong, please try again")
			return err
		}
	}

	if selection.DemoActivated {
		if err := a.chat.AnswerCallback(ctx, update.CallbackID, demoActivatedText); err != nil {
			return err
		}

		user, err := a.users.Find(ctx, update.UserID)
		if err != nil {
			return err
		}
		if _, err := a.engine.DeliverCurrent(ctx, user.UserID, user.Cursor); err != nil {
			if errors.Is(err, cursor.ErrNoContent) {
				return a.chat.SendText(ctx, update.ChatID, noContentText)
			}
			return err
		}
		return nil
	}

	if err := a.chat.AnswerCallback(ctx, update.CallbackID, ""); err != nil {
		return err
	}
	return a.chat.SendPhoto(ctx, update.ChatID, "payment_qr.png", selection.QRPNG, selection.Caption)
}

func (a *App) handleNavigation(ctx context.Context, update tginfra.CallbackUpdate, dir cursor.Direction) error {
	// Callbacks can arrive for chats with no user row (e.g. after a data
	// reset while the old message is still on screen), so the row is
	// ensured the same way /start does it.
	user, err := a.users.GetOrCreate(ctx, update.UserID, a.cfg.Content.StartRef)
	if err != nil {
		return err
	}

	access, err := a.ledger.CheckAccess(ctx, user.UserID)
	if err != nil {
		return err
	}
	if !access.Active {
		if err := a.chat.AnswerCallbackAlert(ctx, update.CallbackID, expiredAlertText); err != nil {
			return err
		}
		return a.sendPlanMenu(ctx, update.ChatID, user)
	}

	delivery, err := a.engine.Advance(ctx, user.UserID, user.Cursor, dir)
	if err != nil {
		if errors.Is(err, cursor.ErrNoContent) {
			return a.chat.AnswerCallbackAlert(ctx, update.CallbackID, noContentText)
		}
		_ = a.chat.AnswerCallback(ctx, update.CallbackID, "")
		return err
	}

	// The new item has landed; only now retire the pressed message so the
	// chat is never left with nothing when the traversal comes up empty.
	if err := a.chat.Withdraw(ctx, update.ChatID, update.MessageID); err != nil {
		a.logger.Debug("withdraw shown item failed", zap.Int64("user_id", user.UserID), zap.Error(err))
	}

	if delivery.Looped {
		return a.chat.AnswerCallback(ctx, update.CallbackID, loopedText)
	}
	return a.chat.AnswerCallback(ctx, update.CallbackID, "")
}

func (a *App) handlePhoto(ctx context.Context, update tginfra.PhotoUpdate) error {
	pending, err := a.pending.Get(ctx, update.UserID)
	if err != nil {
		if errors.Is(err, redrepo.ErrPendingNotFound) {
			return a.chat.SendText(ctx, update.ChatID, selectPlanText)
		}
		return err
	}

	if a.storage == nil {
		return a.chat.SendText(ctx, update.ChatID, uploadDisabledText)
	}

	body, size, _, contentType, err := a.chat.DownloadPhoto(ctx, update.FileID)
	if err != nil {
		return err
	}
	defer body.Close()

	key, err := a.storage.Put(ctx, newScreenshotID(), body, size, contentType)
	if err != nil {
		return err
	}

	order, err := a.orders.Create(ctx, update.UserID, pending.Price, key, pending.GrantDays)
	if err != nil {
		return err
	}

	if err := a.pending.Clear(ctx, update.UserID); err != nil {
		a.logger.Warn("clear pending payment failed",
			zap.Int64("user_id", update.UserID),
			zap.Error(err))
	}

	return a.chat.SendText(ctx, update.ChatID,
		"✅ Screenshot received! Order "+order.OrderID+" is awaiting verification. You will be notified once it is reviewed.")
}

func (a *App) sendPlanMenu(ctx context.Context, chatID int64, user pgrepo.UserRecord) error {
	buttons := a.plans.Keyboard(user.DemoUsed)
	planButtons := make([]tginfra.PlanButton, 0, len(buttons))
	for _, b := range buttons {
		planButtons = append(planButtons, tginfra.PlanButton{Label: b.Label, Data: b.Data})
	}

	return a.chat.SendPlanKeyboard(ctx, chatID, a.planMenuText(), planButtons)
}

func (a *App) planMenuText() string {
	lines := []string{
		"🔒 This content requires an active subscription.",
		"",
		"Available plans:",
	}
	for _, plan := range a.cfg.Plans {
		line := "• " + plan.Name
		if plan.Description != "" {
			line += " — " + plan.Description
		}
		lines = append(lines, line)
	}
	lines = append(lines, "", "Pick a plan below to get started.")
	return strings.Join(lines, "\n")
}

// withdrawDelivered retires the previously shown item after a replacement
// has been delivered. The fresh handle is skipped: on resume the engine may
// re-deliver the same reference and hand back the message just sent.
func (a *App) withdrawDelivered(ctx context.Context, user pgrepo.UserRecord, freshHandle int) {
	if user.LastDeliveredID == nil || *user.LastDeliveredID == freshHandle {
		return
	}
	if err := a.chat.Withdraw(ctx, user.UserID, *user.LastDeliveredID); err != nil {
		a.logger.Debug("withdraw previous item failed",
			zap.Int64("user_id", user.UserID),
			zap.Error(err))
	}
}

func newScreenshotID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
