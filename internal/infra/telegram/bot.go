package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ErrContentNotFound marks a copy attempt whose source message no longer
// exists in the channel. Every other delivery failure is a transport error.
var ErrContentNotFound = errors.New("content message not found")

type Bot struct {
	api        *tgbotapi.BotAPI
	httpClient *http.Client
}

type CommandUpdate struct {
	ChatID   int64
	UserID   int64
	Username string
	Command  string
	Args     string
}

type CallbackUpdate struct {
	CallbackID string
	ChatID     int64
	MessageID  int
	UserID     int64
	Username   string
	Data       string
}

type PhotoUpdate struct {
	ChatID int64
	UserID int64
	FileID string
}

type Handlers struct {
	OnCommand  func(context.Context, CommandUpdate) error
	OnCallback func(context.Context, CallbackUpdate) error
	OnPhoto    func(context.Context, PhotoUpdate) error
}

type PlanButton struct {
	Label string
	Data  string
}

func NewBot(token string) (*Bot, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("telegram bot token is empty")
	}

	api, err := tgbotapi.NewBotAPI(strings.TrimSpace(token))
	if err != nil {
		return nil, fmt.Errorf("create telegram bot api: %w", err)
	}

	return &Bot{
		api: api,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

func (b *Bot) Listen(ctx context.Context, handlers Handlers) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}

	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = 30
	updates := b.api.GetUpdatesChan(updateCfg)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-updates:
			if update.Message != nil && update.Message.From != nil {
				if len(update.Message.Photo) > 0 && handlers.OnPhoto != nil {
					largest := update.Message.Photo[len(update.Message.Photo)-1]
					err := handlers.OnPhoto(ctx, PhotoUpdate{
						ChatID: update.Message.Chat.ID,
						UserID: update.Message.From.ID,
						FileID: largest.FileID,
					})
					if err != nil {
						return err
					}
					continue
				}

				if update.Message.IsCommand() && handlers.OnCommand != nil {
					err := handlers.OnCommand(ctx, CommandUpdate{
						ChatID:   update.Message.Chat.ID,
						UserID:   update.Message.From.ID,
						Username: update.Message.From.UserName,
						Command:  update.Message.Command(),
						Args:     update.Message.CommandArguments(),
					})
					if err != nil {
						return err
					}
					continue
				}
			}

			if update.CallbackQuery != nil && update.CallbackQuery.From != nil && handlers.OnCallback != nil {
				chatID := int64(0)
				messageID := 0
				if update.CallbackQuery.Message != nil {
					chatID = update.CallbackQuery.Message.Chat.ID
					messageID = update.CallbackQuery.Message.MessageID
				}
				err := handlers.OnCallback(ctx, CallbackUpdate{
					CallbackID: update.CallbackQuery.ID,
					ChatID:     chatID,
					MessageID:  messageID,
					UserID:     update.CallbackQuery.From.ID,
					Username:   update.CallbackQuery.From.UserName,
					Data:       update.CallbackQuery.Data,
				})
				if err != nil {
					return err
				}
			}
		}
	}
}

// Deliver copies channel message ref to the user with the navigation keyboard
// attached. It returns the delivered message id, which is later used to
// withdraw the content.
func (b *Bot) Deliver(ctx context.Context, userID, channelID, ref int64) (int, error) {
	if b == nil || b.api == nil {
		return 0, fmt.Errorf("telegram bot is not initialized")
	}
	if userID == 0 || channelID == 0 || ref <= 0 {
		return 0, fmt.Errorf("invalid delivery target")
	}

	cfg := tgbotapi.NewCopyMessage(userID, channelID, int(ref))
	cfg.ProtectContent = true
	cfg.ReplyMarkup = navigationKeyboard()

	sent, err := b.api.CopyMessage(cfg)
	if err != nil {
		if isMessageMissing(err) {
			return 0, ErrContentNotFound
		}
		return 0, fmt.Errorf("copy channel message %d: %w", ref, err)
	}

	_ = ctx
	return sent.MessageID, nil
}

// Withdraw deletes a previously delivered message. A message that is already
// gone is not an error.
func (b *Bot) Withdraw(ctx context.Context, chatID int64, messageID int) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}
	if chatID == 0 || messageID <= 0 {
		return nil
	}

	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		if isMessageMissing(err) {
			return nil
		}
		return fmt.Errorf("delete delivered message: %w", err)
	}

	_ = ctx
	return nil
}

func (b *Bot) SendText(ctx context.Context, chatID int64, text string) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}
	if chatID == 0 {
		return fmt.Errorf("chat id is required")
	}

	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}

	_ = ctx
	return nil
}

// SendPhoto sends in-memory PNG/JPEG bytes with a caption, used for the
// payment QR code.
func (b *Bot) SendPhoto(ctx context.Context, chatID int64, name string, photo []byte, caption string) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}
	if chatID == 0 || len(photo) == 0 {
		return fmt.Errorf("invalid photo payload")
	}

	msg := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: name, Bytes: photo})
	msg.Caption = caption

	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send telegram photo: %w", err)
	}

	_ = ctx
	return nil
}

// SendPlanKeyboard sends text with one inline button per plan.
func (b *Bot) SendPlanKeyboard(ctx context.Context, chatID int64, text string, plans []PlanButton) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}
	if chatID == 0 || len(plans) == 0 {
		return fmt.Errorf("invalid plan keyboard payload")
	}

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(plans))
	for _, p := range plans {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(p.Label, p.Data),
		))
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)

	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send plan keyboard: %w", err)
	}

	_ = ctx
	return nil
}

func (b *Bot) AnswerCallback(ctx context.Context, callbackID, text string) error {
	return b.answerCallback(ctx, callbackID, text, false)
}

func (b *Bot) AnswerCallbackAlert(ctx context.Context, callbackID, text string) error {
	return b.answerCallback(ctx, callbackID, text, true)
}

func (b *Bot) answerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}
	if strings.TrimSpace(callbackID) == "" {
		return nil
	}

	cfg := tgbotapi.NewCallback(callbackID, text)
	cfg.ShowAlert = alert
	if _, err := b.api.Request(cfg); err != nil {
		return fmt.Errorf("answer callback query: %w", err)
	}

	_ = ctx
	return nil
}

// DownloadPhoto fetches an uploaded photo (payment screenshot) by file id.
func (b *Bot) DownloadPhoto(ctx context.Context, fileID string) (io.ReadCloser, int64, string, string, error) {
	if b == nil || b.api == nil {
		return nil, 0, "", "", fmt.Errorf("telegram bot is not initialized")
	}
	if strings.TrimSpace(fileID) == "" {
		return nil, 0, "", "", fmt.Errorf("file id is required")
	}

	tgFile, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, 0, "", "", fmt.Errorf("get telegram file: %w", err)
	}

	fileURL := tgFile.Link(b.api.Token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, 0, "", "", fmt.Errorf("create file request: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, 0, "", "", fmt.Errorf("download telegram file: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, 0, "", "", fmt.Errorf("unexpected telegram file status: %d", resp.StatusCode)
	}

	name := path.Base(strings.TrimSpace(tgFile.FilePath))
	if name == "." || name == "/" || name == "" {
		name = "screenshot.jpg"
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.TrimSpace(contentType) == "" {
		contentType = "image/jpeg"
	}

	return resp.Body, resp.ContentLength, name, contentType, nil
}

func navigationKeyboard() *tgbotapi.InlineKeyboardMarkup {
	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Prev", "nav_prev"),
			tgbotapi.NewInlineKeyboardButtonData("Next ➡️", "nav_next"),
		),
	)
	return &markup
}

func isMessageMissing(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "message to copy not found") ||
		strings.Contains(msg, "message to delete not found") ||
		strings.Contains(msg, "message_id_invalid") ||
		strings.Contains(msg, "message not found")
}
