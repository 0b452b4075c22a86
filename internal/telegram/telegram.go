// Package telegram adapts the Telegram Bot API to the interfaces the rest of
// the application is written against: the bot's Effector, the notification
// worker's Sender and the admin API's certificate FileStore.
package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/NegroPrimo123/Students-Bot/internal/bot"
)

type Adapter struct {
	api  *tgbotapi.BotAPI
	log  *zerolog.Logger
	http *http.Client
}

func New(token string, log *zerolog.Logger) (*Adapter, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Telegram: %w", err)
	}
	log.Info().Str("username", api.Self.UserName).Msg("telegram bot authorized")
	return &Adapter{api: api, log: log, http: http.DefaultClient}, nil
}

func (a *Adapter) Send(ctx context.Context, chatID int64, text string) error {
	_, err := a.api.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

func (a *Adapter) SendChoices(ctx context.Context, chatID int64, text string, choices [][]bot.Choice) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if kb := keyboard(choices); kb != nil {
		msg.ReplyMarkup = *kb
	}
	_, err := a.api.Send(msg)
	return err
}

func (a *Adapter) Edit(ctx context.Context, chatID int64, messageID int64, text string, choices [][]bot.Choice) error {
	edit := tgbotapi.NewEditMessageText(chatID, int(messageID), text)
	if kb := keyboard(choices); kb != nil {
		edit.ReplyMarkup = kb
	}
	_, err := a.api.Send(edit)
	return err
}

func keyboard(choices [][]bot.Choice) *tgbotapi.InlineKeyboardMarkup {
	if len(choices) == 0 {
		return nil
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(choices))
	for _, row := range choices {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, c := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(c.Label, c.Data))
		}
		rows = append(rows, buttons)
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

// Download fetches a certificate by Telegram file id. The content type is
// derived from the stored file path.
func (a *Adapter) Download(ctx context.Context, fileID string) (io.ReadCloser, string, error) {
	file, err := a.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve file: %w", err)
	}
	url := file.Link(a.api.Token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download file: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, "", fmt.Errorf("unexpected status %d downloading file", resp.StatusCode)
	}
	return resp.Body, contentTypeFor(file.FilePath), nil
}

func contentTypeFor(path string) string {
	switch {
	case strings.HasSuffix(path, ".pdf"):
		return "application/pdf"
	case strings.HasSuffix(path, ".png"):
		return "image/png"
	case strings.HasSuffix(path, ".jpg"), strings.HasSuffix(path, ".jpeg"):
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}

// Listen runs the long-polling loop and dispatches updates to the bot core
// until the context is cancelled.
func (a *Adapter) Listen(ctx context.Context, b *bot.Bot) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := a.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			a.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			a.dispatch(ctx, b, update)
		}
	}
}

func (a *Adapter) dispatch(ctx context.Context, b *bot.Bot, update tgbotapi.Update) {
	var err error
	switch {
	case update.CallbackQuery != nil:
		cq := update.CallbackQuery
		// Acknowledge immediately so the client stops its spinner.
		_, _ = a.api.Request(tgbotapi.NewCallback(cq.ID, ""))
		upd, ok := callbackUpdate(cq)
		if !ok {
			return
		}
		err = b.HandleChoice(ctx, upd)

	case update.Message != nil && update.Message.Document != nil:
		doc := update.Message.Document
		err = b.HandleFile(ctx, bot.FileUpdate{
			ChatID:   update.Message.Chat.ID,
			FileID:   doc.FileID,
			FileName: doc.FileName,
			MimeType: doc.MimeType,
			Size:     int64(doc.FileSize),
		})

	case update.Message != nil && update.Message.IsCommand():
		err = b.HandleCommand(ctx,
			update.Message.Chat.ID,
			update.Message.From.UserName,
			update.Message.Command())

	case update.Message != nil:
		err = b.HandleText(ctx, bot.TextUpdate{
			ChatID:   update.Message.Chat.ID,
			Username: update.Message.From.UserName,
			Text:     update.Message.Text,
		})
	}

	if err != nil {
		a.log.Error().Err(err).Msg("failed to handle update")
	}
}

// callbackUpdate converts a callback query into a ChoiceUpdate. Telegram omits
// Message for inline-mode buttons and for messages older than 48 hours; those
// presses are acknowledged but carry nothing actionable.
func callbackUpdate(cq *tgbotapi.CallbackQuery) (bot.ChoiceUpdate, bool) {
	if cq.Message == nil {
		return bot.ChoiceUpdate{}, false
	}
	return bot.ChoiceUpdate{
		ChatID:    cq.Message.Chat.ID,
		MessageID: int64(cq.Message.MessageID),
		Data:      cq.Data,
	}, true
}
