package channels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/abraxas0001/Caption-Master-Pro/internal/bus"
	"github.com/abraxas0001/Caption-Master-Pro/internal/caption"
	"github.com/abraxas0001/Caption-Master-Pro/internal/conv"
	"github.com/abraxas0001/Caption-Master-Pro/internal/engine"
)

func init() {
	Register("telegram", func(cfg json.RawMessage, events *bus.EventBus) (Channel, error) {
		return newTelegramChannel(cfg, events)
	})
}

const modeCallbackPrefix = "mode_"

type telegramConfig struct {
	Token        string   `json:"token"`
	AllowedUsers []string `json:"allowedUsers"`
}

// TelegramChannel binds the bot to Telegram: it turns updates into bus
// events and implements engine.Transport for delivery.
type TelegramChannel struct {
	bot          *tgbotapi.BotAPI
	events       *bus.EventBus
	allowedUsers map[string]bool
	stopCh       chan struct{}
}

func newTelegramChannel(cfg json.RawMessage, events *bus.EventBus) (*TelegramChannel, error) {
	var tcfg telegramConfig
	if err := json.Unmarshal(cfg, &tcfg); err != nil {
		return nil, fmt.Errorf("failed to parse telegram config: %w", err)
	}
	bot, err := tgbotapi.NewBotAPI(tcfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	allowed := make(map[string]bool, len(tcfg.AllowedUsers))
	for _, u := range tcfg.AllowedUsers {
		allowed[u] = true
	}
	return &TelegramChannel{
		bot:          bot,
		events:       events,
		allowedUsers: allowed,
		stopCh:       make(chan struct{}),
	}, nil
}

func (c *TelegramChannel) Name() string { return "telegram" }

func (c *TelegramChannel) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				c.handleUpdate(update)
			case <-ctx.Done():
				c.bot.StopReceivingUpdates()
				return
			case <-c.stopCh:
				c.bot.StopReceivingUpdates()
				return
			}
		}
	}()
	return nil
}

func (c *TelegramChannel) Stop() error {
	close(c.stopCh)
	return nil
}

func (c *TelegramChannel) IsAllowed(senderID string) bool {
	if len(c.allowedUsers) == 0 {
		return true
	}
	return c.allowedUsers[senderID]
}

func (c *TelegramChannel) handleUpdate(update tgbotapi.Update) {
	if q := update.CallbackQuery; q != nil && q.Message != nil {
		c.handleCallback(q)
		return
	}
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	if !c.IsAllowed(strconv.FormatInt(msg.From.ID, 10)) {
		slog.Warn("telegram: message from disallowed user", "senderID", msg.From.ID)
		return
	}

	chatID := msg.Chat.ID

	if msg.IsCommand() {
		c.events.Publish(bus.Event{
			Type:    bus.EventCommand,
			ChatID:  chatID,
			Command: msg.Command(),
			Args:    strings.Fields(msg.CommandArguments()),
		})
		return
	}

	if item, ok := extractMedia(msg); ok {
		c.events.Publish(bus.Event{Type: bus.EventMedia, ChatID: chatID, Media: &item})
		return
	}

	if msg.Text != "" {
		c.events.Publish(bus.Event{Type: bus.EventText, ChatID: chatID, Text: msg.Text})
	}
}

func (c *TelegramChannel) handleCallback(q *tgbotapi.CallbackQuery) {
	// stop the client-side spinner; failures here are cosmetic
	if _, err := c.bot.Request(tgbotapi.NewCallback(q.ID, "")); err != nil {
		slog.Warn("telegram: failed to answer callback", "err", err)
	}

	mode, ok := strings.CutPrefix(q.Data, modeCallbackPrefix)
	if !ok {
		return
	}
	c.events.Publish(bus.Event{
		Type:   bus.EventSelection,
		ChatID: q.Message.Chat.ID,
		Mode:   mode,
	})
}

// extractMedia maps a Telegram message to a MediaItem, synthesizing a
// filename when the platform does not provide one.
func extractMedia(msg *tgbotapi.Message) (conv.MediaItem, bool) {
	switch {
	case len(msg.Photo) > 0:
		best := msg.Photo[len(msg.Photo)-1] // largest size last
		return conv.MediaItem{
			Kind: conv.KindPhoto, FileID: best.FileID, Caption: msg.Caption,
			FileName: "photo_" + best.FileUniqueID + ".jpg",
		}, true
	case msg.Video != nil:
		return conv.MediaItem{
			Kind: conv.KindVideo, FileID: msg.Video.FileID, Caption: msg.Caption,
			FileName: orSynth(msg.Video.FileName, "video_"+msg.Video.FileUniqueID+".mp4"),
		}, true
	case msg.Document != nil:
		return conv.MediaItem{
			Kind: conv.KindDocument, FileID: msg.Document.FileID, Caption: msg.Caption,
			FileName: orSynth(msg.Document.FileName, "document_"+msg.Document.FileUniqueID),
		}, true
	case msg.Animation != nil:
		return conv.MediaItem{
			Kind: conv.KindAnimation, FileID: msg.Animation.FileID, Caption: msg.Caption,
			FileName: orSynth(msg.Animation.FileName, "animation_"+msg.Animation.FileUniqueID+".gif"),
		}, true
	case msg.Audio != nil:
		return conv.MediaItem{
			Kind: conv.KindAudio, FileID: msg.Audio.FileID, Caption: msg.Caption,
			FileName: orSynth(msg.Audio.FileName, "audio_"+msg.Audio.FileUniqueID+".mp3"),
		}, true
	case msg.Voice != nil:
		return conv.MediaItem{
			Kind: conv.KindVoice, FileID: msg.Voice.FileID, Caption: msg.Caption,
			FileName: "voice_" + msg.Voice.FileUniqueID + ".ogg",
		}, true
	}
	return conv.MediaItem{}, false
}

func orSynth(name, fallback string) string {
	if name != "" {
		return name
	}
	return fallback
}

// --- engine.Transport ---

func (c *TelegramChannel) SendItem(_ context.Context, chatID int64, item conv.MediaItem, text string) error {
	file := tgbotapi.FileID(item.FileID)

	var msg tgbotapi.Chattable
	switch item.Kind {
	case conv.KindPhoto:
		m := tgbotapi.NewPhoto(chatID, file)
		m.Caption = text
		msg = m
	case conv.KindVideo:
		m := tgbotapi.NewVideo(chatID, file)
		m.Caption = text
		msg = m
	case conv.KindDocument:
		m := tgbotapi.NewDocument(chatID, file)
		m.Caption = text
		msg = m
	case conv.KindAnimation:
		m := tgbotapi.NewAnimation(chatID, file)
		m.Caption = text
		msg = m
	case conv.KindAudio:
		m := tgbotapi.NewAudio(chatID, file)
		m.Caption = text
		msg = m
	case conv.KindVoice:
		m := tgbotapi.NewVoice(chatID, file)
		m.Caption = text
		msg = m
	default:
		return fmt.Errorf("telegram: unsupported media kind %q", item.Kind)
	}

	_, err := c.bot.Send(msg)
	return wrapSendError(err)
}

func (c *TelegramChannel) SendGroup(_ context.Context, chatID int64, items []conv.MediaItem, captions []string) error {
	media := make([]interface{}, 0, len(items))
	for i, item := range items {
		file := tgbotapi.FileID(item.FileID)
		switch item.Kind {
		case conv.KindPhoto:
			m := tgbotapi.NewInputMediaPhoto(file)
			m.Caption = captions[i]
			media = append(media, m)
		case conv.KindVideo:
			m := tgbotapi.NewInputMediaVideo(file)
			m.Caption = captions[i]
			media = append(media, m)
		case conv.KindDocument:
			m := tgbotapi.NewInputMediaDocument(file)
			m.Caption = captions[i]
			media = append(media, m)
		case conv.KindAnimation:
			m := tgbotapi.NewInputMediaAnimation(file)
			m.Caption = captions[i]
			media = append(media, m)
		case conv.KindAudio:
			m := tgbotapi.NewInputMediaAudio(file)
			m.Caption = captions[i]
			media = append(media, m)
		default:
			return fmt.Errorf("telegram: kind %q cannot ride in a media group", item.Kind)
		}
	}

	_, err := c.bot.SendMediaGroup(tgbotapi.NewMediaGroup(chatID, media))
	return wrapSendError(err)
}

func (c *TelegramChannel) SendText(_ context.Context, chatID int64, text string) error {
	_, err := c.bot.Send(tgbotapi.NewMessage(chatID, text))
	return wrapSendError(err)
}

func (c *TelegramChannel) PromptDone(_ context.Context, chatID int64, count int) error {
	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("📦 Received %d media. Send more or press Done.", count))
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(engine.DoneToken)),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	msg.ReplyMarkup = kb

	_, err := c.bot.Send(msg)
	return wrapSendError(err)
}

// modeLabels drives the selection keyboard, two buttons per row.
var modeLabels = []struct {
	mode  caption.Mode
	label string
}{
	{caption.ModeNew, "✏️ New Caption"},
	{caption.ModeKeep, "📋 Keep Original"},
	{caption.ModeAppend, "➕ Append Text"},
	{caption.ModePrepend, "⬆️ Prepend Text"},
	{caption.ModeReplaceLinks, "🔗 Replace Links"},
	{caption.ModeFilename, "📄 Use Filename"},
	{caption.ModeFilenameWithCap, "📝 Filename + Caption"},
	{caption.ModeAddToEach, "🔄 Add Text to Each"},
	{caption.ModeMakeAlbum, "🖼 Make Album"},
}

func (c *TelegramChannel) PromptMode(_ context.Context, chatID int64, count int) error {
	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("📦 Received %d media items!\n\nChoose caption mode:", count))
	msg.ReplyMarkup = modeKeyboard()

	_, err := c.bot.Send(msg)
	return wrapSendError(err)
}

func modeKeyboard() tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, m := range modeLabels {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(m.label, modeCallbackPrefix+string(m.mode)))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// wrapSendError surfaces Telegram's 429 as the engine's rate-limit signal.
func wrapSendError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == 429 {
		return &engine.RateLimitError{RetryAfter: time.Duration(apiErr.RetryAfter) * time.Second}
	}
	var apiErrVal tgbotapi.Error
	if errors.As(err, &apiErrVal) && apiErrVal.Code == 429 {
		return &engine.RateLimitError{RetryAfter: time.Duration(apiErrVal.RetryAfter) * time.Second}
	}
	return err
}
