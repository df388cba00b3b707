package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/m3rciful/memebot/core/telegram/helpers"
	"github.com/m3rciful/memebot/core/telegram/sender"
	"github.com/m3rciful/memebot/meme/conversation"
	"github.com/m3rciful/memebot/meme/provider"

	tele "gopkg.in/telebot.v4"
)

// API is the part of *tele.Bot the messenger needs.
type API interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	FileByID(fileID string) (tele.File, error)
	File(file *tele.File) (io.ReadCloser, error)
}

// Messenger sends engine output through the Bot API. Sends are synchronous
// so the engine gets message ids back for template selection.
type Messenger struct {
	api API
}

// NewMessenger wraps api.
func NewMessenger(api API) *Messenger {
	return &Messenger{api: api}
}

var _ conversation.Messenger = (*Messenger)(nil)

// SendText sends plain text.
func (m *Messenger) SendText(ctx context.Context, chatID int64, text string, opts conversation.SendOptions) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	start := time.Now()
	msg, err := m.api.Send(tele.ChatID(chatID), text, helpers.SendOptions(opts.Keyboard, opts.ReplyTo))
	if err != nil {
		sender.Failed(ctx, "sendMessage", err, time.Since(start))
		return 0, fmt.Errorf("send text: %w", err)
	}
	sender.Sent(ctx, "sendMessage", time.Since(start))
	return msg.ID, nil
}

// SendPhoto sends a photo by URL or from a local file.
func (m *Messenger) SendPhoto(ctx context.Context, chatID int64, photo conversation.Photo, opts conversation.SendOptions) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var file tele.File
	switch {
	case photo.Path != "":
		file = tele.FromDisk(photo.Path)
	case photo.URL != "":
		file = tele.FromURL(photo.URL)
	default:
		return 0, errors.New("send photo: no source")
	}
	start := time.Now()
	msg, err := m.api.Send(tele.ChatID(chatID), &tele.Photo{File: file}, helpers.SendOptions(opts.Keyboard, opts.ReplyTo))
	if err != nil {
		sender.Failed(ctx, "sendPhoto", err, time.Since(start))
		return 0, fmt.Errorf("send photo: %w", err)
	}
	sender.Sent(ctx, "sendPhoto", time.Since(start))
	return msg.ID, nil
}

// DownloadFile stores a Telegram file at dst.
func (m *Messenger) DownloadFile(ctx context.Context, fileID, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := m.api.FileByID(fileID)
	if err != nil {
		sender.Failed(ctx, "getFile", err, 0)
		return fmt.Errorf("get file %s: %w", fileID, err)
	}
	rc, err := m.api.File(&f)
	if err != nil {
		return fmt.Errorf("download file %s: %w", fileID, err)
	}
	defer rc.Close()
	return provider.WriteFile(dst, rc)
}
