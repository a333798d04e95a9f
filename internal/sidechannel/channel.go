// Package sidechannel - чат и ссылки на файлы поверх того же signaling-соединения
package sidechannel

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/qrave1/TeleVisit/internal/domain"
	"github.com/qrave1/TeleVisit/internal/domain/events"
)

var (
	ErrEmptyMessage = errors.New("empty chat message")
	ErrEmptyFile    = errors.New("file pointer needs url and name")
)

// Channel хранит переписку только на время звонка
type Channel struct {
	signal events.Sender
	sender string
	now    func() time.Time

	transcript []domain.ChatEntry
	received   *domain.SharedFile
	shared     *domain.SharedFile
}

// New - sender это отображаемое имя в исходящих сообщениях
func New(signal events.Sender, sender string) *Channel {
	return &Channel{
		signal: signal,
		sender: sender,
		now:    time.Now,
	}
}

// SendChat отправляет сообщение без подтверждения доставки и сразу добавляет его в переписку
func (c *Channel) SendChat(text string) (domain.ChatEntry, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.ChatEntry{}, ErrEmptyMessage
	}

	env, err := events.New(events.TypeChat, "", events.ChatEvent{Sender: c.sender, Text: text})
	if err != nil {
		return domain.ChatEntry{}, err
	}

	if err = c.signal.Send(env); err != nil {
		return domain.ChatEntry{}, fmt.Errorf("send chat: %w", err)
	}

	entry := c.append(c.sender, text, true)

	return entry, nil
}

// ShareFile отправляет только указатель, сам файл уже загружен во внешнее хранилище
func (c *Channel) ShareFile(url, name string) error {
	if url == "" || name == "" {
		return ErrEmptyFile
	}

	env, err := events.New(events.TypeFileShare, "", events.FileShareEvent{URL: url, Name: name})
	if err != nil {
		return err
	}

	if err = c.signal.Send(env); err != nil {
		return fmt.Errorf("send file share: %w", err)
	}

	c.shared = &domain.SharedFile{URL: url, Name: name}

	return nil
}

func (c *Channel) HandleChat(from string, ev events.ChatEvent) domain.ChatEntry {
	sender := ev.Sender
	if sender == "" {
		sender = from
	}

	return c.append(sender, ev.Text, false)
}

func (c *Channel) HandleFileShare(from string, ev events.FileShareEvent) (domain.SharedFile, error) {
	if ev.URL == "" || ev.Name == "" {
		return domain.SharedFile{}, ErrEmptyFile
	}

	f := domain.SharedFile{URL: ev.URL, Name: ev.Name, From: from}
	c.received = &f

	return f, nil
}

func (c *Channel) Transcript() []domain.ChatEntry {
	out := make([]domain.ChatEntry, len(c.transcript))
	copy(out, c.transcript)

	return out
}

// Received - последний файл от собеседника
func (c *Channel) Received() *domain.SharedFile {
	return c.received
}

// Shared - последний файл, отправленный с этого клиента
func (c *Channel) Shared() *domain.SharedFile {
	return c.shared
}

// Reset очищает указатели на файлы. Переписку оставляем до следующего звонка.
func (c *Channel) Reset() {
	c.received = nil
	c.shared = nil
}

// Clear начинает новую переписку
func (c *Channel) Clear() {
	c.Reset()
	c.transcript = nil
}

func (c *Channel) append(sender, text string, outgoing bool) domain.ChatEntry {
	entry := domain.ChatEntry{
		ID:        ulid.Make().String(),
		Sender:    sender,
		Text:      text,
		Timestamp: c.now(),
		Outgoing:  outgoing,
	}

	c.transcript = append(c.transcript, entry)

	return entry
}
