// Пакет mail — асинхронная отправка писем: очередь в Redis,
// рендеринг HTML-шаблонов и доставка через SMTP.
// Доставка «как минимум один раз», порядок писем не гарантируется.
package mail

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Имена шаблонов писем.
const (
	TemplateFileCreated      = "file_created"
	TemplateFileUpdated      = "file_updated"
	TemplateFileStateChanged = "file_state_changed"
	TemplateNewComment       = "new_comment"
	TemplateNewRating        = "new_rating"
	TemplateNewReport        = "new_report"
)

// Message — письмо в очереди.
type Message struct {
	ID       string         `json:"id"`
	Template string         `json:"template"`
	To       string         `json:"to"`
	Subject  string         `json:"subject"`
	Data     map[string]any `json:"data,omitempty"`
	// Attempts — число неудачных попыток отправки
	Attempts int `json:"attempts"`

	// raw — исходный JSON из списка processing (для LREM)
	raw string
}

// NewMessage создаёт письмо с новым ID.
func NewMessage(template, to, subject string, data map[string]any) Message {
	return Message{
		ID:       uuid.New().String(),
		Template: template,
		To:       to,
		Subject:  subject,
		Data:     data,
	}
}

// Validate проверяет обязательные поля письма.
func (m Message) Validate() error {
	if m.To == "" {
		return fmt.Errorf("письмо %s: не задан получатель", m.ID)
	}
	if m.Template == "" {
		return fmt.Errorf("письмо %s: не задан шаблон", m.ID)
	}
	return nil
}

func (m Message) encode() (string, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("сериализация письма: %w", err)
	}
	return string(b), nil
}

func decodeMessage(raw string) (Message, error) {
	var m Message
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return Message{}, fmt.Errorf("десериализация письма: %w", err)
	}
	m.raw = raw
	return m, nil
}

// Enqueuer — постановка писем в очередь. Используется сервисным слоем.
type Enqueuer interface {
	Enqueue(ctx context.Context, msg Message) error
}
