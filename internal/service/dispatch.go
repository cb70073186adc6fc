// dispatch.go — побочные эффекты событий: уведомление владельцу архива
// и письмо на его адрес. Ошибки не возвращаются вызывающему, только
// логируются и учитываются в exadocs_dispatch_failures_total.
package service

import (
	"context"
	"log/slog"

	"github.com/jorcase/exadocs/internal/domain/model"
	"github.com/jorcase/exadocs/internal/mail"
	"github.com/jorcase/exadocs/internal/repository"
)

// ownerEvent — событие, о котором сообщается владельцу архива.
type ownerEvent struct {
	File    *model.File
	ActorID string
	// Уведомление
	Type  string
	Title string
	Data  map[string]any
	// Письмо
	Template string
	Subject  string
	MailData map[string]any
}

// Dispatcher — рассылка уведомлений и писем владельцам архивов.
type Dispatcher struct {
	notifier Notifier
	mailer   mail.Enqueuer
	users    repository.UserRepository
	appURL   string
	logger   *slog.Logger
}

// NewDispatcher создаёт рассыльщик. mailer может быть nil — письма не ставятся.
func NewDispatcher(notifier Notifier, mailer mail.Enqueuer, users repository.UserRepository, appURL string, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		notifier: notifier,
		mailer:   mailer,
		users:    users,
		appURL:   appURL,
		logger:   logger.With(slog.String("component", "dispatcher")),
	}
}

// fileURL возвращает ссылку на архив во фронтенде.
func (d *Dispatcher) fileURL(fileID string) string {
	return d.appURL + "/archivos/" + fileID
}

// NotifyOwner создаёт уведомление и ставит письмо владельцу архива.
// Уведомление и письмо независимы: сбой одного не отменяет другое.
func (d *Dispatcher) NotifyOwner(ctx context.Context, ev ownerEvent) {
	if ev.File == nil || ev.File.OwnerID == nil {
		return
	}
	log := d.logger.With(
		slog.String("file_id", ev.File.ID),
		slog.String("type", ev.Type),
	)

	var actorID *string
	if ev.ActorID != "" {
		actorID = &ev.ActorID
	}
	if _, err := d.notifier.NotifyOwnerOf(ctx, ev.File, actorID, ev.Type, ev.Title, ev.Data); err != nil {
		dispatchFailuresTotal.WithLabelValues("notification").Inc()
		log.Error("Не удалось создать уведомление", slog.String("error", err.Error()))
	}

	if d.mailer == nil || ev.Template == "" {
		return
	}

	owner, err := d.users.GetByID(ctx, *ev.File.OwnerID)
	if err != nil {
		dispatchFailuresTotal.WithLabelValues("mail").Inc()
		log.Warn("Не удалось получить адрес владельца", slog.String("error", err.Error()))
		return
	}
	if owner.Email == "" {
		log.Debug("У владельца нет адреса, письмо пропущено")
		return
	}

	data := map[string]any{
		"title":    ev.File.Title,
		"file_url": d.fileURL(ev.File.ID),
	}
	for k, v := range ev.MailData {
		data[k] = v
	}

	if err := d.mailer.Enqueue(ctx, mail.NewMessage(ev.Template, owner.Email, ev.Subject, data)); err != nil {
		dispatchFailuresTotal.WithLabelValues("mail").Inc()
		log.Warn("Не удалось поставить письмо в очередь",
			slog.String("template", ev.Template),
			slog.String("error", err.Error()),
		)
	}
}
