package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jorcase/exadocs/internal/domain/model"
)

// NotificationRepository — уведомления в приложении.
type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) error
	GetByID(ctx context.Context, id string) (*model.Notification, error)
	ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool, limit, offset int) ([]*model.Notification, error)
	CountByRecipient(ctx context.Context, recipientID string, unreadOnly bool) (int, error)
	// MarkRead отмечает уведомление прочитанным (повторная отметка не меняет read_at).
	MarkRead(ctx context.Context, id string) (*model.Notification, error)
	// MarkAllRead отмечает все непрочитанные уведомления получателя.
	MarkAllRead(ctx context.Context, recipientID string) (int, error)
}

type notificationRepo struct {
	db DBTX
}

// NewNotificationRepository создаёт репозиторий уведомлений.
func NewNotificationRepository(db DBTX) NotificationRepository {
	return &notificationRepo{db: db}
}

const notificationColumns = `id, recipient_id, actor_id, file_id, type, title, message, data, read_at, created_at`

func scanNotification(row pgx.Row) (*model.Notification, error) {
	n := &model.Notification{}
	err := row.Scan(&n.ID, &n.RecipientID, &n.ActorID, &n.FileID, &n.Type, &n.Title,
		&n.Message, &n.Data, &n.ReadAt, &n.CreatedAt)
	return n, err
}

func (r *notificationRepo) Create(ctx context.Context, n *model.Notification) error {
	if len(n.Data) == 0 {
		n.Data = []byte("{}")
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO notifications (id, recipient_id, actor_id, file_id, type, title, message, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		n.ID, n.RecipientID, n.ActorID, n.FileID, n.Type, n.Title, n.Message, n.Data,
	).Scan(&n.CreatedAt)
	if err != nil {
		return mapWriteError(err, "создания уведомления")
	}
	return nil
}

func (r *notificationRepo) GetByID(ctx context.Context, id string) (*model.Notification, error) {
	n, err := scanNotification(r.db.QueryRow(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "получения уведомления")
	}
	return n, nil
}

func recipientWhere(recipientID string, unreadOnly bool) *whereBuilder {
	w := &whereBuilder{}
	w.add("recipient_id = ?", recipientID)
	if unreadOnly {
		w.raw("read_at IS NULL")
	}
	return w
}

func (r *notificationRepo) ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool, limit, offset int) ([]*model.Notification, error) {
	w := recipientWhere(recipientID, unreadOnly)
	argNum := w.next()
	query := fmt.Sprintf(`SELECT %s FROM notifications %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		notificationColumns, w.String(), argNum, argNum+1)

	rows, err := r.db.Query(ctx, query, append(w.args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения уведомлений: %w", err)
	}
	defer rows.Close()

	var result []*model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования уведомления: %w", err)
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

func (r *notificationRepo) CountByRecipient(ctx context.Context, recipientID string, unreadOnly bool) (int, error) {
	w := recipientWhere(recipientID, unreadOnly)
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM notifications `+w.String(), w.args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта уведомлений: %w", err)
	}
	return count, nil
}

func (r *notificationRepo) MarkRead(ctx context.Context, id string) (*model.Notification, error) {
	n, err := scanNotification(r.db.QueryRow(ctx, `
		UPDATE notifications SET read_at = COALESCE(read_at, $2)
		WHERE id = $1
		RETURNING `+notificationColumns, id, time.Now().UTC()))
	if err != nil {
		return nil, notFoundOr(err, "отметки уведомления")
	}
	return n, nil
}

func (r *notificationRepo) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE notifications SET read_at = $2 WHERE recipient_id = $1 AND read_at IS NULL`,
		recipientID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("ошибка отметки уведомлений: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
