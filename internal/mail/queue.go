package mail

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrEmpty — очередь пуста (истёк таймаут ожидания).
var ErrEmpty = errors.New("очередь писем пуста")

// Queue — очередь писем на списках Redis.
//
// Ключи:
//   - <key> — ожидающие письма (LPUSH / BLMOVE RIGHT)
//   - <key>:processing — письма в обработке
//   - <key>:delayed — ZSET писем, ожидающих повтора (score — unix ms готовности)
//   - <key>:dead — письма, исчерпавшие попытки или не отрисованные
type Queue struct {
	rdb           redis.UniversalClient
	key           string
	processingKey string
	delayedKey    string
	deadKey       string
	maxAttempts   int
}

// promoteBatch — сколько созревших писем переносится за один Reserve.
const promoteBatch = 100

// promoteScript атомарно переносит созревшие письма из ZSET в очередь,
// чтобы при нескольких обработчиках письмо не попало в очередь дважды.
var promoteScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
for _, m in ipairs(due) do
	redis.call('ZREM', KEYS[1], m)
	redis.call('LPUSH', KEYS[2], m)
end
return #due
`)

// NewQueue создаёт очередь писем.
func NewQueue(rdb redis.UniversalClient, key string, maxAttempts int) *Queue {
	return &Queue{
		rdb:           rdb,
		key:           key,
		processingKey: key + ":processing",
		delayedKey:    key + ":delayed",
		deadKey:       key + ":dead",
		maxAttempts:   maxAttempts,
	}
}

// Enqueue ставит письмо в очередь.
func (q *Queue) Enqueue(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	raw, err := msg.encode()
	if err != nil {
		return err
	}
	if err := q.rdb.LPush(ctx, q.key, raw).Err(); err != nil {
		return fmt.Errorf("LPUSH %s: %w", q.key, err)
	}
	return nil
}

// Reserve забирает письмо в список processing, ожидая не дольше timeout.
// Пустая очередь — ErrEmpty.
func (q *Queue) Reserve(ctx context.Context, timeout time.Duration) (Message, error) {
	if _, err := q.promote(ctx, time.Now()); err != nil {
		return Message{}, err
	}

	raw, err := q.rdb.BLMove(ctx, q.key, q.processingKey, "RIGHT", "LEFT", timeout).Result()
	if errors.Is(err, redis.Nil) {
		return Message{}, ErrEmpty
	}
	if err != nil {
		return Message{}, fmt.Errorf("BLMOVE %s: %w", q.key, err)
	}

	msg, err := decodeMessage(raw)
	if err != nil {
		// Повреждённое сообщение сразу уходит в dead-letter
		pipe := q.rdb.TxPipeline()
		pipe.LRem(ctx, q.processingKey, 1, raw)
		pipe.LPush(ctx, q.deadKey, raw)
		if _, pErr := pipe.Exec(ctx); pErr != nil {
			return Message{}, fmt.Errorf("перенос повреждённого письма: %w", pErr)
		}
		return Message{}, err
	}
	return msg, nil
}

// Ack удаляет обработанное письмо из списка processing.
func (q *Queue) Ack(ctx context.Context, msg Message) error {
	if err := q.rdb.LRem(ctx, q.processingKey, 1, msg.raw).Err(); err != nil {
		return fmt.Errorf("LREM %s: %w", q.processingKey, err)
	}
	return nil
}

// Retry откладывает письмо на delay с увеличенным счётчиком попыток:
// до истечения delay Reserve его не выдаст.
// После maxAttempts письмо переносится в dead-letter; dead=true.
func (q *Queue) Retry(ctx context.Context, msg Message, delay time.Duration) (dead bool, err error) {
	old := msg.raw
	msg.Attempts++
	raw, err := msg.encode()
	if err != nil {
		return false, err
	}

	pipe := q.rdb.TxPipeline()
	pipe.LRem(ctx, q.processingKey, 1, old)
	if msg.Attempts >= q.maxAttempts {
		dead = true
		pipe.LPush(ctx, q.deadKey, raw)
	} else {
		pipe.ZAdd(ctx, q.delayedKey, redis.Z{
			Score:  float64(time.Now().Add(delay).UnixMilli()),
			Member: raw,
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("повторная постановка письма %s: %w", msg.ID, err)
	}
	return dead, nil
}

// Dead сразу переносит письмо в dead-letter (повтор не поможет).
func (q *Queue) Dead(ctx context.Context, msg Message) error {
	pipe := q.rdb.TxPipeline()
	pipe.LRem(ctx, q.processingKey, 1, msg.raw)
	pipe.LPush(ctx, q.deadKey, msg.raw)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("перенос письма %s в dead-letter: %w", msg.ID, err)
	}
	return nil
}

// promote переносит в очередь отложенные письма, срок которых наступил к now.
func (q *Queue) promote(ctx context.Context, now time.Time) (int, error) {
	n, err := promoteScript.Run(ctx, q.rdb,
		[]string{q.delayedKey, q.key},
		now.UnixMilli(), promoteBatch,
	).Int()
	if err != nil {
		return 0, fmt.Errorf("перенос отложенных писем %s: %w", q.delayedKey, err)
	}
	return n, nil
}

// Recover возвращает в очередь письма, оставшиеся в processing
// после аварийной остановки обработчика. Возвращает число писем.
func (q *Queue) Recover(ctx context.Context) (int, error) {
	n := 0
	for {
		err := q.rdb.LMove(ctx, q.processingKey, q.key, "RIGHT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("LMOVE %s: %w", q.processingKey, err)
		}
		n++
	}
}

// Len возвращает длины списков: ожидающие (вместе с отложенными), в обработке, dead-letter.
func (q *Queue) Len(ctx context.Context) (pending, processing, dead int64, err error) {
	pipe := q.rdb.Pipeline()
	p := pipe.LLen(ctx, q.key)
	dl := pipe.ZCard(ctx, q.delayedKey)
	pr := pipe.LLen(ctx, q.processingKey)
	d := pipe.LLen(ctx, q.deadKey)
	if _, err = pipe.Exec(ctx); err != nil {
		return 0, 0, 0, fmt.Errorf("LLEN очереди писем: %w", err)
	}
	return p.Val() + dl.Val(), pr.Val(), d.Val(), nil
}
