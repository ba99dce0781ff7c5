package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"tutormula/internal/conversation"
	"tutormula/internal/lock"
	"tutormula/internal/logger/sl"
	"tutormula/internal/metrics"
	"tutormula/internal/security"
)

const (
	defaultLockTTL     = 30 * time.Second
	defaultLockRetries = 5
	defaultLockBackoff = 200 * time.Millisecond
	errorBackoff       = 3 * time.Second

	failureText = "Something went wrong. Please try again."
	limitedText = "You're sending messages too quickly. Please wait a moment."
)

// Handler turns one inbound message into replies
type Handler interface {
	Handle(ctx context.Context, msg conversation.Message) ([]conversation.Reply, error)
}

// API is the part of Client the poller uses
type API interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error)
	SendMessage(ctx context.Context, chatID int64, text string, keyboard [][]string) error
}

type PollerConfig struct {
	Workers     int
	PollTimeout time.Duration
	LockTTL     time.Duration
	LockRetries int
	LockBackoff time.Duration
}

// Poller long-polls for updates and hands each one to a worker. Updates
// from the same user always land on the same worker, so they are
// processed in arrival order; the per-user lock extends that guarantee
// across processes.
type Poller struct {
	api     API
	handler Handler
	locker  lock.Locker
	limiter *security.RateLimiter
	cfg     PollerConfig
	metrics *metrics.Metrics
	log     *slog.Logger
}

func NewPoller(api API, handler Handler, locker lock.Locker, limiter *security.RateLimiter, cfg PollerConfig, m *metrics.Metrics, log *slog.Logger) *Poller {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaultLockTTL
	}
	if cfg.LockRetries < 1 {
		cfg.LockRetries = defaultLockRetries
	}
	if cfg.LockBackoff <= 0 {
		cfg.LockBackoff = defaultLockBackoff
	}
	return &Poller{
		api:     api,
		handler: handler,
		locker:  locker,
		limiter: limiter,
		cfg:     cfg,
		metrics: m,
		log:     log.With(slog.String("component", "poller")),
	}
}

// Run polls until ctx is cancelled and waits for in-flight updates to finish
func (p *Poller) Run(ctx context.Context) error {
	const op = "telegram.Poller.Run"

	shards := make([]chan Update, p.cfg.Workers)
	var wg sync.WaitGroup
	for i := range shards {
		shards[i] = make(chan Update, 16)
		wg.Add(1)
		go func(in <-chan Update) {
			defer wg.Done()
			for u := range in {
				p.handleUpdate(ctx, u)
			}
		}(shards[i])
	}
	defer func() {
		for _, ch := range shards {
			close(ch)
		}
		wg.Wait()
	}()

	p.log.Info("polling for updates", slog.Int("workers", p.cfg.Workers))

	var offset int64
	for {
		if ctx.Err() != nil {
			return nil
		}

		updates, err := p.api.GetUpdates(ctx, offset, p.cfg.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.log.Error("failed to get updates", slog.String("op", op), sl.Err(err))
			if !sleep(ctx, errorBackoff) {
				return nil
			}
			continue
		}

		for _, u := range updates {
			offset = u.UpdateID + 1
			if u.Message == nil || u.Message.From == nil || u.Message.Text == "" {
				continue
			}
			shard := shards[uint64(u.Message.From.ID)%uint64(len(shards))]
			select {
			case shard <- u:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (p *Poller) handleUpdate(ctx context.Context, u Update) {
	msg := u.Message
	userID := msg.From.ID
	log := p.log.With(
		slog.String("trace_id", uuid.NewString()),
		slog.Int64("external_id", userID),
		slog.Int64("update_id", u.UpdateID),
	)

	if p.limiter != nil && !p.limiter.Allow(strconv.FormatInt(userID, 10)) {
		log.Warn("rate limited")
		p.metrics.Update("limited")
		p.reply(ctx, log, msg.Chat.ID, conversation.Reply{Text: limitedText})
		return
	}

	key := fmt.Sprintf("dialog:%d", userID)
	acquired, err := p.acquire(ctx, key)
	if err != nil {
		log.Error("failed to acquire dialog lock", sl.Err(err))
		p.metrics.Update("error")
		return
	}
	if !acquired {
		log.Warn("dialog busy, dropping update")
		p.metrics.Update("busy")
		return
	}
	defer func() {
		if err := p.locker.Unlock(context.WithoutCancel(ctx), key); err != nil {
			log.Error("failed to release dialog lock", sl.Err(err))
		}
	}()

	replies, err := p.handler.Handle(ctx, conversation.Message{
		ExternalID: userID,
		Name:       msg.From.FullName(),
		Text:       msg.Text,
	})
	if err != nil {
		log.Error("failed to handle update", sl.Err(err))
		p.metrics.Update("error")
		p.reply(ctx, log, msg.Chat.ID, conversation.Reply{Text: failureText})
		return
	}

	for _, r := range replies {
		p.reply(ctx, log, msg.Chat.ID, r)
	}
	p.metrics.Update("ok")
}

func (p *Poller) acquire(ctx context.Context, key string) (bool, error) {
	for attempt := 0; attempt < p.cfg.LockRetries; attempt++ {
		ok, err := p.locker.Lock(ctx, key, p.cfg.LockTTL)
		if err != nil || ok {
			return ok, err
		}
		if !sleep(ctx, p.cfg.LockBackoff) {
			return false, ctx.Err()
		}
	}
	return false, nil
}

func (p *Poller) reply(ctx context.Context, log *slog.Logger, chatID int64, r conversation.Reply) {
	if err := p.api.SendMessage(ctx, chatID, r.Text, r.Keyboard); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			log.Warn("telegram rejected reply", slog.Int("code", apiErr.Code), slog.String("description", apiErr.Description))
			return
		}
		log.Error("failed to send reply", sl.Err(err))
	}
}

// sleep waits for d and reports false if ctx ended first
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
