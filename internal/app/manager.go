package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"algoTrader/internal/adapters/logger"
	"algoTrader/internal/ports"
)

const defaultStopTimeout = 30 * time.Second

// Runnable is a long-running unit the BotManager supervises.
type Runnable interface {
	ID() string
	Run(ctx context.Context) error
}

// BotStatus reports the lifecycle state of a managed bot.
type BotStatus struct {
	ID        string
	Running   bool
	StartedAt time.Time
	StoppedAt time.Time
	Err       error // Error returned by Run, if any
}

type managedBot struct {
	bot       Runnable
	cancel    context.CancelFunc
	done      chan struct{}
	startedAt time.Time
	stoppedAt time.Time
	err       error
}

func (m *managedBot) running() bool {
	select {
	case <-m.done:
		return false
	default:
		return true
	}
}

// BotManager runs each bot in its own goroutine and stops them cooperatively.
type BotManager struct {
	mu          sync.Mutex
	bots        map[string]*managedBot
	logger      ports.Logger
	stopTimeout time.Duration
}

// NewBotManager creates a manager. stopTimeout bounds how long Stop waits for
// a bot to finish its current iteration; 0 means 30s.
func NewBotManager(log ports.Logger, stopTimeout time.Duration) *BotManager {
	if stopTimeout <= 0 {
		stopTimeout = defaultStopTimeout
	}
	return &BotManager{
		bots:        make(map[string]*managedBot),
		logger:      logger.OrNop(log),
		stopTimeout: stopTimeout,
	}
}

// Start launches bot under a context derived from ctx. Starting an id that is
// still running fails with ErrBotAlreadyRunning; a finished bot may be
// restarted.
func (m *BotManager) Start(ctx context.Context, bot Runnable) error {
	id := bot.ID()
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.bots[id]; ok && existing.running() {
		return fmt.Errorf("bot %s: %w", id, ports.ErrBotAlreadyRunning)
	}

	runCtx, cancel := context.WithCancel(ctx)
	mb := &managedBot{bot: bot, cancel: cancel, done: make(chan struct{}), startedAt: time.Now()}
	m.bots[id] = mb

	go func() {
		err := bot.Run(runCtx)
		m.mu.Lock()
		mb.err = err
		mb.stoppedAt = time.Now()
		m.mu.Unlock()
		if err != nil {
			m.logger.Error(context.Background(), err, "Bot exited with error", map[string]interface{}{"botID": id})
		}
		close(mb.done)
	}()

	m.logger.Info(ctx, "Bot launched", map[string]interface{}{"botID": id})
	return nil
}

// Stop cancels a running bot and waits for it to return. It fails with
// ErrBotNotRunning for unknown or finished bots and ErrTimeout when the bot
// does not return within the stop timeout.
func (m *BotManager) Stop(id string) error {
	m.mu.Lock()
	mb, ok := m.bots[id]
	m.mu.Unlock()
	if !ok || !mb.running() {
		return fmt.Errorf("bot %s: %w", id, ports.ErrBotNotRunning)
	}

	mb.cancel()
	select {
	case <-mb.done:
		m.logger.Info(context.Background(), "Bot stopped", map[string]interface{}{"botID": id})
		return nil
	case <-time.After(m.stopTimeout):
		return fmt.Errorf("bot %s did not stop within %s: %w", id, m.stopTimeout, ports.ErrTimeout)
	}
}

// StopAll stops every running bot and joins their errors.
func (m *BotManager) StopAll() error {
	var errs []error
	for _, id := range m.RunningIDs() {
		if err := m.Stop(id); err != nil && !errors.Is(err, ports.ErrBotNotRunning) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Status reports the state of a known bot; ErrNotFound otherwise.
func (m *BotManager) Status(id string) (BotStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mb, ok := m.bots[id]
	if !ok {
		return BotStatus{}, fmt.Errorf("bot %s: %w", id, ports.ErrNotFound)
	}
	return BotStatus{
		ID:        id,
		Running:   mb.running(),
		StartedAt: mb.startedAt,
		StoppedAt: mb.stoppedAt,
		Err:       mb.err,
	}, nil
}

// RunningIDs returns the ids of running bots in sorted order.
func (m *BotManager) RunningIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.bots))
	for id, mb := range m.bots {
		if mb.running() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Wait blocks until every started bot has returned or ctx is done.
func (m *BotManager) Wait(ctx context.Context) error {
	m.mu.Lock()
	dones := make([]chan struct{}, 0, len(m.bots))
	for _, mb := range m.bots {
		dones = append(dones, mb.done)
	}
	m.mu.Unlock()

	for _, done := range dones {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
