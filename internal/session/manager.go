package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/y-hirakaw/webcalc/internal/calculator"
	"github.com/y-hirakaw/webcalc/internal/errors"
	"github.com/y-hirakaw/webcalc/internal/keymap"
)

const (
	// DefaultTTL は無操作のセッションを破棄するまでの時間
	DefaultTTL = 30 * time.Minute
	// DefaultSweepInterval は期限切れセッションを掃除する間隔
	DefaultSweepInterval = time.Minute
	// subscriberBuffer は購読チャネルのバッファサイズ
	subscriberBuffer = 100
)

// UpdateEvent は購読者に配信される表示更新イベント
type UpdateEvent struct {
	Type      string             `json:"type"`
	SessionID string             `json:"session_id"`
	Seq       int                `json:"seq"`
	Timestamp time.Time          `json:"timestamp"`
	Display   calculator.Display `json:"display"`
}

// Option は Manager の設定を変更する
type Option func(*Manager)

// WithTTL はセッションの有効期限を設定する（0以下で無期限）
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.ttl = ttl
	}
}

// WithSweepInterval は掃除の間隔を設定する
func WithSweepInterval(interval time.Duration) Option {
	return func(m *Manager) {
		m.sweepInterval = interval
	}
}

// WithNowFunc は現在時刻の取得関数を差し替える
func WithNowFunc(now func() time.Time) Option {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

// Manager はセッションとその購読者を管理する
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	// リアルタイム更新用（セッションID → クライアントID → チャネル）
	subscribers map[string]map[string]chan *UpdateEvent
	subsMutex   sync.RWMutex

	ttl           time.Duration
	sweepInterval time.Duration
	nowFunc       func() time.Time
}

// NewManager は新しいセッションマネージャーを作成する
func NewManager(options ...Option) *Manager {
	m := &Manager{
		sessions:      make(map[string]*Session),
		subscribers:   make(map[string]map[string]chan *UpdateEvent),
		ttl:           DefaultTTL,
		sweepInterval: DefaultSweepInterval,
		nowFunc:       time.Now,
	}
	for _, option := range options {
		option(m)
	}
	return m
}

// Create は新しいセッションを作成する
// initialValue が空でなければ電卓の初期値として適用を試みる
func (m *Manager) Create(initialValue string) *Session {
	s := newSession(m.nowFunc())
	if initialValue != "" {
		s.SetInitialValue(initialValue)
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

// Get はセッションを取得する
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, errors.SessionNotFound(id)
	}
	return s, nil
}

// Delete はセッションを破棄し、購読者のチャネルを閉じる
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	m.subsMutex.Lock()
	for clientID, ch := range m.subscribers[id] {
		close(ch)
		delete(m.subscribers[id], clientID)
	}
	delete(m.subscribers, id)
	m.subsMutex.Unlock()

	return ok
}

// Len はセッション数を返す
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Dispatch はセッションにイベントを適用し、購読者に更新を配信する
func (m *Manager) Dispatch(id string, ev keymap.Event) (calculator.Display, error) {
	s, err := m.Get(id)
	if err != nil {
		return calculator.Display{}, err
	}

	now := m.nowFunc()
	display := s.dispatch(ev, now, func(seq int, d calculator.Display) {
		m.Broadcast(&UpdateEvent{
			Type:      "display",
			SessionID: id,
			Seq:       seq,
			Timestamp: now,
			Display:   d,
		})
	})
	return display, nil
}

// Subscribe はセッションの表示更新を購読する
func (m *Manager) Subscribe(id, clientID string) (<-chan *UpdateEvent, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	s.touch(m.nowFunc())

	m.subsMutex.Lock()
	defer m.subsMutex.Unlock()

	if m.subscribers[id] == nil {
		m.subscribers[id] = make(map[string]chan *UpdateEvent)
	}
	ch := make(chan *UpdateEvent, subscriberBuffer)
	m.subscribers[id][clientID] = ch
	return ch, nil
}

// Unsubscribe は購読を停止する
func (m *Manager) Unsubscribe(id, clientID string) {
	m.subsMutex.Lock()
	defer m.subsMutex.Unlock()

	if ch, exists := m.subscribers[id][clientID]; exists {
		close(ch)
		delete(m.subscribers[id], clientID)
	}
	if len(m.subscribers[id]) == 0 {
		delete(m.subscribers, id)
	}
}

// Broadcast はセッションの全購読者にイベントを送信する
func (m *Manager) Broadcast(event *UpdateEvent) {
	m.subsMutex.RLock()
	defer m.subsMutex.RUnlock()

	for _, ch := range m.subscribers[event.SessionID] {
		select {
		case ch <- event:
		default:
			// バッファが満杯の場合はスキップ
		}
	}
}

// hasSubscribers はセッションに購読者がいるかを返す
func (m *Manager) hasSubscribers(id string) bool {
	m.subsMutex.RLock()
	defer m.subsMutex.RUnlock()
	return len(m.subscribers[id]) > 0
}

// Sweep は期限切れのセッションを破棄し、破棄した数を返す
// 購読者が接続中のセッションは破棄しない
func (m *Manager) Sweep(now time.Time) int {
	if m.ttl <= 0 {
		return 0
	}

	m.mu.RLock()
	var expired []string
	for id, s := range m.sessions {
		if now.Sub(s.LastActive()) > m.ttl {
			expired = append(expired, id)
		}
	}
	m.mu.RUnlock()

	removed := 0
	for _, id := range expired {
		if m.hasSubscribers(id) {
			continue
		}
		if m.Delete(id) {
			removed++
		}
	}
	return removed
}

// Run はコンテキストが終了するまで定期的に Sweep を実行する
func (m *Manager) Run(ctx context.Context) error {
	if m.ttl <= 0 || m.sweepInterval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := m.Sweep(m.nowFunc()); n > 0 {
				log.Printf("🧹 Swept %d idle session(s)", n)
			}
		}
	}
}
