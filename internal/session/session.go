package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/y-hirakaw/webcalc/internal/calculator"
	"github.com/y-hirakaw/webcalc/internal/keymap"
)

// Session は1つの電卓インスタンスを所有するクライアントセッション
//
// 電卓そのものはロックを持たないため、イベントの適用と表示の生成は
// すべてこのセッションのミューテックス下で1件ずつ完了させる。
type Session struct {
	ID        string
	CreatedAt time.Time

	mu         sync.Mutex
	calc       *calculator.Calculator
	lastActive time.Time
	events     int
}

// Snapshot はAPIで返すセッション情報
type Snapshot struct {
	ID         string             `json:"id"`
	Display    calculator.Display `json:"display"`
	State      calculator.State   `json:"state"`
	Events     int                `json:"events"`
	CreatedAt  time.Time          `json:"created_at"`
	LastActive time.Time          `json:"last_active"`
}

// newSession は初期状態の電卓を持つセッションを作成する
func newSession(now time.Time) *Session {
	return &Session{
		ID:         uuid.NewString(),
		CreatedAt:  now,
		calc:       calculator.New(),
		lastActive: now,
	}
}

// Dispatch はイベントを電卓に適用し、適用後の表示を返す
func (s *Session) Dispatch(ev keymap.Event) calculator.Display {
	return s.DispatchAt(ev, time.Now())
}

// DispatchAt は時刻を指定してイベントを適用する
func (s *Session) DispatchAt(ev keymap.Event, now time.Time) calculator.Display {
	return s.dispatch(ev, now, nil)
}

// dispatch はイベントを適用し、ロックを保持したまま notify を呼ぶ
// notify には適用後のイベント番号と表示が渡されるため、通知の順序は適用順と一致する
func (s *Session) dispatch(ev keymap.Event, now time.Time, notify func(seq int, d calculator.Display)) calculator.Display {
	s.mu.Lock()
	defer s.mu.Unlock()

	keymap.Apply(s.calc, ev)
	s.events++
	s.lastActive = now
	display := s.calc.Display()
	if notify != nil {
		notify(s.events, display)
	}
	return display
}

// SetInitialValue は初期値を設定する（解釈できない値は無視される）
func (s *Session) SetInitialValue(raw string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calc.SetInitialValue(raw)
}

// Display は現在の表示を返す
func (s *Session) Display() calculator.Display {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calc.Display()
}

// Snapshot は現在のセッション情報を返す
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:         s.ID,
		Display:    s.calc.Display(),
		State:      s.calc.State(),
		Events:     s.events,
		CreatedAt:  s.CreatedAt,
		LastActive: s.lastActive,
	}
}

// LastActive は最後にイベントを受け付けた時刻を返す
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// touch はアクティブ時刻を更新する
func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = now
}
