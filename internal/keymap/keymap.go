package keymap

import (
	"github.com/y-hirakaw/webcalc/internal/calculator"
)

// Kind は入力イベントの種類
type Kind string

const (
	// KindDigit は数字または小数点
	KindDigit Kind = "digit"
	// KindOperator は演算子
	KindOperator Kind = "operator"
	// KindEquals は計算実行
	KindEquals Kind = "equals"
	// KindDelete は1文字削除
	KindDelete Kind = "delete"
	// KindClear は全消去
	KindClear Kind = "clear"
)

// Event は電卓に渡す1つの入力イベント
type Event struct {
	Kind  Kind   `json:"kind"`
	Token string `json:"token,omitempty"`
}

// ボタンの data 属性名
const (
	ActionNumber    = "number"
	ActionOperation = "operation"
	ActionEquals    = "equals"
	ActionDelete    = "delete"
	ActionAllClear  = "all-clear"
)

// FromKey はブラウザの KeyboardEvent.key をイベントに変換する
func FromKey(key string) (Event, bool) {
	switch key {
	case "+", "-", "*":
		return Event{Kind: KindOperator, Token: key}, true
	case "/":
		return Event{Kind: KindOperator, Token: calculator.DivideSymbol}, true
	case "=", "Enter":
		return Event{Kind: KindEquals}, true
	case "Backspace":
		return Event{Kind: KindDelete}, true
	case "Escape":
		return Event{Kind: KindClear}, true
	}

	if calculator.IsDigitToken(key) {
		return Event{Kind: KindDigit, Token: key}, true
	}
	return Event{}, false
}

// FromButton は画面上のボタンの data 属性と表示テキストをイベントに変換する
func FromButton(action, label string) (Event, bool) {
	switch action {
	case ActionNumber:
		if !calculator.IsDigitToken(label) {
			return Event{}, false
		}
		return Event{Kind: KindDigit, Token: label}, true
	case ActionOperation:
		if _, ok := calculator.ParseOperation(label); !ok {
			return Event{}, false
		}
		return Event{Kind: KindOperator, Token: label}, true
	case ActionEquals:
		return Event{Kind: KindEquals}, true
	case ActionDelete:
		return Event{Kind: KindDelete}, true
	case ActionAllClear:
		return Event{Kind: KindClear}, true
	default:
		return Event{}, false
	}
}

// ParseSequence はキー列を表す文字列をイベント列に変換する
//
// 数字・小数点・+ - * / ÷ はそのまま、= は計算、C は全消去、< は1文字削除。
// それ以外の文字は読み飛ばす。
func ParseSequence(keys string) []Event {
	events := make([]Event, 0, len(keys))
	for _, r := range keys {
		var (
			ev Event
			ok bool
		)
		switch r {
		case 'C', 'c':
			ev, ok = Event{Kind: KindClear}, true
		case '<':
			ev, ok = Event{Kind: KindDelete}, true
		case '÷':
			ev, ok = Event{Kind: KindOperator, Token: calculator.DivideSymbol}, true
		default:
			ev, ok = FromKey(string(r))
		}
		if ok {
			events = append(events, ev)
		}
	}
	return events
}

// Apply はイベントを対応する電卓の操作に転送する
func Apply(c *calculator.Calculator, ev Event) {
	switch ev.Kind {
	case KindDigit:
		c.AppendDigit(ev.Token)
	case KindOperator:
		if op, ok := calculator.ParseOperation(ev.Token); ok {
			c.ChooseOperation(op)
		}
	case KindEquals:
		c.Compute()
	case KindDelete:
		c.Delete()
	case KindClear:
		c.Reset()
	}
}
