package calculator

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// ErrorText はゼロ除算時に現在オペランドへ入るセンチネル値
const ErrorText = "Error: Div by Zero"

// initialValuePattern は初期値として受け付ける数値表記（指数表記と Infinity を含む）
var initialValuePattern = regexp.MustCompile(`^[-+]?((\d+\.?\d*|\.\d+)([eE][-+]?\d+)?|Infinity)$`)

// Calculator は四則演算電卓の状態機械
//
// 状態は入力中の現在オペランド、演算子選択前に確定した前オペランド、保留中の演算子の
// 3つだけで構成される。ゼロ除算は error 値ではなく ErrorText を表示する状態として扱い、
// それ以外の不正な入力順序はすべて何もしない。
// 並行アクセスは想定していないため、複数の goroutine から使う場合は呼び出し側で直列化すること。
type Calculator struct {
	currentOperand  string
	previousOperand string
	operation       Operation
}

// State は電卓状態のスナップショット
type State struct {
	CurrentOperand  string    `json:"current_operand"`
	PreviousOperand string    `json:"previous_operand"`
	Operation       Operation `json:"operation"`
	Error           bool      `json:"error"`
}

// Display は描画用の2つの文字列
type Display struct {
	Current  string `json:"current"`
	Previous string `json:"previous"`
}

// New は初期状態の電卓を作成する
func New() *Calculator {
	c := &Calculator{}
	c.Reset()
	return c
}

// Reset は状態を初期値に戻す
func (c *Calculator) Reset() {
	c.currentOperand = "0"
	c.previousOperand = ""
	c.operation = OpNone
}

// IsError はゼロ除算の表示状態かどうかを返す
func (c *Calculator) IsError() bool {
	return c.currentOperand == ErrorText
}

// Delete は現在オペランドの末尾1文字を削除する
func (c *Calculator) Delete() {
	if c.IsError() {
		c.Reset()
		return
	}

	_, size := utf8.DecodeLastRuneInString(c.currentOperand)
	c.currentOperand = c.currentOperand[:len(c.currentOperand)-size]
	if c.currentOperand == "" {
		c.currentOperand = "0"
	}
}

// AppendDigit は数字または小数点を現在オペランドの末尾に追加する
func (c *Calculator) AppendDigit(token string) {
	if !IsDigitToken(token) {
		return
	}

	if c.IsError() {
		c.currentOperand = ""
	}

	// 小数点は1つまで
	if token == "." && strings.Contains(c.currentOperand, ".") {
		return
	}

	if c.currentOperand == "0" && token != "." {
		c.currentOperand = token
		return
	}
	c.currentOperand += token
}

// ChooseOperation は演算子を選択し、現在オペランドを前オペランドへ移す
// 既に演算子が保留されている場合は先に計算を畳み込む（演算子の優先順位は無視して左から順に評価する）
func (c *Calculator) ChooseOperation(op Operation) {
	if !op.Valid() {
		return
	}
	if c.IsError() || c.currentOperand == "" {
		return
	}

	if c.previousOperand != "" {
		c.Compute()
		// 畳み込みでゼロ除算になった場合はエラー表示を維持する
		if c.IsError() {
			return
		}
	}

	c.operation = op
	c.previousOperand = c.currentOperand
	c.currentOperand = ""
}

// Compute は保留中の演算を実行する
func (c *Calculator) Compute() {
	prev, ok := parseOperand(c.previousOperand)
	if !ok {
		return
	}
	current, ok := parseOperand(c.currentOperand)
	if !ok {
		return
	}

	var result float64
	switch c.operation {
	case OpAdd:
		result = prev + current
	case OpSubtract:
		result = prev - current
	case OpMultiply:
		result = prev * current
	case OpDivide:
		if current == 0 {
			c.currentOperand = ErrorText
			c.previousOperand = ""
			c.operation = OpNone
			return
		}
		result = prev / current
	case OpNone:
		return
	}

	c.currentOperand = FormatNumber(result)
	c.operation = OpNone
	c.previousOperand = ""
}

// SetInitialValue は外部から与えられた値を現在オペランドに設定する
// 10進数として解釈できない値は無視し、false を返す
func (c *Calculator) SetInitialValue(raw string) bool {
	value := strings.TrimSpace(raw)
	if !initialValuePattern.MatchString(value) {
		return false
	}
	c.currentOperand = value
	return true
}

// Display は現在の状態から表示用文字列を生成する
func (c *Calculator) Display() Display {
	d := Display{Current: FormatDisplay(c.currentOperand)}
	if c.operation != OpNone {
		d.Previous = FormatDisplay(c.previousOperand) + " " + c.operation.Symbol()
	}
	return d
}

// State は現在の状態のスナップショットを返す
func (c *Calculator) State() State {
	return State{
		CurrentOperand:  c.currentOperand,
		PreviousOperand: c.previousOperand,
		Operation:       c.operation,
		Error:           c.IsError(),
	}
}

// IsDigitToken は AppendDigit が受け付けるトークンかどうかを判定する
func IsDigitToken(token string) bool {
	if len(token) != 1 {
		return false
	}
	ch := token[0]
	return ch == '.' || (ch >= '0' && ch <= '9')
}
