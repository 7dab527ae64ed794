package calculator

// Operation は保留中の二項演算子
type Operation int

const (
	// OpNone は演算子が選択されていない状態
	OpNone Operation = iota
	// OpAdd は加算
	OpAdd
	// OpSubtract は減算
	OpSubtract
	// OpMultiply は乗算
	OpMultiply
	// OpDivide は除算
	OpDivide
)

// DivideSymbol は除算の表示記号
const DivideSymbol = "÷"

// Symbol は演算子の表示記号を返す（OpNone は空文字列）
func (o Operation) Symbol() string {
	switch o {
	case OpAdd:
		return "+"
	case OpSubtract:
		return "-"
	case OpMultiply:
		return "*"
	case OpDivide:
		return DivideSymbol
	default:
		return ""
	}
}

// String は fmt.Stringer を実装する
func (o Operation) String() string {
	if o == OpNone {
		return "none"
	}
	return o.Symbol()
}

// Valid は選択可能な演算子かどうかを返す
func (o Operation) Valid() bool {
	return o >= OpAdd && o <= OpDivide
}

// MarshalText は演算子を記号としてエンコードする
func (o Operation) MarshalText() ([]byte, error) {
	return []byte(o.Symbol()), nil
}

// UnmarshalText は記号から演算子を復元する（空文字列は OpNone）
func (o *Operation) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*o = OpNone
		return nil
	}
	op, ok := ParseOperation(string(text))
	if !ok {
		*o = OpNone
		return nil
	}
	*o = op
	return nil
}

// ParseOperation は演算子記号を Operation に変換する
// 受け付けるのは + - * ÷ のみで、キーボードの / は呼び出し側で ÷ に変換しておくこと
func ParseOperation(symbol string) (Operation, bool) {
	switch symbol {
	case "+":
		return OpAdd, true
	case "-":
		return OpSubtract, true
	case "*":
		return OpMultiply, true
	case DivideSymbol:
		return OpDivide, true
	default:
		return OpNone, false
	}
}
