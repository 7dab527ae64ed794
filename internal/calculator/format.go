package calculator

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// displayLanguage は桁区切りに使うロケール（表示形式は固定）
var displayLanguage = language.English

// FormatDisplay はオペランド文字列を表示用に整形する
//
// 整数部は3桁ごとにカンマで区切り、小数部は入力中の桁をそのまま残す。
// 整数部が数値として解釈できない場合（空文字列など）は整数部を空にする。
func FormatDisplay(value string) string {
	if value == ErrorText {
		return value
	}

	intPart, fracPart, hasFrac := strings.Cut(value, ".")

	integerDisplay := ""
	if v, ok := parseOperand(intPart); ok {
		integerDisplay = groupInteger(v)
	}

	if hasFrac {
		return integerDisplay + "." + fracPart
	}
	return integerDisplay
}

// groupInteger は小数部なしで桁区切りした整数表記を返す
func groupInteger(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "∞"
	case math.IsInf(v, -1):
		return "-∞"
	}
	p := message.NewPrinter(displayLanguage)
	grouped := p.Sprint(number.Decimal(v, number.MaxFractionDigits(0)))
	// -0 は符号なしで整形されるため符号を戻す
	if math.Signbit(v) && !strings.HasPrefix(grouped, "-") {
		grouped = "-" + grouped
	}
	return grouped
}

// FormatNumber は計算結果を現在オペランドとして保持する文字列に変換する
// 1e21 以上や 1e-6 未満の絶対値は指数表記になる
func FormatNumber(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	case v == 0:
		return "0"
	}

	abs := math.Abs(v)
	if abs >= 1e21 || abs < 1e-6 {
		return trimExponent(strconv.FormatFloat(v, 'e', -1, 64))
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// trimExponent は "1.5e-07" を "1.5e-7" の形に揃える
func trimExponent(s string) string {
	mantissa, exp, ok := strings.Cut(s, "e")
	if !ok || len(exp) < 2 {
		return s
	}
	sign, digits := exp[:1], strings.TrimLeft(exp[1:], "0")
	if digits == "" {
		digits = "0"
	}
	return mantissa + "e" + sign + digits
}

// parseOperand はオペランド文字列を数値として解釈する
// 桁あふれは ±Inf として受け入れ、NaN は解釈不能として扱う
func parseOperand(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}
