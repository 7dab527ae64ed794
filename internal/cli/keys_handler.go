package cli

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	"github.com/y-hirakaw/webcalc/internal/calculator"
	"github.com/y-hirakaw/webcalc/internal/errors"
	"github.com/y-hirakaw/webcalc/internal/keymap"
)

// KeysHandler はキー列を電卓で再生するコマンドを処理する
type KeysHandler struct {
	app     *App
	initial string
	trace   bool
}

// NewKeysHandler は新しいKeysHandlerを作成する
func NewKeysHandler(app *App) *KeysHandler {
	return &KeysHandler{app: app}
}

// Command はcobraコマンドを返す
func (h *KeysHandler) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys <sequence>",
		Short: "Replay a key sequence and print the display",
		Long: `Replay a key sequence through a fresh calculator and print the two display lines
(previous operand, then current operand).

Digits and . enter numbers, + - * / or ÷ choose an operation, = computes,
< deletes one character and C clears.`,
		Example: `  webcalc keys "2+3*4="
  webcalc keys --initial 10 "÷4="
  webcalc keys --trace "12.5*2="`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return h.Handle(args[0])
		},
	}
	cmd.Flags().StringVar(&h.initial, "initial", "", "Initial value of the current operand")
	cmd.Flags().BoolVar(&h.trace, "trace", false, "Print the display after every key")
	return cmd
}

// Handle はキー列を再生して表示を出力する
func (h *KeysHandler) Handle(sequence string) error {
	c := calculator.New()
	if h.initial != "" && !c.SetInitialValue(h.initial) {
		return errors.NewError(errors.ErrorTypeInput, "invalid_initial_value", h.initial)
	}

	out := h.app.out
	for _, ev := range keymap.ParseSequence(sequence) {
		keymap.Apply(c, ev)
		if h.trace {
			d := c.Display()
			fmt.Fprintf(out, "%-2s | %s | %s\n", eventLabel(ev), d.Previous, d.Current)
		}
	}

	if !h.trace {
		d := c.Display()
		fmt.Fprintln(out, d.Previous)
		fmt.Fprintln(out, d.Current)
	}

	if h.app.debug {
		spew.Fdump(h.app.errOut, c.State())
	}
	return nil
}

// eventLabel はトレース出力でのキー表記を返す
func eventLabel(ev keymap.Event) string {
	switch ev.Kind {
	case keymap.KindEquals:
		return "="
	case keymap.KindDelete:
		return "<"
	case keymap.KindClear:
		return "C"
	default:
		return ev.Token
	}
}
