package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"remote-calculator/internal/calculator"
	"remote-calculator/internal/dispatch"
	"remote-calculator/internal/machine"
)

// terminalView keeps the latest display and expression and prints errors
// as they are reported.
type terminalView struct {
	mu         sync.Mutex
	out        io.Writer
	display    string
	expression string
}

func newTerminalView(out io.Writer) *terminalView {
	return &terminalView{out: out, display: "0"}
}

func (v *terminalView) SetDisplay(value string) {
	v.mu.Lock()
	v.display = value
	v.mu.Unlock()
}

func (v *terminalView) SetExpression(text string) {
	v.mu.Lock()
	v.expression = text
	v.mu.Unlock()
}

func (v *terminalView) ReportError(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintf(v.out, "error: %s\n", describe(err))
}

// screen renders the expression line above the display value.
func (v *terminalView) screen() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if strings.TrimSpace(v.expression) == "" {
		return v.display
	}
	return fmt.Sprintf("%s\n%s", strings.TrimRight(v.expression, " "), v.display)
}

func describe(err error) string {
	var roe *dispatch.RemoteOperationError
	if errors.As(err, &roe) {
		operands := make([]string, len(roe.Operands))
		for i, o := range roe.Operands {
			operands[i] = machine.FormatNumber(o)
		}
		list := strings.Join(operands, ", ")
		switch {
		case errors.Is(err, calculator.ErrDivisionByZero):
			return fmt.Sprintf("division by zero (%s)", list)
		case errors.Is(err, calculator.ErrNegativeRadicand):
			return fmt.Sprintf("square root of a negative number (%s)", list)
		}
		return fmt.Sprintf("%s failed (%s): %s", roe.Op, list, roe.Message)
	}

	if errors.Is(err, dispatch.ErrServiceUnavailable) {
		return fmt.Sprintf("service not connected: %v", err)
	}

	var te *dispatch.TransportError
	if errors.As(err, &te) {
		return fmt.Sprintf("connection to %s failed: %v", te.Binding, te.Err)
	}

	return err.Error()
}

func printHeader(out io.Writer, user, address string, conns []dispatch.Connection) {
	fmt.Fprintf(out, "User:      %s\n", user)
	fmt.Fprintf(out, "Client IP: %s\n", address)
	for _, c := range conns {
		if c.Err != nil {
			fmt.Fprintf(out, "%-28s not connected: %v\n", c.Target, c.Err)
			continue
		}
		cats := make([]string, len(c.Categories))
		for i, cat := range c.Categories {
			cats[i] = string(cat)
		}
		fmt.Fprintf(out, "%-28s connected (%s)\n", c.Target, strings.Join(cats, ", "))
	}
}
