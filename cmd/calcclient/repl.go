package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"remote-calculator/internal/machine"
)

const prompt = "> "

const helpText = `keys: 0-9 .  +/-  DEL  AC  + - * / ^  sqrt sin cos tan  =
several keys per line, separated by spaces; digits may be grouped (12.5)
quit exits`

// repl feeds each input line to the session as key events and prints the
// screen after every line.
func repl(ctx context.Context, in io.Reader, out io.Writer, sess *machine.Session, view *terminalView) error {
	scanner := bufio.NewScanner(in)

	fmt.Fprint(out, prompt)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "quit", "exit":
			return nil
		case "help", "?":
			fmt.Fprintln(out, helpText)
		case "":
		default:
			events, err := machine.ParseLine(line)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				break
			}
			for _, ev := range events {
				// The view has already reported the failure; the rest of
				// the line assumed this key succeeded.
				if err := sess.Do(ctx, ev); err != nil {
					if errors.Is(err, context.Canceled) || errors.Is(err, machine.ErrSessionClosed) {
						return err
					}
					break
				}
			}
			fmt.Fprintln(out, view.screen())
		}

		fmt.Fprint(out, prompt)
	}
	return scanner.Err()
}
