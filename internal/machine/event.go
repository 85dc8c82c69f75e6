package machine

import (
	"fmt"
	"strings"

	"remote-calculator/internal/calculator"
)

type EventKind int

const (
	Digit EventKind = iota
	DecimalPoint
	ToggleSign
	Delete
	ClearAll
	BinaryOperator
	UnaryFunction
	Equals
)

var eventKindNames = map[EventKind]string{
	Digit:          "digit",
	DecimalPoint:   "decimal-point",
	ToggleSign:     "toggle-sign",
	Delete:         "delete",
	ClearAll:       "clear-all",
	BinaryOperator: "binary-operator",
	UnaryFunction:  "unary-function",
	Equals:         "equals",
}

func (k EventKind) String() string {
	if s, ok := eventKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Event is one discrete input. Digit is set for Digit events, Op for
// BinaryOperator and UnaryFunction events.
type Event struct {
	Kind  EventKind
	Digit byte
	Op    calculator.Op
}

func (e Event) String() string {
	switch e.Kind {
	case Digit:
		return string(e.Digit)
	case BinaryOperator, UnaryFunction:
		return e.Kind.String() + ":" + string(e.Op)
	}
	return e.Kind.String()
}

func DigitEvent(d byte) Event            { return Event{Kind: Digit, Digit: d} }
func BinaryEvent(op calculator.Op) Event { return Event{Kind: BinaryOperator, Op: op} }
func UnaryEvent(op calculator.Op) Event  { return Event{Kind: UnaryFunction, Op: op} }

var keyEvents = map[string]Event{
	".":    {Kind: DecimalPoint},
	"+/-":  {Kind: ToggleSign},
	"±":    {Kind: ToggleSign},
	"DEL":  {Kind: Delete},
	"AC":   {Kind: ClearAll},
	"=":    {Kind: Equals},
	"+":    BinaryEvent(calculator.OpAdd),
	"-":    BinaryEvent(calculator.OpSub),
	"*":    BinaryEvent(calculator.OpMul),
	"×":    BinaryEvent(calculator.OpMul),
	"/":    BinaryEvent(calculator.OpDiv),
	"÷":    BinaryEvent(calculator.OpDiv),
	"^":    BinaryEvent(calculator.OpPow),
	"x^y":  BinaryEvent(calculator.OpPow),
	"√":    UnaryEvent(calculator.OpSqrt),
	"sqrt": UnaryEvent(calculator.OpSqrt),
	"sin":  UnaryEvent(calculator.OpSin),
	"cos":  UnaryEvent(calculator.OpCos),
	"tan":  UnaryEvent(calculator.OpTan),
}

// ParseKey maps a key label to the events it produces. A run of digits
// and decimal points such as "3.14" expands to one event per character.
func ParseKey(label string) ([]Event, error) {
	key := strings.TrimSpace(label)
	if ev, ok := keyEvents[key]; ok {
		return []Event{ev}, nil
	}
	if ev, ok := keyEvents[strings.ToUpper(key)]; ok && (ev.Kind == Delete || ev.Kind == ClearAll) {
		return []Event{ev}, nil
	}
	if ev, ok := keyEvents[strings.ToLower(key)]; ok && ev.Kind == UnaryFunction {
		return []Event{ev}, nil
	}

	if key == "" {
		return nil, fmt.Errorf("empty key")
	}
	events := make([]Event, 0, len(key))
	for i := 0; i < len(key); i++ {
		switch c := key[i]; {
		case c >= '0' && c <= '9':
			events = append(events, DigitEvent(c))
		case c == '.':
			events = append(events, Event{Kind: DecimalPoint})
		default:
			return nil, fmt.Errorf("unknown key %q", label)
		}
	}
	return events, nil
}

// ParseLine splits a line on whitespace and parses every token as a key.
func ParseLine(line string) ([]Event, error) {
	var events []Event
	for _, tok := range strings.Fields(line) {
		evs, err := ParseKey(tok)
		if err != nil {
			return nil, err
		}
		events = append(events, evs...)
	}
	return events, nil
}
