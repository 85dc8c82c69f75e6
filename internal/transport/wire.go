package transport

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
)

// Number is a float64 that survives JSON encoding for every IEEE value.
// Finite values are plain JSON numbers; NaN and the infinities travel as
// the strings "NaN", "+Inf" and "-Inf".
type Number float64

func (n Number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	switch {
	case math.IsNaN(f):
		return []byte(`"NaN"`), nil
	case math.IsInf(f, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(f, -1):
		return []byte(`"-Inf"`), nil
	}
	return strconv.AppendFloat(nil, f, 'g', -1, 64), nil
}

func (n *Number) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %s", b)
	}
	*n = Number(f)
	return nil
}

func Numbers(fs []float64) []Number {
	out := make([]Number, len(fs))
	for i, f := range fs {
		out[i] = Number(f)
	}
	return out
}

func Floats(ns []Number) []float64 {
	out := make([]float64, len(ns))
	for i, n := range ns {
		out[i] = float64(n)
	}
	return out
}

// CallRequest is the JSON body of POST /registry/{name}/{op}.
type CallRequest struct {
	Operands []Number `json:"operands"`
	ClientID string   `json:"client_id"`
}

// CallResponse is the JSON body of a successful call.
type CallResponse struct {
	Operation string   `json:"operation"`
	Operands  []Number `json:"operands"`
	Result    Number   `json:"result"`
}

// ErrorResponse is the JSON body of every failed registry request. Kind and
// Operands are set for domain errors only.
type ErrorResponse struct {
	Error    string   `json:"error"`
	Kind     string   `json:"kind,omitempty"`
	Operands []Number `json:"operands,omitempty"`
}

// Binding describes one bound service. Endpoint is the host:port the
// server advertises for calls; clients fall back to the lookup address
// when it is empty.
type Binding struct {
	Name       string   `json:"name"`
	Operations []string `json:"operations"`
	Endpoint   string   `json:"endpoint,omitempty"`
}

// BindingList is the JSON body of GET /registry.
type BindingList struct {
	Bindings []string `json:"bindings"`
}

const RegistryPath = "/registry"

func BindingPath(name string) string {
	return RegistryPath + "/" + url.PathEscape(name)
}

func CallPath(name, op string) string {
	return BindingPath(name) + "/" + url.PathEscape(op)
}
