package harness

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// evaluate checks every declared expectation against the observed result,
// returning one failure line per miss. Empty expectation fields are skipped.
func evaluate(exp Expect, res *Result) []string {
	var failures []string
	fail := func(format string, args ...any) {
		failures = append(failures, fmt.Sprintf(format, args...))
	}

	if exp.State != "" && res.State != exp.State {
		fail("state: got %q, want %q", res.State, exp.State)
	}
	if exp.History != nil && !slices.Equal(res.History, exp.History) {
		fail("history: got %v, want %v", res.History, exp.History)
	}
	for _, key := range sortedKeys(exp.Context) {
		want := exp.Context[key]
		got, ok := res.Context[key]
		if !ok {
			fail("context[%s]: missing, want %v", key, want)
			continue
		}
		if !looseEqual(got, want) {
			fail("context[%s]: got %v (%T), want %v (%T)", key, got, got, want, want)
		}
	}
	for _, pin := range sortedKeys(exp.Pins) {
		if got, want := res.Board.Pins[pin], exp.Pins[pin]; got != want {
			fail("pin %d: got %v, want %v", pin, got, want)
		}
	}
	for _, ch := range sortedKeys(exp.PWM) {
		if got, want := res.Board.PWM[ch], exp.PWM[ch]; got != want {
			fail("pwm %d: got %d, want %d", ch, got, want)
		}
	}
	if exp.UARTTx != nil && !slices.Equal(res.Board.UARTTx, exp.UARTTx) {
		fail("uart_tx: got %v, want %v", res.Board.UARTTx, exp.UARTTx)
	}
	if exp.Errors != nil {
		got := make([]string, len(res.Errors))
		for i, e := range res.Errors {
			got[i] = e.Code
		}
		if !slices.Equal(got, exp.Errors) {
			fail("errors: got %v, want %v", got, exp.Errors)
		}
	}
	for _, want := range exp.LogContains {
		if !logsContain(res.Logs, want) {
			fail("logs: no message contains %q", want)
		}
	}

	return failures
}

// looseEqual compares a context value against its YAML counterpart. Numbers
// compare by value: YAML decoding and script evaluation do not always agree
// on int versus float for the same number.
func looseEqual(got, want any) bool {
	gf, gok := toFloat(got)
	wf, wok := toFloat(want)
	if gok && wok {
		return gf == wf
	}
	if gok != wok {
		return false
	}
	return reflect.DeepEqual(got, want)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return 0, false
}

func logsContain(logs []string, substr string) bool {
	for _, line := range logs {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

// sortedKeys keeps failure output stable across runs.
func sortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
