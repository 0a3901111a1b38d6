package testutil

// FixedToken returns the same run token every time.
//
// One simulation run consumes one token, so a constant is enough for most
// tests; the harness uses it to keep golden traces byte-identical. Satisfies
// engine.TokenGenerator.
type FixedToken string

// Generate returns the fixed token, or "run-test-0001" if empty.
func (t FixedToken) Generate() string {
	if t == "" {
		return "run-test-0001"
	}
	return string(t)
}
