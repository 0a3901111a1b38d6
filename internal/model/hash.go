package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainGraph prefixes graph-identity hashes. The version suffix enables
// future algorithm migration without colliding with old hashes.
const DomainGraph = "protoboard/graph/v1"

// hashWithDomain computes SHA-256 over domain + 0x00 + data. The null
// separator prevents ambiguity between domain and payload bytes.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// GraphHash computes the content-addressed identity of a graph. The hash is
// stable across map ordering and Unicode normalization of labels and scripts,
// and changes when any structural field changes. Trace journal rows carry it
// so a recorded run can be matched to the exact graph version that produced
// it.
func GraphHash(g *Graph) (string, error) {
	states := make([]any, len(g.States))
	for i, s := range g.States {
		states[i] = map[string]any{
			"id":         s.ID,
			"label":      s.Label,
			"role":       s.Role,
			"entry":      s.Entry,
			"exit":       s.Exit,
			"breakpoint": s.Breakpoint,
		}
	}
	transitions := make([]any, len(g.Transitions))
	for i, t := range g.Transitions {
		transitions[i] = map[string]any{
			"id":    t.ID,
			"from":  t.From,
			"to":    t.To,
			"event": t.Event,
			"guard": t.Guard,
		}
	}

	canonical, err := MarshalCanonical(map[string]any{
		"name":        g.Name,
		"states":      states,
		"transitions": transitions,
	})
	if err != nil {
		return "", fmt.Errorf("GraphHash: %w", err)
	}
	return hashWithDomain(DomainGraph, canonical), nil
}
