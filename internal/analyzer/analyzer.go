// Package analyzer implements the external text-analysis boundary: the
// Analyzer interface consumed by the coordinator, an Anthropic messages API
// client, prompt construction, and the tolerant parsing of model output.
package analyzer

import "context"

// Result is the structured outcome of analyzing one journal entry.
type Result struct {
	Message      string   `json:"message"`
	Tags         []string `json:"tags"`
	Observations []string `json:"observations"`
	Questions    []string `json:"questions"`
	Pathways     []string `json:"potentialPathways"`
}

// Analyzer produces a structured analysis of a journal entry given the
// user's established health context. Implementations may block on network
// I/O; the coordinator owns retry policy, so a single call should fail fast
// rather than retry internally.
type Analyzer interface {
	Analyze(ctx context.Context, content, healthContext string) (*Result, error)
}
