// Package agent drives the bounded reasoning loop: an input safety gate,
// up to MaxSteps provider turns with concurrent tool execution, an output
// safety gate, and an optional single resynthesis pass when the answer
// comes back in the wrong language.
//
// Tool side effects (retrieved chunks, citation numbers) accumulate in the
// per-run session, so a later synthesize_answer call sees the union of
// everything retrieved by earlier steps.
package agent
