package synth

import (
	"context"

	"github.com/parleylabs/parley-core/internal/audio"
	"github.com/parleylabs/parley-core/internal/ssml"
)

// UtteranceConfig selects which optional event classes a synthesis stream
// must emit. Voice and Language apply to plain-text synthesis only; document
// synthesis takes both from the document itself and ignores these fields.
type UtteranceConfig struct {
	EmitWordBoundaries     bool
	EmitSentenceBoundaries bool
	EmitVisemes            bool
	Voice                  string
	Language               string
}

// Synthesiser is the contract every speech backend implements. Any number of
// backends must satisfy it identically: same negotiation algorithm, same
// event ordering, same termination and cancellation semantics.
type Synthesiser interface {
	// NegotiateAudioFormat maps the application's ranked preferences onto
	// this backend's capability set. ok is false when any hard-constraint
	// dimension cannot be satisfied; that is an expected outcome, not an
	// error. The call is synchronous and pure over the backend's capability
	// data.
	NegotiateAudioFormat(pref audio.FormatPreference) (audio.Format, bool)

	// SynthesiseSSML streams the synthesis of a pre-built document. Voice
	// and language come from the document. Raw SSML strings are never
	// accepted anywhere on this contract.
	SynthesiseSSML(ctx context.Context, doc *ssml.Document, format audio.Format, cfg UtteranceConfig) (*Stream, error)

	// SynthesiseText streams the synthesis of plain text. Markup-looking
	// input is spoken as literal text, never parsed.
	SynthesiseText(ctx context.Context, text string, format audio.Format, cfg UtteranceConfig) (*Stream, error)
}
