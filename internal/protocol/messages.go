package protocol

import "time"

// SynthesiseRequest asks the gateway to synthesise one utterance. Exactly
// one of Text and Document is set: Text is always literal, Document is a
// structured SSML document. Raw SSML strings are not accepted on the wire;
// the gateway never parses markup. Preference lists arrive in priority
// order, earliest first.
type SynthesiseRequest struct {
	UtteranceID string    `json:"utterance_id,omitempty"`
	Text        string    `json:"text,omitempty"`
	Document    *Document `json:"document,omitempty"`
	Voice       string    `json:"voice,omitempty"`
	Language    string    `json:"language,omitempty"`

	SampleRates []uint32 `json:"sample_rates,omitempty"`
	Channels    []int    `json:"channels,omitempty"`
	Bitrates    []uint16 `json:"bitrates,omitempty"`
	Containers  []string `json:"containers,omitempty"`

	WordBoundaries     bool `json:"word_boundaries,omitempty"`
	SentenceBoundaries bool `json:"sentence_boundaries,omitempty"`
	Visemes            bool `json:"visemes,omitempty"`
}

// Document is the wire form of a structured SSML document. Voice and
// language live on the document; for document synthesis the request-level
// Voice/Language fields are ignored.
type Document struct {
	Voice     string             `json:"voice,omitempty"`
	Language  string             `json:"language,omitempty"`
	Fragments []DocumentFragment `json:"fragments"`
}

// DocumentFragment is one ordered document piece: exactly one of Text,
// Mark, and BreakMS is meaningful.
type DocumentFragment struct {
	Text    string `json:"text,omitempty"`
	Mark    string `json:"mark,omitempty"`
	BreakMS int    `json:"break_ms,omitempty"`
}

// CancelRequest aborts a running utterance stream.
type CancelRequest struct {
	UtteranceID string `json:"utterance_id"`
}

// UtteranceEvent is one stream event on the wire. Kind discriminates which
// of the optional fields are meaningful.
type UtteranceEvent struct {
	UtteranceID string  `json:"utterance_id"`
	Sequence    int     `json:"sequence"`
	Kind        string  `json:"kind"`
	FromMillis  float32 `json:"from_ms,omitempty"`
	ToMillis    float32 `json:"to_ms,omitempty"`
	Text        string  `json:"text,omitempty"`
	Name        string  `json:"name,omitempty"`
	Audio       []byte  `json:"audio,omitempty"`
	Frames      []byte  `json:"frames,omitempty"`
}

// Event kinds carried by UtteranceEvent.
const (
	KindAudioChunk       = "audio_chunk"
	KindWordBoundary     = "word_boundary"
	KindSentenceBoundary = "sentence_boundary"
	KindSsmlMark         = "ssml_mark"
	KindVisemes          = "visemes"
	KindBlendShapes      = "blend_shapes"
)

// VisemeFrame is the JSON shape of one viseme frame inside
// UtteranceEvent.Frames.
type VisemeFrame struct {
	Viseme   string  `json:"viseme,omitempty"`
	OffsetMS float32 `json:"offset_ms"`
}

// BlendShapeFrame is the JSON shape of one blend-shape frame inside
// UtteranceEvent.Frames. Shapes stay ordered on the wire.
type BlendShapeFrame struct {
	Shapes   []BlendShapeWeight `json:"shapes"`
	OffsetMS float32            `json:"offset_ms"`
}

// BlendShapeWeight is one weighted shape key.
type BlendShapeWeight struct {
	Key    string  `json:"key"`
	Weight float32 `json:"weight"`
}

// UtteranceStatus is the terminal message for an utterance. Completed and
// Error are mutually exclusive; a no-match negotiation sets NoFormat instead
// of Error, since "no compatible format" is an expected outcome rather than
// a failure.
type UtteranceStatus struct {
	UtteranceID string    `json:"utterance_id"`
	Completed   bool      `json:"completed"`
	NoFormat    bool      `json:"no_format,omitempty"`
	Error       string    `json:"error,omitempty"`
	Format      string    `json:"format,omitempty"`
	Events      int       `json:"events"`
	Timestamp   time.Time `json:"timestamp"`
}

const (
	SubjectSynthesise           = "speech.synthesise"
	SubjectUtteranceEventPrefix = "speech.utterance.event"
	SubjectUtteranceStatus      = "speech.utterance.status"
	SubjectUtteranceCancel      = "speech.utterance.cancel"
)
