package synth

// Event is one item emitted by an utterance event stream. The set of
// implementations below is closed; consumers switch on the concrete type.
// All offsets are milliseconds relative to the start of the synthesised
// audio stream and are monotonically non-decreasing within each event kind.
type Event interface {
	isEvent()
}

// SsmlMark reports the audio offset at which a named document mark was
// reached.
type SsmlMark struct {
	AtMillis float32
	Name     string
}

// WordBoundary marks the time span of a single spoken word.
type WordBoundary struct {
	FromMillis float32
	ToMillis   float32
	Text       string
}

// SentenceBoundary marks the time span of a spoken sentence.
type SentenceBoundary struct {
	FromMillis float32
	ToMillis   float32
	Text       string
}

// BlendShape is one weighted shape key within a blend-shape viseme frame.
// Keys are backend-defined (ARKit blend shape locations are common). Weights
// range from 0 (no influence) to 1 (full influence); out-of-range weights
// are a backend defect and pass through unvalidated.
type BlendShape struct {
	Key    string
	Weight float32
}

// BlendShapeVisemeFrame is the set of blend shapes in effect at one point in
// time.
type BlendShapeVisemeFrame struct {
	BlendShapes []BlendShape
	FrameOffset float32
}

// BasicViseme is a single-character viseme class code. The vocabulary is
// backend-defined; vendors do not agree on a common mapping.
type BasicViseme rune

// BasicVisemeFrame is one basic viseme at one point in time.
type BasicVisemeFrame struct {
	Viseme      BasicViseme
	FrameOffset float32
}

// BlendShapeVisemesChunk batches blend-shape viseme frames.
type BlendShapeVisemesChunk struct {
	Frames []BlendShapeVisemeFrame
}

// VisemesChunk batches basic viseme frames.
type VisemesChunk struct {
	Frames []BasicVisemeFrame
}

// AudioChunk carries synthesised audio bytes in the negotiated format.
type AudioChunk struct {
	Data []byte
}

func (SsmlMark) isEvent()               {}
func (WordBoundary) isEvent()           {}
func (SentenceBoundary) isEvent()       {}
func (BlendShapeVisemesChunk) isEvent() {}
func (VisemesChunk) isEvent()           {}
func (AudioChunk) isEvent()             {}
