package synth

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/parleylabs/parley-core/internal/audio"
	"github.com/parleylabs/parley-core/internal/ssml"
)

func drain(t *testing.T, stream *Stream) []Event {
	t.Helper()
	ctx := context.Background()
	var events []Event
	for {
		event, err := stream.Next(ctx)
		if err == io.EOF {
			return events
		}
		if err != nil {
			t.Fatalf("stream error: %v", err)
		}
		events = append(events, event)
	}
}

func rawFormat() audio.Format {
	return audio.NewFormat(16000, audio.Mono, audio.RawContainer(audio.PcmS16))
}

func TestMockEmitsRequestedEventClasses(t *testing.T) {
	mock := NewMock(MockCapabilities())
	cfg := UtteranceConfig{
		EmitWordBoundaries:     true,
		EmitSentenceBoundaries: true,
		EmitVisemes:            true,
	}
	stream, err := mock.SynthesiseText(context.Background(), "Hello there. General Kenobi!", rawFormat(), cfg)
	if err != nil {
		t.Fatalf("synthesise: %v", err)
	}
	events := drain(t, stream)

	var words, sentences, visemes, shapes, chunks int
	for _, event := range events {
		switch event.(type) {
		case WordBoundary:
			words++
		case SentenceBoundary:
			sentences++
		case VisemesChunk:
			visemes++
		case BlendShapeVisemesChunk:
			shapes++
		case AudioChunk:
			chunks++
		}
	}
	if words != 4 {
		t.Fatalf("expected 4 word boundaries, got %d", words)
	}
	if sentences != 2 {
		t.Fatalf("expected 2 sentence boundaries, got %d", sentences)
	}
	if visemes != 2 || shapes != 2 {
		t.Fatalf("expected per-sentence viseme chunks, got %d/%d", visemes, shapes)
	}
	if chunks == 0 {
		t.Fatal("expected audio chunks")
	}
}

func TestMockSuppressesUnrequestedEvents(t *testing.T) {
	mock := NewMock(MockCapabilities())
	stream, err := mock.SynthesiseText(context.Background(), "Quiet please.", rawFormat(), UtteranceConfig{})
	if err != nil {
		t.Fatalf("synthesise: %v", err)
	}
	for _, event := range drain(t, stream) {
		if _, ok := event.(AudioChunk); !ok {
			t.Fatalf("unexpected metadata event %#v without config flags", event)
		}
	}
}

func TestMockOffsetsMonotonicPerKind(t *testing.T) {
	mock := NewMock(MockCapabilities())
	cfg := UtteranceConfig{EmitWordBoundaries: true, EmitSentenceBoundaries: true, EmitVisemes: true}
	stream, err := mock.SynthesiseText(context.Background(),
		"One two three. Four five six. Seven eight!", rawFormat(), cfg)
	if err != nil {
		t.Fatalf("synthesise: %v", err)
	}

	lastWord := float32(-1)
	lastSentence := float32(-1)
	lastViseme := float32(-1)
	for _, event := range drain(t, stream) {
		switch ev := event.(type) {
		case WordBoundary:
			if ev.FromMillis < lastWord {
				t.Fatalf("word boundary went backwards: %f < %f", ev.FromMillis, lastWord)
			}
			if ev.ToMillis < ev.FromMillis {
				t.Fatalf("word boundary inverted: %f > %f", ev.FromMillis, ev.ToMillis)
			}
			lastWord = ev.FromMillis
		case SentenceBoundary:
			if ev.FromMillis < lastSentence {
				t.Fatalf("sentence boundary went backwards: %f < %f", ev.FromMillis, lastSentence)
			}
			lastSentence = ev.FromMillis
		case VisemesChunk:
			for _, frame := range ev.Frames {
				if frame.FrameOffset < lastViseme {
					t.Fatalf("viseme frame went backwards: %f < %f", frame.FrameOffset, lastViseme)
				}
				lastViseme = frame.FrameOffset
			}
		}
	}
}

func TestMockTreatsMarkupAsLiteralText(t *testing.T) {
	mock := NewMock(MockCapabilities())
	cfg := UtteranceConfig{EmitWordBoundaries: true}
	stream, err := mock.SynthesiseText(context.Background(), `<speak>hello</speak>`, rawFormat(), cfg)
	if err != nil {
		t.Fatalf("synthesise: %v", err)
	}
	var sawLiteral bool
	for _, event := range drain(t, stream) {
		if wb, ok := event.(WordBoundary); ok && wb.Text == `<speak>hello</speak>` {
			sawLiteral = true
		}
	}
	if !sawLiteral {
		t.Fatal("markup input must surface as literal word text")
	}
}

func TestMockSSMLMarksAndDocumentVoice(t *testing.T) {
	mock := NewMock(MockCapabilities())
	doc := ssml.NewDocument().
		WithVoice("aria").
		Text("Before.").
		Mark("midpoint").
		Text("After.")
	// Config voice must be ignored for document synthesis; nothing observable
	// changes, the call simply must not fail or reroute.
	cfg := UtteranceConfig{EmitWordBoundaries: true, Voice: "wrong-voice"}
	stream, err := mock.SynthesiseSSML(context.Background(), doc, rawFormat(), cfg)
	if err != nil {
		t.Fatalf("synthesise: %v", err)
	}

	var mark *SsmlMark
	var firstWordEnd float32
	for _, event := range drain(t, stream) {
		switch ev := event.(type) {
		case SsmlMark:
			m := ev
			mark = &m
		case WordBoundary:
			if firstWordEnd == 0 {
				firstWordEnd = ev.ToMillis
			}
		}
	}
	if mark == nil {
		t.Fatal("expected an ssml mark event")
	}
	if mark.Name != "midpoint" {
		t.Fatalf("unexpected mark name %q", mark.Name)
	}
	if mark.AtMillis < firstWordEnd {
		t.Fatalf("mark offset %f precedes first word end %f", mark.AtMillis, firstWordEnd)
	}
}

func TestMockRiffOutputIsFramed(t *testing.T) {
	mock := NewMock(MockCapabilities())
	format := audio.NewFormat(16000, audio.Mono, audio.RiffContainer(audio.PcmS16))
	stream, err := mock.SynthesiseText(context.Background(), "Frame me.", format, UtteranceConfig{})
	if err != nil {
		t.Fatalf("synthesise: %v", err)
	}
	var data []byte
	for _, event := range drain(t, stream) {
		if chunk, ok := event.(AudioChunk); ok {
			data = append(data, chunk.Data...)
		}
	}
	if !bytes.HasPrefix(data, []byte("RIFF")) {
		t.Fatalf("expected RIFF header, got % x", data[:min(len(data), 8)])
	}
	if !bytes.Contains(data[:min(len(data), 16)], []byte("WAVE")) {
		t.Fatal("expected WAVE marker")
	}
}

func TestMockAbandonedStreamStopsProducing(t *testing.T) {
	mock := NewMock(MockCapabilities())
	cfg := UtteranceConfig{EmitWordBoundaries: true}
	stream, err := mock.SynthesiseText(context.Background(),
		"A long sentence with very many words to keep the producer busy.", rawFormat(), cfg)
	if err != nil {
		t.Fatalf("synthesise: %v", err)
	}
	if _, err := stream.Next(context.Background()); err != nil {
		t.Fatalf("first event: %v", err)
	}
	if err := stream.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if stream.Context().Err() == nil {
		t.Fatal("expected producer context cancelled after close")
	}
}

func TestMockNegotiateDelegates(t *testing.T) {
	mock := NewMock(MockCapabilities())
	pref := audio.FormatPreference{}.PreferSampleRates(16000).PreferChannels(audio.Mono)
	format, ok := mock.NegotiateAudioFormat(pref)
	if !ok {
		t.Fatal("expected a match")
	}
	if format.SampleRate() != 16000 || format.Channels() != audio.Mono {
		t.Fatalf("unexpected format %s", format)
	}
}
