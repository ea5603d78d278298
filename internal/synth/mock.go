package synth

import (
	"context"
	"fmt"
	"io"
	"strings"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/parleylabs/parley-core/internal/audio"
	"github.com/parleylabs/parley-core/internal/ssml"
)

// Timing model for the mock: every word occupies wordMillis of audio and is
// followed by gapMillis of silence.
const (
	mockWordMillis  = 180
	mockGapMillis   = 40
	mockChunkMillis = 200
)

type mockSynth struct {
	caps audio.Capabilities
}

// MockCapabilities is the capability set the default mock backend
// advertises.
func MockCapabilities() audio.Capabilities {
	return audio.Capabilities{
		SampleRates: []uint32{22050, 16000, 44100, 48000},
		Channels:    []audio.Channels{audio.Mono, audio.Stereo},
		Bitrates:    []uint16{96, 128, 192},
		Containers: []audio.Container{
			audio.RawContainer(audio.PcmS16),
			audio.RiffContainer(audio.PcmS16),
			audio.Mp3Container(),
			audio.OggContainer(audio.Opus),
		},
	}
}

// NewMock returns a deterministic offline synthesiser. It produces silence
// in the negotiated format with fully populated boundary, viseme, and mark
// events, which makes it useful both as the gateway's mock mode and as the
// reference implementation of the streaming contract in tests.
func NewMock(caps audio.Capabilities) Synthesiser {
	return &mockSynth{caps: caps}
}

func (m *mockSynth) NegotiateAudioFormat(pref audio.FormatPreference) (audio.Format, bool) {
	return audio.Negotiate(pref, m.caps)
}

func (m *mockSynth) SynthesiseSSML(ctx context.Context, doc *ssml.Document, format audio.Format, cfg UtteranceConfig) (*Stream, error) {
	if doc == nil {
		return nil, fmt.Errorf("nil ssml document")
	}
	// Voice and language live in the document; cfg.Voice/cfg.Language are
	// deliberately ignored here.
	timeline := buildTimeline(doc.Fragments(), cfg)
	return m.run(ctx, timeline, format)
}

func (m *mockSynth) SynthesiseText(ctx context.Context, text string, format audio.Format, cfg UtteranceConfig) (*Stream, error) {
	// Plain text only: whatever the input looks like, it is treated as
	// literal words, so markup survives into boundary events as text.
	fragments := []ssml.Fragment{{Kind: ssml.FragmentText, Text: text}}
	timeline := buildTimeline(fragments, cfg)
	return m.run(ctx, timeline, format)
}

func (m *mockSynth) run(ctx context.Context, timeline mockTimeline, format audio.Format) (*Stream, error) {
	stream := NewStream(ctx)
	go func() {
		for _, ev := range timeline.events {
			if err := stream.Emit(ev); err != nil {
				return
			}
		}
		for _, chunk := range silenceChunks(format, timeline.totalMillis) {
			if err := stream.Emit(AudioChunk{Data: chunk}); err != nil {
				return
			}
		}
		stream.Finish()
	}()
	return stream, nil
}

type mockTimeline struct {
	events      []Event
	totalMillis float32
}

// buildTimeline walks document fragments with a running clock and lays out
// every requested metadata event. Within each event kind offsets come out
// monotonically non-decreasing because the clock only moves forward.
func buildTimeline(fragments []ssml.Fragment, cfg UtteranceConfig) mockTimeline {
	var tl mockTimeline
	clock := float32(0)
	for _, frag := range fragments {
		switch frag.Kind {
		case ssml.FragmentMark:
			tl.events = append(tl.events, SsmlMark{AtMillis: clock, Name: frag.Name})
		case ssml.FragmentBreak:
			clock += float32(frag.BreakMS)
		case ssml.FragmentText:
			clock = appendSpoken(&tl, frag.Text, clock, cfg)
		}
	}
	tl.totalMillis = clock
	return tl
}

func appendSpoken(tl *mockTimeline, text string, clock float32, cfg UtteranceConfig) float32 {
	for _, sentence := range splitSentences(text) {
		words := strings.Fields(sentence)
		if len(words) == 0 {
			continue
		}
		sentenceStart := clock
		var visemes []BasicVisemeFrame
		var shapes []BlendShapeVisemeFrame
		for _, word := range words {
			from := clock
			to := clock + mockWordMillis
			if cfg.EmitVisemes {
				visemes = append(visemes, BasicVisemeFrame{
					Viseme:      BasicViseme([]rune(word)[0]),
					FrameOffset: from,
				})
				shapes = append(shapes, BlendShapeVisemeFrame{
					BlendShapes: []BlendShape{{Key: "jawOpen", Weight: 0.6}},
					FrameOffset: from,
				})
			}
			if cfg.EmitWordBoundaries {
				tl.events = append(tl.events, WordBoundary{FromMillis: from, ToMillis: to, Text: word})
			}
			clock = to + mockGapMillis
		}
		if cfg.EmitVisemes {
			tl.events = append(tl.events, VisemesChunk{Frames: visemes})
			tl.events = append(tl.events, BlendShapeVisemesChunk{Frames: shapes})
		}
		if cfg.EmitSentenceBoundaries {
			tl.events = append(tl.events, SentenceBoundary{
				FromMillis: sentenceStart,
				ToMillis:   clock - mockGapMillis,
				Text:       sentence,
			})
		}
	}
	return clock
}

func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// silenceChunks renders totalMillis of silence in the given format, split
// into chunks of roughly mockChunkMillis each.
func silenceChunks(format audio.Format, totalMillis float32) [][]byte {
	total := int(totalMillis)
	if total <= 0 {
		return nil
	}
	if format.Container().Kind() == audio.ContainerRiff {
		return chunkBytes(riffSilence(format, total), bytesForMillis(format, mockChunkMillis))
	}
	var chunks [][]byte
	for off := 0; off < total; off += mockChunkMillis {
		ms := mockChunkMillis
		if off+ms > total {
			ms = total - off
		}
		n := bytesForMillis(format, ms)
		if n == 0 {
			n = 1
		}
		chunks = append(chunks, make([]byte, n))
	}
	return chunks
}

func bytesForMillis(format audio.Format, ms int) int {
	if format.Container().Lossless() {
		enc, _ := format.Container().Encoding()
		return int(format.SampleRate()) * format.Channels().Count() * sampleBytes(enc) * ms / 1000
	}
	kbps, ok := format.Bitrate()
	if !ok {
		kbps = 128
	}
	return int(kbps) * 125 * ms / 1000
}

func sampleBytes(enc audio.Encoding) int {
	switch enc {
	case audio.PcmF32:
		return 4
	case audio.ALaw, audio.MuLaw:
		return 1
	default:
		return 2
	}
}

// riffSilence frames silent PCM into a WAV file in memory.
func riffSilence(format audio.Format, totalMillis int) []byte {
	numFrames := int(format.SampleRate()) * totalMillis / 1000
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: format.Channels().Count(),
			SampleRate:  int(format.SampleRate()),
		},
		Data:           make([]int, numFrames*format.Channels().Count()),
		SourceBitDepth: 16,
	}
	var ws seekBuffer
	enc := wav.NewEncoder(&ws, int(format.SampleRate()), 16, format.Channels().Count(), 1)
	if err := enc.Write(buf); err != nil {
		return nil
	}
	if err := enc.Close(); err != nil {
		return nil
	}
	return ws.data
}

func chunkBytes(data []byte, size int) [][]byte {
	if len(data) == 0 {
		return nil
	}
	if size <= 0 {
		size = len(data)
	}
	var chunks [][]byte
	for off := 0; off < len(data); off += size {
		end := off + size
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, data[off:end])
	}
	return chunks
}

// seekBuffer is the in-memory io.WriteSeeker the wav encoder needs to patch
// RIFF headers after writing sample data.
type seekBuffer struct {
	data []byte
	pos  int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	if need := b.pos + len(p); need > len(b.data) {
		grown := make([]byte, need)
		copy(grown, b.data)
		b.data = grown
	}
	copy(b.data[b.pos:], p)
	b.pos += len(p)
	return len(p), nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var next int
	switch whence {
	case io.SeekStart:
		next = int(offset)
	case io.SeekCurrent:
		next = b.pos + int(offset)
	case io.SeekEnd:
		next = len(b.data) + int(offset)
	default:
		return 0, fmt.Errorf("seek: invalid whence %d", whence)
	}
	if next < 0 {
		return 0, fmt.Errorf("seek: negative position")
	}
	b.pos = next
	return int64(next), nil
}
