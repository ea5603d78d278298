package synth

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/mattn/go-shellwords"

	"github.com/parleylabs/parley-core/internal/audio"
	"github.com/parleylabs/parley-core/internal/ssml"
)

// execSynth shells out to an external synthesiser process speaking a
// line-delimited JSON protocol: one request object on stdin, one event
// object per line on stdout. The subprocess lives exactly as long as its
// stream; abandoning the stream kills the process.
type execSynth struct {
	cmd  []string
	caps audio.Capabilities
}

type execRequest struct {
	Text           string `json:"text,omitempty"`
	SSML           string `json:"ssml,omitempty"`
	Voice          string `json:"voice,omitempty"`
	Language       string `json:"language,omitempty"`
	SampleRate     uint32 `json:"sample_rate"`
	Channels       int    `json:"channels"`
	Container      string `json:"container"`
	Bitrate        uint16 `json:"bitrate,omitempty"`
	WordBoundaries bool   `json:"word_boundaries"`
	SentenceBounds bool   `json:"sentence_boundaries"`
	Visemes        bool   `json:"visemes"`
}

type execEvent struct {
	Type      string      `json:"type"`
	PCMBase64 string      `json:"pcm_base64,omitempty"`
	FromMS    float32     `json:"from_ms,omitempty"`
	ToMS      float32     `json:"to_ms,omitempty"`
	AtMS      float32     `json:"at_ms,omitempty"`
	Text      string      `json:"text,omitempty"`
	Name      string      `json:"name,omitempty"`
	Viseme    string      `json:"viseme,omitempty"`
	Shapes    []execShape `json:"shapes,omitempty"`
}

// execShape keeps blend shapes ordered on the wire; JSON objects would not.
type execShape struct {
	Key    string  `json:"key"`
	Weight float32 `json:"weight"`
}

// NewExec builds a synthesiser backed by an external command. The command
// string is parsed shell-style; caps describes what the subprocess can
// produce and feeds negotiation.
func NewExec(command string, caps audio.Capabilities) (Synthesiser, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse synthesiser command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("synthesiser command empty")
	}
	return &execSynth{cmd: args, caps: caps}, nil
}

func (e *execSynth) NegotiateAudioFormat(pref audio.FormatPreference) (audio.Format, bool) {
	return audio.Negotiate(pref, e.caps)
}

func (e *execSynth) SynthesiseSSML(ctx context.Context, doc *ssml.Document, format audio.Format, cfg UtteranceConfig) (*Stream, error) {
	if doc == nil {
		return nil, fmt.Errorf("nil ssml document")
	}
	req := e.request(format, cfg)
	req.SSML = doc.Render()
	// The document owns voice and language; config values are ignored.
	req.Voice = doc.Voice()
	req.Language = doc.Language()
	return e.spawn(ctx, req)
}

func (e *execSynth) SynthesiseText(ctx context.Context, text string, format audio.Format, cfg UtteranceConfig) (*Stream, error) {
	req := e.request(format, cfg)
	// Sent under the "text" key so the subprocess treats it literally; the
	// protocol reserves "ssml" for pre-built documents.
	req.Text = text
	req.Voice = cfg.Voice
	req.Language = cfg.Language
	return e.spawn(ctx, req)
}

func (e *execSynth) request(format audio.Format, cfg UtteranceConfig) execRequest {
	req := execRequest{
		SampleRate:     format.SampleRate(),
		Channels:       format.Channels().Count(),
		Container:      format.Container().String(),
		WordBoundaries: cfg.EmitWordBoundaries,
		SentenceBounds: cfg.EmitSentenceBoundaries,
		Visemes:        cfg.EmitVisemes,
	}
	if kbps, ok := format.Bitrate(); ok {
		req.Bitrate = kbps
	}
	return req
}

func (e *execSynth) spawn(ctx context.Context, req execRequest) (*Stream, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode synthesiser request: %w", err)
	}

	stream := NewStream(ctx)
	// The process context is the stream's producer context, so Close on the
	// stream terminates the subprocess and releases its pipes.
	cmd := exec.CommandContext(stream.Context(), e.cmd[0], e.cmd[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		stream.Close()
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stream.Close()
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("start synthesiser command: %w", err)
	}

	go func() {
		if _, err := stdin.Write(payload); err != nil {
			stream.Fail(err)
			_ = cmd.Wait()
			return
		}
		stdin.Close()

		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			event, err := decodeExecEvent(line)
			if err != nil {
				stream.Fail(err)
				_ = cmd.Wait()
				return
			}
			if event == nil {
				continue
			}
			if err := stream.Emit(event); err != nil {
				// Stream abandoned; CommandContext reaps the process.
				_ = cmd.Wait()
				return
			}
		}
		if err := cmd.Wait(); err != nil {
			stream.Fail(fmt.Errorf("synthesiser command failed: %w", err))
			return
		}
		if err := scanner.Err(); err != nil {
			stream.Fail(err)
			return
		}
		stream.Finish()
	}()

	return stream, nil
}

func decodeExecEvent(line []byte) (Event, error) {
	var raw execEvent
	if err := json.Unmarshal(line, &raw); err != nil {
		return nil, fmt.Errorf("decode synthesiser event: %w", err)
	}
	switch raw.Type {
	case "audio":
		data, err := base64.StdEncoding.DecodeString(raw.PCMBase64)
		if err != nil {
			return nil, fmt.Errorf("decode audio chunk: %w", err)
		}
		return AudioChunk{Data: data}, nil
	case "word":
		return WordBoundary{FromMillis: raw.FromMS, ToMillis: raw.ToMS, Text: raw.Text}, nil
	case "sentence":
		return SentenceBoundary{FromMillis: raw.FromMS, ToMillis: raw.ToMS, Text: raw.Text}, nil
	case "mark":
		return SsmlMark{AtMillis: raw.AtMS, Name: raw.Name}, nil
	case "viseme":
		var viseme BasicViseme
		if runes := []rune(raw.Viseme); len(runes) > 0 {
			viseme = BasicViseme(runes[0])
		}
		return VisemesChunk{Frames: []BasicVisemeFrame{{Viseme: viseme, FrameOffset: raw.AtMS}}}, nil
	case "blendshapes":
		frame := BlendShapeVisemeFrame{FrameOffset: raw.AtMS}
		for _, shape := range raw.Shapes {
			frame.BlendShapes = append(frame.BlendShapes, BlendShape{Key: shape.Key, Weight: shape.Weight})
		}
		return BlendShapeVisemesChunk{Frames: []BlendShapeVisemeFrame{frame}}, nil
	default:
		// Unknown event types are skipped so the protocol can grow.
		return nil, nil
	}
}
