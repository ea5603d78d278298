package audio

import (
	"fmt"
	"strings"
)

// ParseContainer reads the textual container form used by config files and
// wire messages: "mp3", "raw:pcm_s16", "riff:pcm_f32", "ogg:opus",
// "webm:vorbis". It is the inverse of Container.String up to whitespace and
// case.
func ParseContainer(s string) (Container, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	// Accept both "ogg:opus" and the String() form "ogg(opus)".
	s = strings.NewReplacer("(", ":", ")", "").Replace(s)
	kind, payload, _ := strings.Cut(s, ":")
	switch kind {
	case "raw":
		enc, err := parseEncoding(payload)
		if err != nil {
			return Container{}, err
		}
		return RawContainer(enc), nil
	case "riff", "wav":
		enc, err := parseEncoding(payload)
		if err != nil {
			return Container{}, err
		}
		return RiffContainer(enc), nil
	case "mp3":
		if payload != "" {
			return Container{}, fmt.Errorf("mp3 container takes no payload, got %q", payload)
		}
		return Mp3Container(), nil
	case "ogg":
		codec, err := parseCodec(payload)
		if err != nil {
			return Container{}, err
		}
		return OggContainer(codec), nil
	case "webm":
		codec, err := parseCodec(payload)
		if err != nil {
			return Container{}, err
		}
		return WebmContainer(codec), nil
	default:
		return Container{}, fmt.Errorf("unknown container %q", s)
	}
}

func parseEncoding(s string) (Encoding, error) {
	switch s {
	case "pcm_s16", "pcm16", "s16le":
		return PcmS16, nil
	case "pcm_f32", "f32le":
		return PcmF32, nil
	case "alaw":
		return ALaw, nil
	case "mulaw", "ulaw":
		return MuLaw, nil
	case "":
		return 0, fmt.Errorf("container requires a sample encoding payload")
	default:
		return 0, fmt.Errorf("unknown sample encoding %q", s)
	}
}

func parseCodec(s string) (Codec, error) {
	switch s {
	case "opus":
		return Opus, nil
	case "vorbis":
		return Vorbis, nil
	case "":
		return 0, fmt.Errorf("container requires a codec payload")
	default:
		return 0, fmt.Errorf("unknown codec %q", s)
	}
}

// ParseChannels maps a channel count onto a layout.
func ParseChannels(n int) (Channels, error) {
	switch n {
	case 1:
		return Mono, nil
	case 2:
		return Stereo, nil
	default:
		return 0, fmt.Errorf("unsupported channel count %d", n)
	}
}
