package audio

import "fmt"

// Channels is the channel layout of an audio stream.
type Channels uint8

const (
	Mono Channels = iota + 1
	Stereo
)

func (c Channels) String() string {
	switch c {
	case Mono:
		return "mono"
	case Stereo:
		return "stereo"
	default:
		return fmt.Sprintf("channels(%d)", uint8(c))
	}
}

// Count returns the number of channels in the layout.
func (c Channels) Count() int {
	if c == Stereo {
		return 2
	}
	return 1
}

// Encoding is a raw sample encoding. It is only meaningful inside a Raw
// or Riff container.
type Encoding uint8

const (
	// PcmS16 is signed 16-bit PCM.
	PcmS16 Encoding = iota + 1
	// PcmF32 is 32-bit floating point PCM.
	PcmF32
	// ALaw is 8-bit A-law.
	ALaw
	// MuLaw is 8-bit μ-law.
	MuLaw
)

func (e Encoding) String() string {
	switch e {
	case PcmS16:
		return "pcm_s16"
	case PcmF32:
		return "pcm_f32"
	case ALaw:
		return "alaw"
	case MuLaw:
		return "mulaw"
	default:
		return fmt.Sprintf("encoding(%d)", uint8(e))
	}
}

// Codec is a compressed audio codec carried by an Ogg or Webm container.
type Codec uint8

const (
	Opus Codec = iota + 1
	Vorbis
)

func (c Codec) String() string {
	switch c {
	case Opus:
		return "opus"
	case Vorbis:
		return "vorbis"
	default:
		return fmt.Sprintf("codec(%d)", uint8(c))
	}
}

// ContainerKind identifies the framing of a Container.
type ContainerKind uint8

const (
	// ContainerRaw is containerless audio, used only with a raw sample encoding.
	ContainerRaw ContainerKind = iota + 1
	// ContainerRiff is RIFF (.wav) framing around a raw sample encoding.
	ContainerRiff
	// ContainerMp3 is MP3 audio; the codec is implicit.
	ContainerMp3
	// ContainerOgg is OGG framing around Opus or Vorbis.
	ContainerOgg
	// ContainerWebm is WEBM framing around Opus or Vorbis.
	ContainerWebm
)

// Container is a container/codec/encoding combination. Raw and Riff carry a
// sample encoding, Ogg and Webm carry a codec, Mp3 carries neither. Two
// containers are equal only when kind and payload both match, so values are
// directly comparable with ==.
type Container struct {
	kind     ContainerKind
	encoding Encoding
	codec    Codec
}

// RawContainer is containerless audio with the given sample encoding.
func RawContainer(enc Encoding) Container {
	return Container{kind: ContainerRaw, encoding: enc}
}

// RiffContainer is WAV framing around the given sample encoding.
func RiffContainer(enc Encoding) Container {
	return Container{kind: ContainerRiff, encoding: enc}
}

// Mp3Container is MP3 audio.
func Mp3Container() Container {
	return Container{kind: ContainerMp3}
}

// OggContainer is OGG framing around the given codec.
func OggContainer(codec Codec) Container {
	return Container{kind: ContainerOgg, codec: codec}
}

// WebmContainer is WEBM framing around the given codec.
func WebmContainer(codec Codec) Container {
	return Container{kind: ContainerWebm, codec: codec}
}

// Kind returns the container framing.
func (c Container) Kind() ContainerKind { return c.kind }

// Encoding returns the raw sample encoding for Raw and Riff containers.
func (c Container) Encoding() (Encoding, bool) {
	if c.kind == ContainerRaw || c.kind == ContainerRiff {
		return c.encoding, true
	}
	return 0, false
}

// Codec returns the codec for Ogg and Webm containers.
func (c Container) Codec() (Codec, bool) {
	if c.kind == ContainerOgg || c.kind == ContainerWebm {
		return c.codec, true
	}
	return 0, false
}

// Lossless reports whether the container carries uncompressed samples, in
// which case a bitrate has no meaning for it.
func (c Container) Lossless() bool {
	return c.kind == ContainerRaw || c.kind == ContainerRiff
}

func (c Container) String() string {
	switch c.kind {
	case ContainerRaw:
		return fmt.Sprintf("raw(%s)", c.encoding)
	case ContainerRiff:
		return fmt.Sprintf("riff(%s)", c.encoding)
	case ContainerMp3:
		return "mp3"
	case ContainerOgg:
		return fmt.Sprintf("ogg(%s)", c.codec)
	case ContainerWebm:
		return fmt.Sprintf("webm(%s)", c.codec)
	default:
		return fmt.Sprintf("container(%d)", uint8(c.kind))
	}
}

// Format is a fully resolved audio format: exactly one sample rate, one
// channel layout, an optional bitrate in kbps, and one container. Formats
// come out of negotiation or a backend's fixed output format and are never
// partially specified.
type Format struct {
	sampleRate uint32
	channels   Channels
	bitrate    uint16
	hasBitrate bool
	container  Container
	name       string
}

// NewFormat builds a format without a bitrate and without a name.
func NewFormat(sampleRate uint32, channels Channels, container Container) Format {
	return Format{sampleRate: sampleRate, channels: channels, container: container}
}

// WithBitrate returns a copy of the format carrying the given bitrate in kbps.
func (f Format) WithBitrate(kbps uint16) Format {
	f.bitrate = kbps
	f.hasBitrate = true
	return f
}

// Named returns a copy of the format carrying a human-readable name.
func (f Format) Named(name string) Format {
	f.name = name
	return f
}

// SampleRate returns the sample rate in Hz.
func (f Format) SampleRate() uint32 { return f.sampleRate }

// Channels returns the channel layout.
func (f Format) Channels() Channels { return f.channels }

// Bitrate returns the bitrate in kbps, if the format has one.
func (f Format) Bitrate() (uint16, bool) { return f.bitrate, f.hasBitrate }

// Container returns the container.
func (f Format) Container() Container { return f.container }

// Name returns the human-readable name, if any.
func (f Format) Name() string { return f.name }

func (f Format) String() string {
	s := fmt.Sprintf("%dHz %s %s", f.sampleRate, f.channels, f.container)
	if f.hasBitrate {
		s += fmt.Sprintf(" @%dkbps", f.bitrate)
	}
	if f.name != "" {
		s = f.name + " (" + s + ")"
	}
	return s
}

// Capabilities enumerates what a synthesiser backend can actually produce.
// The first value in each list is the backend's default for that dimension
// when the application expresses no preference. The set is supplied by the
// backend; negotiation never invents values outside it.
type Capabilities struct {
	SampleRates []uint32
	Channels    []Channels
	Bitrates    []uint16
	Containers  []Container
}
