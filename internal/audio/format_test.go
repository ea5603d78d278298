package audio

import "testing"

func TestFormatRoundTrip(t *testing.T) {
	format := NewFormat(48000, Stereo, OggContainer(Opus)).WithBitrate(192).Named("studio")
	if format.SampleRate() != 48000 {
		t.Fatalf("sample rate: got %d", format.SampleRate())
	}
	if format.Channels() != Stereo {
		t.Fatalf("channels: got %s", format.Channels())
	}
	if kbps, ok := format.Bitrate(); !ok || kbps != 192 {
		t.Fatalf("bitrate: got %d (%v)", kbps, ok)
	}
	if format.Container() != (OggContainer(Opus)) {
		t.Fatalf("container: got %s", format.Container())
	}
	if format.Name() != "studio" {
		t.Fatalf("name: got %q", format.Name())
	}
}

func TestFormatAbsentBitrateAndName(t *testing.T) {
	format := NewFormat(16000, Mono, RawContainer(MuLaw))
	if _, ok := format.Bitrate(); ok {
		t.Fatal("expected absent bitrate")
	}
	if format.Name() != "" {
		t.Fatalf("expected empty name, got %q", format.Name())
	}
}

func TestContainerPayloadAccessors(t *testing.T) {
	if enc, ok := RiffContainer(PcmF32).Encoding(); !ok || enc != PcmF32 {
		t.Fatalf("riff encoding: got %s (%v)", enc, ok)
	}
	if _, ok := Mp3Container().Encoding(); ok {
		t.Fatal("mp3 must not carry an encoding")
	}
	if codec, ok := WebmContainer(Vorbis).Codec(); !ok || codec != Vorbis {
		t.Fatalf("webm codec: got %s (%v)", codec, ok)
	}
	if _, ok := RawContainer(ALaw).Codec(); ok {
		t.Fatal("raw must not carry a codec")
	}
	if !RawContainer(PcmS16).Lossless() || !RiffContainer(PcmS16).Lossless() {
		t.Fatal("raw and riff are lossless")
	}
	if Mp3Container().Lossless() || OggContainer(Opus).Lossless() {
		t.Fatal("mp3 and ogg are not lossless")
	}
}

func TestContainerEqualityIncludesPayload(t *testing.T) {
	if OggContainer(Opus) == OggContainer(Vorbis) {
		t.Fatal("payload must participate in equality")
	}
	if RawContainer(PcmS16) != RawContainer(PcmS16) {
		t.Fatal("identical containers must compare equal")
	}
}
