package audio

// Negotiate selects the best mutually acceptable format for an application
// preference against a backend capability set. It is a pure function of its
// inputs: identical inputs always produce identical results, and concurrent
// calls are safe.
//
// Sample rate, channel layout, and container are hard constraints: once the
// application ranks a dimension, at least one ranked value must be supported
// or the whole negotiation fails (ok=false, which is an expected outcome and
// not an error). For an unranked dimension the backend's first supported
// value is used. Bitrate is soft: it never fails negotiation, and resolves to
// the supported bitrate closest to the application's top-ranked bitrate.
// Lossless containers have no bitrate concept and leave it absent regardless
// of preference.
//
// A ranked container matches only a supported container with the identical
// nested payload; asking for Ogg(Vorbis) against an Opus-only backend fails
// even though the backend "supports OGG".
func Negotiate(pref FormatPreference, caps Capabilities) (Format, bool) {
	sampleRate, ok := pickUint32(pref.sampleRates, caps.SampleRates)
	if !ok {
		return Format{}, false
	}
	channels, ok := pickChannels(pref.channels, caps.Channels)
	if !ok {
		return Format{}, false
	}
	container, ok := pickContainer(pref.containers, caps.Containers)
	if !ok {
		return Format{}, false
	}

	format := NewFormat(sampleRate, channels, container)
	if !container.Lossless() {
		if kbps, ok := pickBitrate(pref.bitrates, caps.Bitrates); ok {
			format = format.WithBitrate(kbps)
		}
	}
	return format, true
}

// pickUint32 resolves a hard dimension: the highest-priority ranked value the
// backend supports, or the backend default when unranked.
func pickUint32(ranked, supported []uint32) (uint32, bool) {
	if len(ranked) == 0 {
		if len(supported) == 0 {
			return 0, false
		}
		return supported[0], true
	}
	for _, want := range ranked {
		for _, have := range supported {
			if want == have {
				return want, true
			}
		}
	}
	return 0, false
}

func pickChannels(ranked, supported []Channels) (Channels, bool) {
	if len(ranked) == 0 {
		if len(supported) == 0 {
			return 0, false
		}
		return supported[0], true
	}
	for _, want := range ranked {
		for _, have := range supported {
			if want == have {
				return want, true
			}
		}
	}
	return 0, false
}

func pickContainer(ranked, supported []Container) (Container, bool) {
	if len(ranked) == 0 {
		if len(supported) == 0 {
			return Container{}, false
		}
		return supported[0], true
	}
	for _, want := range ranked {
		for _, have := range supported {
			if want == have {
				return want, true
			}
		}
	}
	return Container{}, false
}

// pickBitrate resolves the soft dimension. With no ranked bitrates the
// backend default applies; with ranked bitrates the supported value closest
// to the top-ranked one wins, ties going to the higher bitrate. A backend
// with no bitrate table leaves the field absent.
func pickBitrate(ranked, supported []uint16) (uint16, bool) {
	if len(supported) == 0 {
		return 0, false
	}
	if len(ranked) == 0 {
		return supported[0], true
	}
	target := ranked[0]
	best := supported[0]
	for _, have := range supported[1:] {
		if closer(have, best, target) {
			best = have
		}
	}
	return best, true
}

func closer(candidate, current uint16, target uint16) bool {
	dc := distance(candidate, target)
	db := distance(current, target)
	if dc != db {
		return dc < db
	}
	return candidate > current
}

func distance(a, b uint16) uint16 {
	if a > b {
		return a - b
	}
	return b - a
}
