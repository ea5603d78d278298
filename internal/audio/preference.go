package audio

// FormatPreference holds the application's ranked wishes for negotiation.
// Each dimension is an independent ranked list: earlier entries are
// preferred over later ones, and a nil list means "no preference, accept
// whatever the backend supports". The Prefer* methods append, so preferences
// accumulate across calls and lists are never deduplicated; the earliest
// occurrence of a value decides its priority.
type FormatPreference struct {
	sampleRates []uint32
	channels    []Channels
	bitrates    []uint16
	containers  []Container
}

// PreferSampleRates appends sample rates (Hz) in descending priority order.
func (p FormatPreference) PreferSampleRates(rates ...uint32) FormatPreference {
	p.sampleRates = append(p.sampleRates, rates...)
	return p
}

// PreferChannels appends channel layouts in descending priority order.
func (p FormatPreference) PreferChannels(channels ...Channels) FormatPreference {
	p.channels = append(p.channels, channels...)
	return p
}

// PreferBitrates appends bitrates (kbps) in descending priority order.
func (p FormatPreference) PreferBitrates(kbps ...uint16) FormatPreference {
	p.bitrates = append(p.bitrates, kbps...)
	return p
}

// PreferContainers appends containers in descending priority order.
func (p FormatPreference) PreferContainers(containers ...Container) FormatPreference {
	p.containers = append(p.containers, containers...)
	return p
}

// SampleRates returns the ranked sample rate list, nil when unconstrained.
func (p FormatPreference) SampleRates() []uint32 { return p.sampleRates }

// Channels returns the ranked channel layout list, nil when unconstrained.
func (p FormatPreference) ChannelLayouts() []Channels { return p.channels }

// Bitrates returns the ranked bitrate list, nil when unconstrained.
func (p FormatPreference) Bitrates() []uint16 { return p.bitrates }

// Containers returns the ranked container list, nil when unconstrained.
func (p FormatPreference) Containers() []Container { return p.containers }
