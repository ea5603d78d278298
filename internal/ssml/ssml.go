// Package ssml builds structured speech-synthesis documents.
//
// A Document is a value the synthesiser contract consumes opaquely: it is
// constructed here, fragment by fragment, and handed over pre-built. Raw
// SSML strings are never parsed anywhere in this repository; literal text
// added to a document is escaped on render, so markup-looking input stays
// literal text.
package ssml

import (
	"encoding/xml"
	"strconv"
	"strings"
)

// FragmentKind discriminates the content of a Fragment.
type FragmentKind uint8

const (
	// FragmentText is literal spoken text.
	FragmentText FragmentKind = iota + 1
	// FragmentMark is a named timing marker.
	FragmentMark
	// FragmentBreak is a pause, in milliseconds.
	FragmentBreak
)

// Fragment is one ordered piece of a document body.
type Fragment struct {
	Kind    FragmentKind
	Text    string // FragmentText
	Name    string // FragmentMark
	BreakMS int    // FragmentBreak
}

// Document is a structured, immutable-once-handed-over SSML document. Voice
// and language live on the document itself; synthesis configuration fields
// never override them.
type Document struct {
	voice     string
	language  string
	fragments []Fragment
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{}
}

// WithVoice sets the voice the document should be spoken with.
func (d *Document) WithVoice(voice string) *Document {
	d.voice = voice
	return d
}

// WithLanguage sets the document's language tag (e.g. "en-US").
func (d *Document) WithLanguage(lang string) *Document {
	d.language = lang
	return d
}

// Text appends literal spoken text.
func (d *Document) Text(text string) *Document {
	d.fragments = append(d.fragments, Fragment{Kind: FragmentText, Text: text})
	return d
}

// Mark appends a named timing marker. The synthesiser reports the audio
// offset at which the mark was reached via an SsmlMark event.
func (d *Document) Mark(name string) *Document {
	d.fragments = append(d.fragments, Fragment{Kind: FragmentMark, Name: name})
	return d
}

// Break appends a pause of the given length.
func (d *Document) Break(ms int) *Document {
	d.fragments = append(d.fragments, Fragment{Kind: FragmentBreak, BreakMS: ms})
	return d
}

// Voice returns the document's voice, empty when unset.
func (d *Document) Voice() string { return d.voice }

// Language returns the document's language tag, empty when unset.
func (d *Document) Language() string { return d.language }

// Fragments returns the ordered document body.
func (d *Document) Fragments() []Fragment { return d.fragments }

// PlainText returns the concatenated literal text of the document, with
// marks and breaks elided.
func (d *Document) PlainText() string {
	var b strings.Builder
	for _, f := range d.fragments {
		if f.Kind == FragmentText {
			b.WriteString(f.Text)
		}
	}
	return b.String()
}

// Render serialises the document to SSML text for a wire transport. All
// literal text is XML-escaped.
func (d *Document) Render() string {
	var b strings.Builder
	b.WriteString(`<speak`)
	if d.language != "" {
		b.WriteString(` xml:lang="`)
		escapeInto(&b, d.language)
		b.WriteString(`"`)
	}
	b.WriteString(`>`)
	if d.voice != "" {
		b.WriteString(`<voice name="`)
		escapeInto(&b, d.voice)
		b.WriteString(`">`)
	}
	for _, f := range d.fragments {
		switch f.Kind {
		case FragmentText:
			escapeInto(&b, f.Text)
		case FragmentMark:
			b.WriteString(`<mark name="`)
			escapeInto(&b, f.Name)
			b.WriteString(`"/>`)
		case FragmentBreak:
			b.WriteString(`<break time="`)
			b.WriteString(strconv.Itoa(f.BreakMS))
			b.WriteString(`ms"/>`)
		}
	}
	if d.voice != "" {
		b.WriteString(`</voice>`)
	}
	b.WriteString(`</speak>`)
	return b.String()
}

func escapeInto(b *strings.Builder, s string) {
	// xml.EscapeText cannot fail on a strings.Builder.
	_ = xml.EscapeText(b, []byte(s))
}
