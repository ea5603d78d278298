package ssml

import (
	"strings"
	"testing"
)

func TestRenderEscapesLiteralText(t *testing.T) {
	doc := NewDocument().
		WithLanguage("en-US").
		WithVoice("aria").
		Text(`<speak>hello & "goodbye"</speak>`)
	out := doc.Render()
	if strings.Contains(out, "<speak>hello") {
		t.Fatalf("literal markup leaked into render: %s", out)
	}
	if !strings.Contains(out, "&lt;speak&gt;hello &amp;") {
		t.Fatalf("expected escaped text, got %s", out)
	}
	if !strings.HasPrefix(out, `<speak xml:lang="en-US"><voice name="aria">`) {
		t.Fatalf("unexpected envelope: %s", out)
	}
}

func TestRenderMarksAndBreaks(t *testing.T) {
	out := NewDocument().Text("one").Mark("m1").Break(250).Text("two").Render()
	want := `<speak>one<mark name="m1"/><break time="250ms"/>two</speak>`
	if out != want {
		t.Fatalf("got %s, want %s", out, want)
	}
}

func TestPlainTextElidesMarkup(t *testing.T) {
	doc := NewDocument().Text("one ").Mark("m").Break(100).Text("two")
	if got := doc.PlainText(); got != "one two" {
		t.Fatalf("got %q", got)
	}
}

func TestVoiceAndLanguageAccessors(t *testing.T) {
	doc := NewDocument().WithVoice("aria").WithLanguage("de-DE")
	if doc.Voice() != "aria" || doc.Language() != "de-DE" {
		t.Fatalf("got %q / %q", doc.Voice(), doc.Language())
	}
}
