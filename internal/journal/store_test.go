package journal

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/parleylabs/parley-core/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestOpenEphemeral(t *testing.T) {
	ctx := context.Background()
	cfg := config.JournalConfig{RetentionMode: "ephemeral"}
	store, err := Open(ctx, cfg, newLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.Ensure(); err != nil {
		t.Fatalf("ensure failed: %v", err)
	}
	// Writes must be silent no-ops.
	if err := store.AppendRecord(ctx, Record{UtteranceID: "u1", Kind: "audio_chunk"}); err != nil {
		t.Fatalf("append: %v", err)
	}
}

func TestAppendAndList(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.JournalConfig{Path: filepath.Join(tmp, "utterances.db"), RetentionMode: "session"}
	store, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	utteranceID := "utt-123"
	if err := store.BeginUtterance(context.Background(), utteranceID, "aria", "22050Hz mono mp3 @128kbps"); err != nil {
		t.Fatalf("begin utterance: %v", err)
	}
	if err := store.AppendRecord(context.Background(), Record{
		UtteranceID: utteranceID, Kind: "word_boundary", OffsetMS: 180, Payload: []byte("hello"),
	}); err != nil {
		t.Fatalf("append record: %v", err)
	}
	if err := store.AppendRecord(context.Background(), Record{
		UtteranceID: utteranceID, Kind: "audio_chunk", OffsetMS: 0,
	}); err != nil {
		t.Fatalf("append record: %v", err)
	}

	records, err := store.ListRecords(context.Background(), utteranceID, 10)
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Kind != "word_boundary" || string(records[0].Payload) != "hello" {
		t.Fatalf("unexpected first record: %+v", records[0])
	}
	if records[1].Kind != "audio_chunk" {
		t.Fatalf("records out of emission order: %+v", records[1])
	}
}

func TestPruneByDaysAndUtterances(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.JournalConfig{
		Path:          filepath.Join(tmp, "utterances.db"),
		RetentionMode: "persistent",
		RetentionDays: 1,
		MaxUtterances: 1,
	}
	store, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	store.clock = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	if err := store.BeginUtterance(context.Background(), "old-utt", "aria", ""); err != nil {
		t.Fatalf("begin utterance: %v", err)
	}
	if err := store.AppendRecord(context.Background(), Record{UtteranceID: "old-utt", Kind: "audio_chunk"}); err != nil {
		t.Fatalf("append record: %v", err)
	}

	store.clock = func() time.Time { return time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC) }
	if err := store.BeginUtterance(context.Background(), "new-utt", "aria", ""); err != nil {
		t.Fatalf("begin utterance: %v", err)
	}
	if err := store.Prune(context.Background()); err != nil {
		t.Fatalf("prune: %v", err)
	}

	records, err := store.ListRecords(context.Background(), "old-utt", 10)
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	if len(records) != 0 {
		t.Fatal("expected old utterance pruned")
	}
}
