package synth

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

func TestStreamDeliversInOrder(t *testing.T) {
	ctx := context.Background()
	stream := NewStream(ctx)
	go func() {
		_ = stream.Emit(WordBoundary{FromMillis: 0, ToMillis: 100, Text: "one"})
		_ = stream.Emit(AudioChunk{Data: []byte{1, 2, 3}})
		stream.Finish()
	}()

	first, err := stream.Next(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wb, ok := first.(WordBoundary); !ok || wb.Text != "one" {
		t.Fatalf("unexpected first event: %#v", first)
	}
	second, err := stream.Next(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := second.(AudioChunk); !ok {
		t.Fatalf("unexpected second event: %#v", second)
	}
	if _, err := stream.Next(ctx); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
	// EOF is sticky.
	if _, err := stream.Next(ctx); err != io.EOF {
		t.Fatalf("expected sticky io.EOF, got %v", err)
	}
}

func TestStreamTerminalErrorIsSticky(t *testing.T) {
	ctx := context.Background()
	stream := NewStream(ctx)
	boom := errors.New("socket reset")
	go func() {
		_ = stream.Emit(AudioChunk{Data: []byte{1}})
		stream.Fail(boom)
	}()

	if _, err := stream.Next(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := stream.Next(ctx); !errors.Is(err, boom) {
		t.Fatalf("expected terminal error, got %v", err)
	}
	for range 3 {
		if _, err := stream.Next(ctx); !errors.Is(err, boom) {
			t.Fatalf("expected sticky terminal error, got %v", err)
		}
	}
}

func TestStreamCloseReleasesProducer(t *testing.T) {
	stream := NewStream(context.Background())
	produced := make(chan error, 1)
	go func() {
		// The consumer never reads; Emit must unblock once the stream is
		// abandoned.
		produced <- stream.Emit(AudioChunk{Data: []byte{1}})
	}()

	if err := stream.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	select {
	case err := <-produced:
		if err == nil {
			t.Fatal("expected emit to fail after close")
		}
	case <-time.After(time.Second):
		t.Fatal("emit did not unblock after close")
	}
	if stream.Context().Err() == nil {
		t.Fatal("expected producer context cancelled")
	}
}

func TestStreamFailWithoutConsumerUnblocks(t *testing.T) {
	stream := NewStream(context.Background())
	done := make(chan struct{})
	go func() {
		stream.Close()
		close(done)
	}()
	stream.Fail(errors.New("late failure"))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("fail blocked after close")
	}
}

func TestStreamEmitAfterTerminateReturnsError(t *testing.T) {
	ctx := context.Background()
	stream := NewStream(ctx)
	go func() {
		// A consumer draining in a loop must never make a late Emit panic.
		for {
			if _, err := stream.Next(ctx); err != nil {
				return
			}
		}
	}()

	boom := errors.New("backend fault")
	stream.Fail(boom)
	for range 200 {
		if err := stream.Emit(AudioChunk{Data: []byte{1}}); err == nil {
			t.Fatal("expected emit after fail to return an error")
		}
	}
	if _, err := stream.Next(ctx); !errors.Is(err, boom) {
		t.Fatalf("expected terminal error, got %v", err)
	}

	finished := NewStream(ctx)
	finished.Finish()
	if err := finished.Emit(WordBoundary{Text: "late"}); err == nil {
		t.Fatal("expected emit after finish to return an error")
	}
	if _, err := finished.Next(ctx); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestStreamNextHonoursCallerContext(t *testing.T) {
	stream := NewStream(context.Background())
	defer stream.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := stream.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}
