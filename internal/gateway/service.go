package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/parleylabs/parley-core/internal/audio"
	"github.com/parleylabs/parley-core/internal/bus"
	"github.com/parleylabs/parley-core/internal/config"
	"github.com/parleylabs/parley-core/internal/journal"
	"github.com/parleylabs/parley-core/internal/protocol"
	"github.com/parleylabs/parley-core/internal/ssml"
	"github.com/parleylabs/parley-core/internal/synth"
)

const utteranceTimeout = 45 * time.Second

// Service is the bus-facing synthesis gateway. One request produces one
// utterance event stream, published event by event on a per-utterance
// subject and journalled as it goes.
type Service struct {
	cfg       config.SynthConfig
	bus       *bus.Client
	synth     synth.Synthesiser
	journal   *journal.Store
	sub       *nats.Subscription
	cancelSub *nats.Subscription
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	logger    *slog.Logger
	tracer    trace.Tracer

	mu     sync.Mutex
	active map[string]context.CancelFunc

	utterances metric.Int64Counter
	events     metric.Int64Counter
}

func NewService(parent context.Context, cfg config.SynthConfig, busClient *bus.Client, synthesiser synth.Synthesiser, store *journal.Store, log *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	s := &Service{
		cfg:     cfg,
		bus:     busClient,
		synth:   synthesiser,
		journal: store,
		ctx:     ctx,
		cancel:  cancel,
		logger:  log.With(slog.String("component", "gateway")),
		tracer:  otel.Tracer("github.com/parleylabs/parley-core/gateway"),
		active:  make(map[string]context.CancelFunc),
	}
	s.initMetrics()
	return s
}

func (s *Service) initMetrics() {
	meter := otel.Meter("github.com/parleylabs/parley-core/gateway")
	if counter, err := meter.Int64Counter("parley.utterances.total",
		metric.WithDescription("Synthesis requests by outcome")); err == nil {
		s.utterances = counter
	}
	if counter, err := meter.Int64Counter("parley.utterance.events.total",
		metric.WithDescription("Utterance events published")); err == nil {
		s.events = counter
	}
}

func (s *Service) Start() error {
	sub, err := s.bus.Conn().Subscribe(protocol.SubjectSynthesise, s.handleRequest)
	if err != nil {
		return err
	}
	s.sub = sub

	cancelSub, err := s.bus.Conn().Subscribe(protocol.SubjectUtteranceCancel, s.handleCancel)
	if err != nil {
		_ = sub.Drain()
		return err
	}
	s.cancelSub = cancelSub
	return nil
}

func (s *Service) Close() {
	s.cancel()
	if s.sub != nil {
		_ = s.sub.Drain()
	}
	if s.cancelSub != nil {
		_ = s.cancelSub.Drain()
	}
	s.wg.Wait()
}

func (s *Service) Healthy() bool { return s.sub != nil }

func (s *Service) handleRequest(msg *nats.Msg) {
	var req protocol.SynthesiseRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Warn("failed to decode synthesise request", slogError(err))
		return
	}
	if req.UtteranceID == "" {
		req.UtteranceID = uuid.NewString()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runUtterance(req)
	}()
}

func (s *Service) handleCancel(msg *nats.Msg) {
	var req protocol.CancelRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Warn("failed to decode cancel request", slogError(err))
		return
	}
	s.mu.Lock()
	cancel, ok := s.active[req.UtteranceID]
	s.mu.Unlock()
	if ok {
		s.logger.Info("utterance cancelled", slog.String("utterance_id", req.UtteranceID))
		cancel()
	}
}

func (s *Service) runUtterance(req protocol.SynthesiseRequest) {
	ctx, cancel := context.WithTimeout(s.ctx, utteranceTimeout)
	defer cancel()

	s.mu.Lock()
	s.active[req.UtteranceID] = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.active, req.UtteranceID)
		s.mu.Unlock()
	}()

	ctx, span := s.tracer.Start(ctx, "gateway.utterance",
		trace.WithAttributes(attribute.String("utterance.id", req.UtteranceID)))
	defer span.End()

	pref, err := preferenceFromRequest(req)
	if err != nil {
		s.finish(req.UtteranceID, protocol.UtteranceStatus{Error: err.Error()})
		return
	}

	format, ok := s.synth.NegotiateAudioFormat(pref)
	if !ok {
		// No mutually supported format. Expected outcome, not a failure:
		// the application retries with different preferences or gives up.
		s.count("no_format")
		s.finish(req.UtteranceID, protocol.UtteranceStatus{NoFormat: true})
		return
	}

	stream, err := s.openStream(ctx, req, format)
	if err != nil {
		s.count("error")
		s.finish(req.UtteranceID, protocol.UtteranceStatus{Error: err.Error(), Format: format.String()})
		return
	}
	defer stream.Close()

	if err := s.journal.BeginUtterance(ctx, req.UtteranceID, req.Voice, format.String()); err != nil {
		s.logger.Warn("failed to journal utterance", slogError(err))
	}

	sequence := 0
	for {
		event, err := stream.Next(ctx)
		if err == io.EOF {
			s.count("completed")
			s.finish(req.UtteranceID, protocol.UtteranceStatus{
				Completed: true,
				Format:    format.String(),
				Events:    sequence,
			})
			return
		}
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				s.count("cancelled")
			} else {
				s.count("error")
			}
			s.finish(req.UtteranceID, protocol.UtteranceStatus{
				Error:  err.Error(),
				Format: format.String(),
				Events: sequence,
			})
			return
		}
		if err := s.publishEvent(ctx, req.UtteranceID, sequence, event); err != nil {
			s.logger.Warn("failed to publish utterance event", slogError(err))
		}
		sequence++
	}
}

func (s *Service) openStream(ctx context.Context, req protocol.SynthesiseRequest, format audio.Format) (*synth.Stream, error) {
	cfg := synth.UtteranceConfig{
		EmitWordBoundaries:     req.WordBoundaries,
		EmitSentenceBoundaries: req.SentenceBoundaries,
		EmitVisemes:            req.Visemes,
		Voice:                  req.Voice,
		Language:               req.Language,
	}
	if cfg.Voice == "" {
		cfg.Voice = s.cfg.Voice
	}
	if cfg.Language == "" {
		cfg.Language = s.cfg.Language
	}

	if req.Document != nil {
		return s.synth.SynthesiseSSML(ctx, buildDocument(req.Document), format, cfg)
	}
	return s.synth.SynthesiseText(ctx, req.Text, format, cfg)
}

// buildDocument maps the wire document onto the builder. No markup parsing
// happens here: fragments arrive pre-structured.
func buildDocument(wire *protocol.Document) *ssml.Document {
	doc := ssml.NewDocument().WithVoice(wire.Voice).WithLanguage(wire.Language)
	for _, frag := range wire.Fragments {
		switch {
		case frag.Mark != "":
			doc.Mark(frag.Mark)
		case frag.BreakMS > 0:
			doc.Break(frag.BreakMS)
		default:
			doc.Text(frag.Text)
		}
	}
	return doc
}

// preferenceFromRequest rebuilds the application's ranked preference lists.
// List order is preserved: the wire carries them highest priority first.
func preferenceFromRequest(req protocol.SynthesiseRequest) (audio.FormatPreference, error) {
	pref := audio.FormatPreference{}
	if len(req.SampleRates) > 0 {
		pref = pref.PreferSampleRates(req.SampleRates...)
	}
	for _, n := range req.Channels {
		ch, err := audio.ParseChannels(n)
		if err != nil {
			return audio.FormatPreference{}, fmt.Errorf("invalid channel preference: %w", err)
		}
		pref = pref.PreferChannels(ch)
	}
	if len(req.Bitrates) > 0 {
		pref = pref.PreferBitrates(req.Bitrates...)
	}
	for _, c := range req.Containers {
		container, err := audio.ParseContainer(c)
		if err != nil {
			return audio.FormatPreference{}, fmt.Errorf("invalid container preference: %w", err)
		}
		pref = pref.PreferContainers(container)
	}
	return pref, nil
}

func (s *Service) publishEvent(ctx context.Context, utteranceID string, sequence int, event synth.Event) error {
	wire, offset, err := encodeEvent(utteranceID, sequence, event)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(wire)
	if err != nil {
		return err
	}
	subject := protocol.SubjectUtteranceEventPrefix + "." + utteranceID
	if err := s.bus.Conn().Publish(subject, payload); err != nil {
		return err
	}
	if s.events != nil {
		s.events.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", wire.Kind)))
	}
	if err := s.journal.AppendRecord(ctx, journal.Record{
		UtteranceID: utteranceID,
		Kind:        wire.Kind,
		OffsetMS:    float64(offset),
		Payload:     payload,
	}); err != nil {
		s.logger.Warn("failed to journal utterance event", slogError(err))
	}
	return nil
}

func encodeEvent(utteranceID string, sequence int, event synth.Event) (protocol.UtteranceEvent, float32, error) {
	wire := protocol.UtteranceEvent{UtteranceID: utteranceID, Sequence: sequence}
	var offset float32
	switch ev := event.(type) {
	case synth.AudioChunk:
		wire.Kind = protocol.KindAudioChunk
		wire.Audio = ev.Data
	case synth.WordBoundary:
		wire.Kind = protocol.KindWordBoundary
		wire.FromMillis = ev.FromMillis
		wire.ToMillis = ev.ToMillis
		wire.Text = ev.Text
		offset = ev.FromMillis
	case synth.SentenceBoundary:
		wire.Kind = protocol.KindSentenceBoundary
		wire.FromMillis = ev.FromMillis
		wire.ToMillis = ev.ToMillis
		wire.Text = ev.Text
		offset = ev.FromMillis
	case synth.SsmlMark:
		wire.Kind = protocol.KindSsmlMark
		wire.FromMillis = ev.AtMillis
		wire.Name = ev.Name
		offset = ev.AtMillis
	case synth.VisemesChunk:
		wire.Kind = protocol.KindVisemes
		frames := make([]protocol.VisemeFrame, 0, len(ev.Frames))
		for _, frame := range ev.Frames {
			frames = append(frames, protocol.VisemeFrame{
				Viseme:   string(rune(frame.Viseme)),
				OffsetMS: frame.FrameOffset,
			})
		}
		if len(ev.Frames) > 0 {
			offset = ev.Frames[0].FrameOffset
		}
		data, err := json.Marshal(frames)
		if err != nil {
			return wire, 0, err
		}
		wire.Frames = data
	case synth.BlendShapeVisemesChunk:
		wire.Kind = protocol.KindBlendShapes
		frames := make([]protocol.BlendShapeFrame, 0, len(ev.Frames))
		for _, frame := range ev.Frames {
			shapes := make([]protocol.BlendShapeWeight, 0, len(frame.BlendShapes))
			for _, shape := range frame.BlendShapes {
				shapes = append(shapes, protocol.BlendShapeWeight{Key: shape.Key, Weight: shape.Weight})
			}
			frames = append(frames, protocol.BlendShapeFrame{Shapes: shapes, OffsetMS: frame.FrameOffset})
		}
		if len(ev.Frames) > 0 {
			offset = ev.Frames[0].FrameOffset
		}
		data, err := json.Marshal(frames)
		if err != nil {
			return wire, 0, err
		}
		wire.Frames = data
	default:
		return wire, 0, fmt.Errorf("unknown event type %T", event)
	}
	return wire, offset, nil
}

func (s *Service) finish(utteranceID string, status protocol.UtteranceStatus) {
	status.UtteranceID = utteranceID
	status.Timestamp = time.Now().UTC()
	payload, err := json.Marshal(status)
	if err != nil {
		s.logger.Warn("failed to marshal utterance status", slogError(err))
		return
	}
	if err := s.bus.Conn().Publish(protocol.SubjectUtteranceStatus, payload); err != nil {
		s.logger.Warn("failed to publish utterance status", slogError(err))
	}
}

func (s *Service) count(outcome string) {
	if s.utterances != nil {
		s.utterances.Add(context.Background(), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
