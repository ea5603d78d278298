package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/parleylabs/parley-core/internal/audio"
	"github.com/parleylabs/parley-core/internal/bus"
	"github.com/parleylabs/parley-core/internal/config"
)

// Capability is the bus-visible summary of what a synthesiser node can
// produce, in the same textual forms the config uses.
type Capability struct {
	Voice       string   `json:"voice,omitempty"`
	Language    string   `json:"language,omitempty"`
	SampleRates []uint32 `json:"sample_rates"`
	Channels    []int    `json:"channels"`
	Bitrates    []uint16 `json:"bitrates,omitempty"`
	Containers  []string `json:"containers"`
}

// Summarize converts a backend capability set into its announceable form.
func Summarize(voice, language string, caps audio.Capabilities) Capability {
	summary := Capability{
		Voice:       voice,
		Language:    language,
		SampleRates: append([]uint32(nil), caps.SampleRates...),
		Bitrates:    append([]uint16(nil), caps.Bitrates...),
	}
	for _, ch := range caps.Channels {
		summary.Channels = append(summary.Channels, ch.Count())
	}
	for _, c := range caps.Containers {
		summary.Containers = append(summary.Containers, c.String())
	}
	return summary
}

// NodeInfo tracks one known synthesiser node on the bus.
type NodeInfo struct {
	ID         string     `json:"id"`
	Capability Capability `json:"capability"`
	LastSeen   time.Time  `json:"last_seen"`
	Healthy    bool       `json:"healthy"`
}

type announceMessage struct {
	NodeID     string     `json:"node_id"`
	Capability Capability `json:"capability"`
	Timestamp  time.Time  `json:"timestamp"`
}

type heartbeatMessage struct {
	NodeID    string    `json:"node_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Registry announces this gateway's synthesiser capability and tracks peer
// synthesiser nodes, so applications can discover where to send utterances.
type Registry struct {
	cfg       config.NodeConfig
	local     Capability
	log       *slog.Logger
	bus       *bus.Client
	mu        sync.RWMutex
	nodes     map[string]*NodeInfo
	heartbeat *time.Ticker
	cancel    context.CancelFunc
	subs      []*nats.Subscription
	meter     metric.Meter
}

func New(ctx context.Context, cfg config.NodeConfig, local Capability, busClient *bus.Client, log *slog.Logger) (*Registry, error) {
	ctx, cancel := context.WithCancel(ctx)
	r := &Registry{
		cfg:    cfg,
		local:  local,
		log:    log.With(slog.String("component", "synthesiser-registry")),
		bus:    busClient,
		nodes:  make(map[string]*NodeInfo),
		meter:  otel.Meter("github.com/parleylabs/parley-core/registry"),
		cancel: cancel,
	}

	if err := r.initMetrics(); err != nil {
		r.log.Warn("failed to initialize metrics", slog.String("error", err.Error()))
	}

	if err := r.subscribe(); err != nil {
		r.cancel()
		return nil, err
	}

	r.heartbeat = time.NewTicker(time.Duration(cfg.HeartbeatInterval) * time.Millisecond)
	go r.runHeartbeat(ctx)
	go r.monitorHealth(ctx)

	if err := r.announce(); err != nil {
		r.log.Warn("failed to announce synthesiser node", slog.String("error", err.Error()))
	}

	return r, nil
}

func (r *Registry) Close() {
	if r.cancel != nil {
		r.cancel()
	}
	if r.heartbeat != nil {
		r.heartbeat.Stop()
	}
	for _, sub := range r.subs {
		_ = sub.Drain()
	}
}

func (r *Registry) subscribe() error {
	conn := r.bus.Conn()
	announceSub, err := conn.Subscribe("ctrl.synth.announce", r.handleAnnounce)
	if err != nil {
		return fmt.Errorf("subscribe announce: %w", err)
	}
	r.subs = append(r.subs, announceSub)

	heartbeatSub, err := conn.Subscribe("ctrl.synth.heartbeat.*", r.handleHeartbeat)
	if err != nil {
		return fmt.Errorf("subscribe heartbeat: %w", err)
	}
	r.subs = append(r.subs, heartbeatSub)

	return nil
}

func (r *Registry) runHeartbeat(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.heartbeat.C:
			if err := r.publishHeartbeat(); err != nil {
				r.log.Warn("failed to publish heartbeat", slog.String("error", err.Error()))
			}
		}
	}
}

func (r *Registry) monitorHealth(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.evaluateHealth()
		}
	}
}

func (r *Registry) announce() error {
	msg := announceMessage{
		NodeID:     r.cfg.ID,
		Capability: r.local,
		Timestamp:  time.Now().UTC(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := r.bus.Conn().Publish("ctrl.synth.announce", payload); err != nil {
		return err
	}
	r.updateNode(msg.NodeID, &msg.Capability, msg.Timestamp)
	return nil
}

func (r *Registry) publishHeartbeat() error {
	msg := heartbeatMessage{
		NodeID:    r.cfg.ID,
		Timestamp: time.Now().UTC(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("ctrl.synth.heartbeat.%s", r.cfg.ID)
	return r.bus.Conn().Publish(subject, payload)
}

func (r *Registry) handleAnnounce(msg *nats.Msg) {
	var announcement announceMessage
	if err := json.Unmarshal(msg.Data, &announcement); err != nil {
		r.log.Warn("invalid announce message", slog.String("error", err.Error()))
		return
	}
	if announcement.Timestamp.IsZero() {
		announcement.Timestamp = time.Now().UTC()
	}
	r.updateNode(announcement.NodeID, &announcement.Capability, announcement.Timestamp)
}

func (r *Registry) handleHeartbeat(msg *nats.Msg) {
	var hb heartbeatMessage
	if err := json.Unmarshal(msg.Data, &hb); err != nil {
		r.log.Warn("invalid heartbeat message", slog.String("error", err.Error()))
		return
	}
	if hb.Timestamp.IsZero() {
		hb.Timestamp = time.Now().UTC()
	}
	r.updateNode(hb.NodeID, nil, hb.Timestamp)
}

func (r *Registry) updateNode(nodeID string, capability *Capability, timestamp time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	node, ok := r.nodes[nodeID]
	if !ok {
		node = &NodeInfo{ID: nodeID}
		r.nodes[nodeID] = node
	}
	if capability != nil {
		node.Capability = *capability
	}
	node.LastSeen = timestamp
	node.Healthy = true
}

func (r *Registry) evaluateHealth() {
	r.mu.Lock()
	defer r.mu.Unlock()

	timeout := time.Duration(r.cfg.HeartbeatTimeout) * time.Millisecond
	now := time.Now()
	for _, node := range r.nodes {
		if now.Sub(node.LastSeen) > timeout {
			node.Healthy = false
		}
	}
}

func (r *Registry) Healthy() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	node, ok := r.nodes[r.cfg.ID]
	if !ok {
		return false
	}
	return node.Healthy
}

// Query returns known nodes matching filter, or all nodes when filter is
// nil.
func (r *Registry) Query(filter func(NodeInfo) bool) []NodeInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []NodeInfo
	for _, node := range r.nodes {
		copy := *node
		if filter == nil || filter(copy) {
			results = append(results, copy)
		}
	}
	return results
}

// WithContainerFilter matches nodes advertising the given container form.
func WithContainerFilter(container string) func(NodeInfo) bool {
	return func(node NodeInfo) bool {
		for _, c := range node.Capability.Containers {
			if c == container {
				return true
			}
		}
		return false
	}
}

// WithVoiceFilter matches nodes advertising the given voice.
func WithVoiceFilter(voice string) func(NodeInfo) bool {
	return func(node NodeInfo) bool {
		return node.Capability.Voice == voice
	}
}

func (r *Registry) initMetrics() error {
	if r.meter == nil {
		return nil
	}
	nodeGauge, err := r.meter.Int64ObservableGauge("parley.synthesisers.nodes",
		metric.WithDescription("Number of known synthesiser nodes"))
	if err != nil {
		return err
	}
	containerGauge, err := r.meter.Int64ObservableGauge("parley.synthesisers.containers",
		metric.WithDescription("Total advertised container formats"))
	if err != nil {
		return err
	}
	_, err = r.meter.RegisterCallback(func(ctx context.Context, obs metric.Observer) error {
		nodes, containers := r.snapshotCounts()
		obs.ObserveInt64(nodeGauge, nodes)
		obs.ObserveInt64(containerGauge, containers)
		return nil
	}, nodeGauge, containerGauge)
	return err
}

func (r *Registry) snapshotCounts() (int64, int64) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var nodes int64
	var containers int64
	for _, node := range r.nodes {
		nodes++
		containers += int64(len(node.Capability.Containers))
	}
	return nodes, containers
}
