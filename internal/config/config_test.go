package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Bus.Servers[0] != "nats://localhost:4222" {
		t.Fatalf("expected default server, got %v", cfg.Bus.Servers)
	}
	if cfg.Synth.Mode != "mock" {
		t.Fatalf("expected mock synth mode, got %q", cfg.Synth.Mode)
	}
	caps, err := cfg.Synth.Capabilities.Resolve()
	if err != nil {
		t.Fatalf("default capabilities must resolve: %v", err)
	}
	if len(caps.Containers) != 4 {
		t.Fatalf("expected 4 default containers, got %d", len(caps.Containers))
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PARLEY_BUS_SERVERS", "nats://one:4222, nats://two:4222")
	t.Setenv("PARLEY_BUS_USERNAME", "alice")
	t.Setenv("PARLEY_BUS_TLS_INSECURE", "true")
	t.Setenv("PARLEY_NODE_ID", "test-node")
	t.Setenv("PARLEY_JOURNAL_PATH", "./tmp.db")
	t.Setenv("PARLEY_JOURNAL_RETENTION_MODE", "persistent")
	t.Setenv("PARLEY_SYNTH_MODE", "exec")
	t.Setenv("PARLEY_SYNTH_COMMAND", "piper --output-raw")
	t.Setenv("PARLEY_SYNTH_CONTAINERS", "raw:pcm_s16, mp3")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %v", cfg.Bus.Servers)
	}
	if cfg.Bus.Username != "alice" || !cfg.Bus.TLSInsecure {
		t.Fatal("expected bus credential overrides")
	}
	if cfg.Node.ID != "test-node" {
		t.Fatal("expected node id override")
	}
	if cfg.Journal.Path != "./tmp.db" || cfg.Journal.RetentionMode != "persistent" {
		t.Fatal("expected journal overrides")
	}
	if cfg.Synth.Mode != "exec" || cfg.Synth.Command != "piper --output-raw" {
		t.Fatal("expected synth overrides")
	}
	if len(cfg.Synth.Capabilities.Containers) != 2 {
		t.Fatalf("expected container override, got %v", cfg.Synth.Capabilities.Containers)
	}
}

func TestValidateRejectsExecWithoutCommand(t *testing.T) {
	t.Setenv("PARLEY_SYNTH_MODE", "exec")
	if _, err := Load(""); err == nil {
		t.Fatal("expected validation error for exec mode without command")
	}
}

func TestValidateRejectsBadContainer(t *testing.T) {
	t.Setenv("PARLEY_SYNTH_CONTAINERS", "flac")
	if _, err := Load(""); err == nil {
		t.Fatal("expected validation error for unknown container")
	}
}
