package main

import (
	"bytes"
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semlink/driver"
	"github.com/c360/semlink/envelope"
	"github.com/c360/semlink/health"
	"github.com/c360/semlink/natsclient"
	"github.com/c360/semlink/vocabulary"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParseFlags_Defaults(t *testing.T) {
	cfg, err := parseFlags(nil)
	require.NoError(t, err)

	assert.Empty(t, cfg.ConfigPaths)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.Echo)
	assert.NotNil(t, cfg.usage)
}

func TestParseFlags_RepeatedLayers(t *testing.T) {
	cfg, err := parseFlags([]string{"-config", "base.yaml", "-c", "a.json,b.json", "-echo"})
	require.NoError(t, err)

	assert.Equal(t, []string{"base.yaml", "a.json", "b.json"}, cfg.ConfigPaths)
	assert.True(t, cfg.Echo)
}

func TestParseFlags_EnvLayersReplacedByFlag(t *testing.T) {
	t.Setenv("SEMLINK_CONFIG", "env.yaml, other.yaml")

	cfg, err := parseFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"env.yaml", "other.yaml"}, cfg.ConfigPaths)

	cfg, err = parseFlags([]string{"-config", "cli.json"})
	require.NoError(t, err)
	assert.Equal(t, []string{"cli.json"}, cfg.ConfigPaths)
}

func TestParseFlags_Unknown(t *testing.T) {
	_, err := parseFlags([]string{"-nope"})
	assert.Error(t, err)
}

func TestValidateFlags(t *testing.T) {
	existing := writeFile(t, "robot.json", `{}`)

	tests := []struct {
		name    string
		cfg     CLIConfig
		wantErr string
	}{
		{"valid", CLIConfig{ConfigPaths: []string{existing}, LogLevel: "debug", LogFormat: "text", ShutdownTimeout: time.Second}, ""},
		{"missing file", CLIConfig{ConfigPaths: []string{"/nope.json"}, LogLevel: "info", LogFormat: "json", ShutdownTimeout: time.Second}, "config file not found"},
		{"bad level", CLIConfig{LogLevel: "loud", LogFormat: "json", ShutdownTimeout: time.Second}, "invalid log level"},
		{"bad format", CLIConfig{LogLevel: "info", LogFormat: "xml", ShutdownTimeout: time.Second}, "invalid log format"},
		{"bad timeout", CLIConfig{LogLevel: "info", LogFormat: "json"}, "invalid shutdown timeout"},
		{"version skips checks", CLIConfig{ShowVersion: true, LogLevel: "loud"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateFlags(&tt.cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRun_ValidateOnly(t *testing.T) {
	base := writeFile(t, "base.yaml", "robot:\n  name: vasya\ndriver:\n  listen: [kitchen]\n")
	override := writeFile(t, "local.json", `{"metrics":{"enabled":false}}`)

	err := run([]string{"-config", base, "-config", override, "-validate", "-log-level", "error"})
	assert.NoError(t, err)
}

func TestRun_InvalidConfig(t *testing.T) {
	path := writeFile(t, "robot.json", `{"driver":{"lang":"en"}}`)

	err := run([]string{"-config", path, "-validate", "-log-level", "error"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "robot.name is required")
}

func TestLoadConfig_Layers(t *testing.T) {
	base := writeFile(t, "base.json", `{"robot":{"name":"vasya"},"driver":{"global":"all"}}`)
	override := writeFile(t, "over.json", `{"driver":{"global":"everyone"}}`)

	cfg, err := loadConfig([]string{base, override})
	require.NoError(t, err)
	assert.Equal(t, "vasya", cfg.Robot.Name)
	assert.Equal(t, "everyone", cfg.Driver.Global)
}

type fakeStatus natsclient.ConnectionStatus

func (f fakeStatus) Status() natsclient.ConnectionStatus { return natsclient.ConnectionStatus(f) }

func TestNATSProbe(t *testing.T) {
	tests := []struct {
		status natsclient.ConnectionStatus
		check  func(health.Status) bool
	}{
		{natsclient.StatusConnected, health.Status.IsHealthy},
		{natsclient.StatusReconnecting, health.Status.IsDegraded},
		{natsclient.StatusConnecting, health.Status.IsDegraded},
		{natsclient.StatusDisconnected, health.Status.IsUnhealthy},
		{natsclient.StatusCircuitOpen, health.Status.IsUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			got := natsProbe(fakeStatus(tt.status))()
			assert.True(t, tt.check(got), "status %+v", got)
			assert.Equal(t, "nats", got.Component)
		})
	}
}

type recordingReplier struct {
	sources  []*envelope.Envelope
	payloads []any
	err      error
}

func (r *recordingReplier) Reply(_ context.Context, source *envelope.Envelope, payload any) (*envelope.Envelope, error) {
	r.sources = append(r.sources, source)
	r.payloads = append(r.payloads, payload)
	return &envelope.Envelope{ID: "reply"}, r.err
}

func commandFrom(sender envelope.Sender) driver.Event {
	return driver.Event{
		Kind:  driver.KindCommand,
		Topic: "kitchen",
		Envelope: &envelope.Envelope{
			ID:       "m1",
			ThreadID: "m1",
			Sender:   sender,
			Payload:  envelope.TextPayload("light on"),
		},
		Payload: envelope.TextPayload("light on"),
		Match:   &vocabulary.Match{Found: true, Command: "on", Path: []string{"kitchen", "light", "on"}},
	}
}

func TestEchoCommands(t *testing.T) {
	var logs bytes.Buffer
	r := &recordingReplier{}
	handler := echoCommands(r, newLogger(&logs, "debug", "json"))

	handler(context.Background(), commandFrom(envelope.Sender{Name: "petya", Host: "h", Topic: "petya"}))
	require.Len(t, r.payloads, 1)
	assert.Equal(t, "on", r.payloads[0])
	assert.Equal(t, "m1", r.sources[0].ID)

	// not replyable
	handler(context.Background(), commandFrom(envelope.Sender{Name: "petya", Host: "h"}))
	// not a command
	handler(context.Background(), driver.Event{Kind: driver.KindMessage, Topic: "kitchen"})
	assert.Len(t, r.payloads, 1)

	r.err = stderrors.New("bus down")
	handler(context.Background(), commandFrom(envelope.Sender{Name: "petya", Host: "h", Topic: "petya"}))
	assert.Contains(t, logs.String(), "Echo reply failed")
}

func TestLogEvents(t *testing.T) {
	var logs bytes.Buffer
	handler := logEvents(newLogger(&logs, "info", "text"))

	handler(context.Background(), commandFrom(envelope.Sender{Name: "petya", Host: "h"}))
	handler(context.Background(), driver.Event{Kind: driver.KindNoise, Topic: "kitchen"})

	out := logs.String()
	assert.Contains(t, out, "command=on")
	assert.Contains(t, out, "from=petya")
	assert.NotContains(t, out, "kind=noise")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", parseLevel("debug").String())
	assert.Equal(t, "WARN", parseLevel("WARN").String())
	assert.Equal(t, "ERROR", parseLevel("error").String())
	assert.Equal(t, "INFO", parseLevel("whatever").String())
}
