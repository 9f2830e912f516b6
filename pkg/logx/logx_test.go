package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	kit "tablebot/internal/transport"
)

func TestWriterFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "debug").With(String("comp", "test"))
	log.Warn("reload failed", Int("records", 3), Err(errors.New("boom")), Err(nil))

	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	require.Equal(t, "warn", m["level"])
	require.Equal(t, "test", m["comp"])
	require.Equal(t, float64(3), m["records"])
	require.Equal(t, "boom", m["err"])
}

func TestZeroAndNop(t *testing.T) {
	var zero Logger
	require.True(t, zero.IsZero())
	zero.Info("dropped")
	require.False(t, Nop().IsZero())
}

type recordingSender struct {
	mu   sync.Mutex
	sent []string
	to   []kit.ChatTarget
}

func (r *recordingSender) Start(context.Context, chan<- kit.Update) error { return nil }
func (r *recordingSender) Stop(context.Context) error                     { return nil }
func (r *recordingSender) AnswerCallback(context.Context, string, string) error {
	return nil
}
func (r *recordingSender) SendText(_ context.Context, to kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, text)
	r.to = append(r.to, to)
	return kit.MessageRef{ChatID: to.ChatID}, nil
}

func (r *recordingSender) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sent...)
}

func TestTelegramSink(t *testing.T) {
	svc, log := New(Config{Level: "debug"}, nil)
	defer svc.Close()

	sender := &recordingSender{}
	svc.SetSender(sender)
	svc.Apply(Config{
		Level: "debug",
		Telegram: TelegramConfig{
			Enabled: true, ChatID: -100, ThreadID: 3, MinLevel: "warn", RatePerSec: 10,
		},
	})

	log.Info("below min level")
	log.Error("cache write failed", String("path", "/tmp/x"))

	require.Eventually(t, func() bool { return len(sender.messages()) == 1 }, 2*time.Second, 10*time.Millisecond)
	msg := sender.messages()[0]
	require.Contains(t, msg, "[ERROR] cache write failed")
	require.Contains(t, msg, "- path=/tmp/x")
	require.Equal(t, kit.ChatTarget{ChatID: -100, ThreadID: 3}, sender.to[0])
}

func TestFormatTelegramLine(t *testing.T) {
	line := formatTelegramLine([]byte(`{"level":"warn","message":"m","b":"2","a":1,"time":"x"}`))
	require.Equal(t, "[WARN] m\n- a=1\n- b=2", line)
	require.Equal(t, "not json", formatTelegramLine([]byte(" not json \n")))
	require.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
