package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"tablebot/internal/commands"
	kit "tablebot/internal/transport"
	logx "tablebot/pkg/logx"
)

type sent struct {
	To     kit.ChatTarget
	Text   string
	Markup *tele.ReplyMarkup
}

type answered struct {
	ID   string
	Text string
}

type fakeAdapter struct {
	mu       sync.Mutex
	sent     []sent
	answered []answered
}

func (f *fakeAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error                     { return nil }

func (f *fakeAdapter) SendText(_ context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := sent{To: to, Text: text}
	if opt != nil && opt.ReplyMarkupAdapter != nil {
		s.Markup = opt.ReplyMarkupAdapter.(*tele.ReplyMarkup)
	}
	f.sent = append(f.sent, s)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.sent)}, nil
}

func (f *fakeAdapter) AnswerCallback(_ context.Context, id, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answered = append(f.answered, answered{ID: id, Text: text})
	return nil
}

func (f *fakeAdapter) Sent() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.sent...)
}

type fakeRegistry struct {
	mu      sync.Mutex
	table   *commands.Table
	next    []commands.Record
	err     error
	reloads int
	block   chan struct{}
}

func (r *fakeRegistry) Current() *commands.Table {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.table
}

func (r *fakeRegistry) Reload(ctx context.Context, force bool) (*commands.Table, error) {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reloads++
	if r.err != nil {
		return nil, r.err
	}
	r.table = commands.BuildTable(r.next)
	return r.table, nil
}

var testRecords = []commands.Record{
	{Name: "ping", Answer: "pong", Keyboard: "inline: Ping, url:Docs|https://example.com", Aliases: []string{"p"}},
	{Name: "menu", Answer: "Pick", Keyboard: "a,b|c", Aliases: []string{"m"}},
	{Name: "blank", Answer: ""},
}

func newTestDispatcher(t *testing.T, recs []commands.Record) (*Dispatcher, *fakeAdapter, *fakeRegistry) {
	t.Helper()
	ad := &fakeAdapter{}
	reg := &fakeRegistry{table: commands.BuildTable(recs), next: recs}
	d := NewDispatcher(Config{BotUsername: "table_bot"}, logx.Nop(), ad, reg)
	return d, ad, reg
}

func msg(text string) kit.Update {
	return kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{ID: 1, ChatID: 42, FromID: 7, Text: text}}
}

func callback(data string) kit.Update {
	return kit.Update{Kind: kit.UpdateCallback, Callback: &kit.Callback{ID: "cb1", ChatID: 42, FromID: 7, MessageID: 3, Data: data}}
}

func TestDirectCommandAttachesKeyboard(t *testing.T) {
	d, ad, _ := newTestDispatcher(t, testRecords)
	require.NoError(t, d.Handle(context.Background(), msg("/ping")))
	require.NoError(t, d.Handle(context.Background(), msg("/menu@table_bot extra args")))

	out := ad.Sent()
	require.Len(t, out, 2)
	require.Equal(t, "pong", out[0].Text)
	require.Equal(t, kit.ChatTarget{ChatID: 42}, out[0].To)
	require.NotNil(t, out[0].Markup)
	require.Len(t, out[0].Markup.InlineKeyboard, 1)
	row := out[0].Markup.InlineKeyboard[0]
	require.Equal(t, "use:Ping", row[0].Data)
	require.Equal(t, "https://example.com", row[1].URL)

	require.Equal(t, "Pick", out[1].Text)
	require.NotNil(t, out[1].Markup)
	require.Len(t, out[1].Markup.ReplyKeyboard, 2)
	require.True(t, out[1].Markup.OneTimeKeyboard)
	require.True(t, out[1].Markup.ResizeKeyboard)
}

func TestAliasNeverAttachesKeyboard(t *testing.T) {
	d, ad, _ := newTestDispatcher(t, testRecords)
	require.NoError(t, d.Handle(context.Background(), msg("/p")))
	require.NoError(t, d.Handle(context.Background(), msg("/m")))

	out := ad.Sent()
	require.Len(t, out, 2)
	require.Equal(t, "pong", out[0].Text)
	require.Nil(t, out[0].Markup)
	require.Equal(t, "Pick", out[1].Text)
	require.Nil(t, out[1].Markup)
}

func TestEmptyAnswerBecomesSpace(t *testing.T) {
	d, ad, _ := newTestDispatcher(t, testRecords)
	require.NoError(t, d.Handle(context.Background(), msg("/blank")))
	require.Equal(t, " ", ad.Sent()[0].Text)
	require.Nil(t, ad.Sent()[0].Markup)
}

func TestEchoFallback(t *testing.T) {
	d, ad, _ := newTestDispatcher(t, testRecords)
	require.NoError(t, d.Handle(context.Background(), msg("hello there")))
	require.NoError(t, d.Handle(context.Background(), msg("/nosuch")))
	require.NoError(t, d.Handle(context.Background(), msg("/ping@other_bot")))

	out := ad.Sent()
	require.Len(t, out, 2, "commands for other bots are ignored")
	require.Equal(t, "You said: hello there", out[0].Text)
	require.Equal(t, "You said: /nosuch", out[1].Text)
}

func TestCallbacks(t *testing.T) {
	tests := []struct {
		data   string
		answer string
		reply  string
	}{
		{data: "use:ping", answer: "Running ping", reply: "pong"},
		{data: "use:/p", answer: "Running p", reply: "pong"},
		{data: "use:blank", answer: "Running blank", reply: " "},
		{data: "use:", answer: "No command"},
		{data: "use:ghost", answer: "Unknown command"},
		{data: "other:thing", answer: ""},
	}
	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			d, ad, _ := newTestDispatcher(t, testRecords)
			require.NoError(t, d.Handle(context.Background(), callback(tt.data)))
			require.Equal(t, []answered{{ID: "cb1", Text: tt.answer}}, ad.answered)
			if tt.reply == "" {
				require.Empty(t, ad.Sent())
				return
			}
			out := ad.Sent()
			require.Len(t, out, 1)
			require.Equal(t, tt.reply, out[0].Text)
			require.Nil(t, out[0].Markup)
		})
	}
}

func TestDemo(t *testing.T) {
	d, ad, _ := newTestDispatcher(t, testRecords)
	require.NoError(t, d.Handle(context.Background(), msg("/demo")))
	out := ad.Sent()
	require.Len(t, out, 2)
	require.Equal(t, "Reply keyboard example for /ping", out[0].Text)
	require.Equal(t, "ping", out[0].Markup.ReplyKeyboard[0][0].Text)
	require.Equal(t, "help", out[0].Markup.ReplyKeyboard[1][0].Text)
	require.Equal(t, "Inline keyboard example:", out[1].Text)
	require.Equal(t, "Use command", out[1].Markup.InlineKeyboard[0][0].Text)
	require.Equal(t, "use:ping", out[1].Markup.InlineKeyboard[0][0].Data)

	empty, ad2, _ := newTestDispatcher(t, nil)
	require.NoError(t, empty.Handle(context.Background(), msg("/demo")))
	require.Equal(t, "No demo commands available.", ad2.Sent()[0].Text)
}

func TestBuiltinsWinOverTable(t *testing.T) {
	d, ad, _ := newTestDispatcher(t, []commands.Record{{Name: "demo", Answer: "from table"}})
	require.NoError(t, d.Handle(context.Background(), msg("/demo")))
	require.Equal(t, "Reply keyboard example for /demo", ad.Sent()[0].Text)
}

func TestReload(t *testing.T) {
	d, ad, reg := newTestDispatcher(t, nil)
	reg.next = testRecords
	require.NoError(t, d.Handle(context.Background(), msg("/reload-demo")))
	require.Equal(t, "Demo commands reloaded (cache cleared).", ad.Sent()[0].Text)
	require.Equal(t, 3, d.registry.Current().Len())

	// cooldown
	require.NoError(t, d.Handle(context.Background(), msg("/reload")))
	require.Equal(t, "Reload already in progress, try again shortly.", ad.Sent()[1].Text)
	require.Equal(t, 1, reg.reloads)
}

func TestReloadFailureIsGeneric(t *testing.T) {
	d, ad, reg := newTestDispatcher(t, testRecords)
	reg.err = errors.New("dial tcp: connection refused")
	require.NoError(t, d.Handle(context.Background(), msg("/reload_demo")))
	require.Equal(t, "Failed to reload demo commands.", ad.Sent()[0].Text)
	_, ok := d.registry.Current().Lookup("ping")
	require.True(t, ok)
}

func TestOverlongCallbackButtonDropped(t *testing.T) {
	long := strings.Repeat("x", 70)
	d, ad, _ := newTestDispatcher(t, []commands.Record{{Name: "k", Answer: "a", Keyboard: "inline: ok, " + long}})
	require.NoError(t, d.Handle(context.Background(), msg("/k")))
	row := ad.Sent()[0].Markup.InlineKeyboard[0]
	require.Len(t, row, 1)
	require.Equal(t, "ok", row[0].Text)
}

func TestDispatchLoopPreservesOrder(t *testing.T) {
	d, ad, _ := newTestDispatcher(t, testRecords)
	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan kit.Update, 8)
	done := make(chan error, 1)
	go func() { done <- d.DispatchLoop(ctx, updates) }()

	for _, text := range []string{"one", "two", "three", "/ping"} {
		updates <- msg(text)
	}
	require.Eventually(t, func() bool { return len(ad.Sent()) == 4 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	out := ad.Sent()
	require.Equal(t, "You said: one", out[0].Text)
	require.Equal(t, "You said: two", out[1].Text)
	require.Equal(t, "You said: three", out[2].Text)
	require.Equal(t, "pong", out[3].Text)
}

func TestPanicRecoveredAcksCallback(t *testing.T) {
	d, ad, _ := newTestDispatcher(t, testRecords)
	h := Chain(func(ctx context.Context, req *Request) error { panic("boom") }, d.mwRecover())

	req := d.newRequest(callback("use:ping"))
	err := h(context.Background(), req)
	require.ErrorContains(t, err, "boom")
	require.Equal(t, []answered{{ID: "cb1", Text: ""}}, ad.answered)
	require.True(t, req.Acked)

	err = h(context.Background(), d.newRequest(msg("/ping")))
	require.ErrorContains(t, err, "boom")
	require.Len(t, ad.answered, 1)
}

func TestRequestLogRecordsOutcome(t *testing.T) {
	var buf bytes.Buffer
	ad := &fakeAdapter{}
	reg := &fakeRegistry{table: commands.BuildTable(testRecords)}
	d := NewDispatcher(Config{}, logx.NewWriter(&buf, "debug"), ad, reg)

	require.NoError(t, d.Handle(context.Background(), msg("/ping")))
	require.NoError(t, d.Handle(context.Background(), callback("use:p")))
	require.NoError(t, d.Handle(context.Background(), msg("hi")))

	var lines []map[string]any
	for _, l := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(l), &m))
		if _, ok := m["route"]; ok {
			lines = append(lines, m)
		}
	}
	require.Len(t, lines, 3)

	require.Equal(t, "command", lines[0]["route"])
	require.Equal(t, "ping", lines[0]["cmd"])
	require.Equal(t, true, lines[0]["keyboard"])
	require.NotContains(t, lines[0], "acked")

	require.Equal(t, "callback", lines[1]["route"])
	require.Equal(t, "p", lines[1]["cmd"])
	require.Equal(t, true, lines[1]["acked"])
	require.Equal(t, "Running p", lines[1]["ack"])
	require.Equal(t, false, lines[1]["keyboard"])

	require.Equal(t, "echo", lines[2]["route"])
	require.Equal(t, "update passed through", lines[2]["message"])
}

func TestMenuCommands(t *testing.T) {
	tbl := commands.BuildTable([]commands.Record{
		{Name: "ping", Answer: "pong\nsecond line"},
		{Name: "Bad-Name", Answer: "x"},
		{Name: "quiet"},
		{Name: "demo", Answer: "dup"},
	})
	got := MenuCommands(tbl)
	require.Equal(t, []kit.BotCommand{
		{Command: "demo", Description: "Show keyboard examples"},
		{Command: "reload", Description: "Reload commands from the table"},
		{Command: "ping", Description: "pong"},
		{Command: "quiet", Description: "quiet"},
	}, got)
}

func TestSanitizeTelegramCommand(t *testing.T) {
	require.Equal(t, "reload_demo", sanitizeTelegramCommand("reload-demo"))
	require.Equal(t, "cmd_1abc", sanitizeTelegramCommand("1abc"))
	require.Equal(t, "", sanitizeTelegramCommand("!!!"))
}
