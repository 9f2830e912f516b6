package router

import (
	"context"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"tablebot/internal/commands"
	rtsup "tablebot/internal/runtime/supervisor"
	kit "tablebot/internal/transport"
	logx "tablebot/pkg/logx"
)

// Route says how an update was handled; it ends up in the request log.
type Route string

const (
	RouteBuiltin  Route = "builtin"
	RouteCommand  Route = "command"
	RouteAlias    Route = "alias"
	RouteCallback Route = "callback"
	RouteEcho     Route = "echo"
	RouteIgnored  Route = "ignored"
)

// Registry is the part of *commands.Registry the dispatcher needs.
type Registry interface {
	Current() *commands.Table
	Reload(ctx context.Context, force bool) (*commands.Table, error)
}

type Config struct {
	// Workers processing updates. One worker keeps strict arrival order.
	Workers   int
	QueueSize int
	// Timeout bounds one update's handling; zero disables.
	Timeout time.Duration
	// ReloadCooldown is the minimum spacing between /reload runs.
	ReloadCooldown time.Duration
	// BotUsername, when set, makes "/cmd@other_bot" updates ignored.
	BotUsername string
}

type Request struct {
	Update   kit.Update
	Chat     kit.ChatTarget
	FromID   int64
	// Command is the normalized command word, or the callback's target name.
	Command  string
	Text     string
	ReqID    string
	Route    Route
	// Keyboard is set once a reply carried markup.
	Keyboard bool
	// Acked and AckText record the callback answer, if any.
	Acked    bool
	AckText  string

	// Table is the snapshot taken when handling started; a concurrent
	// reload does not change it.
	Table  *commands.Table
	Logger logx.Logger
}

// Dispatcher routes inbound updates to built-ins and table commands.
type Dispatcher struct {
	cfg      Config
	log      logx.Logger
	adapter  kit.Adapter
	registry Registry

	reloadLimiter *rate.Limiter
	reloading     atomic.Bool

	runMu   sync.Mutex
	running bool
	sup     *rtsup.Supervisor

	jobs chan func()
}

func NewDispatcher(cfg Config, log logx.Logger, adapter kit.Adapter, registry Registry) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.ReloadCooldown <= 0 {
		cfg.ReloadCooldown = 5 * time.Second
	}
	cfg.BotUsername = strings.TrimPrefix(strings.TrimSpace(cfg.BotUsername), "@")
	return &Dispatcher{
		cfg:           cfg,
		log:           log.With(logx.String("comp", "telegram.router")),
		adapter:       adapter,
		registry:      registry,
		reloadLimiter: rate.NewLimiter(rate.Every(cfg.ReloadCooldown), 1),
		jobs:          make(chan func(), cfg.QueueSize),
	}
}

// tryEnqueue is a panic-safe enqueue (the jobs channel may be closed).
func (d *Dispatcher) tryEnqueue(fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	select {
	case d.jobs <- fn:
		return true
	default:
		return false
	}
}

func (d *Dispatcher) setSupervisor(sup *rtsup.Supervisor, running bool) {
	d.runMu.Lock()
	d.sup = sup
	d.running = running
	d.runMu.Unlock()
}

// DispatchLoop consumes updates until ctx is done or updates is closed.
func (d *Dispatcher) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	sup := rtsup.New(ctx, rtsup.WithLogger(d.log))
	d.setSupervisor(sup, true)
	d.log.Info("dispatcher started", logx.Int("workers", d.cfg.Workers), logx.Int("queue_cap", cap(d.jobs)))

	var closeOnce sync.Once
	closeJobs := func() {
		closeOnce.Do(func() {
			d.setSupervisor(sup, false)
			close(d.jobs)
		})
	}

	for i := 0; i < d.cfg.Workers; i++ {
		idx := i
		sup.GoRestart("dispatch.worker."+strconv.Itoa(idx), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case job, ok := <-d.jobs:
					if !ok {
						return nil
					}
					func() {
						defer func() {
							if r := recover(); r != nil {
								d.log.Error("panic in dispatch job", logx.Int("worker", idx), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
							}
						}()
						job()
					}()
				}
			}
		},
			rtsup.WithRestartBackoff(200*time.Millisecond, 5*time.Second),
		)
	}

	defer func() {
		closeJobs()
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Wait(wctx)
		cancel()
		d.setSupervisor(nil, false)
		d.log.Info("dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			d.Enqueue(ctx, up)
		}
	}
}

// Enqueue queues one update for a worker. A full queue drops the update
// with a short notice to the user.
func (d *Dispatcher) Enqueue(ctx context.Context, up kit.Update) {
	req := d.newRequest(up)
	if req == nil {
		return
	}
	final := d.chain()
	if d.tryEnqueue(func() { _ = final(ctx, req) }) {
		return
	}
	req.Logger.Warn("dispatch queue full; update dropped")
	switch up.Kind {
	case kit.UpdateCallback:
		_ = d.adapter.AnswerCallback(ctx, up.Callback.ID, "busy, try again")
	case kit.UpdateMessage:
		_, _ = d.adapter.SendText(ctx, req.Chat, "busy, try again", nil)
	}
}

// Handle runs one update synchronously through the middleware chain.
func (d *Dispatcher) Handle(ctx context.Context, up kit.Update) error {
	req := d.newRequest(up)
	if req == nil {
		return nil
	}
	return d.chain()(ctx, req)
}

func (d *Dispatcher) newRequest(up kit.Update) *Request {
	req := &Request{Update: up, ReqID: uuid.NewString()}
	switch up.Kind {
	case kit.UpdateMessage:
		if up.Message == nil {
			return nil
		}
		m := up.Message
		req.Chat = kit.ChatTarget{ChatID: m.ChatID, ThreadID: m.ThreadID}
		req.FromID = m.FromID
		req.Text = m.Text
	case kit.UpdateCallback:
		if up.Callback == nil {
			return nil
		}
		cb := up.Callback
		req.Chat = kit.ChatTarget{ChatID: cb.ChatID, ThreadID: cb.ThreadID}
		req.FromID = cb.FromID
		req.Command = cb.Data
	default:
		return nil
	}
	req.Logger = d.log.With(
		logx.String("rid", req.ReqID),
		logx.Int64("chat_id", req.Chat.ChatID),
		logx.Int64("from_id", req.FromID),
	)
	return req
}

func (d *Dispatcher) handle(ctx context.Context, req *Request) error {
	req.Table = d.registry.Current()
	switch req.Update.Kind {
	case kit.UpdateCallback:
		return d.handleCallback(ctx, req)
	default:
		return d.handleMessage(ctx, req)
	}
}

// parseCommand extracts the command word from "/name@bot args". forOther is
// true when the command is addressed to a different bot.
func (d *Dispatcher) parseCommand(text string) (word string, forOther bool) {
	if !strings.HasPrefix(text, commands.CommandMarker) {
		return "", false
	}
	word = strings.TrimPrefix(strings.Fields(text)[0], commands.CommandMarker)
	if at := strings.IndexByte(word, '@'); at >= 0 {
		bot := word[at+1:]
		word = word[:at]
		if d.cfg.BotUsername != "" && !strings.EqualFold(bot, d.cfg.BotUsername) {
			return "", true
		}
	}
	return word, false
}

func (d *Dispatcher) handleMessage(ctx context.Context, req *Request) error {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		req.Route = RouteIgnored
		return nil
	}

	word, forOther := d.parseCommand(text)
	if forOther {
		req.Route = RouteIgnored
		return nil
	}
	if word != "" {
		req.Command = word
		if h, ok := d.builtin(word); ok {
			req.Route = RouteBuiltin
			return h(ctx, req)
		}
		if e, ok := req.Table.Lookup(word); ok {
			return d.replyEntry(ctx, req, e)
		}
	}

	req.Route = RouteEcho
	return d.send(ctx, req, echoPrefix+req.Text, nil)
}

// replyEntry sends a table command's answer. Direct invocations attach the
// memoized keyboard; aliases send text only.
func (d *Dispatcher) replyEntry(ctx context.Context, req *Request, e commands.Entry) error {
	if e.Alias {
		req.Route = RouteAlias
		return d.send(ctx, req, e.Record.ReplyText(), nil)
	}
	req.Route = RouteCommand
	return d.send(ctx, req, e.Record.ReplyText(), d.markup(req, e.Layout))
}

func (d *Dispatcher) handleCallback(ctx context.Context, req *Request) error {
	req.Route = RouteCallback
	cb := req.Update.Callback

	name, ok := cutUseToken(cb.Data)
	if !ok {
		req.Route = RouteIgnored
		return d.ack(ctx, req, "")
	}
	req.Command = name
	if name == "" {
		return d.ack(ctx, req, msgNoCommand)
	}
	e, found := req.Table.Lookup(name)
	if !found {
		return d.ack(ctx, req, msgUnknownCommand)
	}
	if err := d.ack(ctx, req, msgRunning+name); err != nil {
		req.Logger.Debug("callback answer failed", logx.Err(err))
	}
	return d.send(ctx, req, e.Record.ReplyText(), nil)
}

// ack answers the request's callback query and records the answer.
func (d *Dispatcher) ack(ctx context.Context, req *Request, text string) error {
	err := d.adapter.AnswerCallback(ctx, req.Update.Callback.ID, text)
	req.Acked = err == nil
	req.AckText = text
	return err
}

func cutUseToken(data string) (string, bool) {
	data = strings.TrimSpace(data)
	if !strings.HasPrefix(data, commands.UsePrefix) {
		return "", false
	}
	return commands.NormalizeName(strings.TrimPrefix(data, commands.UsePrefix)), true
}

func (d *Dispatcher) send(ctx context.Context, req *Request, text string, markup *tele.ReplyMarkup) error {
	opt := &kit.SendOptions{DisablePreview: true}
	if markup != nil {
		opt.ReplyMarkupAdapter = markup
	}
	_, err := d.adapter.SendText(ctx, req.Chat, text, opt)
	if err == nil && markup != nil {
		req.Keyboard = true
	}
	return err
}
