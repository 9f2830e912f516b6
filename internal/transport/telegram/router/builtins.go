package router

import (
	"context"

	tele "gopkg.in/telebot.v4"

	"tablebot/internal/commands"
	logx "tablebot/pkg/logx"
	"tablebot/pkg/tgui"
)

const (
	cmdDemo   = "demo"
	cmdReload = "reload"

	echoPrefix        = "You said: "
	msgNoCommand      = "No command"
	msgUnknownCommand = "Unknown command"
	msgRunning        = "Running "

	msgNoDemo        = "No demo commands available."
	msgInlineExample = "Inline keyboard example:"
	msgReloaded      = "Demo commands reloaded (cache cleared)."
	msgReloadFailed  = "Failed to reload demo commands."
	msgReloadBusy    = "Reload already in progress, try again shortly."
)

// builtin resolves commands that exist regardless of the table. They win
// over table rows with the same name.
func (d *Dispatcher) builtin(word string) (HandlerFunc, bool) {
	switch word {
	case cmdDemo:
		return d.handleDemo, true
	case cmdReload, "reload-demo", "reload_demo":
		return d.handleReload, true
	}
	return nil, false
}

// handleDemo shows both keyboard styles using the first table command.
func (d *Dispatcher) handleDemo(ctx context.Context, req *Request) error {
	first := req.Table.First()
	if first == nil {
		return d.send(ctx, req, msgNoDemo, nil)
	}
	reply := commands.Parse(first.Name + "|help")
	if err := d.send(ctx, req, "Reply keyboard example for /"+first.Name, d.markup(req, reply)); err != nil {
		return err
	}
	inline := &commands.Layout{
		Kind:    commands.KindInline,
		Buttons: []commands.Button{{Label: "Use command", Callback: commands.UseToken(first.Name)}},
	}
	return d.send(ctx, req, msgInlineExample, d.markup(req, inline))
}

// handleReload clears the cache and rebuilds the table. Failures are logged
// and reported to the user without detail.
func (d *Dispatcher) handleReload(ctx context.Context, req *Request) error {
	if !d.reloading.CompareAndSwap(false, true) {
		return d.send(ctx, req, msgReloadBusy, nil)
	}
	defer d.reloading.Store(false)
	if !d.reloadLimiter.Allow() {
		return d.send(ctx, req, msgReloadBusy, nil)
	}

	t, err := d.registry.Reload(ctx, true)
	if err != nil {
		req.Logger.Error("reload failed", logx.Err(err))
		return d.send(ctx, req, msgReloadFailed, nil)
	}
	req.Logger.Info("reload requested by user", logx.Int("records", t.Len()))
	return d.send(ctx, req, msgReloaded, nil)
}

// markup renders a layout for Telegram. Inline buttons whose callback data
// Telegram would reject are dropped so the rest of the message still sends.
func (d *Dispatcher) markup(req *Request, l *commands.Layout) *tele.ReplyMarkup {
	if l == nil {
		return nil
	}
	switch l.Kind {
	case commands.KindInline:
		btns := make([]tele.Btn, 0, len(l.Buttons))
		for _, b := range l.Buttons {
			if b.IsURL() {
				btns = append(btns, tgui.URLBtn(b.Label, b.URL))
				continue
			}
			if err := tgui.CheckData(b.Callback); err != nil {
				req.Logger.Warn("inline button dropped", logx.String("label", b.Label), logx.Err(err))
				continue
			}
			btns = append(btns, tgui.Btn(b.Label, b.Callback))
		}
		return tgui.InlineRow(btns...)
	case commands.KindReply:
		return tgui.Reply(l.Rows)
	default:
		return nil
	}
}
