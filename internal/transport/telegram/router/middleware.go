package router

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	logx "tablebot/pkg/logx"
)

type HandlerFunc func(ctx context.Context, req *Request) error

type Middleware func(next HandlerFunc) HandlerFunc

func Chain(h HandlerFunc, m ...Middleware) HandlerFunc {
	for i := len(m) - 1; i >= 0; i-- {
		h = m[i](h)
	}
	return h
}

// slowRequest promotes the request log line from DEBUG to INFO.
const slowRequest = 750 * time.Millisecond

// chain is the middleware stack every update goes through.
func (d *Dispatcher) chain() HandlerFunc {
	return Chain(d.handle, d.mwRecover(), d.mwLog(), mwTimeout(d.cfg.Timeout))
}

func mwTimeout(dur time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		if dur <= 0 {
			return next
		}
		return func(ctx context.Context, req *Request) error {
			cctx, cancel := context.WithTimeout(ctx, dur)
			defer cancel()
			return next(cctx, req)
		}
	}
}

// mwRecover turns a handler panic into an error. A callback that was not
// answered yet is acked so the user's button stops spinning.
func (d *Dispatcher) mwRecover() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				req.Logger.Error("panic recovered",
					logx.String("route", string(req.Route)),
					logx.Any("panic", r),
					logx.String("stack", string(debug.Stack())),
				)
				err = fmt.Errorf("panic: %v", r)
				if req.Update.Callback != nil && !req.Acked {
					_ = d.ack(ctx, req, "")
				}
			}()
			return next(ctx, req)
		}
	}
}

// mwLog writes one line per update describing how it was routed. Echo and
// ignored updates stay at DEBUG; table hits log the command and whether a
// keyboard went out.
func (d *Dispatcher) mwLog() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			start := time.Now()
			err := next(ctx, req)
			took := time.Since(start)

			fields := []logx.Field{
				logx.String("kind", string(req.Update.Kind)),
				logx.String("route", string(req.Route)),
				logx.String("cmd", req.Command),
				logx.Int("thread_id", req.Chat.ThreadID),
				logx.Bool("keyboard", req.Keyboard),
				logx.Duration("took", took),
			}
			if req.Update.Callback != nil {
				fields = append(fields, logx.Bool("acked", req.Acked), logx.String("ack", req.AckText))
			}
			if req.Table != nil {
				fields = append(fields, logx.Int("table_keys", req.Table.Keys()))
			}

			switch {
			case err != nil:
				req.Logger.Warn("update failed", append(fields, logx.Err(err))...)
			case took >= slowRequest:
				req.Logger.Info("update handled (slow)", fields...)
			case req.Route == RouteEcho || req.Route == RouteIgnored:
				req.Logger.Debug("update passed through", fields...)
			default:
				req.Logger.Debug("update handled", fields...)
			}
			return err
		}
	}
}
