package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tablebot/internal/commands"
	"tablebot/internal/config"
	"tablebot/internal/runtime/supervisor"
	"tablebot/internal/storage"
	"tablebot/internal/task/scheduler"
	kit "tablebot/internal/transport"
	telegram "tablebot/internal/transport/telegram/adapter"
	"tablebot/internal/transport/telegram/router"
	logx "tablebot/pkg/logx"
)

const refreshJob = "commands.refresh"

// App wires the command table, the Telegram adapter and the dispatcher.
type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  *commands.ReloadBus

	store    storage.Store
	loader   *commands.Loader
	registry *commands.Registry

	adapter    *telegram.Adapter
	dispatcher *router.Dispatcher
	sched      *scheduler.Service

	updates chan kit.Update
}

func NewApp(cfgPath string) (*App, error) {
	env, err := config.ParseEnv()
	if err != nil {
		return nil, err
	}
	cfgm := config.NewManager(cfgPath, env)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogConfig(cfg), nil)
	appLog := log.With(logx.String("comp", "app"))
	if _, _, err := env.CacheTTLSeconds(); err != nil {
		appLog.Warn("ignoring invalid cache ttl override; using configured ttl", logx.Err(err))
	}

	adCfg, err := mapAdapterConfig(cfg)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(adCfg.Token) == "" {
		return nil, fmt.Errorf("telegram token is empty; set telegram.token or BOT_TOKEN")
	}
	ad, err := telegram.New(adCfg, log)
	if err != nil {
		return nil, err
	}
	logSvc.SetSender(ad)

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(sc, log)
	if err != nil {
		return nil, err
	}

	lc, err := mapLoaderConfig(cfg)
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := mapFetchTimeout(cfg)
	if err != nil {
		return nil, err
	}
	loader := commands.NewLoader(lc, &commands.HTTPFetcher{Timeout: fetchTimeout}, store, log)

	bus := commands.NewReloadBus()
	registry := commands.NewRegistry(loader, bus, log)

	dc, err := mapDispatchConfig(cfg)
	if err != nil {
		return nil, err
	}
	dc.BotUsername = ad.Username()
	dispatcher := router.NewDispatcher(dc, log, ad, registry)

	appLog.Info("app configured",
		logx.String("config", cfgPath),
		logx.String("source_config", lc.SourceConfig),
		logx.String("cache_driver", sc.Driver),
		logx.Duration("cache_ttl", lc.TTL),
		logx.String("bot", dc.BotUsername),
	)

	return &App{
		cfgm:       cfgm,
		log:        appLog,
		logs:       logSvc,
		bus:        bus,
		store:      store,
		loader:     loader,
		registry:   registry,
		adapter:    ad,
		dispatcher: dispatcher,
		sched:      scheduler.New(log),
		updates:    make(chan kit.Update, 256),
	}, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	cfg := a.cfgm.Get()

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, c *config.Config) error { return validateConfig(c) })

	// menu sync runs before the first load so the initial reload event is seen
	events, unsub := a.bus.Subscribe(16)
	a.sup.Go0("commands.menu", func(c context.Context) {
		defer unsub()
		a.syncMenu(c, events)
	})

	// a failed first load leaves the empty table installed; the bot still
	// serves built-ins and echo until a reload succeeds
	if _, err := a.registry.Reload(ctx, false); err != nil {
		a.log.Warn("initial command load failed; starting with an empty table", logx.Err(err))
	}

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}
	a.sup.Go("telegram.dispatch", func(c context.Context) error {
		return a.dispatcher.DispatchLoop(c, a.updates)
	})

	if r := strings.TrimSpace(cfg.Commands.Refresh); r != "" {
		err := a.sched.Add(refreshJob, r, time.Minute, func(c context.Context) error {
			_, err := a.registry.Reload(c, false)
			return err
		})
		if err != nil {
			return err
		}
	}
	a.sched.Start(a.sup.Context())

	if cfg.Commands.WatchLocal {
		lc, _ := mapLoaderConfig(cfg)
		a.sup.Go("commands.watch_local", func(c context.Context) error {
			wlog := a.log.With(logx.String("comp", "commands.watch"))
			return config.WatchFile(c, lc.LocalOverride, 500*time.Millisecond, wlog, func() {
				wlog.Info("local override changed; reloading", logx.String("path", lc.LocalOverride))
				_, _ = a.registry.Reload(c, true)
			})
		})
	}

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.applyConfig(c, sub)
	})
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started")
	return nil
}

// syncMenu pushes the command menu after every successful reload.
func (a *App) syncMenu(ctx context.Context, events <-chan commands.ReloadEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if e.Err != nil {
				a.log.Debug("reload failed; menu unchanged", logx.Time("at", e.At))
				continue
			}
			mctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := a.adapter.UpdateMenuCommands(mctx, router.MenuCommands(a.registry.Current()))
			cancel()
			if err != nil {
				a.log.Warn("menu update failed", logx.Err(err))
			}
		}
	}
}

// applyConfig applies hot-reloaded configs. Logging changes apply live;
// everything else is reported as needing a restart.
func (a *App) applyConfig(ctx context.Context, sub chan *config.Config) {
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case next, ok := <-sub:
			if !ok {
				return
			}
			a.logs.Apply(mapLogConfig(next))
			if changed := restartOnlyChanges(last, next); len(changed) > 0 {
				a.log.Warn("config sections changed; restart required for them to take effect",
					logx.Strings("sections", changed))
			}
			last = next
			a.log.Info("config reloaded")
		}
	}
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sup.Cancel()

	a.step(ctx, "scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	a.step(ctx, "adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	a.step(ctx, "supervisor", 3*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	a.step(ctx, "storage", time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	return a.logs.Close()
}
