// Command appendstart appends a /start row to the command table and writes
// the result next to the source config, where the bot picks it up as a
// local override.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"tablebot/internal/commands"
	logx "tablebot/pkg/logx"
)

const (
	outputName         = "commands-with-start.csv"
	serviceAccountName = "service-account.json"
)

type options struct {
	configPath string
	outPath    string
	timeout    time.Duration
}

func main() {
	var opt options
	flag.StringVar(&opt.configPath, "config", commands.DefaultSourceConfig, "source config with csv_url")
	flag.StringVar(&opt.outPath, "out", "", "output path (default: "+outputName+" next to -config)")
	flag.DurationVar(&opt.timeout, "timeout", 30*time.Second, "fetch timeout")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log := logx.NewConsole(*level).With(logx.String("comp", "appendstart"))
	if err := run(ctx, opt, &commands.HTTPFetcher{Timeout: opt.timeout}, log); err != nil {
		log.Error("append failed", logx.Err(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, opt options, fetcher commands.Fetcher, log logx.Logger) error {
	cfg, ok, err := commands.ReadSourceConfig(opt.configPath)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("source config %s not found", opt.configPath)
	}
	if strings.TrimSpace(cfg.CSVURL) == "" {
		return errors.New("csv_url is empty in " + opt.configPath)
	}

	dir := filepath.Dir(opt.configPath)
	if _, err := os.Stat(filepath.Join(dir, serviceAccountName)); err == nil {
		log.Warn("remote append is not supported; writing a local copy instead",
			logx.String("credentials", filepath.Join(dir, serviceAccountName)))
	}

	src := commands.ParseSource(cfg.CSVURL)
	raw, err := fetcher.Fetch(ctx, src)
	if err != nil {
		return err
	}
	out, err := commands.AppendStart(raw)
	if err != nil {
		return fmt.Errorf("append /start: %w", err)
	}

	dst := opt.outPath
	if dst == "" {
		dst = filepath.Join(dir, outputName)
	}
	if err := os.WriteFile(dst, out, 0o644); err != nil {
		return err
	}
	log.Info("wrote table with /start row", logx.String("source", src.String()), logx.String("out", dst), logx.Int("bytes", len(out)))
	return nil
}
