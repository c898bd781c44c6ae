package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/tomz197/sshtargets/internal/config"
	"github.com/tomz197/sshtargets/internal/loop/client"
	"github.com/tomz197/sshtargets/internal/loop/server"
	"github.com/tomz197/sshtargets/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "game error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// The terminal belongs to the game; logs go to GAME_LOG when set.
	logger := cfg.NewLogger("game")
	logger.SetOutput(io.Discard)
	if path := config.GetEnv("GAME_LOG", ""); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logger.SetOutput(f)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}
	defer store.Close(st)

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("failed to enable raw mode: %w", err)
	}
	defer func() {
		_ = term.Restore(fd, oldState)
	}()

	hub := server.NewServer(st, server.Options{Logger: logger.WithPrefix("hub"), Timeout: cfg.Store.Timeout})
	c := client.NewClient(hub, bufio.NewReader(os.Stdin), os.Stdout, client.ClientOptions{
		Username:     os.Getenv("USER"),
		Logger:       logger,
		StoreTimeout: cfg.Store.Timeout,
	})

	gameCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(gameCtx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		// The hub stops with the game.
		defer cancel()
		return c.Run(gctx)
	})
	err = g.Wait()
	logger.Info("game ended", "err", err)
	return err
}
