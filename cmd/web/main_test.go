package main

import (
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/tomz197/sshtargets/internal/config"
)

func TestRunRejectsHTTPBackend(t *testing.T) {
	cfg := &config.Config{Store: config.StoreConfig{Backend: config.BackendHTTP}}
	err := run(cfg, log.New(io.Discard))
	if err == nil || !strings.Contains(err.Error(), "http store backend") {
		t.Fatalf("run = %v, want the http backend refused", err)
	}
}

func TestRunReportsStoreOpenFailure(t *testing.T) {
	cfg := &config.Config{Store: config.StoreConfig{Backend: "bogus"}}
	err := run(cfg, log.New(io.Discard))
	if err == nil || !strings.Contains(err.Error(), "open bogus store") {
		t.Fatalf("run = %v, want the store error returned", err)
	}
}
