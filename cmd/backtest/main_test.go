package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"trident-trader/internal/config"
	"trident-trader/internal/observability"
	"trident-trader/internal/publish"
	"trident-trader/internal/storage"
)

// stubSeams replaces store and publisher construction and reports how many
// times the stores were closed.
func stubSeams(t *testing.T, pubErr error) *int {
	t.Helper()
	closed := new(int)
	origStores, origPub := openStores, newPublisher
	t.Cleanup(func() { openStores, newPublisher = origStores, origPub })

	openStores = func(context.Context, *config.Config, zerolog.Logger, *observability.Metrics) (storage.Stores, func(), error) {
		return storage.Stores{}, func() { *closed++ }, nil
	}
	newPublisher = func(*config.Config, zerolog.Logger, *observability.Metrics) (*publish.KafkaPublisher, error) {
		return nil, pubErr
	}
	return closed
}

func TestRun_PublisherErrorClosesStores(t *testing.T) {
	closed := stubSeams(t, errors.New("broker unreachable"))

	var out bytes.Buffer
	code := run([]string{"-smoke", "-smoke-steps", "600", "-output-dir="}, &out)
	if code != 1 {
		t.Errorf("Exit code = %d, want 1", code)
	}
	if *closed != 1 {
		t.Errorf("Stores closed %d times, want 1", *closed)
	}
	if out.Len() != 0 {
		t.Errorf("Unexpected output: %q", out.String())
	}
}

func TestRun_OpenStoresError(t *testing.T) {
	stubSeams(t, nil)
	openStores = func(context.Context, *config.Config, zerolog.Logger, *observability.Metrics) (storage.Stores, func(), error) {
		return storage.Stores{}, nil, errors.New("connect to postgres")
	}
	if code := run([]string{"-smoke", "-smoke-steps", "600", "-output-dir="}, &bytes.Buffer{}); code != 1 {
		t.Errorf("Exit code = %d, want 1", code)
	}
}

func TestRun_Smoke(t *testing.T) {
	closed := stubSeams(t, nil)

	var out bytes.Buffer
	code := run([]string{"-smoke", "-smoke-steps", "600", "-output-dir=", "-run-id", "cmd-smoke"}, &out)
	if code != 0 {
		t.Fatalf("Exit code = %d, want 0", code)
	}
	if !strings.Contains(out.String(), "Run cmd-smoke") {
		t.Errorf("Output missing run id: %q", out.String())
	}
	if *closed != 1 {
		t.Errorf("Stores closed %d times, want 1", *closed)
	}
}

func TestRun_ConfigRequired(t *testing.T) {
	stubSeams(t, nil)
	if code := run(nil, &bytes.Buffer{}); code != 1 {
		t.Errorf("Exit code = %d, want 1", code)
	}
}
