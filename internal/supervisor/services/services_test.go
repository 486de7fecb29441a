// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package services

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"
)

var (
	_ suture.Service = (*HTTPServerService)(nil)
	_ suture.Service = (*SchedulerService)(nil)
	_ suture.Service = (*LoopService)(nil)
)

// mockHTTPServer blocks in ListenAndServe until Shutdown unless
// listenErr is set.
type mockHTTPServer struct {
	listenErr     error
	shutdownErr   error
	shutdownCount atomic.Int32
	started       chan struct{}
	stopCh        chan struct{}
	once          sync.Once
}

func newMockHTTPServer() *mockHTTPServer {
	return &mockHTTPServer{started: make(chan struct{}, 1), stopCh: make(chan struct{})}
}

func (m *mockHTTPServer) ListenAndServe() error {
	select {
	case m.started <- struct{}{}:
	default:
	}
	if m.listenErr != nil {
		return m.listenErr
	}
	<-m.stopCh
	return http.ErrServerClosed
}

func (m *mockHTTPServer) Shutdown(context.Context) error {
	m.shutdownCount.Add(1)
	m.once.Do(func() { close(m.stopCh) })
	return m.shutdownErr
}

func TestHTTPServerService(t *testing.T) {
	t.Run("graceful shutdown on cancel", func(t *testing.T) {
		srv := newMockHTTPServer()
		svc := NewHTTPServerService(srv, time.Second)
		ctx, cancel := context.WithCancel(context.Background())

		errCh := make(chan error, 1)
		go func() { errCh <- svc.Serve(ctx) }()
		<-srv.started
		cancel()

		select {
		case err := <-errCh:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("err = %v, want context.Canceled", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Serve did not return")
		}
		if srv.shutdownCount.Load() != 1 {
			t.Errorf("Shutdown called %d times, want 1", srv.shutdownCount.Load())
		}
	})

	t.Run("listen failure is returned", func(t *testing.T) {
		srv := newMockHTTPServer()
		srv.listenErr = errors.New("address in use")
		err := NewHTTPServerService(srv, 0).Serve(context.Background())
		if err == nil || !errors.Is(err, srv.listenErr) {
			t.Errorf("err = %v, want wrapped listen error", err)
		}
	})

	t.Run("shutdown failure is returned", func(t *testing.T) {
		srv := newMockHTTPServer()
		srv.shutdownErr = errors.New("drain timeout")
		svc := NewHTTPServerService(srv, time.Second)
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			<-srv.started
			cancel()
		}()
		if err := svc.Serve(ctx); !errors.Is(err, srv.shutdownErr) {
			t.Errorf("err = %v, want shutdown error", err)
		}
	})

	t.Run("default timeout and name", func(t *testing.T) {
		svc := NewHTTPServerService(newMockHTTPServer(), -1)
		if svc.shutdownTimeout != 10*time.Second || svc.String() != "http-server" {
			t.Errorf("timeout=%v name=%q", svc.shutdownTimeout, svc.String())
		}
	})
}

type mockScheduler struct {
	startErr error
	starts   atomic.Int32
	stops    atomic.Int32
}

func (m *mockScheduler) Start(context.Context) error {
	m.starts.Add(1)
	return m.startErr
}

func (m *mockScheduler) Stop() error {
	m.stops.Add(1)
	return nil
}

func TestSchedulerService(t *testing.T) {
	t.Run("starts then stops on cancel", func(t *testing.T) {
		m := &mockScheduler{}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()
		if err := NewSchedulerService(m).Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("err = %v", err)
		}
		if m.starts.Load() != 1 || m.stops.Load() != 1 {
			t.Errorf("starts=%d stops=%d", m.starts.Load(), m.stops.Load())
		}
	})

	t.Run("start failure skips stop", func(t *testing.T) {
		m := &mockScheduler{startErr: errors.New("bad spec")}
		if err := NewSchedulerService(m).Serve(context.Background()); !errors.Is(err, m.startErr) {
			t.Errorf("err = %v", err)
		}
		if m.stops.Load() != 0 {
			t.Error("Stop should not run after failed Start")
		}
	})
}

func TestLoopService(t *testing.T) {
	blocking := func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}

	tests := []struct {
		name    string
		run     RunFunc
		cancel  bool
		wantErr error
	}{
		{"clean stop on cancel", blocking, true, context.Canceled},
		{"early nil return is a crash", func(context.Context) error { return nil }, false, nil},
		{"loop error is wrapped", func(context.Context) error { return errTest }, false, errTest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewLoopService("test-loop", tt.run, zerolog.Nop())
			ctx, cancel := context.WithCancel(context.Background())
			if tt.cancel {
				cancel()
			}
			defer cancel()

			err := svc.Serve(ctx)
			if err == nil {
				t.Fatal("Serve returned nil")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if got := NewLoopService("ingest-flush", blocking, zerolog.Nop()).String(); got != "ingest-flush" {
		t.Errorf("String() = %q", got)
	}
}

var errTest = errors.New("loop failed")
