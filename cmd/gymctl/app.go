package main

import (
	"context"
	"fmt"
	"io"
	"log"

	"example.com/gymbooking/internal/apiclient"
	"example.com/gymbooking/internal/authflow"
	"example.com/gymbooking/internal/config"
	"example.com/gymbooking/internal/events"
	"example.com/gymbooking/internal/session"
	"example.com/gymbooking/internal/session/postgres"
)

// app holds what one invocation needs. Each invocation is one screen scope.
type app struct {
	cfg       config.Config
	out       *printer
	stderr    io.Writer
	logger    *log.Logger
	sessions  *session.Service
	api       *apiclient.Client
	publisher events.Publisher
	flows     *flowFile
}

func newApp(ctx context.Context, cfg config.Config, out *printer, stderr io.Writer, verbose bool) (*app, error) {
	logOut := io.Discard
	if verbose {
		logOut = stderr
	}
	logger := log.New(logOut, "[gymctl] ", log.LstdFlags)

	store, err := openSessionStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s session store: %w", cfg.SessionBackend, err)
	}
	sessions := session.NewService(store)

	var publisher events.Publisher = events.NoopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.EventsTopic)
	}

	return &app{
		cfg:       cfg,
		out:       out,
		stderr:    stderr,
		logger:    logger,
		sessions:  sessions,
		api:       apiclient.New(cfg.APIBaseURL, sessions, cfg.HTTPTimeout, apiclient.WithLogger(logger)),
		publisher: publisher,
		flows:     &flowFile{path: cfg.FlowFile},
	}, nil
}

// openSessionStore picks the session backend named by SESSION_BACKEND.
func openSessionStore(ctx context.Context, cfg config.Config) (session.Store, error) {
	switch cfg.SessionBackend {
	case "", "file":
		return session.NewFileStore(cfg.SessionFile)
	case "memory":
		return session.NewMemoryStore(), nil
	case "redis":
		rdb, err := session.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return nil, err
		}
		return session.NewRedisStore(rdb, cfg.SessionProfile), nil
	case "valkey":
		client, err := session.DialValkey(cfg.ValkeyURI)
		if err != nil {
			return nil, err
		}
		return session.NewValkeyStore(client, cfg.SessionProfile), nil
	case "postgres":
		return postgres.Open(ctx, cfg.PostgresURL, cfg.SessionProfile)
	}
	return nil, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
}

// machine builds the auth flow, restored from the session and any pending OTP flow.
func (a *app) machine(ctx context.Context) (*authflow.Machine, error) {
	m := authflow.New(a.api, a.sessions, authflow.WithLogger(a.logger), authflow.WithPublisher(a.publisher))
	if err := m.Restore(ctx); err != nil {
		m.Close()
		return nil, err
	}
	pending, err := a.flows.Load()
	if err != nil {
		a.logger.Printf("ignoring unreadable flow file: %v", err)
	} else if pending != nil {
		m.Resume(pending.State, pending.Otp)
	}
	return m, nil
}

// persistFlow records a pending OTP flow for the next invocation, or removes the record.
func (a *app) persistFlow(m *authflow.Machine) error {
	st := m.State()
	if !st.Pending() {
		return a.flows.Clear()
	}
	rec := pendingFlow{State: st}
	if st.Phase == authflow.PhaseAwaitingNewPassword {
		rec.Otp = m.Otp()
	}
	return a.flows.Save(rec)
}

func (a *app) Close() {
	if err := a.publisher.Close(); err != nil {
		a.logger.Printf("close publisher: %v", err)
	}
	if err := a.sessions.Close(); err != nil {
		a.logger.Printf("close session store: %v", err)
	}
}
