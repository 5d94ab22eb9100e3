package hooks

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/contentbuilder/internal/config"
	"git.home.luguber.info/inful/contentbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/contentbuilder/internal/logfields"
	"git.home.luguber.info/inful/contentbuilder/internal/pipeline"
)

// Publisher is the part of *nats.Conn the nats hook uses.
type Publisher interface {
	PublishMsg(m *nats.Msg) error
	FlushTimeout(timeout time.Duration) error
	Close()
}

// BuildEvent is published once per completed build.
type BuildEvent struct {
	BuildID    string         `json:"buildId"`
	Status     string         `json:"status"`
	Policy     string         `json:"policy"`
	StartedAt  time.Time      `json:"startedAt"`
	DurationMS int64          `json:"durationMs"`
	Documents  int            `json:"documents"`
	Failures   int            `json:"failures"`
	CacheHits  int            `json:"cacheHits"`
	Counts     map[string]int `json:"counts"`
	Commit     string         `json:"commit,omitempty"`
}

// NATS publishes a BuildEvent to a subject.
type NATS struct {
	conn    Publisher
	subject string
	timeout time.Duration
}

// ConnectNATS dials the configured server and returns the hook owning the connection.
func ConnectNATS(cfg config.NATSConfig) (*NATS, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.Timeout(cfg.Timeout),
		nats.MaxReconnects(3),
	)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryNetwork, "failed to connect to NATS").
			WithContext("url", cfg.URL).
			Build()
	}
	slog.Info("NATS client initialized for build events",
		slog.String("url", cfg.URL),
		logfields.Subject(cfg.Subject))
	return NewNATS(conn, cfg), nil
}

// NewNATS returns the nats hook publishing through conn.
func NewNATS(conn Publisher, cfg config.NATSConfig) *NATS {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultNATSTimeout
	}
	subject := cfg.Subject
	if subject == "" {
		subject = config.DefaultNATSSubject
	}
	return &NATS{conn: conn, subject: subject, timeout: timeout}
}

func (h *NATS) Name() string { return NameNATS }

func (h *NATS) OnBuildComplete(ctx context.Context, result *pipeline.Result) error {
	event := NewBuildEvent(result)
	data, err := json.Marshal(event)
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to marshal build event").Build()
	}

	msg := nats.NewMsg(h.subject)
	msg.Data = data
	// Lets JetStream streams on the subject drop redeliveries of the same build.
	msg.Header.Set(nats.MsgIdHdr, result.BuildID)
	if err := h.conn.PublishMsg(msg); err != nil {
		return errors.WrapError(err, errors.CategoryNetwork, "failed to publish build event").
			WithContext("subject", h.subject).
			Build()
	}

	timeout := h.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if err := h.conn.FlushTimeout(timeout); err != nil {
		return errors.WrapError(err, errors.CategoryNetwork, "failed to flush build event").
			WithContext("subject", h.subject).
			Build()
	}

	slog.DebugContext(ctx, "Published build event",
		logfields.BuildID(result.BuildID),
		logfields.Subject(h.subject))
	return nil
}

// Close closes the NATS connection.
func (h *NATS) Close() error {
	if h.conn != nil {
		h.conn.Close()
	}
	return nil
}

// NewBuildEvent summarizes result.
func NewBuildEvent(result *pipeline.Result) BuildEvent {
	return BuildEvent{
		BuildID:    result.BuildID,
		Status:     string(result.Status),
		Policy:     string(result.Policy),
		StartedAt:  result.StartedAt,
		DurationMS: result.Duration.Milliseconds(),
		Documents:  len(result.Documents),
		Failures:   len(result.Failures),
		CacheHits:  result.CacheHits,
		Counts:     result.Counts,
		Commit:     result.Commit,
	}
}
