package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"gotest.tools/v3/assert"
)

func TestConsoleOnlyWithoutSeq(t *testing.T) {
	var buf bytes.Buffer
	logger, closeFn := setupLogger(&buf, slog.LevelInfo, "")
	defer closeFn()

	logger.Debug("hidden")
	logger.Info("table created", "table", "users")

	out := buf.String()
	assert.Assert(t, !strings.Contains(out, "hidden"))
	assert.Assert(t, strings.Contains(out, "table=users"), out)
}

// recordingHandler keeps every record it handles
type recordingHandler struct {
	level   slog.Level
	records *[]slog.Record
	attrs   []slog.Attr
}

func (h *recordingHandler) Enabled(_ context.Context, l slog.Level) bool { return l >= h.level }

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	r.AddAttrs(h.attrs...)
	*h.records = append(*h.records, r)
	return nil
}

func (h *recordingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &recordingHandler{level: h.level, records: h.records, attrs: append(append([]slog.Attr{}, h.attrs...), attrs...)}
}

func (h *recordingHandler) WithGroup(string) slog.Handler { return h }

func TestFanout(t *testing.T) {
	var debugRecs, errorRecs []slog.Record
	multi := fanout{
		&recordingHandler{level: slog.LevelDebug, records: &debugRecs},
		&recordingHandler{level: slog.LevelError, records: &errorRecs},
	}
	logger := slog.New(multi).With("component", "migrate")

	logger.Debug("step")
	logger.Error("failed")

	assert.Equal(t, len(debugRecs), 2)
	assert.Equal(t, len(errorRecs), 1)
	assert.Assert(t, multi.Enabled(context.Background(), slog.LevelDebug))

	var component string
	errorRecs[0].Attrs(func(a slog.Attr) bool {
		if a.Key == "component" {
			component = a.Value.String()
		}
		return true
	})
	assert.Equal(t, component, "migrate")
}

type failingHandler struct{ recordingHandler }

func (h *failingHandler) Handle(context.Context, slog.Record) error { return errors.New("seq down") }

func TestFanoutKeepsDeliveringAfterFailure(t *testing.T) {
	var recs []slog.Record
	multi := fanout{
		&failingHandler{recordingHandler{level: slog.LevelInfo}},
		&recordingHandler{level: slog.LevelInfo, records: &recs},
	}

	r := slog.NewRecord(time.Now(), slog.LevelInfo, "hello", 0)
	err := multi.Handle(context.Background(), r)
	assert.ErrorContains(t, err, "seq down")
	assert.Equal(t, len(recs), 1)
}
