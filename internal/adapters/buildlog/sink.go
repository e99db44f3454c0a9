// Package buildlog implements outcome sinks: a JSON lines file and the logger.
package buildlog

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.trai.ch/reuse/internal/core/domain"
	"go.trai.ch/reuse/internal/core/ports"
	"go.trai.ch/zerr"
)

var (
	_ ports.OutcomeSink = (*JSONLSink)(nil)
	_ ports.OutcomeSink = (*LoggerSink)(nil)
	_ ports.OutcomeSink = Multi(nil)
)

// JSONLSink writes one JSON object per record.
// Write errors are kept; the first one is reported by Err.
type JSONLSink struct {
	mu     sync.Mutex
	enc    *json.Encoder
	closer io.Closer
	err    error
}

// NewJSONLSink creates a sink writing to w.
func NewJSONLSink(w io.Writer) *JSONLSink {
	return &JSONLSink{enc: json.NewEncoder(w)}
}

// OpenFile creates or truncates the log file at path.
func OpenFile(path string) (*JSONLSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), domain.DirPerm); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to create build log directory"), "path", path)
	}
	//nolint:gosec // path is provided by the user on the command line
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, domain.FilePerm)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to open build log"), "path", path)
	}
	sink := NewJSONLSink(f)
	sink.closer = f
	return sink, nil
}

// Record writes rec as a JSON line.
func (s *JSONLSink) Record(rec domain.OutcomeRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return
	}
	if err := s.enc.Encode(rec); err != nil {
		s.err = zerr.Wrap(err, "failed to write build log")
	}
}

// Err returns the first write error.
func (s *JSONLSink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close closes the underlying file, if the sink owns one.
func (s *JSONLSink) Close() error {
	if s.closer == nil {
		return s.Err()
	}
	if err := s.closer.Close(); err != nil {
		return zerr.Wrap(err, "failed to close build log")
	}
	return s.Err()
}

// LoggerSink logs outcomes. Fetches and builds are logged at debug level,
// failures as warnings.
type LoggerSink struct {
	logger ports.Logger
}

// NewLoggerSink creates a sink writing to logger.
func NewLoggerSink(logger ports.Logger) *LoggerSink {
	return &LoggerSink{logger: logger}
}

// Record logs rec.
func (s *LoggerSink) Record(rec domain.OutcomeRecord) {
	args := []any{
		"unit", rec.Unit.String(),
		"outcome", string(rec.Outcome),
		"tier", string(rec.Tier),
		"elapsed", rec.Elapsed,
		"key", rec.RuleKey.Short(),
	}
	if rec.Outcome == domain.OutcomeFailed {
		s.logger.Warn("unit failed", append(args, "cause", rec.Cause)...)
		return
	}
	s.logger.Debug("unit resolved", args...)
}

// Multi fans records out to every sink.
type Multi []ports.OutcomeSink

// Record forwards rec to each sink in order.
func (m Multi) Record(rec domain.OutcomeRecord) {
	for _, sink := range m {
		sink.Record(rec)
	}
}
