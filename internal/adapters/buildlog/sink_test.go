package buildlog_test

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/reuse/internal/adapters/buildlog"
	"go.trai.ch/reuse/internal/core/domain"
	"go.trai.ch/reuse/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

func record(unit string, outcome domain.BuildOutcome, tier domain.Tier) domain.OutcomeRecord {
	return domain.OutcomeRecord{
		Unit:    domain.NewUnitID(unit),
		Outcome: outcome,
		Tier:    tier,
		Elapsed: 3 * time.Millisecond,
	}
}

func TestJSONLSink_Record(t *testing.T) {
	var buf bytes.Buffer
	sink := buildlog.NewJSONLSink(&buf)

	sink.Record(record("core", domain.OutcomeBuiltLocally, domain.TierBuild))
	sink.Record(record("app", domain.OutcomeFetchedExactMatch, domain.TierExact))
	require.NoError(t, sink.Close())

	scanner := bufio.NewScanner(&buf)
	var lines []map[string]any
	for scanner.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		lines = append(lines, line)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "core", lines[0]["unit"])
	assert.Equal(t, "BuiltLocally", lines[0]["outcome"])
	assert.Equal(t, "build", lines[0]["tier"])
	assert.Equal(t, "app", lines[1]["unit"])
	assert.NotContains(t, lines[1], "cause")
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log", "build.jsonl")

	sink, err := buildlog.OpenFile(path)
	require.NoError(t, err)
	sink.Record(domain.OutcomeRecord{Unit: domain.NewUnitID("core"), Outcome: domain.OutcomeFailed, Tier: domain.TierBuild, Cause: "compilation failed"})
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"cause":"compilation failed"`)
}

func TestLoggerSink_Record(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockLogger := mocks.NewMockLogger(ctrl)
	sink := buildlog.NewLoggerSink(mockLogger)

	mockLogger.EXPECT().Debug("unit resolved", gomock.Any()).Times(1)
	mockLogger.EXPECT().Warn("unit failed", gomock.Any()).Times(1)

	sink.Record(record("core", domain.OutcomeFetchedManifestMatch, domain.TierManifest))
	sink.Record(record("app", domain.OutcomeFailed, domain.TierBuild))
}

func TestMulti_Record(t *testing.T) {
	ctrl := gomock.NewController(t)
	first := mocks.NewMockOutcomeSink(ctrl)
	second := mocks.NewMockOutcomeSink(ctrl)
	rec := record("core", domain.OutcomeBuiltLocally, domain.TierBuild)

	gomock.InOrder(
		first.EXPECT().Record(rec),
		second.EXPECT().Record(rec),
	)

	buildlog.Multi{first, second}.Record(rec)
}
