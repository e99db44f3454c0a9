package ports

import "go.trai.ch/reuse/internal/core/domain"

// OutcomeSink receives one record per unit per invocation.
//
//go:generate mockgen -source=sink.go -destination=mocks/mock_sink.go -package=mocks
type OutcomeSink interface {
	// Record is called concurrently from scheduler workers.
	Record(rec domain.OutcomeRecord)
}
