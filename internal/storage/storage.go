package storage

import "derivpool/internal/model"

// Sink receives structured records emitted by the registry and orchestrator.
type Sink interface {
	PutPoolRecords(records []model.PoolRecord) error
	PutDerivativeRecords(records []model.DerivativeRecord) error
}

// Discard is a Sink that drops everything. Useful when no persistence is
// configured.
type Discard struct{}

func (Discard) PutPoolRecords([]model.PoolRecord) error             { return nil }
func (Discard) PutDerivativeRecords([]model.DerivativeRecord) error { return nil }
