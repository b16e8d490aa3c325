package metrics

import "sync/atomic"

type Counters struct {
	CallbacksReceived  atomic.Uint64
	SignatureFailures  atomic.Uint64
	SettlementsApplied atomic.Uint64
	Duplicates         atomic.Uint64
	Ignored            atomic.Uint64
	Rejected           atomic.Uint64
	ConflictRetries    atomic.Uint64
	Reconciled         atomic.Uint64
}

type Snapshot struct {
	CallbacksReceived  uint64 `json:"callbacksReceived"`
	SignatureFailures  uint64 `json:"signatureFailures"`
	SettlementsApplied uint64 `json:"settlementsApplied"`
	Duplicates         uint64 `json:"duplicates"`
	Ignored            uint64 `json:"ignored"`
	Rejected           uint64 `json:"rejected"`
	ConflictRetries    uint64 `json:"conflictRetries"`
	Reconciled         uint64 `json:"reconciled"`
}

func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		CallbacksReceived:  c.CallbacksReceived.Load(),
		SignatureFailures:  c.SignatureFailures.Load(),
		SettlementsApplied: c.SettlementsApplied.Load(),
		Duplicates:         c.Duplicates.Load(),
		Ignored:            c.Ignored.Load(),
		Rejected:           c.Rejected.Load(),
		ConflictRetries:    c.ConflictRetries.Load(),
		Reconciled:         c.Reconciled.Load(),
	}
}
