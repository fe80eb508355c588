package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RunStatus summarizes how a report run ended.
type RunStatus string

const (
	// RunStatusDelivered means every section was generated and every chunk accepted.
	RunStatusDelivered RunStatus = "delivered"

	// RunStatusPartial means at least one section or chunk failed.
	RunStatusPartial RunStatus = "partial"

	// RunStatusFailed means no report section reached the sink.
	RunStatusFailed RunStatus = "failed"

	// RunStatusSkipped means the week had already been delivered.
	RunStatusSkipped RunStatus = "skipped"
)

// RunRecord is the ledger entry of one report run. Report text is not kept.
type RunRecord struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"-"`

	RunID   string    `bson:"run_id" json:"run_id"`
	WeekKey string    `bson:"week_key" json:"week_key"`
	Policy  string    `bson:"policy" json:"policy"`
	Status  RunStatus `bson:"status" json:"status"`
	Trigger string    `bson:"trigger,omitempty" json:"trigger,omitempty"`

	Sections     []SectionRecord `bson:"sections" json:"sections"`
	ChunksSent   int             `bson:"chunks_sent" json:"chunks_sent"`
	ChunksFailed int             `bson:"chunks_failed" json:"chunks_failed"`

	SymbolsFetched int `bson:"symbols_fetched" json:"symbols_fetched"`
	SymbolsFailed  int `bson:"symbols_failed" json:"symbols_failed"`

	StartedAt  time.Time `bson:"started_at" json:"started_at"`
	FinishedAt time.Time `bson:"finished_at" json:"finished_at"`
}

// SectionRecord is the outcome of one report section.
type SectionRecord struct {
	Name         string `bson:"name" json:"name"`
	Generated    bool   `bson:"generated" json:"generated"`
	ChunksSent   int    `bson:"chunks_sent" json:"chunks_sent"`
	ChunksFailed int    `bson:"chunks_failed" json:"chunks_failed"`
	Error        string `bson:"error,omitempty" json:"error,omitempty"`
}

// Delivered reports whether the run reached the sink completely.
func (r *RunRecord) Delivered() bool {
	return r.Status == RunStatusDelivered
}
