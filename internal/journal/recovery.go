package journal

import (
	"errors"
	"fmt"
	"os"
	"sort"
)

// Status classifies a migration found by Recover
type Status string

const (
	// StatusUnfinished: Begin without Commit or Abort; the process died
	// mid-migration
	StatusUnfinished Status = "unfinished"
	// StatusPartial: aborted after at least one physical change
	StatusPartial Status = "partial"
)

// Finding is one migration that needs an operator's attention
type Finding struct {
	Migration Migration
	Status    Status
	Reason    string
	BeginLSN  uint64
}

// RecoveryReport summarizes the journal since its last checkpoint
type RecoveryReport struct {
	Records           int
	LastCheckpointLSN uint64
	// TailError is set when the file ends in a torn or corrupt record
	TailError error
	Findings  []Finding
}

// Clean reports whether nothing needs attention
func (r *RecoveryReport) Clean() bool {
	return len(r.Findings) == 0
}

// Recover reads the journal at path and reports migrations after the last
// checkpoint that never finished or that aborted with steps applied. A
// missing journal yields an empty report.
func Recover(path string) (*RecoveryReport, error) {
	report := &RecoveryReport{}

	records, err := ReadAll(path)
	if err != nil {
		switch {
		case errors.Is(err, os.ErrNotExist):
			return report, nil
		case errors.Is(err, ErrTornRecord), errors.Is(err, ErrCorruptRecord):
			report.TailError = err
		default:
			return nil, fmt.Errorf("failed to read journal: %w", err)
		}
	}
	report.Records = len(records)

	type state struct {
		finding  Finding
		finished bool
	}
	states := make(map[string]*state)

	for _, rec := range records {
		e := rec.Entry
		switch rec.Type {
		case RecordCheckpoint:
			report.LastCheckpointLSN = rec.LSN
			states = make(map[string]*state)

		case RecordBegin:
			states[e.MigrationID] = &state{finding: Finding{
				Migration: Migration{
					ID:        e.MigrationID,
					Table:     e.Table,
					Kind:      e.Kind,
					Fields:    e.Fields,
					StartTime: e.Time,
				},
				Status:   StatusUnfinished,
				BeginLSN: rec.LSN,
			}}

		case RecordStep:
			if s, ok := states[e.MigrationID]; ok {
				s.finding.Migration.Steps = append(s.finding.Migration.Steps, e.Op)
			}

		case RecordCommit:
			if s, ok := states[e.MigrationID]; ok {
				s.finished = true
			}

		case RecordAbort:
			s, ok := states[e.MigrationID]
			if !ok {
				continue
			}
			if len(s.finding.Migration.Steps) == 0 {
				// nothing was applied, so nothing diverged
				s.finished = true
				continue
			}
			s.finding.Status = StatusPartial
			s.finding.Reason = e.Reason
		}
	}

	for _, s := range states {
		if !s.finished {
			report.Findings = append(report.Findings, s.finding)
		}
	}
	sort.Slice(report.Findings, func(i, k int) bool {
		return report.Findings[i].BeginLSN < report.Findings[k].BeginLSN
	})
	return report, nil
}
