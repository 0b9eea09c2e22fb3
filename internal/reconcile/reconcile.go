// Package reconcile finds drift between the catalog and physical storage,
// such as a table created just before a crash or columns left by a failed
// alteration. It reports; it never repairs.
package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/leengari/dyntable/internal/catalog"
	"github.com/leengari/dyntable/internal/journal"
	"github.com/leengari/dyntable/internal/storage"
)

type IssueKind string

const (
	IssueMissingTable        IssueKind = "missing_table"
	IssueOrphanTable         IssueKind = "orphan_table"
	IssueMissingColumn       IssueKind = "missing_column"
	IssueExtraColumn         IssueKind = "extra_column"
	IssueUnfinishedMigration IssueKind = "unfinished_migration"
	IssuePartialMigration    IssueKind = "partial_migration"
	IssueJournalTail         IssueKind = "journal_tail"
)

type Issue struct {
	Kind   IssueKind `json:"kind"`
	Table  string    `json:"table,omitempty"`
	Column string    `json:"column,omitempty"`
	Detail string    `json:"detail,omitempty"`
}

func (i Issue) String() string {
	var b strings.Builder
	b.WriteString(string(i.Kind))
	if i.Table != "" {
		fmt.Fprintf(&b, " table=%s", i.Table)
	}
	if i.Column != "" {
		fmt.Fprintf(&b, " column=%s", i.Column)
	}
	if i.Detail != "" {
		fmt.Fprintf(&b, " (%s)", i.Detail)
	}
	return b.String()
}

type Report struct {
	Tables int     `json:"tables"`
	Issues []Issue `json:"issues"`
}

// Clean reports whether catalog, storage and journal agree
func (r *Report) Clean() bool {
	return len(r.Issues) == 0
}

// Check compares every catalog entry with its physical table, then lists
// journal findings since the last checkpoint. journalPath may be empty.
func Check(ctx context.Context, cat catalog.Store, engine storage.Engine, journalPath string) (*Report, error) {
	report := &Report{Issues: []Issue{}}

	records, err := cat.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog: %w", err)
	}
	report.Tables = len(records)

	physical, err := engine.Tables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list physical tables: %w", err)
	}

	catalogued := make(map[string]bool, len(records))
	for _, rec := range records {
		catalogued[strings.ToLower(rec.TableName)] = true

		cols, err := engine.Columns(ctx, rec.TableName)
		if err != nil {
			report.add(Issue{Kind: IssueMissingTable, Table: rec.TableName, Detail: err.Error()})
			continue
		}

		for _, f := range rec.Fields {
			if !containsFold(cols, f.Name) {
				report.add(Issue{Kind: IssueMissingColumn, Table: rec.TableName, Column: f.Name, Detail: "declared " + string(f.Type)})
			}
		}
		for _, c := range cols {
			if _, ok := findField(rec.FieldNames(), c); !ok {
				report.add(Issue{Kind: IssueExtraColumn, Table: rec.TableName, Column: c})
			}
		}
	}

	for _, name := range physical {
		if !catalogued[strings.ToLower(name)] {
			report.add(Issue{Kind: IssueOrphanTable, Table: name})
		}
	}

	if journalPath != "" {
		rec, err := journal.Recover(journalPath)
		if err != nil {
			return nil, err
		}
		if rec.TailError != nil {
			report.add(Issue{Kind: IssueJournalTail, Detail: rec.TailError.Error()})
		}
		for _, f := range rec.Findings {
			kind := IssueUnfinishedMigration
			if f.Status == journal.StatusPartial {
				kind = IssuePartialMigration
			}
			detail := fmt.Sprintf("migration %s %s, applied [%s]", f.Migration.ID, f.Migration.Kind, strings.Join(f.Migration.Steps, ", "))
			if f.Reason != "" {
				detail += ": " + f.Reason
			}
			report.add(Issue{Kind: kind, Table: f.Migration.Table, Detail: detail})
		}
	}

	return report, nil
}

func (r *Report) add(issue Issue) {
	r.Issues = append(r.Issues, issue)
}

func containsFold(names []string, name string) bool {
	_, ok := findField(names, name)
	return ok
}

func findField(names []string, name string) (int, bool) {
	for i, n := range names {
		if strings.EqualFold(n, name) {
			return i, true
		}
	}
	return -1, false
}
