package indexer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dshills/neurosearch/internal/embedder"
	"github.com/dshills/neurosearch/internal/recovery"
	"github.com/dshills/neurosearch/internal/telemetry"
	"github.com/dshills/neurosearch/internal/vectorindex"
	"github.com/dshills/neurosearch/pkg/types"
)

// ReconcileReport summarises one replay of the recovery cache
type ReconcileReport struct {
	Entries   int // entries loaded
	Corrupt   int // undecodable entries
	Stale     int // skipped: input hash or vector dimension no longer matches
	Drifted   int // replayed, but cut with a different truncation limit than configured
	Restored  int // metadata records re-inserted
	Conflicts int // metadata insert hit another record's source_url
	Upserted  int // vectors re-written
	Failed    int
	Duration  time.Duration

	StaleIDs      []string
	ErrorMessages []string
}

func (r *ReconcileReport) addError(msg string) {
	if len(r.ErrorMessages) < maxErrorMessages {
		r.ErrorMessages = append(r.ErrorMessages, msg)
	}
}

// Reconcile replays the recovery cache into both stores: every usable
// entry's vector is upserted and its metadata record inserted when
// missing. It holds the same lock as RunCycle.
func (idx *Indexer) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrIndexingInProgress
	}
	defer idx.lock.Release()

	ctx, span := telemetry.Tracer().Start(ctx, "indexer.reconcile")
	defer span.End()

	start := time.Now()
	report, err := idx.reconcile(ctx)
	if report != nil {
		report.Duration = time.Since(start)
		span.SetAttributes(
			attribute.Int("entries", report.Entries),
			attribute.Int("restored", report.Restored),
			attribute.Int("upserted", report.Upserted),
			attribute.Int("stale", report.Stale),
		)
		idx.recordReconcile(ctx, report)
	}
	telemetry.RecordError(span, err)
	if err != nil {
		return report, err
	}

	idx.logger.Info("reconciliation complete",
		"entries", report.Entries,
		"upserted", report.Upserted,
		"restored", report.Restored,
		"conflicts", report.Conflicts,
		"stale", report.Stale,
		"drifted", report.Drifted,
		"corrupt", report.Corrupt,
		"failed", report.Failed,
		"duration", report.Duration.String())
	return report, nil
}

func (idx *Indexer) reconcile(ctx context.Context) (*ReconcileReport, error) {
	report := &ReconcileReport{StaleIDs: make([]string, 0), ErrorMessages: make([]string, 0)}

	entries, corrupt, err := idx.deps.Cache.LoadAll()
	if err != nil {
		return report, err
	}
	report.Entries = len(entries)
	report.Corrupt = corrupt
	if corrupt > 0 {
		idx.logger.Warn("skipping undecodable recovery entries", "count", corrupt)
	}

	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	dimension := idx.deps.Embedder.Dimension()
	usable := make([]recovery.Entry, 0, len(ids))
	for _, id := range ids {
		entry := entries[id]
		if reason := staleReason(entry, dimension); reason != "" {
			report.Stale++
			report.StaleIDs = append(report.StaleIDs, id)
			idx.logger.Warn("skipping stale recovery entry", "id", id, "source_url", entry.SourceURL, "reason", reason)
			continue
		}
		if entry.TruncateChars != idx.cfg.TruncateChars {
			report.Drifted++
		}
		usable = append(usable, entry)
	}
	if len(usable) == 0 {
		return report, nil
	}

	usableIDs := make([]string, len(usable))
	for i, e := range usable {
		usableIDs[i] = e.ID
	}
	docs, err := idx.deps.Store.FetchByIDs(ctx, usableIDs)
	if err != nil {
		return report, fmt.Errorf("%w: %w", types.ErrStore, err)
	}
	present := make(map[string]bool, len(docs))
	for _, d := range docs {
		present[d.ID] = true
	}

	for _, entry := range usable {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		idx.replay(ctx, entry, present[entry.ID], report)
	}
	return report, nil
}

func (idx *Indexer) replay(ctx context.Context, entry recovery.Entry, present bool, report *ReconcileReport) {
	if !present {
		doc := &types.Document{
			ID:         entry.ID,
			Title:      entry.Title,
			SourceURL:  entry.SourceURL,
			FileType:   entry.FileType,
			Content:    entry.Content,
			IngestedAt: entry.CachedAt,
		}
		if err := idx.deps.Store.Insert(ctx, doc); err != nil {
			if errors.Is(err, types.ErrDuplicateKey) {
				// another record owns this source_url; a vector under this id would be an orphan
				report.Conflicts++
				idx.logger.Warn("recovery entry conflicts with stored document", "id", entry.ID, "source_url", entry.SourceURL)
				return
			}
			report.Failed++
			report.addError(fmt.Sprintf("%s: insert: %v", entry.ID, err))
			return
		}
		report.Restored++
	}

	err := idx.deps.Index.Upsert(ctx, vectorindex.Entry{
		ID:        entry.ID,
		Vector:    entry.Vector,
		Title:     entry.Title,
		SourceURL: entry.SourceURL,
	})
	if err != nil {
		report.Failed++
		report.addError(fmt.Sprintf("%s: upsert: %v", entry.ID, err))
		return
	}
	report.Upserted++
}

// staleReason explains why entry can no longer be replayed, or returns ""
func staleReason(entry recovery.Entry, dimension int) string {
	if dimension > 0 && len(entry.Vector) != dimension {
		return fmt.Sprintf("vector dimension %d, embedder dimension %d", len(entry.Vector), dimension)
	}
	if !entry.FileType.IsValid() {
		return fmt.Sprintf("unsupported file type %q", entry.FileType)
	}
	if entry.SourceURL == "" {
		return "missing source url"
	}
	if entry.InputHash != "" {
		input := EmbeddingInput(entry.Title, entry.Content, entry.SourceURL, entry.TruncateChars)
		if embedder.ComputeHash(input) != entry.InputHash {
			return "input hash mismatch"
		}
	}
	return ""
}

func (idx *Indexer) recordReconcile(ctx context.Context, report *ReconcileReport) {
	m := idx.deps.Metrics
	m.RecordReconcile(ctx, "upserted", report.Upserted)
	m.RecordReconcile(ctx, "restored", report.Restored)
	m.RecordReconcile(ctx, "conflict", report.Conflicts)
	m.RecordReconcile(ctx, "stale", report.Stale)
	m.RecordReconcile(ctx, "failed", report.Failed)

	idx.mu.Lock()
	idx.status.LastReconcile = report
	idx.mu.Unlock()
}
