package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/grantscout/grantscout/internal/config"
	"github.com/grantscout/grantscout/internal/embed"
	"github.com/grantscout/grantscout/internal/store"
	"github.com/grantscout/grantscout/internal/ui"
)

// loadProgressEvery throttles per-line load progress events so plain
// renderers don't print one line per corpus record.
const loadProgressEvery = 1000

// RunnerConfig configures an ingest run.
type RunnerConfig struct {
	// CorpusPath is the JSONL corpus file to ingest.
	CorpusPath string

	// DataDir is the .grantscout data directory
	// (defaults to <corpus dir>/.grantscout).
	DataDir string

	// SkipEmbeddings ingests lexical-only: no embeddings are generated
	// and no vector index is written, so semantic matching degrades to
	// unavailable until a full ingest runs.
	SkipEmbeddings bool

	// ResumeFromCheckpoint is the number of records already embedded (for resume).
	ResumeFromCheckpoint int

	// CheckpointModel is the embedder model name from the checkpoint (for validation).
	CheckpointModel string
}

// RunnerResult contains the outcome of an ingest operation.
type RunnerResult struct {
	// Records is the number of records ingested.
	Records int

	// Contacts is the number of contact rows stored.
	Contacts int

	// Skipped is the number of malformed or invalid corpus lines dropped.
	Skipped int

	// Duration is the total ingest time.
	Duration time.Duration

	// Errors is the count of fatal errors.
	Errors int

	// Warnings is the count of non-fatal warnings.
	Warnings int

	// Resumed indicates if this was a resumed operation.
	Resumed bool
}

// RunnerDependencies contains the injected dependencies for Runner.
type RunnerDependencies struct {
	// Renderer for progress display (required).
	Renderer ui.Renderer

	// Config is the loaded project configuration (required).
	Config *config.Config

	// Records is the record store.
	Records store.RecordStore

	// Text is the keyword index.
	Text store.TextIndex

	// Vectors is the vector store the run populates.
	Vectors store.VectorStore

	// Embedder for generating embeddings.
	Embedder embed.Embedder
}

// Runner executes the ingest pipeline with progress reporting.
// It accepts injected dependencies for testability and reusability.
type Runner struct {
	renderer ui.Renderer
	config   *config.Config
	records  store.RecordStore
	text     store.TextIndex
	vectors  store.VectorStore
	embedder embed.Embedder
	loader   *Loader
}

// NewRunner creates a Runner with injected dependencies.
func NewRunner(deps RunnerDependencies) (*Runner, error) {
	if deps.Renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	if deps.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Records == nil {
		return nil, fmt.Errorf("record store is required")
	}
	if deps.Text == nil {
		return nil, fmt.Errorf("keyword index is required")
	}
	if deps.Vectors == nil {
		return nil, fmt.Errorf("vector store is required")
	}
	if deps.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}

	return &Runner{
		renderer: deps.Renderer,
		config:   deps.Config,
		records:  deps.Records,
		text:     deps.Text,
		vectors:  deps.Vectors,
		embedder: deps.Embedder,
		loader:   NewLoader(),
	}, nil
}

// stageTiming tracks duration for each ingest stage.
type stageTiming struct {
	load  time.Duration
	store time.Duration
	index time.Duration
	embed time.Duration
	save  time.Duration
}

// Run executes the full ingest pipeline: load, store, index, embed, save.
func (r *Runner) Run(ctx context.Context, cfg RunnerConfig) (*RunnerResult, error) {
	startTime := time.Now()
	var errorCount, warnCount int
	var timing stageTiming

	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = filepath.Join(filepath.Dir(cfg.CorpusPath), ".grantscout")
	}

	// Stage 1: Load corpus
	loadStart := time.Now()
	corpus, err := r.loadCorpus(ctx, cfg.CorpusPath)
	if err != nil {
		return nil, err
	}
	timing.load = time.Since(loadStart)
	warnCount += corpus.Skipped

	if len(corpus.Records) == 0 {
		return &RunnerResult{
			Skipped:  corpus.Skipped,
			Duration: time.Since(startTime),
			Warnings: warnCount,
		}, nil
	}

	currentModel := r.embedder.ModelName()

	// Save checkpoint: corpus loaded
	if err := r.records.SaveIngestCheckpoint(ctx, "loading", len(corpus.Records), cfg.ResumeFromCheckpoint, currentModel); err != nil {
		slog.Warn("failed to save checkpoint", slog.String("error", err.Error()))
	}

	// Stage 2: Store records
	storeStart := time.Now()
	if err := r.storeRecords(ctx, corpus); err != nil {
		return nil, err
	}
	timing.store = time.Since(storeStart)

	// Stage 3: Build keyword index
	indexStart := time.Now()
	if err := r.indexText(ctx, corpus.Records); err != nil {
		return nil, err
	}
	timing.index = time.Since(indexStart)

	// Stage 4: Generate embeddings
	if !cfg.SkipEmbeddings {
		embedStart := time.Now()
		if err := r.generateEmbeddings(ctx, corpus.Records, cfg, currentModel); err != nil {
			return nil, err
		}
		timing.embed = time.Since(embedStart)
	} else {
		slog.Info("ingest_embeddings_skipped", slog.Int("records", len(corpus.Records)))
	}

	// Stage 5: Save indices (vector index only when embeddings exist)
	saveStart := time.Now()
	if err := r.saveIndices(ctx, corpus.Records, dataDir, currentModel, cfg.SkipEmbeddings); err != nil {
		return nil, err
	}
	timing.save = time.Since(saveStart)

	// Clear checkpoint on successful completion
	if err := r.records.ClearIngestCheckpoint(ctx); err != nil {
		slog.Warn("failed to clear checkpoint", slog.String("error", err.Error()))
	}

	// Remember the corpus so serve --watch can find it without the flag
	if abs, absErr := filepath.Abs(cfg.CorpusPath); absErr == nil {
		if err := r.records.SetState(ctx, store.StateKeyCorpusPath, abs); err != nil {
			slog.Warn("failed to store corpus path", slog.String("error", err.Error()))
		}
	}

	duration := time.Since(startTime)

	// Get embedder info for logging and display
	var embedderInfo embed.EmbedderInfo
	var uiEmbedder ui.EmbedderInfo
	if !cfg.SkipEmbeddings {
		embedderInfo = embed.GetInfo(ctx, r.embedder)
		uiEmbedder = ui.EmbedderInfo{
			Backend:    string(embedderInfo.Provider),
			Model:      embedderInfo.Model,
			Dimensions: embedderInfo.Dimensions,
		}
	}

	// Complete
	r.renderer.Complete(ui.CompletionStats{
		Records:  len(corpus.Records),
		Contacts: len(corpus.Contacts),
		Skipped:  corpus.Skipped,
		Duration: duration,
		Errors:   errorCount,
		Warnings: warnCount,
		Stages: ui.StageTimings{
			Load:  timing.load,
			Store: timing.store,
			Index: timing.index,
			Embed: timing.embed,
			Save:  timing.save,
		},
		Embedder: uiEmbedder,
	})

	recordsPerSec := 0.0
	if timing.embed.Seconds() > 0 {
		recordsPerSec = float64(len(corpus.Records)) / timing.embed.Seconds()
	}

	slog.Info("ingest_complete",
		slog.Int("records", len(corpus.Records)),
		slog.Int("contacts", len(corpus.Contacts)),
		slog.Int("skipped", corpus.Skipped),
		slog.String("duration_total", duration.String()),
		slog.Int64("duration_total_ms", duration.Milliseconds()),
		slog.Int64("duration_load_ms", timing.load.Milliseconds()),
		slog.Int64("duration_store_ms", timing.store.Milliseconds()),
		slog.Int64("duration_index_ms", timing.index.Milliseconds()),
		slog.Int64("duration_embed_ms", timing.embed.Milliseconds()),
		slog.Int64("duration_save_ms", timing.save.Milliseconds()),
		slog.String("embedder_backend", string(embedderInfo.Provider)),
		slog.String("embedder_model", embedderInfo.Model),
		slog.Float64("records_per_sec", recordsPerSec),
		slog.String("corpus", cfg.CorpusPath))

	return &RunnerResult{
		Records:  len(corpus.Records),
		Contacts: len(corpus.Contacts),
		Skipped:  corpus.Skipped,
		Duration: duration,
		Errors:   errorCount,
		Warnings: warnCount,
		Resumed:  cfg.ResumeFromCheckpoint > 0,
	}, nil
}

// loadCorpus reads and validates the JSONL corpus.
func (r *Runner) loadCorpus(ctx context.Context, path string) (*LoadResult, error) {
	r.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageLoading,
		Message: fmt.Sprintf("Loading %s...", path),
	})
	slog.Info("ingest_load_started", slog.String("corpus", path))

	result, err := r.loader.Load(ctx, path, func(line int, recordID string) {
		if line%loadProgressEvery != 0 {
			return
		}
		r.renderer.UpdateProgress(ui.ProgressEvent{
			Stage:       ui.StageLoading,
			CurrentItem: recordID,
			Message:     fmt.Sprintf("%d lines read", line),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load corpus: %w", err)
	}

	if result.Skipped > 0 {
		r.renderer.AddError(ui.ErrorEvent{
			Item:   path,
			Err:    fmt.Errorf("%d malformed lines skipped", result.Skipped),
			IsWarn: true,
		})
	}

	slog.Info("ingest_load_complete",
		slog.Int("records", len(result.Records)),
		slog.Int("contacts", len(result.Contacts)),
		slog.Int("skipped", result.Skipped))
	return result, nil
}

// batchSize returns the configured persistence batch size.
func (r *Runner) batchSize() int {
	if r.config.Ingest.BatchSize > 0 {
		return r.config.Ingest.BatchSize
	}
	return 500
}

// storeRecords persists records and contacts in batched transactions.
func (r *Runner) storeRecords(ctx context.Context, corpus *LoadResult) error {
	total := len(corpus.Records)
	batchSize := r.batchSize()
	numBatches := (total + batchSize - 1) / batchSize

	r.renderer.UpdateProgress(ui.ProgressEvent{
		Stage: ui.StageStoring,
		Total: total,
	})

	stored := 0
	for start := 0; start < total; start += batchSize {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		end := start + batchSize
		if end > total {
			end = total
		}

		if err := r.records.SaveRecords(ctx, corpus.Records[start:end]); err != nil {
			return fmt.Errorf("failed to save records: %w", err)
		}
		stored = end

		r.renderer.UpdateProgress(ui.ProgressEvent{
			Stage:       ui.StageStoring,
			Current:     stored,
			Total:       total,
			CurrentItem: fmt.Sprintf("batch %d/%d", start/batchSize+1, numBatches),
		})
	}

	for start := 0; start < len(corpus.Contacts); start += batchSize {
		end := start + batchSize
		if end > len(corpus.Contacts) {
			end = len(corpus.Contacts)
		}
		if err := r.records.SaveContacts(ctx, corpus.Contacts[start:end]); err != nil {
			return fmt.Errorf("failed to save contacts: %w", err)
		}
	}

	slog.Info("ingest_store_complete",
		slog.Int("records", total),
		slog.Int("contacts", len(corpus.Contacts)))
	return nil
}

// indexText adds all records to the keyword index in batches.
func (r *Runner) indexText(ctx context.Context, records []*store.Record) error {
	total := len(records)
	batchSize := r.batchSize()

	r.renderer.UpdateProgress(ui.ProgressEvent{
		Stage: ui.StageIndexing,
		Total: total,
	})

	for start := 0; start < total; start += batchSize {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		end := start + batchSize
		if end > total {
			end = total
		}

		docs := make([]*store.TextDoc, 0, end-start)
		for _, rec := range records[start:end] {
			docs = append(docs, rec.TextDoc())
		}
		if err := r.text.Index(ctx, docs); err != nil {
			return fmt.Errorf("failed to index records in keyword index: %w", err)
		}

		r.renderer.UpdateProgress(ui.ProgressEvent{
			Stage:   ui.StageIndexing,
			Current: end,
			Total:   total,
		})
	}

	slog.Info("ingest_index_complete", slog.Int("documents", total))
	return nil
}

// batchResult carries one embedded batch from a pool worker back to
// the collector.
type batchResult struct {
	idx     int
	ids     []string
	vectors [][]float32
	err     error
}

// generateEmbeddings embeds record text through an ants worker pool
// with checkpointing. Embeddings save as batches finish, in any order;
// the checkpoint only ever records the contiguous prefix, so a resume
// can skip exactly that many records.
func (r *Runner) generateEmbeddings(ctx context.Context, records []*store.Record, cfg RunnerConfig, currentModel string) error {
	// Validate embedder model matches checkpoint
	if cfg.ResumeFromCheckpoint > 0 && cfg.CheckpointModel != "" && cfg.CheckpointModel != currentModel {
		return fmt.Errorf("embedder mismatch on resume: checkpoint used '%s', but current embedder is '%s'. "+
			"Use --force to rebuild the index from scratch, or ensure the original embedder is available",
			cfg.CheckpointModel, currentModel)
	}

	batchSize := r.config.Embeddings.BatchSize
	if batchSize <= 0 {
		batchSize = 64
	}

	startFrom := 0
	if cfg.ResumeFromCheckpoint > 0 {
		// A checkpoint taken after the embedding stage finished has
		// Embedded == Total; clamp so the resume skips everything
		// instead of re-embedding from zero.
		startFrom = min(cfg.ResumeFromCheckpoint, len(records))
		slog.Info("resume_embedding",
			slog.Int("skip_records", startFrom),
			slog.Int("total_records", len(records)))
	}

	// Save checkpoint: starting/resuming embedding
	if err := r.records.SaveIngestCheckpoint(ctx, "embedding", len(records), startFrom, currentModel); err != nil {
		slog.Warn("failed to save checkpoint", slog.String("error", err.Error()))
	}

	r.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageEmbedding,
		Current: startFrom,
		Total:   len(records),
	})

	type batchSpec struct {
		idx   int
		start int
		end   int
	}
	var batches []batchSpec
	for start := startFrom; start < len(records); start += batchSize {
		end := start + batchSize
		if end > len(records) {
			end = len(records)
		}
		batches = append(batches, batchSpec{idx: len(batches), start: start, end: end})
	}
	if len(batches) == 0 {
		return nil
	}

	workers := r.config.Ingest.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(batches) {
		workers = len(batches)
	}

	pool, err := ants.NewPool(workers)
	if err != nil {
		return fmt.Errorf("failed to create embedding pool: %w", err)
	}
	defer pool.Release()

	ectx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan batchResult, workers)

	// Submit all batches. Submit blocks when every worker is busy, so
	// this goroutine paces itself to the pool.
	go func() {
		for _, b := range batches {
			spec := b
			ids := make([]string, spec.end-spec.start)
			contents := make([]string, spec.end-spec.start)
			for i, rec := range records[spec.start:spec.end] {
				ids[i] = rec.ID
				contents[i] = rec.TextDoc().Body
			}

			submitErr := pool.Submit(func() {
				vectors, embedErr := r.embedder.EmbedBatch(ectx, contents)
				select {
				case results <- batchResult{idx: spec.idx, ids: ids, vectors: vectors, err: embedErr}:
				case <-ectx.Done():
				}
			})
			if submitErr != nil {
				select {
				case results <- batchResult{idx: spec.idx, err: fmt.Errorf("failed to submit embedding batch: %w", submitErr)}:
				case <-ectx.Done():
				}
				return
			}
		}
	}()

	embedded := startFrom
	frontier := startFrom
	nextBatch := 0
	pendingSizes := make(map[int]int)

	for completed := 0; completed < len(batches); completed++ {
		select {
		case <-ctx.Done():
			slog.Info("ingest_interrupted",
				slog.Int("embedded", embedded),
				slog.Int("total", len(records)))
			return fmt.Errorf("ingest interrupted at %d/%d records: %w", embedded, len(records), ctx.Err())
		case res := <-results:
			if res.err != nil {
				cancel()
				return fmt.Errorf("failed to embed records %d-%d: %w",
					startFrom+res.idx*batchSize, startFrom+res.idx*batchSize+batchSize, res.err)
			}

			if err := r.records.SaveEmbeddings(ctx, res.ids, res.vectors, currentModel); err != nil {
				cancel()
				return fmt.Errorf("failed to save embeddings: %w", err)
			}

			embedded += len(res.ids)

			// Advance the contiguous frontier past every finished batch.
			pendingSizes[res.idx] = len(res.ids)
			for {
				n, ok := pendingSizes[nextBatch]
				if !ok {
					break
				}
				frontier += n
				delete(pendingSizes, nextBatch)
				nextBatch++
			}

			if err := r.records.SaveIngestCheckpoint(ctx, "embedding", len(records), frontier, currentModel); err != nil {
				slog.Warn("failed to save checkpoint", slog.String("error", err.Error()))
			}

			r.renderer.UpdateProgress(ui.ProgressEvent{
				Stage:       ui.StageEmbedding,
				Current:     embedded,
				Total:       len(records),
				CurrentItem: fmt.Sprintf("batch %d/%d", completed+1, len(batches)),
			})
		}
	}

	return nil
}

// saveIndices persists the keyword index and, unless embeddings were
// skipped, builds and saves the vector index from stored embeddings.
func (r *Runner) saveIndices(ctx context.Context, records []*store.Record, dataDir, currentModel string, skipEmbeddings bool) error {
	r.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageSaving,
		Message: "Saving indices...",
	})

	textPath := store.GetTextIndexPath(dataDir, r.config.Search.TextBackend)
	if err := r.text.Save(textPath); err != nil {
		return fmt.Errorf("failed to save keyword index: %w", err)
	}

	if skipEmbeddings {
		slog.Info("ingest_vector_skipped", slog.Int("records", len(records)))
		return nil
	}

	// Save checkpoint: embedding complete, building vector index
	if err := r.records.SaveIngestCheckpoint(ctx, "indexing", len(records), len(records), currentModel); err != nil {
		slog.Warn("failed to save checkpoint", slog.String("error", err.Error()))
	}

	// Load all embeddings from SQLite and add to vector store
	allEmbeddings, err := r.records.GetAllEmbeddings(ctx)
	if err != nil {
		return fmt.Errorf("failed to load embeddings: %w", err)
	}

	// Build vectors in record order, regenerating any missing
	ids := make([]string, len(records))
	vectors := make([][]float32, len(records))
	var missing []*store.Record
	var missingIndices []int

	for i, rec := range records {
		ids[i] = rec.ID
		if emb, ok := allEmbeddings[rec.ID]; ok {
			vectors[i] = emb
		} else {
			missing = append(missing, rec)
			missingIndices = append(missingIndices, i)
		}
	}

	if len(missing) > 0 {
		slog.Warn("regenerating missing embeddings",
			slog.Int("count", len(missing)),
			slog.String("first_record", missing[0].ID))

		missingContents := make([]string, len(missing))
		missingIDs := make([]string, len(missing))
		for i, rec := range missing {
			missingContents[i] = rec.TextDoc().Body
			missingIDs[i] = rec.ID
		}

		regenerated, err := r.embedder.EmbedBatch(ctx, missingContents)
		if err != nil {
			return fmt.Errorf("failed to regenerate %d missing embeddings: %w", len(missing), err)
		}

		if err := r.records.SaveEmbeddings(ctx, missingIDs, regenerated, currentModel); err != nil {
			slog.Warn("failed to save regenerated embeddings", slog.String("error", err.Error()))
		}

		for i, idx := range missingIndices {
			vectors[idx] = regenerated[i]
		}
	}

	if err := r.vectors.Add(ctx, ids, vectors); err != nil {
		return fmt.Errorf("failed to add to vector store: %w", err)
	}

	if err := r.vectors.Save(store.GetVectorStorePath(dataDir)); err != nil {
		return fmt.Errorf("failed to save vector store: %w", err)
	}

	// Record the embedder used, for mismatch detection at search time.
	if err := r.storeIndexEmbeddingInfo(ctx); err != nil {
		slog.Warn("failed to store index embedding info", slog.String("error", err.Error()))
	}

	return nil
}

// storeIndexEmbeddingInfo saves the current embedder's dimension and
// model to store state. Searching with a different embedder than the
// index was built with would silently return garbage; the search path
// checks these keys and fails loudly instead.
func (r *Runner) storeIndexEmbeddingInfo(ctx context.Context) error {
	dim := strconv.Itoa(r.embedder.Dimensions())
	model := r.embedder.ModelName()

	if err := r.records.SetState(ctx, store.StateKeyIndexDimension, dim); err != nil {
		return fmt.Errorf("failed to store index dimension: %w", err)
	}
	if err := r.records.SetState(ctx, store.StateKeyIndexModel, model); err != nil {
		return fmt.Errorf("failed to store index model: %w", err)
	}

	slog.Info("index_embedding_info_stored",
		slog.String("model", model),
		slog.Int("dimensions", r.embedder.Dimensions()))

	return nil
}
