package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/coach/internal/logging"
)

// DefaultImportTimeout bounds one import batch once it has started.
const DefaultImportTimeout = 10 * time.Minute

// Recorder receives import measurements. *metrics.Metrics implements it.
type Recorder interface {
	ImportStarted()
	ImportFinished(dataset, status string, d time.Duration)
	ImportRejected(dataset string)
	Rows(dataset string, processed, skipped int)
	TimesWritten(dataset string, inserted, existing int)
}

// Import status labels passed to Recorder.ImportFinished.
const (
	statusSuccess = "success"
	statusFailed  = "failed"
)

// Options configures a Service. Zero values fall back to package defaults.
type Options struct {
	MaxFileSize   int64
	MaxConcurrent int
	MaxWait       time.Duration
	ImportTimeout time.Duration
	NameCacheTTL  time.Duration

	// History serves the read path. When nil the store is used if it
	// implements HistoryReader.
	History HistoryReader

	// Fetcher downloads remote results reports. Nil disables FetchResults.
	Fetcher *ResultsFetcher

	Recorder Recorder
}

// Service is the entry point for imports. It is constructed once at startup
// and shared by every frontend.
type Service struct {
	store    Store
	history  HistoryReader
	ledger   *Ledger
	entries  *EntriesImporter
	results  *ResultsImporter
	limiter  *ImportLimiter
	fetcher  *ResultsFetcher
	recorder Recorder

	maxFileSize   int64
	importTimeout time.Duration
	newID         func() string
}

// NewService wires the import pipeline over store.
func NewService(store Store, opts Options) *Service {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if opts.ImportTimeout <= 0 {
		opts.ImportTimeout = DefaultImportTimeout
	}
	history := opts.History
	if history == nil {
		history, _ = store.(HistoryReader)
	}

	return &Service{
		store:         store,
		history:       history,
		ledger:        NewLedger(store),
		entries:       NewEntriesImporter(store, NewResolver(store, opts.NameCacheTTL), opts.MaxFileSize),
		results:       NewResultsImporter(store, opts.NameCacheTTL, opts.MaxFileSize),
		limiter:       NewImportLimiter(opts.MaxConcurrent, opts.MaxWait),
		fetcher:       opts.Fetcher,
		recorder:      opts.Recorder,
		maxFileSize:   opts.MaxFileSize,
		importTimeout: opts.ImportTimeout,
		newID:         uuid.NewString,
	}
}

// batch is one import call in progress.
type batch struct {
	log     *slog.Logger
	meet    Meet
	touched *SwimmerSet
	result  *ImportResult
}

// batchFunc performs the dataset-specific work. parent is the caller's
// context and is only consulted between files; ctx is the detached batch
// context used for store calls. It reports whether a ledger row is due.
type batchFunc func(parent, ctx context.Context, b *batch) (record bool, err error)

// ImportEntries loads one or more vendor CSV entry exports for meetID and
// appends a single MEET_ENTRIES ledger row for the call.
//
// A file that cannot be read is skipped and reported in FailedRows; the
// remaining files are still imported. If no file could be imported the
// first file error is returned. Cancelling ctx between files stops the call
// without a ledger row; rows already written stay.
func (s *Service) ImportEntries(ctx context.Context, meetID string, docs []Document) (*ImportResult, error) {
	if len(docs) == 0 {
		return nil, ErrNoDocuments
	}

	return s.run(ctx, meetID, DatasetEntries, func(parent, bctx context.Context, b *batch) (bool, error) {
		var firstErr error
		processed := 0
		for _, doc := range docs {
			if err := parent.Err(); err != nil {
				b.log.Warn("import cancelled between files", "processed_files", processed)
				return false, err
			}

			err := s.entries.ImportFile(bctx, b.log, b.meet, doc, b.touched, b.result)
			var docErr *DocumentError
			switch {
			case err == nil:
				processed++
				b.result.Files = append(b.result.Files, doc.Name)
			case errors.As(err, &docErr):
				b.log.Warn("skipping file", "file", doc.Name, "error", err)
				b.result.addFailure(FailedRow{FileName: doc.Name, Reason: docErr.Err.Error()})
				if firstErr == nil {
					firstErr = err
				}
			default:
				return false, err
			}
		}
		if processed == 0 {
			return false, firstErr
		}
		return true, nil
	})
}

// ImportResults scrapes one HTML results report for meetID and appends a
// MEET_RESULTS ledger row once the file completes.
func (s *Service) ImportResults(ctx context.Context, meetID string, doc Document) (*ImportResult, error) {
	if doc.Reader == nil {
		return nil, ErrNoDocuments
	}

	return s.run(ctx, meetID, DatasetResults, func(_, bctx context.Context, b *batch) (bool, error) {
		if err := s.results.ImportFile(bctx, b.log, b.meet, doc, b.touched, b.result); err != nil {
			return false, err
		}
		b.result.Files = append(b.result.Files, doc.Name)
		return true, nil
	})
}

// FetchResults downloads the configured results report for meetID and
// imports it.
func (s *Service) FetchResults(ctx context.Context, meetID string) (*ImportResult, error) {
	if s.fetcher == nil {
		return nil, ErrResultsURLNotConfigured
	}
	doc, err := s.fetcher.Fetch(ctx, meetID, s.maxFileSize)
	if err != nil {
		return nil, err
	}
	return s.ImportResults(ctx, meetID, doc)
}

// run holds a limiter slot for the whole batch and writes the ledger row.
// The batch runs detached from ctx cancellation, bounded by importTimeout.
func (s *Service) run(ctx context.Context, meetID string, dataset Dataset, fn batchFunc) (*ImportResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		if s.recorder != nil {
			s.recorder.ImportRejected(string(dataset))
		}
		return nil, err
	}
	defer s.limiter.Release()

	start := time.Now()
	result := &ImportResult{
		ImportID: s.newID(),
		MeetID:   meetID,
		Dataset:  dataset,
	}
	log := logging.ForImport(ctx, result.ImportID, meetID, string(dataset))

	if s.recorder != nil {
		s.recorder.ImportStarted()
	}
	status := statusFailed
	defer func() {
		result.Duration = time.Since(start)
		if s.recorder != nil {
			s.recorder.Rows(string(dataset), result.Rows, result.Skipped())
			s.recorder.TimesWritten(string(dataset), result.TimesInserted, result.TimesExisting)
			s.recorder.ImportFinished(string(dataset), status, result.Duration)
		}
	}()

	bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.importTimeout)
	defer cancel()

	meet, err := s.store.FindMeet(bctx, meetID)
	if err != nil {
		if errors.Is(err, ErrMeetNotFound) {
			log.Warn("import rejected", "error", err)
			return nil, fmt.Errorf("meet %q: %w", meetID, ErrMeetNotFound)
		}
		return nil, storeErr("find meet", err)
	}

	log.Info("import started")
	b := &batch{log: log, meet: meet, touched: NewSwimmerSet(), result: result}

	record, runErr := fn(ctx, bctx, b)
	result.Swimmers = b.touched.Len()

	if record {
		h, err := s.ledger.Record(bctx, meetID, dataset, b.touched, result.Rows, time.Since(start))
		if err != nil {
			log.Error("import ledger write failed", "error", err)
			return result, err
		}
		result.History = &h
	}

	if runErr != nil {
		log.Error("import failed",
			"error", runErr,
			"rows", result.Rows,
			"skipped", result.Skipped(),
		)
		return result, runErr
	}

	status = statusSuccess
	log.Info("import completed",
		"files", len(result.Files),
		"rows", result.Rows,
		"swimmers", result.Swimmers,
		"times_inserted", result.TimesInserted,
		"times_existing", result.TimesExisting,
		"skipped", result.Skipped(),
		"duration", time.Since(start),
	)
	return result, nil
}

// History returns every ledger row for meetID, newest first.
func (s *Service) History(ctx context.Context, meetID string) ([]ImportHistory, error) {
	if s.history == nil {
		return nil, errors.New("import history not available")
	}
	rows, err := s.history.ImportHistory(ctx, meetID)
	if err != nil {
		return nil, storeErr("import history", err)
	}
	return rows, nil
}

// LatestImports returns the most recent ledger row per dataset for meetID.
func (s *Service) LatestImports(ctx context.Context, meetID string) ([]ImportHistory, error) {
	if s.history == nil {
		return nil, errors.New("import history not available")
	}
	rows, err := s.history.LatestImports(ctx, meetID)
	if err != nil {
		return nil, storeErr("latest imports", err)
	}
	return rows, nil
}

// MeetTimes lists what the latest dataset import for meetID loaded, in the
// meet's course.
func (s *Service) MeetTimes(ctx context.Context, meetID string, dataset Dataset) ([]MeetTime, error) {
	if s.history == nil {
		return nil, errors.New("import history not available")
	}
	if _, err := s.store.FindMeet(ctx, meetID); err != nil {
		if errors.Is(err, ErrMeetNotFound) {
			return nil, fmt.Errorf("meet %q: %w", meetID, ErrMeetNotFound)
		}
		return nil, storeErr("find meet", err)
	}
	rows, err := s.history.MeetTimes(ctx, meetID, dataset)
	if err != nil {
		return nil, storeErr("meet times", err)
	}
	return rows, nil
}

// MeetsWithResults lists the meets other than except that have results loaded.
func (s *Service) MeetsWithResults(ctx context.Context, except string) ([]Meet, error) {
	if s.history == nil {
		return nil, errors.New("import history not available")
	}
	meets, err := s.history.MeetsWithResults(ctx, except)
	if err != nil {
		return nil, storeErr("meets with results", err)
	}
	return meets, nil
}

// IsLoaded reports whether dataset has been imported at least once for meetID.
func (s *Service) IsLoaded(ctx context.Context, meetID string, dataset Dataset) (bool, error) {
	latest, err := s.LatestImports(ctx, meetID)
	if err != nil {
		return false, err
	}
	for _, h := range latest {
		if h.Dataset == dataset {
			return true, nil
		}
	}
	return false, nil
}

// WaitForImports blocks until no import is running or ctx is done.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// LimiterStatus reports import slot usage.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}
