package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/pota/internal/logging"
)

// ErrImportNotFound is returned for unknown or expired import ids.
var ErrImportNotFound = errors.New("import not found")

// Service defaults.
const (
	DefaultImportTimeout   = 10 * time.Minute
	DefaultResultRetention = 5 * time.Minute
	listenerBuffer         = 10
)

// ServiceConfig tunes the import pipeline run by a Service.
type ServiceConfig struct {
	BatchSize         int
	MaxRetainedErrors int
	ProgressInterval  time.Duration
	Encoding          string
	ImportTimeout     time.Duration
	MaxWaitTime       time.Duration // RunImport wait for a running import
	ResultRetention   time.Duration // how long a finished import stays queryable
}

// Service owns the import state of one session: the running import, its
// listeners, and the last progress snapshot. Create one per process or
// window; nothing here is package-global.
type Service struct {
	store   ParkStore
	cfg     ServiceConfig
	limiter *ImportLimiter

	mu      sync.RWMutex
	imports map[string]*activeImport
	status  ImportProgress
}

type activeImport struct {
	ID       string
	Path     string
	FileName string
	Done     chan struct{}

	mu        sync.Mutex
	progress  ImportProgress
	result    *ImportResult
	err       error
	listeners []chan ImportProgress
}

// NewService creates a Service backed by store.
func NewService(store ParkStore, cfg ServiceConfig) *Service {
	if cfg.ImportTimeout <= 0 {
		cfg.ImportTimeout = DefaultImportTimeout
	}
	if cfg.ResultRetention <= 0 {
		cfg.ResultRetention = DefaultResultRetention
	}
	return &Service{
		store:   store,
		cfg:     cfg,
		limiter: NewImportLimiter(DefaultMaxConcurrentImports, cfg.MaxWaitTime),
		imports: make(map[string]*activeImport),
	}
}

func (s *Service) importer() *Importer {
	return &Importer{
		Parser: &Parser{
			ProgressInterval: s.cfg.ProgressInterval,
			Encoding:         s.cfg.Encoding,
		},
		BatchSize:         s.cfg.BatchSize,
		MaxRetainedErrors: s.cfg.MaxRetainedErrors,
	}
}

// StartImport begins an asynchronous import of the CSV file at path.
// Returns the import id immediately. Use SubscribeProgress to follow it.
//
// Returns ErrImportInProgress if another import is running.
func (s *Service) StartImport(ctx context.Context, path string) (string, error) {
	if !s.limiter.TryAcquire() {
		return "", ErrImportInProgress
	}

	importID := uuid.New().String()
	imp := &activeImport{
		ID:       importID,
		Path:     path,
		FileName: filepath.Base(path),
		Done:     make(chan struct{}),
		progress: ImportProgress{ImportID: importID, Phase: PhaseReading},
	}

	s.mu.Lock()
	s.imports[importID] = imp
	s.mu.Unlock()

	// The import outlives the request that started it.
	importCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ImportTimeout)

	go func() {
		defer s.limiter.Release()
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic in import",
					"import_id", importID,
					"file", imp.FileName,
					"panic", r,
				)
				s.finish(imp, nil, fmt.Errorf("internal error: %v", r))
			}
		}()

		res, err := s.execute(importCtx, importID, path, imp.publish)
		s.finish(imp, res, err)
	}()

	return importID, nil
}

// RunImport imports path synchronously, waiting for a free slot if another
// import is running. onProgress may be nil.
func (s *Service) RunImport(ctx context.Context, path string, onProgress ProgressCallback) (*ImportResult, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ImportTimeout)
	defer cancel()

	return s.execute(ctx, uuid.New().String(), path, onProgress)
}

// execute runs the pipeline, keeps the status snapshot current and records
// the outcome in the import history.
func (s *Service) execute(ctx context.Context, importID, path string, onProgress ProgressCallback) (*ImportResult, error) {
	fileName := filepath.Base(path)
	ctx = logging.ContextWithImport(ctx, importID)
	logger := logging.WithFields(ctx, "file", fileName)
	logger.Info("import started")

	notify := func(p ImportProgress) {
		p.ImportID = importID
		s.setStatus(p)
		if onProgress != nil {
			onProgress(p)
		}
	}

	start := time.Now()
	res, err := s.importer().Import(ctx, path, s.store.InsertParks, notify)

	rec := ImportRecord{
		ID:         importID,
		FileName:   fileName,
		DurationMs: time.Since(start).Milliseconds(),
		ImportedAt: start,
	}

	if err != nil {
		notify(ImportProgress{Phase: PhaseError, Message: err.Error()})
		logger.Error("import failed", "error", err, "duration_ms", rec.DurationMs)

		rec.Status = string(PhaseError)
		rec.Error = err.Error()
		s.recordHistory(rec)
		return nil, err
	}

	res.ImportID = importID
	res.FileName = fileName

	s.setStatus(ImportProgress{
		ImportID:         importID,
		Phase:            PhaseCompleted,
		RecordsProcessed: res.Imported,
		TotalRecords:     res.ValidRows,
		Message:          summaryMessage(res),
	})

	logger.Info("import completed",
		"total_rows", res.TotalRows,
		"valid_rows", res.ValidRows,
		"invalid_rows", res.InvalidRows,
		"imported", res.Imported,
		"rejected", res.Rejected,
		"duration_ms", rec.DurationMs,
	)

	rec.Status = string(PhaseCompleted)
	rec.TotalRows = res.TotalRows
	rec.ValidRows = res.ValidRows
	rec.InvalidRows = res.InvalidRows
	rec.Imported = res.Imported
	s.recordHistory(rec)

	return res, nil
}

func summaryMessage(res *ImportResult) string {
	return fmt.Sprintf("Imported %d parks (%d skipped)", res.Imported, res.Skipped)
}

// recordHistory writes rec on its own context so a cancelled import is
// still recorded.
func (s *Service) recordHistory(rec ImportRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.store.RecordImport(ctx, rec); err != nil {
		slog.Warn("failed to record import history", "import_id", rec.ID, "error", err)
	}
}

func (s *Service) setStatus(p ImportProgress) {
	s.mu.Lock()
	s.status = p
	s.mu.Unlock()
}

// Status returns the last progress snapshot of this Service. The phase is
// empty before the first import.
func (s *Service) Status() ImportProgress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Importing reports whether an import is running.
func (s *Service) Importing() bool {
	return s.limiter.ActiveCount() > 0
}

// finish stores the outcome, delivers the terminal event and closes all
// listeners.
func (s *Service) finish(imp *activeImport, res *ImportResult, err error) {
	imp.mu.Lock()
	imp.result = res
	imp.err = err
	if err != nil && imp.progress.Phase != PhaseError {
		imp.progress = ImportProgress{ImportID: imp.ID, Phase: PhaseError, Message: err.Error()}
	} else if res != nil {
		imp.progress.Message = summaryMessage(res)
	}
	for _, ch := range imp.listeners {
		sendLatest(ch, imp.progress)
		close(ch)
	}
	imp.listeners = nil
	imp.mu.Unlock()

	close(imp.Done)

	time.AfterFunc(s.cfg.ResultRetention, func() {
		s.mu.Lock()
		delete(s.imports, imp.ID)
		s.mu.Unlock()
	})
}

// publish records p and sends it to every listener. Slow listeners miss
// intermediate events.
func (imp *activeImport) publish(p ImportProgress) {
	imp.mu.Lock()
	defer imp.mu.Unlock()

	imp.progress = p
	if p.Phase.Terminal() {
		// finish delivers terminal events.
		return
	}
	for _, ch := range imp.listeners {
		select {
		case ch <- p:
		default:
		}
	}
}

// sendLatest delivers p, evicting the oldest buffered event if ch is full.
// Only the holder of the import lock sends, so the second send cannot block.
func sendLatest(ch chan ImportProgress, p ImportProgress) {
	select {
	case ch <- p:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	ch <- p
}

func (s *Service) lookup(importID string) (*activeImport, error) {
	s.mu.RLock()
	imp, ok := s.imports[importID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrImportNotFound, importID)
	}
	return imp, nil
}

// SubscribeProgress returns a channel of progress events for an import.
// The current snapshot is sent first. The channel is closed after the
// terminal event.
func (s *Service) SubscribeProgress(importID string) (<-chan ImportProgress, error) {
	imp, err := s.lookup(importID)
	if err != nil {
		return nil, err
	}

	ch := make(chan ImportProgress, listenerBuffer)

	imp.mu.Lock()
	defer imp.mu.Unlock()

	ch <- imp.progress
	select {
	case <-imp.Done:
		close(ch)
	default:
		imp.listeners = append(imp.listeners, ch)
	}
	return ch, nil
}

// GetImportResult returns the result of an import.
// Blocks until the import completes if still in progress.
func (s *Service) GetImportResult(importID string) (*ImportResult, error) {
	imp, err := s.lookup(importID)
	if err != nil {
		return nil, err
	}

	<-imp.Done

	imp.mu.Lock()
	defer imp.mu.Unlock()
	return imp.result, imp.err
}

// GetImportProgress returns the current progress without blocking.
func (s *Service) GetImportProgress(importID string) (ImportProgress, error) {
	imp, err := s.lookup(importID)
	if err != nil {
		return ImportProgress{}, err
	}

	imp.mu.Lock()
	defer imp.mu.Unlock()
	return imp.progress, nil
}

// PreviewImport parses path and reports what an import would do without
// touching the store.
func (s *Service) PreviewImport(ctx context.Context, path string) (*ImportResult, error) {
	start := time.Now()
	im := s.importer()

	parsed, err := im.Parser.ParseFile(ctx, path, nil)
	if err != nil {
		return nil, err
	}

	res := &ImportResult{
		FileName:       filepath.Base(path),
		TotalRows:      parsed.TotalRows,
		ValidRows:      parsed.ValidRows,
		InvalidRows:    parsed.InvalidRows,
		Errors:         parsed.Errors,
		Skipped:        parsed.InvalidRows,
		MissingColumns: parsed.MissingColumns,
		Duration:       time.Since(start),
	}
	if limit := im.maxErrors(); len(res.Errors) > limit {
		res.Errors = res.Errors[:limit]
		res.ErrorsTruncated = true
	}
	return res, nil
}

// WaitForImports blocks until no import is running or ctx is done.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// ListParks returns parks matching filter.
func (s *Service) ListParks(ctx context.Context, filter ParkFilter) ([]NormalizedPark, error) {
	return s.store.ListParks(ctx, filter)
}

// GetPark returns one park by reference. The reference is validated and
// canonicalized first.
func (s *Service) GetPark(ctx context.Context, reference string) (*NormalizedPark, error) {
	ref, err := ParseParkReference(reference)
	if err != nil {
		return nil, err
	}
	return s.store.GetPark(ctx, ref.String())
}

// SetFavorite marks or unmarks a park as a favorite.
func (s *Service) SetFavorite(ctx context.Context, reference string, favorite bool) error {
	ref, err := ParseParkReference(reference)
	if err != nil {
		return err
	}
	return s.store.SetFavorite(ctx, ref.String(), favorite)
}

// CountParks returns the number of stored parks.
func (s *Service) CountParks(ctx context.Context) (int64, error) {
	return s.store.CountParks(ctx)
}

// ImportHistory returns the most recent imports, newest first.
func (s *Service) ImportHistory(ctx context.Context, limit int) ([]ImportRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.store.ListImports(ctx, limit)
}
