package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// memStore is an in-memory ParkStore.
type memStore struct {
	mu        sync.Mutex
	parks     map[string]NormalizedPark
	imports   []ImportRecord
	inserts   int
	block     chan struct{} // when set, InsertParks waits on it
	favorites map[string]bool
}

func newMemStore() *memStore {
	return &memStore{parks: make(map[string]NormalizedPark), favorites: make(map[string]bool)}
}

func (m *memStore) InsertParks(ctx context.Context, parks []NormalizedPark) (int, error) {
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	for _, p := range parks {
		m.parks[p.Reference.String()] = p
	}
	return len(parks), nil
}

func (m *memStore) GetPark(_ context.Context, ref string) (*NormalizedPark, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.parks[ref]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *memStore) ListParks(_ context.Context, _ ParkFilter) ([]NormalizedPark, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]NormalizedPark, 0, len(m.parks))
	for _, p := range m.parks {
		out = append(out, p)
	}
	return out, nil
}

func (m *memStore) CountParks(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.parks)), nil
}

func (m *memStore) SetFavorite(_ context.Context, ref string, favorite bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.favorites[ref] = favorite
	return nil
}

func (m *memStore) RecordImport(_ context.Context, rec ImportRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.imports = append(m.imports, rec)
	return nil
}

func (m *memStore) ListImports(_ context.Context, limit int) ([]ImportRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit > len(m.imports) {
		limit = len(m.imports)
	}
	return append([]ImportRecord(nil), m.imports[:limit]...), nil
}

func (m *memStore) history() []ImportRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ImportRecord(nil), m.imports...)
}

func TestService_RunImport(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, ServiceConfig{})
	path := writeParkFile(t, parkHeader+"\n"+parkLines(3)+"bad,,,,,,,\n")

	var last ImportProgress
	res, err := svc.RunImport(context.Background(), path, func(p ImportProgress) { last = p })
	if err != nil {
		t.Fatalf("RunImport() error = %v", err)
	}

	if res.Imported != 3 || res.Skipped != 1 || res.FileName != "parks.csv" || res.ImportID == "" {
		t.Errorf("result = %+v, want 3 imported, 1 skipped", res)
	}
	if last.Phase != PhaseCompleted || last.ImportID != res.ImportID {
		t.Errorf("last progress = %+v, want completed for %s", last, res.ImportID)
	}
	if st := svc.Status(); st.Phase != PhaseCompleted || st.Message == "" {
		t.Errorf("Status() = %+v, want completed with summary", st)
	}

	hist := store.history()
	if len(hist) != 1 || hist[0].Status != "completed" || hist[0].Imported != 3 || hist[0].InvalidRows != 1 {
		t.Errorf("history = %+v, want one completed record", hist)
	}
}

func TestService_StatusBeforeImport(t *testing.T) {
	svc := NewService(newMemStore(), ServiceConfig{})
	if st := svc.Status(); st.Phase != "" {
		t.Errorf("Status() = %+v, want empty phase", st)
	}
}

func TestService_StartImportAndSubscribe(t *testing.T) {
	store := newMemStore()
	store.block = make(chan struct{})
	svc := NewService(store, ServiceConfig{})
	path := writeParkFile(t, parkHeader+"\n"+parkLines(5))

	id, err := svc.StartImport(context.Background(), path)
	if err != nil {
		t.Fatalf("StartImport() error = %v", err)
	}

	ch, err := svc.SubscribeProgress(id)
	if err != nil {
		t.Fatalf("SubscribeProgress() error = %v", err)
	}
	close(store.block)

	var last ImportProgress
	timeout := time.After(5 * time.Second)
	for done := false; !done; {
		select {
		case p, ok := <-ch:
			if !ok {
				done = true
				break
			}
			last = p
		case <-timeout:
			t.Fatal("progress channel was not closed")
		}
	}

	if last.Phase != PhaseCompleted || last.RecordsProcessed != 5 {
		t.Errorf("terminal event = %+v, want completed with 5 records", last)
	}

	res, err := svc.GetImportResult(id)
	if err != nil {
		t.Fatalf("GetImportResult() error = %v", err)
	}
	if res.Imported != 5 {
		t.Errorf("Imported = %d, want 5", res.Imported)
	}

	// A late subscriber gets the terminal snapshot and a closed channel.
	late, err := svc.SubscribeProgress(id)
	if err != nil {
		t.Fatalf("late SubscribeProgress() error = %v", err)
	}
	if p := <-late; p.Phase != PhaseCompleted {
		t.Errorf("late snapshot = %+v, want completed", p)
	}
	if _, ok := <-late; ok {
		t.Error("late channel should be closed")
	}
}

func TestService_SingleFlight(t *testing.T) {
	store := newMemStore()
	store.block = make(chan struct{})
	svc := NewService(store, ServiceConfig{})
	path := writeParkFile(t, parkHeader+"\n"+parkLines(2))

	id, err := svc.StartImport(context.Background(), path)
	if err != nil {
		t.Fatalf("first StartImport() error = %v", err)
	}
	if !svc.Importing() {
		t.Error("Importing() = false while an import runs")
	}

	if _, err := svc.StartImport(context.Background(), path); !errors.Is(err, ErrImportInProgress) {
		t.Errorf("second StartImport() error = %v, want ErrImportInProgress", err)
	}

	close(store.block)
	if _, err := svc.GetImportResult(id); err != nil {
		t.Fatalf("GetImportResult() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := svc.WaitForImports(ctx); err != nil {
		t.Fatalf("WaitForImports() error = %v", err)
	}

	id2, err := svc.StartImport(context.Background(), path)
	if err != nil {
		t.Fatalf("StartImport() after completion error = %v", err)
	}
	if _, err := svc.GetImportResult(id2); err != nil {
		t.Fatalf("GetImportResult() error = %v", err)
	}
}

func TestService_ImportFailure(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, ServiceConfig{})

	id, err := svc.StartImport(context.Background(), "/no/such/parks.csv")
	if err != nil {
		t.Fatalf("StartImport() error = %v", err)
	}

	res, err := svc.GetImportResult(id)
	if err == nil {
		t.Fatalf("GetImportResult() = %+v, want error", res)
	}

	p, err := svc.GetImportProgress(id)
	if err != nil {
		t.Fatalf("GetImportProgress() error = %v", err)
	}
	if p.Phase != PhaseError || p.Message == "" {
		t.Errorf("progress = %+v, want error phase with message", p)
	}
	if st := svc.Status(); st.Phase != PhaseError {
		t.Errorf("Status() = %+v, want error", st)
	}

	hist := store.history()
	if len(hist) != 1 || hist[0].Status != "error" || hist[0].Error == "" {
		t.Errorf("history = %+v, want one error record", hist)
	}
}

func TestService_UnknownImport(t *testing.T) {
	svc := NewService(newMemStore(), ServiceConfig{})

	if _, err := svc.GetImportResult("nope"); !errors.Is(err, ErrImportNotFound) {
		t.Errorf("GetImportResult() error = %v, want ErrImportNotFound", err)
	}
	if _, err := svc.SubscribeProgress("nope"); !errors.Is(err, ErrImportNotFound) {
		t.Errorf("SubscribeProgress() error = %v, want ErrImportNotFound", err)
	}
}

func TestService_PreviewImport(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, ServiceConfig{MaxRetainedErrors: 1})
	path := writeParkFile(t, parkHeader+"\n"+parkLines(2)+"bad,,,,,,,\nworse,,,,,,,\n")

	res, err := svc.PreviewImport(context.Background(), path)
	if err != nil {
		t.Fatalf("PreviewImport() error = %v", err)
	}

	if res.ValidRows != 2 || res.InvalidRows != 2 || res.Imported != 0 {
		t.Errorf("result = %+v, want 2 valid / 2 invalid / 0 imported", res)
	}
	if len(res.Errors) != 1 || !res.ErrorsTruncated {
		t.Errorf("errors = %d truncated=%v, want 1 and true", len(res.Errors), res.ErrorsTruncated)
	}
	if store.inserts != 0 || len(store.history()) != 0 {
		t.Error("preview must not touch the store")
	}
}

func TestService_ParkPassthroughs(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, ServiceConfig{})
	path := writeParkFile(t, parkHeader+"\n"+parkLines(2))

	if _, err := svc.RunImport(context.Background(), path, nil); err != nil {
		t.Fatalf("RunImport() error = %v", err)
	}

	p, err := svc.GetPark(context.Background(), "k-0001")
	if err != nil || p == nil || p.Name != "Park 1" {
		t.Errorf("GetPark() = %+v, %v; want Park 1", p, err)
	}

	if _, err := svc.GetPark(context.Background(), "K0001"); err == nil {
		t.Error("GetPark() with malformed reference should fail")
	}

	if err := svc.SetFavorite(context.Background(), "k-0002", true); err != nil {
		t.Fatalf("SetFavorite() error = %v", err)
	}
	if !store.favorites["K-0002"] {
		t.Error("SetFavorite() did not canonicalize the reference")
	}

	if n, err := svc.CountParks(context.Background()); err != nil || n != 2 {
		t.Errorf("CountParks() = %d, %v; want 2", n, err)
	}

	hist, err := svc.ImportHistory(context.Background(), 0)
	if err != nil || len(hist) != 1 {
		t.Errorf("ImportHistory() = %+v, %v; want 1 record", hist, err)
	}
}
