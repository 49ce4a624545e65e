package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/mock"

	"github.com/cribs1908/specpipe/internal/model"
	"github.com/cribs1908/specpipe/internal/store"
	"github.com/cribs1908/specpipe/internal/synonym"
)

// --- OCR mock ---

type mockOCR struct {
	mock.Mock
}

func (m *mockOCR) ExtractPages(ctx context.Context, pdfPath string) ([]model.OCRPage, error) {
	args := m.Called(ctx, pdfPath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.OCRPage), args.Error(1)
}

// --- Extractor mock ---

type mockExtractor struct {
	mock.Mock
}

func (m *mockExtractor) WarmCache(ctx context.Context, domain string, snapshot synonym.Snapshot) error {
	args := m.Called(ctx, domain, snapshot)
	return args.Error(0)
}

func (m *mockExtractor) ExtractFields(ctx context.Context, domain, documentID string, pages []model.OCRPage, snapshot synonym.Snapshot) ([]model.ExtractionRaw, model.TokenUsage, error) {
	args := m.Called(ctx, domain, documentID, pages, snapshot)
	if args.Get(0) == nil {
		return nil, args.Get(1).(model.TokenUsage), args.Error(2)
	}
	return args.Get(0).([]model.ExtractionRaw), args.Get(1).(model.TokenUsage), args.Error(2)
}

// --- Blob mock ---

type mockBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMockBlobStore() *mockBlobStore {
	return &mockBlobStore{objects: make(map[string][]byte)}
}

func (m *mockBlobStore) Upload(_ context.Context, path string, content []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = content
	return nil
}

func (m *mockBlobStore) SignedURL(_ context.Context, path string, _ time.Duration) (string, error) {
	return "https://blobs.test/" + path, nil
}

// --- In-memory store fake ---

// fakeStore is a stateful in-memory store.Store. Pipeline tests assert on the
// state it accumulates rather than on call scripts.
type fakeStore struct {
	mu sync.Mutex

	runs      map[string]*model.Run
	documents map[string][]model.Document
	raws      map[string][]model.ExtractionRaw
	norms     map[string][]model.ExtractionNorm
	tables    map[string]model.ResultTable

	wsSynonyms     map[string]map[string]synonym.Entry
	globalSynonyms map[string]synonym.Entry

	failSaveRaw bool
}

var _ store.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		runs:           make(map[string]*model.Run),
		documents:      make(map[string][]model.Document),
		raws:           make(map[string][]model.ExtractionRaw),
		norms:          make(map[string][]model.ExtractionNorm),
		tables:         make(map[string]model.ResultTable),
		wsSynonyms:     make(map[string]map[string]synonym.Entry),
		globalSynonyms: make(map[string]synonym.Entry),
	}
}

func (f *fakeStore) CreateRun(_ context.Context, workspaceID, domain string) (*model.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run := &model.Run{
		ID:          uuid.New().String(),
		WorkspaceID: workspaceID,
		Domain:      domain,
		Status:      model.RunStatusQueued,
	}
	f.runs[run.ID] = run
	return run, nil
}

func (f *fakeStore) GetRun(_ context.Context, runID string) (*model.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[runID]
	if !ok {
		return nil, eris.Errorf("run not found: %s", runID)
	}
	copied := *run
	return &copied, nil
}

func (f *fakeStore) ListRuns(_ context.Context, _ store.RunFilter) ([]model.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var runs []model.Run
	for _, r := range f.runs {
		runs = append(runs, *r)
	}
	return runs, nil
}

func (f *fakeStore) UpdateRunStatus(_ context.Context, runID string, status model.RunStatus, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[runID]
	if !ok {
		return eris.Errorf("run not found: %s", runID)
	}
	run.Status = status
	if status == model.RunStatusError {
		run.Error = errMsg
	} else {
		run.Error = ""
	}
	return nil
}

func (f *fakeStore) UpdateRunDomain(_ context.Context, runID, domain string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[runID]
	if !ok {
		return eris.Errorf("run not found: %s", runID)
	}
	run.Domain = domain
	return nil
}

func (f *fakeStore) CreateDocument(_ context.Context, doc model.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.documents[doc.RunID] = append(f.documents[doc.RunID], doc)
	return nil
}

func (f *fakeStore) ListDocuments(_ context.Context, runID string) ([]model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Document(nil), f.documents[runID]...), nil
}

func (f *fakeStore) UpdateDocumentOCR(_ context.Context, documentID string, pages int, ocrUsed bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for runID, docs := range f.documents {
		for i, d := range docs {
			if d.ID == documentID {
				docs[i].Pages = pages
				docs[i].OCRUsed = ocrUsed
				f.documents[runID] = docs
				return nil
			}
		}
	}
	return eris.Errorf("document not found: %s", documentID)
}

func (f *fakeStore) SaveRawExtractions(_ context.Context, runID string, raws []model.ExtractionRaw) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSaveRaw {
		return eris.New("disk full")
	}
	f.raws[runID] = append(f.raws[runID], raws...)
	return nil
}

func (f *fakeStore) SaveNormExtractions(_ context.Context, runID string, norms []model.ExtractionNorm) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.norms[runID] = append(f.norms[runID], norms...)
	return nil
}

func (f *fakeStore) ListRawExtractions(_ context.Context, runID string) ([]model.ExtractionRaw, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.ExtractionRaw(nil), f.raws[runID]...), nil
}

func (f *fakeStore) ListNormExtractions(_ context.Context, runID string) ([]model.ExtractionNorm, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.ExtractionNorm(nil), f.norms[runID]...), nil
}

func (f *fakeStore) SaveResultTable(_ context.Context, table model.ResultTable) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[table.RunID] = table
	return nil
}

func (f *fakeStore) GetResultTable(_ context.Context, runID string) (*model.ResultTable, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	table, ok := f.tables[runID]
	if !ok {
		return nil, nil
	}
	return &table, nil
}

func (f *fakeStore) ListWorkspaceSynonyms(_ context.Context, workspaceID string) ([]synonym.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var entries []synonym.Entry
	for _, e := range f.wsSynonyms[workspaceID] {
		entries = append(entries, e)
	}
	return entries, nil
}

func (f *fakeStore) ListGlobalSynonyms(_ context.Context) ([]synonym.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var entries []synonym.Entry
	for _, e := range f.globalSynonyms {
		entries = append(entries, e)
	}
	return entries, nil
}

func (f *fakeStore) GetWorkspaceSynonym(_ context.Context, workspaceID, fieldID string) (*synonym.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.wsSynonyms[workspaceID][fieldID]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (f *fakeStore) GetGlobalSynonym(_ context.Context, fieldID string) (*synonym.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.globalSynonyms[fieldID]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (f *fakeStore) UpsertWorkspaceSynonym(_ context.Context, e synonym.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.wsSynonyms[e.WorkspaceID] == nil {
		f.wsSynonyms[e.WorkspaceID] = make(map[string]synonym.Entry)
	}
	f.wsSynonyms[e.WorkspaceID][e.FieldID] = e
	return nil
}

func (f *fakeStore) UpsertGlobalSynonym(_ context.Context, e synonym.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e.WorkspaceID = ""
	f.globalSynonyms[e.FieldID] = e
	return nil
}

func (f *fakeStore) CountWorkspacesWithVariant(_ context.Context, fieldID, term string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, entries := range f.wsSynonyms {
		if e, ok := entries[fieldID]; ok && e.HasVariant(term) {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) Migrate(_ context.Context) error { return nil }
func (f *fakeStore) Close() error                    { return nil }
