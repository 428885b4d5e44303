package chat_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/docchat/pkg/model"
	"github.com/m-mizutani/docchat/pkg/repository"
	"github.com/m-mizutani/docchat/pkg/usecase/chat"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
)

// Mock FileSearch gateway
type mockGateway struct {
	mu sync.Mutex

	readyErr    error
	createErr   error
	uploadErr   map[string]error
	queryFn     func(ctx context.Context, storeID model.StoreID, text string) (*model.QueryResult, error)
	suggestions []string
	deleteErr   error

	created  []string
	uploaded []string
	queries  []string
	deleted  []model.StoreID
}

func newMockGateway() *mockGateway {
	return &mockGateway{
		uploadErr:   map[string]error{},
		suggestions: []string{"How do I start?", "What is the warranty?"},
	}
}

func (m *mockGateway) Ready() error {
	return m.readyErr
}

func (m *mockGateway) CreateStore(ctx context.Context, displayName string) (model.StoreID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return "", m.createErr
	}
	m.created = append(m.created, displayName)
	return model.StoreID("fileSearchStores/" + displayName), nil
}

func (m *mockGateway) UploadFile(ctx context.Context, storeID model.StoreID, doc *model.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.uploadErr[doc.Name]; err != nil {
		return err
	}
	m.uploaded = append(m.uploaded, doc.Name)
	return nil
}

func (m *mockGateway) Query(ctx context.Context, storeID model.StoreID, text string) (*model.QueryResult, error) {
	m.mu.Lock()
	m.queries = append(m.queries, text)
	fn := m.queryFn
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, storeID, text)
	}
	return &model.QueryResult{Text: "answer to " + text}, nil
}

func (m *mockGateway) GenerateSuggestedQuestions(ctx context.Context, storeID model.StoreID) []string {
	return m.suggestions
}

func (m *mockGateway) DeleteStore(ctx context.Context, storeID model.StoreID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, storeID)
	return m.deleteErr
}

func (m *mockGateway) ListStores(ctx context.Context) ([]*model.Store, error) {
	return nil, nil
}

func (m *mockGateway) queryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queries)
}

// Mock Repository that always fails
type brokenRepository struct{}

func (brokenRepository) GetConfig(ctx context.Context) (*model.AppConfig, error) {
	return nil, errors.New("connection refused")
}

func (brokenRepository) PutConfig(ctx context.Context, cfg *model.AppConfig) error {
	return errors.New("connection refused")
}

// recorder collects every snapshot passed to OnChange
type recorder struct {
	mu        sync.Mutex
	snapshots []model.Session
}

func (r *recorder) record(s model.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, s)
}

func (r *recorder) progress() []model.UploadProgress {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []model.UploadProgress
	for _, s := range r.snapshots {
		if s.Progress == nil {
			continue
		}
		if n := len(result); n > 0 && result[n-1] == *s.Progress {
			continue
		}
		result = append(result, *s.Progress)
	}
	return result
}

func fixedClock() time.Time {
	return time.UnixMilli(1700000000000)
}

func newSession(t *testing.T, gw *mockGateway, repo repository.Repository, rec *recorder) *chat.Session {
	t.Helper()
	opts := []chat.Option{
		chat.WithReadyDelay(0),
		chat.WithClock(fixedClock),
	}
	if rec != nil {
		opts = append(opts, chat.WithOnChange(rec.record))
	}

	s, err := chat.New(chat.NewInput{Gateway: gw, Config: repo}, opts...)
	if err != nil {
		t.Fatal("failed to create session", err)
	}
	return s
}

func docs(names ...string) []*model.Document {
	var result []*model.Document
	for _, name := range names {
		result = append(result, &model.Document{Name: name, Path: "/tmp/" + name})
	}
	return result
}

func TestNewRequiresGateway(t *testing.T) {
	_, err := chat.New(chat.NewInput{})
	gt.Error(t, err)
}

func TestBootWithoutStoredStore(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, newMockGateway(), repository.NewMemory(), nil)
	gt.Equal(t, s.Snapshot().Status, model.StatusInitializing)

	s.Boot(ctx)
	snap := s.Snapshot()
	gt.Equal(t, snap.Status, model.StatusWelcome)
	gt.False(t, snap.HasStore())
	gt.Equal(t, snap.CredentialError, "")
}

func TestBootResumesStoredStore(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	gt.NoError(t, repo.PutConfig(ctx, &model.AppConfig{RAGStoreName: "fileSearchStores/chat-session-1"}))

	s := newSession(t, newMockGateway(), repo, nil)
	s.Boot(ctx)

	snap := s.Snapshot()
	gt.Equal(t, snap.Status, model.StatusChatting)
	gt.Equal(t, snap.ActiveStoreID, model.StoreID("fileSearchStores/chat-session-1"))
	gt.Equal(t, snap.DocumentLabel, "Existing Session (chat-session-1)")
}

func TestBootWithBrokenPersistence(t *testing.T) {
	s := newSession(t, newMockGateway(), brokenRepository{}, nil)
	s.Boot(context.Background())

	snap := s.Snapshot()
	gt.Equal(t, snap.Status, model.StatusWelcome)
	gt.False(t, snap.HasStore())
}

func TestBootWithoutCredential(t *testing.T) {
	gw := newMockGateway()
	gw.readyErr = errors.New("no key")

	s := newSession(t, gw, repository.NewMemory(), nil)
	s.Boot(context.Background())

	snap := s.Snapshot()
	gt.Equal(t, snap.Status, model.StatusWelcome)
	gt.S(t, snap.CredentialError).Contains("GEMINI_API_KEY")
}

func TestEnsureStore(t *testing.T) {
	ctx := context.Background()
	gw := newMockGateway()
	repo := repository.NewMemory()
	s := newSession(t, gw, repo, nil)
	s.Boot(ctx)

	storeID, err := s.EnsureStore(ctx)
	gt.NoError(t, err)
	gt.Equal(t, storeID, model.StoreID("fileSearchStores/chat-session-1700000000000"))
	gt.Equal(t, s.Snapshot().ActiveStoreID, storeID)

	cfg, err := repo.GetConfig(ctx)
	gt.NoError(t, err)
	gt.Equal(t, cfg.RAGStoreName, storeID)

	// Second call reuses the active store
	again, err := s.EnsureStore(ctx)
	gt.NoError(t, err)
	gt.Equal(t, again, storeID)
	gt.A(t, gw.created).Length(1)
}

func TestEnsureStoreWithBrokenPersistence(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, newMockGateway(), brokenRepository{}, nil)
	s.Boot(ctx)

	storeID, err := s.EnsureStore(ctx)
	gt.NoError(t, err)
	gt.Equal(t, s.Snapshot().ActiveStoreID, storeID)
}

func TestUploadAndStart(t *testing.T) {
	ctx := context.Background()
	gw := newMockGateway()
	rec := &recorder{}
	s := newSession(t, gw, repository.NewMemory(), rec)
	s.Boot(ctx)

	gt.NoError(t, s.UploadAndStart(ctx, docs("a.pdf", "b.pdf", "c.pdf"), true))

	snap := s.Snapshot()
	gt.Equal(t, snap.Status, model.StatusChatting)
	gt.Equal(t, snap.DocumentLabel, "3 documents")
	gt.True(t, snap.Progress == nil)
	gt.Equal(t, snap.Suggestions, []string{"How do I start?", "What is the warranty?"})
	gt.Equal(t, gw.uploaded, []string{"a.pdf", "b.pdf", "c.pdf"})

	progress := rec.progress()
	gt.A(t, progress).Length(6)
	for i, p := range progress {
		gt.Equal(t, p.Current, i)
		gt.Equal(t, p.Total, 5)
	}
	gt.Equal(t, progress[0].Message, model.ProgressCreatingIndex)
	gt.Equal(t, progress[1].Message, model.ProgressGeneratingEmbeddings)
	gt.Equal(t, progress[1].FileName, "(1/3) a.pdf")
	gt.Equal(t, progress[3].FileName, "(3/3) c.pdf")
	gt.Equal(t, progress[4].Message, model.ProgressGeneratingSuggestion)
	gt.Equal(t, progress[5].Message, model.ProgressReady)
}

func TestUploadProgressIsStrictlyIncreasing(t *testing.T) {
	for n := 1; n <= 5; n++ {
		ctx := context.Background()
		rec := &recorder{}
		s := newSession(t, newMockGateway(), repository.NewMemory(), rec)
		s.Boot(ctx)

		var input []*model.Document
		for i := 0; i < n; i++ {
			input = append(input, &model.Document{Name: "doc.pdf"})
		}
		gt.NoError(t, s.UploadAndStart(ctx, input, true))

		// Every snapshot seen while uploading has current in [0, n+2] and never goes back
		last := -1
		for _, snap := range rec.snapshots {
			if snap.Progress == nil {
				continue
			}
			gt.Equal(t, snap.Progress.Total, n+2)
			gt.True(t, snap.Progress.Current >= last)
			gt.True(t, snap.Progress.Current <= last+1)
			last = snap.Progress.Current
		}
		gt.Equal(t, last, n+2)
		gt.A(t, rec.progress()).Length(n + 3)
	}
}

func TestUploadDocumentLabel(t *testing.T) {
	ctx := context.Background()

	s := newSession(t, newMockGateway(), repository.NewMemory(), nil)
	s.Boot(ctx)
	gt.NoError(t, s.UploadAndStart(ctx, docs("manual.pdf"), true))
	gt.Equal(t, s.Snapshot().DocumentLabel, "manual.pdf")

	s = newSession(t, newMockGateway(), repository.NewMemory(), nil)
	s.Boot(ctx)
	gt.NoError(t, s.UploadAndStart(ctx, docs("a.pdf", "b.pdf"), true))
	gt.Equal(t, s.Snapshot().DocumentLabel, "a.pdf & b.pdf")
}

func TestUploadAdditionalDocumentsKeepsTranscript(t *testing.T) {
	ctx := context.Background()
	gw := newMockGateway()
	rec := &recorder{}
	s := newSession(t, gw, repository.NewMemory(), rec)
	s.Boot(ctx)

	gt.NoError(t, s.UploadAndStart(ctx, docs("a.pdf"), true))
	gt.NoError(t, s.Send(ctx, "hello"))
	storeID := s.Snapshot().ActiveStoreID

	rec.snapshots = nil
	gt.NoError(t, s.UploadAndStart(ctx, docs("b.pdf"), false))

	snap := s.Snapshot()
	gt.Equal(t, snap.Status, model.StatusChatting)
	gt.Equal(t, snap.ActiveStoreID, storeID)
	gt.Equal(t, snap.DocumentLabel, "a.pdf")
	gt.A(t, snap.Transcript).Length(2)
	gt.A(t, gw.created).Length(1)
	gt.Equal(t, rec.progress()[0].Message, model.ProgressUpdatingIndex)
}

func TestUploadWithEmptyDocuments(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	s := newSession(t, newMockGateway(), repository.NewMemory(), rec)
	s.Boot(ctx)
	rec.snapshots = nil

	gt.NoError(t, s.UploadAndStart(ctx, nil, true))
	gt.Equal(t, s.Snapshot().Status, model.StatusWelcome)
	gt.A(t, rec.snapshots).Length(0)
}

func TestUploadWithoutCredential(t *testing.T) {
	ctx := context.Background()
	gw := newMockGateway()
	s := newSession(t, gw, repository.NewMemory(), nil)
	s.Boot(ctx)

	gw.readyErr = errors.New("no key")
	err := s.UploadAndStart(ctx, docs("a.pdf"), true)
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, chat.ErrTagCredential))

	snap := s.Snapshot()
	gt.Equal(t, snap.Status, model.StatusWelcome)
	gt.S(t, snap.CredentialError).Contains("GEMINI_API_KEY")
	gt.False(t, snap.HasStore())
	gt.A(t, gw.created).Length(0)
}

func TestUploadCredentialRejected(t *testing.T) {
	testCases := []string{
		"API key not valid. Please pass a valid API key.",
		"api KEY NOT VALID",
		"Requested entity was not found.",
	}

	for _, msg := range testCases {
		t.Run(msg, func(t *testing.T) {
			ctx := context.Background()
			gw := newMockGateway()
			gw.createErr = errors.New(msg)
			s := newSession(t, gw, repository.NewMemory(), nil)
			s.Boot(ctx)

			err := s.UploadAndStart(ctx, docs("a.pdf"), true)
			gt.Error(t, err)
			gt.True(t, goerr.HasTag(err, chat.ErrTagCredential))
			gt.False(t, goerr.HasTag(err, chat.ErrTagUpload))

			snap := s.Snapshot()
			gt.Equal(t, snap.Status, model.StatusWelcome)
			gt.S(t, snap.CredentialError).Contains("invalid")
			gt.Equal(t, snap.ErrorMessage, "")
			gt.True(t, snap.Progress == nil)
		})
	}
}

func TestUploadFailureMovesToError(t *testing.T) {
	ctx := context.Background()
	gw := newMockGateway()
	gw.uploadErr["b.pdf"] = errors.New("unsupported file type")
	s := newSession(t, gw, repository.NewMemory(), nil)
	s.Boot(ctx)

	err := s.UploadAndStart(ctx, docs("a.pdf", "b.pdf", "c.pdf"), true)
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, chat.ErrTagUpload))

	snap := s.Snapshot()
	gt.Equal(t, snap.Status, model.StatusError)
	gt.S(t, snap.ErrorMessage).Contains("Failed to process documents")
	gt.S(t, snap.ErrorMessage).Contains("unsupported file type")
	gt.True(t, snap.Progress == nil)

	// No rollback: the first document stays, the third is never attempted
	gt.Equal(t, gw.uploaded, []string{"a.pdf"})
	gt.True(t, snap.HasStore())

	// Upload is not allowed until the error is dismissed
	err = s.UploadAndStart(ctx, docs("d.pdf"), true)
	gt.True(t, goerr.HasTag(err, chat.ErrTagInvalidState))

	s.DismissError()
	snap = s.Snapshot()
	gt.Equal(t, snap.Status, model.StatusWelcome)
	gt.Equal(t, snap.ErrorMessage, "")
}

func TestUploadWithoutSuggestions(t *testing.T) {
	ctx := context.Background()
	gw := newMockGateway()
	gw.suggestions = nil
	s := newSession(t, gw, repository.NewMemory(), nil)
	s.Boot(ctx)

	gt.NoError(t, s.UploadAndStart(ctx, docs("a.pdf"), true))
	snap := s.Snapshot()
	gt.Equal(t, snap.Status, model.StatusChatting)
	gt.A(t, snap.Suggestions).Length(0)
	gt.Equal(t, gw.uploaded, []string{"a.pdf"})
}

func TestUploadBeforeBoot(t *testing.T) {
	s := newSession(t, newMockGateway(), repository.NewMemory(), nil)
	err := s.UploadAndStart(context.Background(), docs("a.pdf"), true)
	gt.True(t, goerr.HasTag(err, chat.ErrTagInvalidState))
}

func TestReadyDelay(t *testing.T) {
	ctx := context.Background()
	s, err := chat.New(chat.NewInput{Gateway: newMockGateway()}, chat.WithReadyDelay(50*time.Millisecond))
	gt.NoError(t, err)
	s.Boot(ctx)

	started := time.Now()
	gt.NoError(t, s.UploadAndStart(ctx, docs("a.pdf"), true))
	gt.True(t, time.Since(started) >= 50*time.Millisecond)
}

func TestEndSession(t *testing.T) {
	for _, deleteErr := range []error{nil, errors.New("permission denied")} {
		ctx := context.Background()
		gw := newMockGateway()
		gw.deleteErr = deleteErr
		repo := repository.NewMemory()
		s := newSession(t, gw, repo, nil)
		s.Boot(ctx)

		gt.NoError(t, s.UploadAndStart(ctx, docs("a.pdf"), true))
		gt.NoError(t, s.Send(ctx, "hello"))
		storeID := s.Snapshot().ActiveStoreID

		gt.NoError(t, s.EndSession(ctx))

		snap := s.Snapshot()
		gt.Equal(t, snap.Status, model.StatusWelcome)
		gt.False(t, snap.HasStore())
		gt.A(t, snap.Transcript).Length(0)
		gt.A(t, snap.Suggestions).Length(0)
		gt.Equal(t, snap.DocumentLabel, "")
		gt.Equal(t, gw.deleted, []model.StoreID{storeID})

		// Persisted store is cleared so that a restart does not resume it
		cfg, err := repo.GetConfig(ctx)
		gt.NoError(t, err)
		gt.Equal(t, cfg.RAGStoreName, model.StoreID(""))
	}
}

func TestEndSessionWithBrokenPersistence(t *testing.T) {
	ctx := context.Background()
	gw := newMockGateway()
	s := newSession(t, gw, brokenRepository{}, nil)
	s.Boot(ctx)
	gt.NoError(t, s.UploadAndStart(ctx, docs("a.pdf"), true))

	gt.NoError(t, s.EndSession(ctx))
	gt.Equal(t, s.Snapshot().Status, model.StatusWelcome)
	gt.False(t, s.Snapshot().HasStore())
}

func TestEndSessionWithoutStore(t *testing.T) {
	ctx := context.Background()
	gw := newMockGateway()
	s := newSession(t, gw, repository.NewMemory(), nil)
	s.Boot(ctx)

	gt.NoError(t, s.EndSession(ctx))
	gt.Equal(t, s.Snapshot().Status, model.StatusWelcome)
	gt.A(t, gw.deleted).Length(0)
}

func TestResumeSession(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	gt.NoError(t, repo.PutConfig(ctx, &model.AppConfig{RAGStoreName: "fileSearchStores/X"}))
	s := newSession(t, newMockGateway(), repo, nil)
	s.Boot(ctx)

	gt.NoError(t, s.Send(ctx, "first question"))
	gt.A(t, s.Snapshot().Transcript).Length(2)

	gt.NoError(t, s.ResumeSession())
	snap := s.Snapshot()
	gt.Equal(t, snap.Status, model.StatusChatting)
	gt.Equal(t, snap.ActiveStoreID, model.StoreID("fileSearchStores/X"))
	gt.Equal(t, snap.DocumentLabel, "Existing Session (X)")
	gt.A(t, snap.Transcript).Length(0)
	gt.A(t, snap.Suggestions).Length(0)
}

func TestResumeSessionWithoutStore(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, newMockGateway(), repository.NewMemory(), nil)
	s.Boot(ctx)

	err := s.ResumeSession()
	gt.True(t, goerr.HasTag(err, chat.ErrTagInvalidState))
	gt.Equal(t, s.Snapshot().Status, model.StatusWelcome)
}
