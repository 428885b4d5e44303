package adapter

import (
	"context"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/docchat/pkg/model"
	"github.com/m-mizutani/docchat/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// FileSearch is the interface for the remote document index
type FileSearch interface {
	// Ready returns an error if no usable credential is configured
	Ready() error
	CreateStore(ctx context.Context, displayName string) (model.StoreID, error)
	// UploadFile returns after the store finished ingesting the document
	UploadFile(ctx context.Context, storeID model.StoreID, doc *model.Document) error
	Query(ctx context.Context, storeID model.StoreID, text string) (*model.QueryResult, error)
	// GenerateSuggestedQuestions returns an empty list on any failure
	GenerateSuggestedQuestions(ctx context.Context, storeID model.StoreID) []string
	DeleteStore(ctx context.Context, storeID model.StoreID) error
	ListStores(ctx context.Context) ([]*model.Store, error)
}

const (
	DefaultGenerativeModel = "gemini-2.5-flash"
	DefaultPollInterval    = 3 * time.Second
)

const queryInstruction = " DO NOT ASK THE USER TO READ THE MANUAL, pinpoint the relevant sections in the response itself."

type GeminiClient struct {
	apiKey          string
	generativeModel string
	pollInterval    time.Duration

	mu     sync.Mutex
	client *genai.Client
}

type GeminiOption func(*GeminiClient)

func WithGenerativeModel(model string) GeminiOption {
	return func(g *GeminiClient) {
		g.generativeModel = model
	}
}

// WithPollInterval sets the interval of polling upload operations
func WithPollInterval(d time.Duration) GeminiOption {
	return func(g *GeminiClient) {
		g.pollInterval = d
	}
}

// NewGemini creates a File Search gateway for the Gemini API. The genai client
// is created on first use so that a missing API key surfaces as an error of
// the operation instead of failing at startup.
func NewGemini(apiKey string, opts ...GeminiOption) *GeminiClient {
	g := &GeminiClient{
		apiKey:          apiKey,
		generativeModel: DefaultGenerativeModel,
		pollInterval:    DefaultPollInterval,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

func (g *GeminiClient) Ready() error {
	if g.apiKey == "" {
		return goerr.New("Gemini API key is not configured")
	}
	return nil
}

func (g *GeminiClient) getClient(ctx context.Context) (*genai.Client, error) {
	if err := g.Ready(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return g.client, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  g.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client")
	}
	g.client = client
	return client, nil
}

func (g *GeminiClient) CreateStore(ctx context.Context, displayName string) (model.StoreID, error) {
	client, err := g.getClient(ctx)
	if err != nil {
		return "", err
	}

	store, err := client.FileSearchStores.Create(ctx, &genai.CreateFileSearchStoreConfig{
		DisplayName: displayName,
	})
	if err != nil {
		return "", goerr.Wrap(err, "failed to create file search store", goerr.V("display_name", displayName))
	}
	if store.Name == "" {
		return "", goerr.New("failed to create file search store: name is missing", goerr.V("display_name", displayName))
	}

	return model.StoreID(store.Name), nil
}

func (g *GeminiClient) UploadFile(ctx context.Context, storeID model.StoreID, doc *model.Document) error {
	client, err := g.getClient(ctx)
	if err != nil {
		return err
	}

	f, err := os.Open(doc.Path)
	if err != nil {
		return goerr.Wrap(err, "failed to open document", goerr.V("path", doc.Path))
	}
	defer f.Close()

	cfg := &genai.UploadToFileSearchStoreConfig{
		DisplayName: doc.Name,
		MIMEType:    mimeTypeOf(doc),
	}
	for _, m := range doc.Metadata {
		cfg.CustomMetadata = append(cfg.CustomMetadata, &genai.CustomMetadata{
			Key:         m.Key,
			StringValue: m.Value,
		})
	}

	op, err := client.FileSearchStores.UploadToFileSearchStore(ctx, f, string(storeID), cfg)
	if err != nil {
		return goerr.Wrap(err, "failed to upload document", goerr.V("store", storeID), goerr.V("name", doc.Name))
	}

	// The first poll happens one interval after submission
	limiter := rate.NewLimiter(rate.Every(g.pollInterval), 1)
	limiter.Allow()

	for !op.Done {
		if err := limiter.Wait(ctx); err != nil {
			return goerr.Wrap(err, "interrupted while waiting for upload operation", goerr.V("operation", op.Name))
		}

		op, err = client.Operations.GetUploadToFileSearchStoreOperation(ctx, op, nil)
		if err != nil {
			return goerr.Wrap(err, "failed to get upload operation", goerr.V("name", doc.Name))
		}
	}

	if len(op.Error) > 0 {
		msg, _ := op.Error["message"].(string)
		return goerr.New("upload operation failed: "+msg, goerr.V("operation", op.Name), goerr.V("error", op.Error))
	}

	return nil
}

// mimeTypeOf falls back to the file extension since the upload requires a MIME type
func mimeTypeOf(doc *model.Document) string {
	if doc.MIMEType != "" {
		return doc.MIMEType
	}
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(doc.Name))); t != "" {
		return t
	}
	return "application/octet-stream"
}

func fileSearchConfig(storeID model.StoreID) *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Tools: []*genai.Tool{
			{
				FileSearch: &genai.FileSearch{
					FileSearchStoreNames: []string{string(storeID)},
				},
			},
		},
	}
}

func (g *GeminiClient) Query(ctx context.Context, storeID model.StoreID, text string) (*model.QueryResult, error) {
	client, err := g.getClient(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := client.Models.GenerateContent(ctx, g.generativeModel, genai.Text(text+queryInstruction), fileSearchConfig(storeID))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate content", goerr.V("store", storeID))
	}

	return toQueryResult(resp), nil
}

// toQueryResult keeps only citations backed by retrieved context, in the
// order returned by the API
func toQueryResult(resp *genai.GenerateContentResponse) *model.QueryResult {
	result := &model.QueryResult{
		Text:            resp.Text(),
		GroundingChunks: []model.GroundingChunk{},
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].GroundingMetadata == nil {
		return result
	}

	for _, chunk := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
		if chunk == nil || chunk.RetrievedContext == nil {
			continue
		}
		result.GroundingChunks = append(result.GroundingChunks, model.GroundingChunk{
			Text:         chunk.RetrievedContext.Text,
			Title:        chunk.RetrievedContext.Title,
			DocumentName: chunk.RetrievedContext.DocumentName,
		})
	}

	return result
}

func (g *GeminiClient) GenerateSuggestedQuestions(ctx context.Context, storeID model.StoreID) []string {
	client, err := g.getClient(ctx)
	if err != nil {
		return []string{}
	}

	logger := logging.From(ctx)

	prompt, err := renderSuggestionPrompt()
	if err != nil {
		logger.Warn("failed to render suggestion prompt", "error", err)
		return []string{}
	}

	resp, err := client.Models.GenerateContent(ctx, g.generativeModel, genai.Text(prompt), fileSearchConfig(storeID))
	if err != nil {
		logger.Warn("failed to generate suggested questions", "error", err, "store", storeID)
		return []string{}
	}

	questions := ParseSuggestedQuestions(resp.Text())
	if len(questions) == 0 {
		logger.Warn("unexpected format of suggested questions", "text", resp.Text())
	}
	return questions
}

func (g *GeminiClient) DeleteStore(ctx context.Context, storeID model.StoreID) error {
	client, err := g.getClient(ctx)
	if err != nil {
		return err
	}

	if err := client.FileSearchStores.Delete(ctx, string(storeID), &genai.DeleteFileSearchStoreConfig{
		Force: genai.Ptr(true),
	}); err != nil {
		return goerr.Wrap(err, "failed to delete file search store", goerr.V("store", storeID))
	}
	return nil
}

func (g *GeminiClient) ListStores(ctx context.Context) ([]*model.Store, error) {
	client, err := g.getClient(ctx)
	if err != nil {
		return nil, err
	}

	var stores []*model.Store
	for store, err := range client.FileSearchStores.All(ctx) {
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list file search stores")
		}
		stores = append(stores, &model.Store{
			ID:               model.StoreID(store.Name),
			DisplayName:      store.DisplayName,
			ActiveDocuments:  store.ActiveDocumentsCount,
			PendingDocuments: store.PendingDocumentsCount,
			FailedDocuments:  store.FailedDocumentsCount,
			SizeBytes:        store.SizeBytes,
			CreatedAt:        store.CreateTime,
		})
	}

	return stores, nil
}
