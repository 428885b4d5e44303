package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/m-mizutani/docchat/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// EnsureStore returns the active store, creating and persisting a new one if
// the session has none. A persistence failure keeps the store in memory only.
func (s *Session) EnsureStore(ctx context.Context) (model.StoreID, error) {
	s.mu.Lock()
	active := s.state.ActiveStoreID
	s.mu.Unlock()
	if active != "" {
		return active, nil
	}

	displayName := fmt.Sprintf("chat-session-%d", s.now().UnixMilli())
	storeID, err := s.gateway.CreateStore(ctx, displayName)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create RAG store", goerr.V("display_name", displayName))
	}

	s.update(func(st *model.Session) {
		st.ActiveStoreID = storeID
	})

	logger := s.logger(ctx)
	logger.Info("created RAG store", "store", storeID, "display_name", displayName)
	if err := s.saveStoreID(ctx, storeID); err != nil {
		logger.Error("failed to persist RAG store name", "error", err)
	}

	return storeID, nil
}

func (s *Session) setProgress(current, total int, message, fileName string) {
	s.update(func(st *model.Session) {
		st.Progress = &model.UploadProgress{
			Current:  current,
			Total:    total,
			Message:  message,
			FileName: fileName,
		}
	})
}

// UploadAndStart ingests docs one by one into the active store (creating it if
// needed), fetches suggested questions and enters the chat. With resetChat the
// transcript is cleared and the document label replaced; otherwise the
// documents are added to the running conversation.
//
// Documents uploaded before a failure stay in the remote store.
func (s *Session) UploadAndStart(ctx context.Context, docs []*model.Document, resetChat bool) error {
	if len(docs) == 0 {
		return nil
	}
	logger := s.logger(ctx)

	total := len(docs) + 2
	isNew, err := s.beginUpload(total)
	if err != nil {
		return err
	}
	logger.Info("start uploading documents", "count", len(docs), "new_store", isNew)

	storeID, err := s.EnsureStore(ctx)
	if err != nil {
		return s.failUpload(ctx, err)
	}

	// Step 1 is reported together with the first document
	for i, doc := range docs {
		s.setProgress(i+1, total, model.ProgressGeneratingEmbeddings, fmt.Sprintf("(%d/%d) %s", i+1, len(docs), doc.Name))

		started := time.Now()
		if err := s.gateway.UploadFile(ctx, storeID, doc); err != nil {
			return s.failUpload(ctx, goerr.Wrap(err, "failed to upload document", goerr.V("name", doc.Name), goerr.V("path", doc.Path)))
		}
		logger.Debug("uploaded document", "name", doc.Name, "elapsed", time.Since(started))
	}

	s.setProgress(len(docs)+1, total, model.ProgressGeneratingSuggestion, "")
	questions := s.gateway.GenerateSuggestedQuestions(ctx, storeID)
	if questions == nil {
		questions = []string{}
	}
	s.update(func(st *model.Session) {
		st.Suggestions = questions
	})

	s.setProgress(total, total, model.ProgressReady, "")
	time.Sleep(s.readyDelay)

	s.update(func(st *model.Session) {
		if resetChat {
			st.DocumentLabel = model.DescribeDocuments(docs)
			s.resetTranscript(st)
		}
		st.Progress = nil
		st.Status = model.StatusChatting
	})

	logger.Info("documents are ready", "store", storeID, "count", len(docs), "suggestions", len(questions))
	return nil
}

// beginUpload checks the status and the credential and enters StatusUploading
// atomically, so that only one upload runs at a time
func (s *Session) beginUpload(total int) (bool, error) {
	s.mu.Lock()
	st := &s.state
	if st.Status == model.StatusUploading || !st.Status.CanTransitionTo(model.StatusUploading) {
		status := st.Status
		s.mu.Unlock()
		return false, goerr.New("cannot upload documents now", goerr.T(ErrTagInvalidState), goerr.V("status", status.String()))
	}

	st.CredentialError = ""
	if err := s.gateway.Ready(); err != nil {
		st.CredentialError = credentialMissingMessage
		st.Status = model.StatusWelcome
		snapshot := st.Copy()
		s.mu.Unlock()
		s.notify(snapshot)
		return false, goerr.Wrap(err, "gateway is not ready", goerr.T(ErrTagCredential))
	}

	isNew := !st.HasStore()
	message := model.ProgressUpdatingIndex
	if isNew {
		message = model.ProgressCreatingIndex
	}
	st.Status = model.StatusUploading
	st.ErrorMessage = ""
	st.Progress = &model.UploadProgress{Current: 0, Total: total, Message: message}
	snapshot := st.Copy()
	s.mu.Unlock()

	s.notify(snapshot)
	return isNew, nil
}

// failUpload classifies an ingestion failure and moves the session accordingly
func (s *Session) failUpload(ctx context.Context, err error) error {
	logger := s.logger(ctx)

	if isCredentialError(err) {
		logger.Warn("credential rejected by gateway", "error", err)
		s.update(func(st *model.Session) {
			st.CredentialError = credentialInvalidMessage
			st.Progress = nil
			st.Status = model.StatusWelcome
		})
		return goerr.Wrap(err, "invalid credential", goerr.T(ErrTagCredential))
	}

	logger.Error("failed to process documents", "error", err)
	s.update(func(st *model.Session) {
		st.ErrorMessage = "Failed to process documents: " + err.Error()
		st.Progress = nil
		st.Status = model.StatusError
	})
	return goerr.Wrap(err, "failed to process documents", goerr.T(ErrTagUpload))
}
