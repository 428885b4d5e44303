package chat

import (
	"context"
	"strings"

	"github.com/m-mizutani/docchat/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// Send dispatches one chat turn against the active store. The user message is
// appended before the gateway call; the answer, or an apology when the query
// fails, is appended afterwards. A failure is also returned so that the caller
// can report the cause. Send never queues: a call while another turn is in
// flight is rejected with ErrTagQueryInFlight.
func (s *Session) Send(ctx context.Context, utterance string) error {
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return nil
	}

	s.mu.Lock()
	if !s.state.HasStore() {
		s.mu.Unlock()
		return nil
	}
	if s.state.QueryLoading {
		s.mu.Unlock()
		return goerr.New("another query is in flight", goerr.T(ErrTagQueryInFlight))
	}

	storeID := s.state.ActiveStoreID
	epoch := s.epoch
	s.state.Transcript = append(s.state.Transcript, model.ChatMessage{
		Role: model.RoleUser,
		Text: utterance,
	})
	s.state.QueryLoading = true
	snapshot := s.state.Copy()
	s.mu.Unlock()
	s.notify(snapshot)

	var reply *model.ChatMessage
	defer func() {
		s.update(func(st *model.Session) {
			if reply != nil && s.epoch == epoch {
				st.Transcript = append(st.Transcript, *reply)
			}
			st.QueryLoading = false
		})
	}()

	result, err := s.gateway.Query(ctx, storeID, utterance)
	if err != nil {
		reply = &model.ChatMessage{Role: model.RoleModel, Text: apologyMessage}
		s.logger(ctx).Error("failed to get response", "error", err, "store", storeID)
		return goerr.Wrap(err, "failed to get response", goerr.T(ErrTagQuery), goerr.V("store", storeID))
	}

	reply = &model.ChatMessage{
		Role:            model.RoleModel,
		Text:            result.Text,
		GroundingChunks: result.GroundingChunks,
	}
	return nil
}
