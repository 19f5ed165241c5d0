package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	chatrepo "github.com/gitscout/gitscout-backend/internal/data/repos/chat"
	types "github.com/gitscout/gitscout-backend/internal/domain"
	"github.com/gitscout/gitscout-backend/internal/domain/chat"
	pkgerrors "github.com/gitscout/gitscout-backend/internal/pkg/errors"
	"github.com/gitscout/gitscout-backend/internal/platform/dbctx"
	"github.com/gitscout/gitscout-backend/internal/platform/kmutex"
	"github.com/gitscout/gitscout-backend/internal/platform/logger"
)

const declineMessage = "I can help with filtering the candidates in this search, drafting outreach emails, or comparing candidates. What would you like to do?"

const classifierFailureMessage = "I couldn't process that just now. Please try again."

type TurnInput struct {
	ConversationID *uuid.UUID
	SessionID      uuid.UUID
	Message        string
	IdempotencyKey *string
}

type TurnResult struct {
	ConversationID     uuid.UUID            `json:"conversation_id"`
	Messages           []*types.ChatMessage `json:"messages"`
	State              string               `json:"state"`
	RequiresUserAction bool                 `json:"requires_user_action"`
}

type ConfirmInput struct {
	ConversationID  uuid.UUID
	MessageID       uuid.UUID
	Confirmed       bool
	ModifiedFilters *types.CandidateFilters
}

type ConfirmResult struct {
	Status  string                  `json:"status"`
	Filters *types.CandidateFilters `json:"filters,omitempty"`
	Message string                  `json:"message"`
}

type AnswerInput struct {
	ConversationID uuid.UUID
	MessageID      uuid.UUID
	Answers        map[string]string
}

type AnswerResult struct {
	Status     string    `json:"status"`
	SessionID  uuid.UUID `json:"session_id"`
	TotalFound int       `json:"total_found"`
	Message    string    `json:"message"`
}

// AgentService is the conversation state machine. Every mutating
// operation takes the per-conversation lock, so concurrent turns on
// one conversation never interleave.
type AgentService interface {
	ProcessMessage(dbc dbctx.Context, userID uuid.UUID, in TurnInput) (*TurnResult, error)
	ConfirmFilter(dbc dbctx.Context, userID uuid.UUID, in ConfirmInput) (*ConfirmResult, error)
	AnswerClarifications(dbc dbctx.Context, userID uuid.UUID, in AnswerInput) (*AnswerResult, error)
}

type agentService struct {
	db              *gorm.DB
	log             *logger.Logger
	convs           chatrepo.ConversationRepo
	msgs            chatrepo.MessageRepo
	convSvc         ConversationService
	sessions        SessionService
	classifier      Classifier
	questions       QuestionGenerator
	locks           *kmutex.KeyedMutex
	classifyTimeout time.Duration
	maxTokens       int
}

func NewAgentService(
	db *gorm.DB,
	baseLog *logger.Logger,
	convs chatrepo.ConversationRepo,
	msgs chatrepo.MessageRepo,
	convSvc ConversationService,
	sessions SessionService,
	classifier Classifier,
	questions QuestionGenerator,
	classifyTimeout time.Duration,
	maxTokens int,
) AgentService {
	return &agentService{
		db:              db,
		log:             baseLog.With("service", "AgentService"),
		convs:           convs,
		msgs:            msgs,
		convSvc:         convSvc,
		sessions:        sessions,
		classifier:      classifier,
		questions:       questions,
		locks:           kmutex.New(),
		classifyTimeout: classifyTimeout,
		maxTokens:       maxTokens,
	}
}

func (s *agentService) ProcessMessage(dbc dbctx.Context, userID uuid.UUID, in TurnInput) (*TurnResult, error) {
	if in.SessionID == uuid.Nil {
		return nil, fmt.Errorf("%w: session_id is required", pkgerrors.ErrInvalidArgument)
	}
	if strings.TrimSpace(in.Message) == "" {
		return nil, fmt.Errorf("%w: message is required", pkgerrors.ErrInvalidArgument)
	}

	conv, err := s.loadConversation(dbc, userID, in.ConversationID, in.SessionID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(conv.ID)
	defer unlock()

	// Reload under the lock so the transition starts from current state.
	conv, err = s.convs.GetByID(dbc, conv.ID)
	if err != nil {
		return nil, err
	}

	// Client retries replay the original result instead of appending
	// a duplicate turn.
	if in.IdempotencyKey != nil && *in.IdempotencyKey != "" {
		prior, err := s.msgs.ListByIdempotencyKey(dbc, conv.ID, *in.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if len(prior) > 0 {
			return &TurnResult{
				ConversationID:     conv.ID,
				Messages:           prior,
				State:              conv.State,
				RequiresUserAction: requiresUserAction(prior),
			}, nil
		}
	}

	userMsg, err := chat.NewTextMessage(conv.ID, chat.RoleUser, in.Message)
	if err != nil {
		return nil, err
	}
	userMsg.IdempotencyKey = in.IdempotencyKey

	if conv.TotalTokensUsed+userMsg.TokensUsed > s.maxTokens {
		limitMsg, err := chat.NewTextMessage(conv.ID, chat.RoleAssistant,
			"This conversation has reached its length limit. Please start a new search to continue.")
		if err != nil {
			return nil, err
		}
		return s.finishTurn(dbc, conv, []*types.ChatMessage{userMsg, limitMsg}, in.IdempotencyKey, nil)
	}

	history, err := s.msgs.ListByConversation(dbc, conv.ID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(dbc.Ctx, s.classifyTimeout)
	defer cancel()

	currentFilters, err := decodeFilters(conv.CurrentFilters)
	if err != nil {
		return nil, err
	}
	result, cerr := s.classifier.Classify(ctx, ClassifyInput{
		History:        history,
		Utterance:      in.Message,
		CurrentFilters: &currentFilters,
		PreviousIntent: conv.Intent,
	})
	if cerr != nil {
		// The classifier is a black box; its failure must not move
		// the state machine.
		s.log.Warn("classifier failed", "conversation_id", conv.ID, "error", cerr)
		decline, derr := chat.NewTextMessage(conv.ID, chat.RoleAssistant, classifierFailureMessage)
		if derr != nil {
			return nil, derr
		}
		return s.finishTurn(dbc, conv, []*types.ChatMessage{userMsg, decline}, in.IdempotencyKey, nil)
	}

	switch result.Intent {
	case chat.IntentFilterCandidates:
		return s.handleFilterIntent(dbc, ctx, conv, userMsg, in, result)
	case chat.IntentDraftEmail:
		return s.handleEmailIntent(dbc, conv, userMsg, in)
	case chat.IntentCandidateInfo:
		return s.handleInfoIntent(dbc, conv, userMsg, in)
	case chat.IntentCompareCandidates:
		return s.handleCompareIntent(dbc, conv, userMsg, in)
	default:
		// Off-topic turns leave any pending negotiation untouched.
		decline, derr := chat.NewTextMessage(conv.ID, chat.RoleAssistant, declineMessage)
		if derr != nil {
			return nil, derr
		}
		return s.finishTurn(dbc, conv, []*types.ChatMessage{userMsg, decline}, in.IdempotencyKey, nil)
	}
}

type convUpdates struct {
	state            *string
	intent           *string
	clarifications   *int
	pendingMessageID *uuid.UUID
	clearPending     bool
}

// finishTurn appends the turn's messages, accounts their tokens and
// persists any conversation field changes in one transaction.
func (s *agentService) finishTurn(
	dbc dbctx.Context,
	conv *types.Conversation,
	msgs []*types.ChatMessage,
	idemKey *string,
	updates *convUpdates,
) (*TurnResult, error) {
	if idemKey != nil && *idemKey != "" {
		for _, m := range msgs {
			m.IdempotencyKey = idemKey
		}
	}

	tokens := 0
	for _, m := range msgs {
		tokens += m.TokensUsed
	}

	fields := map[string]interface{}{
		"total_tokens_used": conv.TotalTokensUsed + tokens,
	}
	state := conv.State
	if updates != nil {
		if updates.state != nil {
			fields["state"] = *updates.state
			state = *updates.state
		}
		if updates.intent != nil {
			fields["intent"] = *updates.intent
		}
		if updates.clarifications != nil {
			fields["clarification_count"] = *updates.clarifications
		}
		if updates.pendingMessageID != nil {
			fields["pending_message_id"] = *updates.pendingMessageID
		} else if updates.clearPending {
			fields["pending_message_id"] = nil
		}
	}

	txErr := runInTx(dbc, s.db, func(txc dbctx.Context) error {
		if _, err := s.msgs.Append(txc, msgs); err != nil {
			return err
		}
		return s.convs.UpdateFields(txc, conv.ID, fields)
	})
	if txErr != nil {
		return nil, txErr
	}

	return &TurnResult{
		ConversationID:     conv.ID,
		Messages:           msgs,
		State:              state,
		RequiresUserAction: requiresUserAction(msgs),
	}, nil
}

func (s *agentService) handleFilterIntent(
	dbc dbctx.Context,
	ctx context.Context,
	conv *types.Conversation,
	userMsg *types.ChatMessage,
	in TurnInput,
	result ClassifyResult,
) (*TurnResult, error) {
	intent := chat.IntentFilterCandidates
	clarCount := conv.ClarificationCount
	// A fresh topic gets a fresh question budget.
	if conv.State == chat.StateIdle || conv.State == chat.StateCompleted {
		clarCount = 0
	}

	if len(result.Questions) > 0 {
		remaining := chat.MaxClarifications - clarCount
		if remaining > 0 {
			qs := result.Questions
			if s.questions != nil {
				if gen, err := s.questions.Generate(ctx, in.Message, result.Resolved); err == nil && len(gen) > 0 {
					qs = gen
				} else if err != nil {
					s.log.Warn("question generator failed, using rule questions", "error", err)
				}
			}
			if len(qs) > remaining {
				qs = qs[:remaining]
			}
			mc := &types.MultiClarification{Questions: qs, Answers: map[string]string{}}
			msg, err := chat.NewMessage(conv.ID, chat.RoleAssistant, chat.TypeMultiClarification, types.Content{MultiClarification: mc})
			if err != nil {
				return nil, err
			}
			state := chat.StateGatheringInfo
			count := clarCount + len(qs)
			return s.finishTurn(dbc, conv, []*types.ChatMessage{userMsg, msg}, in.IdempotencyKey, &convUpdates{
				state:            &state,
				intent:           &intent,
				clarifications:   &count,
				pendingMessageID: &msg.ID,
			})
		}
		// Question budget exhausted: propose with what we have.
	}

	proposal := s.buildProposal(dbc, conv.SessionID, result)
	msg, err := chat.NewMessage(conv.ID, chat.RoleAssistant, chat.TypeFilterProposal, types.Content{FilterProposal: proposal})
	if err != nil {
		return nil, err
	}
	state := chat.StateAwaitingConfirmation
	return s.finishTurn(dbc, conv, []*types.ChatMessage{userMsg, msg}, in.IdempotencyKey, &convUpdates{
		state:            &state,
		intent:           &intent,
		clarifications:   &clarCount,
		pendingMessageID: &msg.ID,
	})
}

func (s *agentService) buildProposal(dbc dbctx.Context, sessionID uuid.UUID, result ClassifyResult) *types.FilterProposal {
	explanation := fmt.Sprintf("Proposed filters: %s.", DescribeFilters(result.Resolved))
	for _, u := range result.Unsupported {
		explanation += fmt.Sprintf(" %q was requested but cannot be filtered on directly.", u)
	}

	proposal := &types.FilterProposal{
		CandidateFilters: result.Resolved,
		Explanation:      explanation,
	}
	// The estimate is advisory; a store hiccup should not block the
	// proposal itself.
	if est, err := s.sessions.EstimateCount(dbc, sessionID, result.Resolved); err == nil {
		proposal.EstimatedCount = &est
	} else {
		s.log.Warn("estimate pass failed", "session_id", sessionID, "error", err)
	}
	return proposal
}

func (s *agentService) handleEmailIntent(dbc dbctx.Context, conv *types.Conversation, userMsg *types.ChatMessage, in TurnInput) (*TurnResult, error) {
	intent := chat.IntentDraftEmail
	candidates, err := s.sessions.ListCandidates(dbc, conv.SessionID)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		msg, merr := chat.NewTextMessage(conv.ID, chat.RoleAssistant, "There are no candidates in this search session yet.")
		if merr != nil {
			return nil, merr
		}
		return s.finishTurn(dbc, conv, []*types.ChatMessage{userMsg, msg}, in.IdempotencyKey, &convUpdates{intent: &intent})
	}

	session, err := s.sessions.GetSession(dbc, conv.SessionID)
	if err != nil {
		return nil, err
	}
	target := pickCandidate(candidates, in.Message)
	draft := BuildEmailDraft(session.JobDescription, target)

	msg, err := chat.NewMessage(conv.ID, chat.RoleAssistant, chat.TypeEmailDraft, types.Content{EmailDraft: &draft})
	if err != nil {
		return nil, err
	}
	// Email drafting is a side flow; filtering state stays put.
	return s.finishTurn(dbc, conv, []*types.ChatMessage{userMsg, msg}, in.IdempotencyKey, &convUpdates{intent: &intent})
}

func (s *agentService) handleInfoIntent(dbc dbctx.Context, conv *types.Conversation, userMsg *types.ChatMessage, in TurnInput) (*TurnResult, error) {
	intent := chat.IntentCandidateInfo
	candidates, err := s.sessions.ListCandidates(dbc, conv.SessionID)
	if err != nil {
		return nil, err
	}

	var text string
	if len(candidates) == 0 {
		text = "There are no candidates in this search session yet."
	} else {
		text = describeCandidate(pickCandidate(candidates, in.Message))
	}
	msg, err := chat.NewTextMessage(conv.ID, chat.RoleAssistant, text)
	if err != nil {
		return nil, err
	}
	return s.finishTurn(dbc, conv, []*types.ChatMessage{userMsg, msg}, in.IdempotencyKey, &convUpdates{intent: &intent})
}

func (s *agentService) handleCompareIntent(dbc dbctx.Context, conv *types.Conversation, userMsg *types.ChatMessage, in TurnInput) (*TurnResult, error) {
	intent := chat.IntentCompareCandidates
	candidates, err := s.sessions.ListCandidates(dbc, conv.SessionID)
	if err != nil {
		return nil, err
	}

	var text string
	if len(candidates) < 2 {
		text = "I need at least two candidates in the session to compare."
	} else {
		mentioned := mentionedCandidates(candidates, in.Message)
		if len(mentioned) < 2 {
			mentioned = candidates[:2]
		}
		a, b := mentioned[0], mentioned[1]
		text = fmt.Sprintf("%s vs %s:\n%s\n%s", displayName(a), displayName(b), describeCandidate(a), describeCandidate(b))
	}
	msg, err := chat.NewTextMessage(conv.ID, chat.RoleAssistant, text)
	if err != nil {
		return nil, err
	}
	return s.finishTurn(dbc, conv, []*types.ChatMessage{userMsg, msg}, in.IdempotencyKey, &convUpdates{intent: &intent})
}

func (s *agentService) ConfirmFilter(dbc dbctx.Context, userID uuid.UUID, in ConfirmInput) (*ConfirmResult, error) {
	if in.ConversationID == uuid.Nil || in.MessageID == uuid.Nil {
		return nil, fmt.Errorf("%w: conversation_id and message_id are required", pkgerrors.ErrInvalidArgument)
	}

	conv, err := s.authorizedConversation(dbc, userID, in.ConversationID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(conv.ID)
	defer unlock()

	conv, err = s.convs.GetByID(dbc, conv.ID)
	if err != nil {
		return nil, err
	}

	// Re-confirming an already-applied proposal replays the original
	// outcome without touching the session again.
	if in.Confirmed && conv.AppliedMessageID != nil && *conv.AppliedMessageID == in.MessageID {
		filters, err := decodeFilters(conv.CurrentFilters)
		if err != nil {
			return nil, err
		}
		session, err := s.sessions.GetSession(dbc, conv.SessionID)
		if err != nil {
			return nil, err
		}
		return &ConfirmResult{
			Status:  "confirmed",
			Filters: &filters,
			Message: appliedMessage(filters, session.TotalFound),
		}, nil
	}

	if conv.PendingMessageID == nil || *conv.PendingMessageID != in.MessageID {
		return nil, fmt.Errorf("message %s is not the pending proposal: %w", in.MessageID, pkgerrors.ErrStaleReference)
	}

	msg, err := s.msgs.GetByID(dbc, conv.ID, in.MessageID)
	if err != nil {
		return nil, err
	}
	if msg.Type != chat.TypeFilterProposal {
		return nil, fmt.Errorf("message %s is not a filter proposal: %w", in.MessageID, pkgerrors.ErrStaleReference)
	}

	if !in.Confirmed {
		ackText := "No problem, I won't apply those filters. Tell me what you'd like to change."
		ack, aerr := chat.NewTextMessage(conv.ID, chat.RoleAssistant, ackText)
		if aerr != nil {
			return nil, aerr
		}
		state := chat.StateGatheringInfo
		if _, err := s.finishTurn(dbc, conv, []*types.ChatMessage{ack}, nil, &convUpdates{
			state:        &state,
			clearPending: true,
		}); err != nil {
			return nil, err
		}
		return &ConfirmResult{Status: "rejected", Message: ackText}, nil
	}

	content, err := msg.DecodeContent()
	if err != nil {
		return nil, err
	}
	if content.FilterProposal == nil {
		return nil, fmt.Errorf("%w: proposal content missing", pkgerrors.ErrCompile)
	}

	filters := content.FilterProposal.CandidateFilters
	if in.ModifiedFilters != nil {
		filters = MergeFilters(filters, *in.ModifiedFilters)
	}

	if err := s.convs.UpdateFields(dbc, conv.ID, map[string]interface{}{"state": chat.StateApplyingFilters}); err != nil {
		return nil, err
	}

	applied, err := s.sessions.ApplyFilters(dbc, conv.SessionID, filters)
	if err != nil {
		// The proposal stays pending; the user can retry or reject.
		if uerr := s.convs.UpdateFields(dbc, conv.ID, map[string]interface{}{"state": chat.StateGatheringInfo}); uerr != nil {
			s.log.Error("failed to restore state after apply failure", "conversation_id", conv.ID, "error", uerr)
		}
		return nil, err
	}

	raw, err := json.Marshal(filters)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrCompile, err)
	}

	text := appliedMessage(filters, applied.TotalFound)
	confirmMsg, err := chat.NewTextMessage(conv.ID, chat.RoleAssistant, text)
	if err != nil {
		return nil, err
	}

	state := chat.StateCompleted
	txErr := runInTx(dbc, s.db, func(txc dbctx.Context) error {
		if _, err := s.msgs.Append(txc, []*types.ChatMessage{confirmMsg}); err != nil {
			return err
		}
		return s.convs.UpdateFields(txc, conv.ID, map[string]interface{}{
			"state":              state,
			"current_filters":    datatypes.JSON(raw),
			"pending_message_id": nil,
			"applied_message_id": in.MessageID,
			"total_tokens_used":  conv.TotalTokensUsed + confirmMsg.TokensUsed,
		})
	})
	if txErr != nil {
		return nil, txErr
	}

	s.log.Info("filter proposal confirmed", "conversation_id", conv.ID, "total_found", applied.TotalFound)
	return &ConfirmResult{Status: "confirmed", Filters: &filters, Message: text}, nil
}

func (s *agentService) AnswerClarifications(dbc dbctx.Context, userID uuid.UUID, in AnswerInput) (*AnswerResult, error) {
	if in.ConversationID == uuid.Nil || in.MessageID == uuid.Nil {
		return nil, fmt.Errorf("%w: conversation_id and message_id are required", pkgerrors.ErrInvalidArgument)
	}
	if len(in.Answers) == 0 {
		return nil, fmt.Errorf("%w: answers are required", pkgerrors.ErrInvalidArgument)
	}

	conv, err := s.authorizedConversation(dbc, userID, in.ConversationID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(conv.ID)
	defer unlock()

	conv, err = s.convs.GetByID(dbc, conv.ID)
	if err != nil {
		return nil, err
	}

	if conv.PendingMessageID == nil || *conv.PendingMessageID != in.MessageID {
		return nil, fmt.Errorf("message %s is not the pending clarification: %w", in.MessageID, pkgerrors.ErrStaleReference)
	}

	msg, err := s.msgs.GetByID(dbc, conv.ID, in.MessageID)
	if err != nil {
		return nil, err
	}
	if msg.Type != chat.TypeMultiClarification {
		return nil, fmt.Errorf("message %s is not a clarification: %w", in.MessageID, pkgerrors.ErrStaleReference)
	}

	content, err := msg.DecodeContent()
	if err != nil {
		return nil, err
	}
	mc := content.MultiClarification
	mc.MergeAnswers(in.Answers)

	session, err := s.sessions.GetSession(dbc, conv.SessionID)
	if err != nil {
		return nil, err
	}

	// History stays append-only: the merged answer set is a new
	// snapshot message which becomes the pending item.
	snapshot, err := chat.NewMessage(conv.ID, chat.RoleAssistant, chat.TypeMultiClarification, types.Content{MultiClarification: mc})
	if err != nil {
		return nil, err
	}

	if !mc.AllAnswered {
		answered := 0
		for _, q := range mc.Questions {
			if strings.TrimSpace(mc.Answers[q.FieldName]) != "" {
				answered++
			}
		}
		text := fmt.Sprintf("Got it. %d of %d questions answered.", answered, len(mc.Questions))
		if _, err := s.finishTurn(dbc, conv, []*types.ChatMessage{snapshot}, nil, &convUpdates{
			pendingMessageID: &snapshot.ID,
		}); err != nil {
			return nil, err
		}
		return &AnswerResult{Status: "pending", SessionID: conv.SessionID, TotalFound: session.TotalFound, Message: text}, nil
	}

	// All answers in: fold them into a re-classification of the topic.
	ctx, cancel := context.WithTimeout(dbc.Ctx, s.classifyTimeout)
	defer cancel()

	currentFilters, err := decodeFilters(conv.CurrentFilters)
	if err != nil {
		return nil, err
	}
	history, err := s.msgs.ListByConversation(dbc, conv.ID)
	if err != nil {
		return nil, err
	}
	utterance := lastUserUtterance(history)
	if rw, ok := s.questions.(QueryRewriter); ok {
		if rewritten, rerr := rw.Rewrite(ctx, utterance, mc.Answers); rerr != nil {
			s.log.Warn("query rewrite failed, classifying original request", "conversation_id", conv.ID, "error", rerr)
		} else if strings.TrimSpace(rewritten) != "" {
			utterance = rewritten
		}
	}
	result, cerr := s.classifier.Classify(ctx, ClassifyInput{
		History:        history,
		Utterance:      utterance,
		CurrentFilters: &currentFilters,
		PreviousIntent: conv.Intent,
		Answers:        mc.Answers,
	})
	if cerr != nil {
		s.log.Warn("classifier failed on clarification answers", "conversation_id", conv.ID, "error", cerr)
		if _, err := s.finishTurn(dbc, conv, []*types.ChatMessage{snapshot}, nil, &convUpdates{
			pendingMessageID: &snapshot.ID,
		}); err != nil {
			return nil, err
		}
		return &AnswerResult{Status: "pending", SessionID: conv.SessionID, TotalFound: session.TotalFound, Message: classifierFailureMessage}, nil
	}

	remaining := chat.MaxClarifications - conv.ClarificationCount
	if len(result.Questions) > 0 && remaining > 0 {
		qs := result.Questions
		if len(qs) > remaining {
			qs = qs[:remaining]
		}
		next := &types.MultiClarification{Questions: qs, Answers: map[string]string{}}
		nextMsg, err := chat.NewMessage(conv.ID, chat.RoleAssistant, chat.TypeMultiClarification, types.Content{MultiClarification: next})
		if err != nil {
			return nil, err
		}
		state := chat.StateGatheringInfo
		count := conv.ClarificationCount + len(qs)
		if _, err := s.finishTurn(dbc, conv, []*types.ChatMessage{snapshot, nextMsg}, nil, &convUpdates{
			state:            &state,
			clarifications:   &count,
			pendingMessageID: &nextMsg.ID,
		}); err != nil {
			return nil, err
		}
		return &AnswerResult{Status: "pending", SessionID: conv.SessionID, TotalFound: session.TotalFound, Message: "Thanks. A few more questions to narrow this down."}, nil
	}

	proposal := s.buildProposal(dbc, conv.SessionID, result)
	proposalMsg, err := chat.NewMessage(conv.ID, chat.RoleAssistant, chat.TypeFilterProposal, types.Content{FilterProposal: proposal})
	if err != nil {
		return nil, err
	}
	state := chat.StateAwaitingConfirmation
	if _, err := s.finishTurn(dbc, conv, []*types.ChatMessage{snapshot, proposalMsg}, nil, &convUpdates{
		state:            &state,
		pendingMessageID: &proposalMsg.ID,
	}); err != nil {
		return nil, err
	}
	return &AnswerResult{
		Status:     "ready",
		SessionID:  conv.SessionID,
		TotalFound: session.TotalFound,
		Message:    "Thanks. I've prepared a filter proposal, please confirm to apply it.",
	}, nil
}

func (s *agentService) loadConversation(dbc dbctx.Context, userID uuid.UUID, conversationID *uuid.UUID, sessionID uuid.UUID) (*types.Conversation, error) {
	if conversationID != nil {
		conv, err := s.authorizedConversation(dbc, userID, *conversationID)
		if err != nil {
			return nil, err
		}
		if conv.SessionID != sessionID {
			return nil, fmt.Errorf("%w: conversation belongs to a different session", pkgerrors.ErrInvalidArgument)
		}
		return conv, nil
	}
	return s.convSvc.GetOrCreate(dbc, userID, sessionID)
}

func (s *agentService) authorizedConversation(dbc dbctx.Context, userID, conversationID uuid.UUID) (*types.Conversation, error) {
	conv, err := s.convs.GetByID(dbc, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.UserID != userID {
		return nil, fmt.Errorf("conversation owner mismatch: %w", pkgerrors.ErrUnauthorized)
	}
	return conv, nil
}

func appliedMessage(filters types.CandidateFilters, totalFound int) string {
	return fmt.Sprintf("Filters applied: %s. %d candidates match.", DescribeFilters(filters), totalFound)
}

func requiresUserAction(msgs []*types.ChatMessage) bool {
	for _, m := range msgs {
		if m.Role != chat.RoleAssistant {
			continue
		}
		switch m.Type {
		case chat.TypeFilterProposal, chat.TypeClarification, chat.TypeMultiClarification:
			return true
		}
	}
	return false
}

func lastUserUtterance(history []*types.ChatMessage) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role != chat.RoleUser {
			continue
		}
		if c, err := history[i].DecodeContent(); err == nil && c.Text != nil {
			return c.Text.Text
		}
	}
	return ""
}

func pickCandidate(candidates []*types.Candidate, utterance string) *types.Candidate {
	mentioned := mentionedCandidates(candidates, utterance)
	if len(mentioned) > 0 {
		return mentioned[0]
	}
	return candidates[0]
}

func mentionedCandidates(candidates []*types.Candidate, utterance string) []*types.Candidate {
	text := strings.ToLower(utterance)
	var out []*types.Candidate
	for _, c := range candidates {
		if c.Login != "" && strings.Contains(text, strings.ToLower(c.Login)) {
			out = append(out, c)
			continue
		}
		if c.Name != "" && strings.Contains(text, strings.ToLower(c.Name)) {
			out = append(out, c)
		}
	}
	return out
}

func displayName(c *types.Candidate) string {
	if c.Name != "" {
		return fmt.Sprintf("%s (%s)", c.Name, c.Login)
	}
	return c.Login
}

func describeCandidate(c *types.Candidate) string {
	parts := []string{displayName(c)}
	if c.Location != "" {
		parts = append(parts, "based in "+c.Location)
	}
	parts = append(parts, fmt.Sprintf("%d followers", c.Followers))
	if c.MatchReason != "" {
		parts = append(parts, c.MatchReason)
	}
	var repos []types.RepoSummary
	if len(c.TopRepos) > 0 {
		if err := json.Unmarshal(c.TopRepos, &repos); err == nil && len(repos) > 0 {
			parts = append(parts, fmt.Sprintf("top repo %s (%d stars)", repos[0].NameWithOwner, repos[0].Stars))
		}
	}
	return strings.Join(parts, ", ")
}

// runInTx runs fn inside one transaction unless the caller already
// supplied one.
func runInTx(dbc dbctx.Context, db *gorm.DB, fn func(txc dbctx.Context) error) error {
	if dbc.Tx != nil {
		return fn(dbc)
	}
	if db == nil {
		return fn(dbc)
	}
	return db.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		return fn(dbc.WithTx(tx))
	})
}
