// Package assistant is the single entry point for inbound worker messages:
// guard, classify, then answer from the cache, general chat or the safety pipeline.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/futig/safeguard-backend/internal/entity"
	"github.com/futig/safeguard-backend/internal/guard"
	"github.com/futig/safeguard-backend/internal/pkg/formatter"
	"github.com/futig/safeguard-backend/internal/pkg/logger"
	"github.com/futig/safeguard-backend/internal/pkg/textutil"
	"github.com/futig/safeguard-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

type Config struct {
	RateLimit            int
	RateWindow           time.Duration
	GeneralReplyMaxChars int
	FollowUpWindow       time.Duration
	FollowUpMaxChars     int
}

// AssistantUsecase answers inbound messages
type AssistantUsecase struct {
	guard         Guard
	classifier    Classifier
	retriever     Retriever
	pipeline      Pipeline
	chat          ChatConnector
	asr           ASRConnector
	formatter     formatter.Formatter
	conversations repository.ConversationRepository
	logger        *zap.Logger

	// sender id -> sources of the last safety exchange, expiring after FollowUpWindow
	recent *cache.Cache
	cfg    Config
	now    func() time.Time
}

// NewUsecase creates a new assistant use case
func NewUsecase(
	guard Guard,
	classifier Classifier,
	retriever Retriever,
	pipeline Pipeline,
	chat ChatConnector,
	asr ASRConnector,
	f formatter.Formatter,
	conversations repository.ConversationRepository,
	cfg Config,
	logger *zap.Logger,
) *AssistantUsecase {
	if cfg.GeneralReplyMaxChars <= 0 {
		cfg.GeneralReplyMaxChars = 200
	}
	if cfg.FollowUpWindow <= 0 {
		cfg.FollowUpWindow = 10 * time.Minute
	}
	if cfg.FollowUpMaxChars <= 0 {
		cfg.FollowUpMaxChars = 120
	}

	return &AssistantUsecase{
		guard:         guard,
		classifier:    classifier,
		retriever:     retriever,
		pipeline:      pipeline,
		chat:          chat,
		asr:           asr,
		formatter:     f,
		conversations: conversations,
		logger:        logger,
		recent:        cache.New(cfg.FollowUpWindow, 2*cfg.FollowUpWindow),
		cfg:           cfg,
		now:           time.Now,
	}
}

// HandleMessage always returns a reply. Failures on the way are logged and turned into
// a fixed notice; every handled message is written to the audit log.
func (uc *AssistantUsecase) HandleMessage(ctx context.Context, msg *entity.InboundMessage) (reply *entity.Reply) {
	ctx = logger.WithSender(logger.WithAction(ctx, "handle_message"), msg.SenderID)
	started := uc.now()

	event := &entity.ConversationEvent{
		ID:        uuid.NewString(),
		SenderID:  msg.SenderID,
		Input:     msg.Text,
		Kind:      msg.Kind,
		CreatedAt: started.UTC(),
	}
	var safetyLog *entity.SafetyLog

	defer func() {
		if r := recover(); r != nil {
			ctxzap.Error(ctx, "panic while handling message",
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			reply = &entity.Reply{Text: ErrorReply}
			event.Outcome = entity.OutcomeFailed
			safetyLog = nil
		}

		event.Output = reply.Text
		event.ImageIncluded = reply.ImageURL != ""
		uc.record(ctx, event, safetyLog)

		ctxzap.Info(ctx, "message handled",
			zap.String("route", string(event.Route)),
			zap.String("outcome", string(event.Outcome)),
			zap.Int("reply_length", utf8.RuneCountInString(reply.Text)),
			zap.Duration("took", uc.now().Sub(started)),
		)
	}()

	text := msg.Text
	if msg.Kind == entity.MessageKindVoice && strings.TrimSpace(text) == "" {
		transcript, err := uc.transcribe(ctx, msg)
		if err != nil {
			ctxzap.Warn(ctx, "voice message transcription failed", zap.Error(err))
			event.Outcome = entity.OutcomeTranscriptionFailed
			return &entity.Reply{Text: VoiceFailedReply}
		}
		text = transcript
		event.Input = transcript
	}
	ctxzap.Debug(ctx, "inbound message", zap.String("text", text))

	if guard.Sanitize(text) == "" {
		event.Outcome = entity.OutcomeEmpty
		return &entity.Reply{Text: EmptyMessageReply}
	}

	clean, err := uc.guard.Check(ctx, msg.SenderID, text)
	if err != nil {
		notice, outcome := uc.guardNotice(err)
		event.Outcome = outcome
		return &entity.Reply{Text: notice}
	}
	event.Input = clean

	cls := uc.classifier.Classify(clean)
	if cls.Route == entity.RouteGeneral && uc.isFollowUp(msg.SenderID, clean) {
		ctxzap.Info(ctx, "follow-up question routed to safety")
		cls.Route = entity.RouteSafety
	}
	event.Route = cls.Route
	ctx = logger.AddFields(ctx, zap.String("route", string(cls.Route)), zap.Bool("image_request", cls.ImageRequest))

	switch cls.Route {
	case entity.RouteCached:
		event.Outcome = entity.OutcomeAnswered
		return &entity.Reply{Text: uc.cachedReply(cls.CachedKey)}

	case entity.RouteGeneral:
		event.Outcome = entity.OutcomeAnswered
		return &entity.Reply{Text: uc.generalReply(ctx, clean)}

	default:
		result, err := uc.answerSafety(ctx, msg.SenderID, clean, cls.ImageRequest)
		if err != nil {
			ctxzap.Error(ctx, "safety answer failed", zap.Error(err))
			event.Outcome = entity.OutcomeFailed
			return &entity.Reply{Text: ErrorReply}
		}

		event.Sources = result.Sources
		event.Outcome = entity.OutcomeNotInDocuments
		if result.Grounded {
			event.Outcome = entity.OutcomeAnswered
		}
		safetyLog = &entity.SafetyLog{
			ID:            uuid.NewString(),
			EventID:       event.ID,
			SenderID:      msg.SenderID,
			Query:         clean,
			Sources:       result.Sources,
			Grounded:      result.Grounded,
			Complexity:    result.Complexity.Level,
			ImageIncluded: result.ImageURL != "",
			CreatedAt:     event.CreatedAt,
		}
		return &entity.Reply{Text: result.Text, ImageURL: result.ImageURL}
	}
}

func (uc *AssistantUsecase) transcribe(ctx context.Context, msg *entity.InboundMessage) (string, error) {
	if len(msg.Audio) == 0 {
		return "", fmt.Errorf("%w: no audio attached", entity.ErrTranscriptionFailed)
	}

	filename := msg.AudioFilename
	if filename == "" {
		filename = "voice.wav"
	}

	transcript, err := uc.asr.TranscribeBytes(ctx, msg.Audio, filename)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(transcript) == "" {
		return "", fmt.Errorf("%w: empty transcript", entity.ErrTranscriptionFailed)
	}

	ctxzap.Info(ctx, "voice message transcribed", zap.Int("transcript_length", utf8.RuneCountInString(transcript)))
	return transcript, nil
}

func (uc *AssistantUsecase) guardNotice(err error) (string, entity.Outcome) {
	var rateErr *entity.RateLimitError
	var lengthErr *entity.MessageTooLongError

	switch {
	case errors.As(err, &rateErr):
		return rateLimitedReply(uc.cfg.RateLimit, uc.cfg.RateWindow, rateErr.RetryAfter), entity.OutcomeRateLimited
	case errors.As(err, &lengthErr):
		return tooLongReply(lengthErr.Length, lengthErr.Max), entity.OutcomeTooLong
	case errors.Is(err, entity.ErrSuspiciousInput):
		return SuspiciousReply, entity.OutcomeSuspicious
	default:
		return ErrorReply, entity.OutcomeFailed
	}
}

func (uc *AssistantUsecase) cachedReply(key string) string {
	if text, ok := uc.classifier.CachedReply(key); ok {
		return text
	}
	return GeneralFallback
}

// generalReply is a short model reply with markup removed, or a fixed line if the model fails.
func (uc *AssistantUsecase) generalReply(ctx context.Context, text string) string {
	reply, err := uc.chat.ChatReply(ctx, &entity.ChatRequest{Message: text, MaxChars: uc.cfg.GeneralReplyMaxChars})
	if err != nil {
		ctxzap.Warn(ctx, "general chat reply failed, using fallback", zap.Error(err))
		return GeneralFallback
	}

	reply = strings.TrimSpace(uc.formatter.Plain(reply))
	if reply == "" {
		return GeneralFallback
	}
	return textutil.Truncate(reply, uc.cfg.GeneralReplyMaxChars)
}

func (uc *AssistantUsecase) answerSafety(ctx context.Context, senderID, query string, imageRequest bool) (*entity.GenerationResult, error) {
	recent, _ := uc.recentSources(senderID)

	passages, err := uc.retriever.RetrieveWithContext(ctx, query, recent)
	if err != nil {
		return nil, fmt.Errorf("retrieve passages: %w", err)
	}

	result := uc.pipeline.Run(ctx, &entity.PipelineRequest{
		Query:        query,
		Passages:     passages,
		ImageRequest: imageRequest,
	})

	uc.recent.SetDefault(senderID, result.Sources)
	return result, nil
}

// isFollowUp reports a short question from a sender with a recent safety exchange.
func (uc *AssistantUsecase) isFollowUp(senderID, text string) bool {
	if !strings.Contains(text, "?") || utf8.RuneCountInString(text) > uc.cfg.FollowUpMaxChars {
		return false
	}
	_, ok := uc.recentSources(senderID)
	return ok
}

func (uc *AssistantUsecase) recentSources(senderID string) ([]string, bool) {
	v, ok := uc.recent.Get(senderID)
	if !ok {
		return nil, false
	}
	sources, _ := v.([]string)
	return sources, true
}

// record writes the audit entries. Failures are logged and never reach the sender.
func (uc *AssistantUsecase) record(ctx context.Context, event *entity.ConversationEvent, safetyLog *entity.SafetyLog) {
	if uc.conversations == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)

	if err := uc.conversations.SaveEvent(ctx, *event); err != nil {
		ctxzap.Error(ctx, "failed to save conversation event", zap.String("event_id", event.ID), zap.Error(err))
		return
	}

	if safetyLog == nil {
		return
	}
	if err := uc.conversations.SaveSafetyLog(ctx, *safetyLog); err != nil {
		ctxzap.Error(ctx, "failed to save safety log", zap.String("event_id", event.ID), zap.Error(err))
	}
}
