package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"rollermate/internal/logging"
	"rollermate/internal/metrics"
	"rollermate/internal/model"
	"rollermate/internal/realtime"
	"rollermate/internal/repository"
)

type ChatService struct {
	chatRepo    repository.ChatRepository
	messageRepo repository.MessageRepository
	profileRepo repository.ProfileRepository
	broker      realtime.Broker
	log         zerolog.Logger
}

func NewChatService(
	chatRepo repository.ChatRepository,
	messageRepo repository.MessageRepository,
	profileRepo repository.ProfileRepository,
	broker realtime.Broker,
) *ChatService {
	return &ChatService{
		chatRepo:    chatRepo,
		messageRepo: messageRepo,
		profileRepo: profileRepo,
		broker:      broker,
		log:         logging.For("ChatService"),
	}
}

// FindOrCreate returns the direct chat between userID and targetID, creating
// it when none exists. Two users racing to open the same chat end up in one:
// the loser of the insert gets the winner's chat reported as found.
func (s *ChatService) FindOrCreate(ctx context.Context, userID, targetID string) (*model.ChatBootstrap, error) {
	startTime := time.Now()
	if userID == targetID {
		return nil, model.ErrCannotChatSelf
	}
	if _, err := s.profileRepo.GetByID(ctx, targetID); err != nil {
		return nil, model.Upstream("get profile", err)
	}

	chatID, err := s.chatRepo.FindDirect(ctx, userID, targetID)
	if err != nil {
		metrics.ChatBootstraps.WithLabelValues("error").Inc()
		s.log.Error().Err(err).Str(logging.USER, userID).Str("target", targetID).Msg("FindOrCreate search FAILED")
		return nil, model.Upstream("find chat", err)
	}
	if chatID != "" {
		return s.bootstrapped(userID, chatID, model.ChatStateFound, startTime), nil
	}

	chatID, created, err := s.chatRepo.CreateDirect(ctx, userID, targetID)
	if err != nil {
		metrics.ChatBootstraps.WithLabelValues("error").Inc()
		s.log.Error().Err(err).Str(logging.USER, userID).Str("target", targetID).Msg("FindOrCreate create FAILED")
		return nil, model.Upstream("create chat", err)
	}

	state := model.ChatStateFound
	if created {
		state = model.ChatStateCreated
	}
	return s.bootstrapped(userID, chatID, state, startTime), nil
}

func (s *ChatService) bootstrapped(userID, chatID, state string, startTime time.Time) *model.ChatBootstrap {
	metrics.ChatBootstraps.WithLabelValues(state).Inc()
	s.log.Info().
		Str(logging.USER, userID).
		Str("chat_id", chatID).
		Str("state", state).
		Dur("duration", time.Since(startTime)).
		Msg("FindOrCreate OK")
	return &model.ChatBootstrap{ChatID: chatID, State: state}
}

// Send stores a message and pushes it to the other participants in realtime.
func (s *ChatService) Send(ctx context.Context, chatID, senderID, content string) (*model.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, model.ErrMessageRequired
	}
	if utf8.RuneCountInString(content) > model.MaxMessageLength {
		return nil, model.ErrMessageTooLong
	}
	if err := s.requireMember(ctx, chatID, senderID); err != nil {
		return nil, err
	}

	msg := &model.Message{ChatID: chatID, SenderID: senderID, Content: content}
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		s.log.Error().Err(err).Str("chat_id", chatID).Msg("Send FAILED")
		return nil, model.Upstream("insert message", err)
	}

	members, err := s.chatRepo.Members(ctx, chatID)
	if err != nil {
		s.log.Warn().Err(err).Str("chat_id", chatID).Msg("list members for realtime FAILED")
		return msg, nil
	}
	for _, member := range members {
		if member == senderID {
			continue
		}
		event, err := realtime.NewInsertEvent(realtime.TableMessages, member, msg)
		if err != nil {
			s.log.Error().Err(err).Msg("build message event")
			continue
		}
		if err := s.broker.Publish(ctx, event); err != nil {
			s.log.Warn().Err(err).Str("chat_id", chatID).Str("recipient", member).Msg("publish message FAILED")
		}
	}

	s.log.Debug().Str(logging.USER, senderID).Str("chat_id", chatID).Str("message_id", msg.ID).Msg("Send OK")
	return msg, nil
}

// ListMessages pages a chat newest first.
func (s *ChatService) ListMessages(ctx context.Context, chatID, userID, cursor string, limit int) (*model.MessageListResponse, error) {
	if err := s.requireMember(ctx, chatID, userID); err != nil {
		return nil, err
	}

	var c *model.FeedCursor
	if cursor != "" {
		parsed, err := model.ParseFeedCursor(cursor)
		if err != nil {
			return nil, err
		}
		c = parsed
	}
	limit = clampLimit(limit, model.DefaultMessagePage, model.MaxMessagePage)

	messages, err := s.messageRepo.List(ctx, chatID, c, limit+1)
	if err != nil {
		return nil, model.Upstream("list messages", err)
	}

	resp := &model.MessageListResponse{Messages: messages}
	if resp.Messages == nil {
		resp.Messages = []model.Message{}
	}
	if len(messages) > limit {
		resp.Messages = messages[:limit]
		last := resp.Messages[limit-1]
		next := model.FeedCursor{CreatedAt: last.CreatedAt, ID: last.ID}.String()
		resp.NextCursor = &next
		resp.HasMore = true
	}
	return resp, nil
}

// MarkRead flags every message the reader received in the chat as read.
func (s *ChatService) MarkRead(ctx context.Context, chatID, userID string) (int64, error) {
	if err := s.requireMember(ctx, chatID, userID); err != nil {
		return 0, err
	}
	n, err := s.messageRepo.MarkRead(ctx, chatID, userID)
	if err != nil {
		return 0, model.Upstream("mark messages read", err)
	}
	return n, nil
}

func (s *ChatService) ListChats(ctx context.Context, userID string) ([]model.ChatSummary, error) {
	chats, err := s.chatRepo.ListForUser(ctx, userID)
	if err != nil {
		return nil, model.Upstream("list chats", err)
	}
	if chats == nil {
		chats = []model.ChatSummary{}
	}
	return chats, nil
}

func (s *ChatService) requireMember(ctx context.Context, chatID, userID string) error {
	ok, err := s.chatRepo.IsMember(ctx, chatID, userID)
	if err != nil {
		return model.Upstream("check chat membership", err)
	}
	if !ok {
		return model.ErrNotChatMember
	}
	return nil
}
