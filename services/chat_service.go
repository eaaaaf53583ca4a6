//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"context"

	"talkify/domain"
	"talkify/runtime"
)

// IChatService is the single surface the transport layer depends on.
type IChatService interface {
	Send(ctx context.Context, connID, roomID, body string) error
	Join(ctx context.Context, connID, roomID string) ([]domain.Message, error)
	Leave(ctx context.Context, connID, roomID string) error
	Switch(ctx context.Context, connID, fromRoomID, toRoomID string) ([]domain.Message, error)
	History(ctx context.Context, connID, roomID string, limit int) ([]domain.Message, error)
	Disconnect(ctx context.Context, connID string)
}

type ChatService struct {
	sessions   *runtime.SessionManager
	dispatcher *runtime.Dispatcher
	history    *runtime.HistoryService
}

func NewChatService(sessions *runtime.SessionManager, dispatcher *runtime.Dispatcher, history *runtime.HistoryService) *ChatService {
	return &ChatService{sessions: sessions, dispatcher: dispatcher, history: history}
}

func (s *ChatService) Send(ctx context.Context, connID, roomID, body string) error {
	return s.dispatcher.Send(ctx, connID, roomID, body)
}

func (s *ChatService) Join(ctx context.Context, connID, roomID string) ([]domain.Message, error) {
	return s.sessions.Join(ctx, connID, roomID)
}

func (s *ChatService) Leave(ctx context.Context, connID, roomID string) error {
	return s.sessions.Leave(ctx, connID, roomID)
}

func (s *ChatService) Switch(ctx context.Context, connID, fromRoomID, toRoomID string) ([]domain.Message, error) {
	return s.sessions.Switch(ctx, connID, fromRoomID, toRoomID)
}

func (s *ChatService) History(ctx context.Context, _ string, roomID string, limit int) ([]domain.Message, error) {
	return s.history.GetRecent(ctx, roomID, limit)
}

func (s *ChatService) Disconnect(ctx context.Context, connID string) {
	s.sessions.Disconnect(ctx, connID)
}
