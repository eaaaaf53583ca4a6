package runtime

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"talkify/domain"
	"talkify/repositories"
)

// HistoryService serves the recent messages of a room as a
// point-in-time snapshot. Live delivery is a separate subscription;
// the join path triggers both.
type HistoryService struct {
	log          *slog.Logger
	store        repositories.IMessageRepository
	defaultLimit int
	maxLimit     int
}

func NewHistoryService(log *slog.Logger, store repositories.IMessageRepository, defaultLimit, maxLimit int) *HistoryService {
	return &HistoryService{log: log, store: store, defaultLimit: defaultLimit, maxLimit: maxLimit}
}

// GetRecent returns up to limit messages of a room in chronological
// order, oldest first. The store is scanned newest first and the
// result reversed, so the caller always sees non-decreasing creation
// timestamps. Duplicates are removed by id; the store should not
// contain any, but the service does not trust that blindly. A room
// with no history yields an empty slice, not an error.
func (h *HistoryService) GetRecent(_ context.Context, roomID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = h.defaultLimit
	}
	if h.maxLimit > 0 && limit > h.maxLimit {
		limit = h.maxLimit
	}

	messages, err := h.store.GetRecent(roomID, limit)
	if err != nil {
		return nil, err
	}

	messages = lo.UniqBy(messages, func(m domain.Message) uuid.UUID { return m.ID })
	lo.Reverse(messages)
	return messages, nil
}
