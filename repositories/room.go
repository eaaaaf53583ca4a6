//go:generate go run go.uber.org/mock/mockgen -source=room.go -destination=../mocks/mock_room_repository.go -package=mocks
package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"talkify/domain"
	"talkify/errors"
)

// IRoomRepository resolves room references written by the external
// room CRUD layer. The core only reads; CreateRoom exists for tooling
// and tests.
type IRoomRepository interface {
	CreateRoom(room domain.Room) error
	Resolve(ctx context.Context, nameOrID string) (domain.Room, error)
}

type RoomRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewRoomRepository(db *badger.DB, log *slog.Logger) RoomRepository {
	return RoomRepository{db: db, log: log}
}

// CreateRoom stores a room under "room:{id}" plus a name index
// "roomname:{name}" so joins can address rooms by either.
func (r RoomRepository) CreateRoom(room domain.Room) error {
	if room.ID == "" || room.Name == "" {
		return errors.ErrInvalidInput
	}
	bytes, err := json.Marshal(room)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte("room:"+room.ID), bytes); err != nil {
			return err
		}
		return txn.Set([]byte("roomname:"+room.Name), []byte(room.ID))
	})
}

// Resolve looks a room up by id first, then by name through the
// index. Unknown or inactive rooms fail with ErrRoomNotFound.
func (r RoomRepository) Resolve(_ context.Context, nameOrID string) (domain.Room, error) {
	if nameOrID == "" {
		return domain.Room{}, errors.ErrRoomNotFound
	}

	var room domain.Room
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("room:" + nameOrID))
		if err == badger.ErrKeyNotFound {
			// Not an id, try the name index.
			idxItem, idxErr := txn.Get([]byte("roomname:" + nameOrID))
			if idxErr != nil {
				return idxErr
			}
			var id []byte
			if id, idxErr = idxItem.ValueCopy(nil); idxErr != nil {
				return idxErr
			}
			if item, err = txn.Get(append([]byte("room:"), id...)); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &room)
		})
	})
	if err == badger.ErrKeyNotFound {
		return domain.Room{}, fmt.Errorf("%w: %s", errors.ErrRoomNotFound, nameOrID)
	}
	if err != nil {
		return domain.Room{}, err
	}
	if !room.Active {
		return domain.Room{}, fmt.Errorf("%w: %s", errors.ErrRoomNotFound, nameOrID)
	}
	return room, nil
}
