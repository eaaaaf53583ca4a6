package runtime

import (
	"fmt"

	"talkify/errors"
)

func errUnknownConnection(connID string) error {
	return fmt.Errorf("%w: unknown connection %s", errors.ErrUnauthenticated, connID)
}
