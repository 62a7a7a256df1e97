package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lekbanken/playserver/internal/sqlutil"
	"github.com/rs/zerolog/log"
)

// Enqueue marshals payload and inserts it into the outbox using the given
// executor, which is expected to be the transaction of the domain write the
// event describes.
func Enqueue(ctx context.Context, db sqlutil.DBTX, sessionID uuid.UUID, eventType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("invalid %s payload: %w", eventType, err)
	}

	if err := NewRepository(db).Insert(ctx, sessionID, eventType, body); err != nil {
		return err
	}

	log.Debug().
		Str("session_id", sessionID.String()).
		Str("event_type", eventType).
		Msg("outbox event inserted")

	return nil
}
