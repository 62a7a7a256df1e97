package outbox

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type execCall struct {
	query string
	args  []interface{}
}

type fakeDB struct {
	calls []execCall
}

type fakeResult struct{}

func (fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (fakeResult) RowsAffected() (int64, error) { return 1, nil }

func (f *fakeDB) ExecContext(_ context.Context, query string, args ...interface{}) (sql.Result, error) {
	f.calls = append(f.calls, execCall{query: query, args: args})
	return fakeResult{}, nil
}

func (f *fakeDB) QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error) {
	return nil, nil
}

func (f *fakeDB) QueryRowContext(context.Context, string, ...interface{}) *sql.Row {
	return nil
}

func Test_Enqueue_MarshalsPayloadAndInserts(t *testing.T) {
	db := &fakeDB{}
	sessionID := uuid.New()

	err := Enqueue(context.Background(), db, sessionID, "SessionStarted", map[string]string{"sessionId": sessionID.String()})
	require.NoError(t, err)
	require.Len(t, db.calls, 1)

	call := db.calls[0]
	require.Contains(t, call.query, "INSERT INTO play_outbox")
	require.Len(t, call.args, 4)
	require.Equal(t, sessionID, call.args[1])
	require.Equal(t, "SessionStarted", call.args[2])
	require.JSONEq(t, `{"sessionId": "`+sessionID.String()+`"}`, string(call.args[3].([]byte)))
}

func Test_Enqueue_RejectsUnmarshalablePayload(t *testing.T) {
	db := &fakeDB{}

	err := Enqueue(context.Background(), db, uuid.New(), "SessionStarted", make(chan int))
	require.Error(t, err)
	require.Empty(t, db.calls)
}
