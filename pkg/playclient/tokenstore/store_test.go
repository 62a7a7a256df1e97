package tokenstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func Test_SaveLoadClear(t *testing.T) {
	store := newStore(t)

	cred := Credential{Token: "tok", ParticipantID: "p1", SessionID: "s1", DisplayName: "Maja"}
	require.NoError(t, store.Save("ABC123", cred))

	loaded, err := store.Load("ABC123")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, cred, *loaded)

	require.NoError(t, store.Clear("ABC123"))
	loaded, err = store.Load("ABC123")
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func Test_Load_MissingEntryIsNil(t *testing.T) {
	store := newStore(t)

	loaded, err := store.Load("NOPE42")
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func Test_Load_CorruptEntryIsDeletedNotSurfaced(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	path := filepath.Join(dir, "lekbanken.participant.ABC123.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	loaded, err := store.Load("ABC123")
	require.NoError(t, err)
	require.Nil(t, loaded)

	_, statErr := os.Stat(path)
	require.True(t, os.IsNotExist(statErr))
}

func Test_Load_EmptyTokenTreatedAsCorrupt(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	path := filepath.Join(dir, "lekbanken.participant.ABC123.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"participant_id": "p1"}`), 0o600))

	loaded, err := store.Load("ABC123")
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func Test_Save_OverwritesExistingEntry(t *testing.T) {
	store := newStore(t)

	require.NoError(t, store.Save("ABC123", Credential{Token: "old"}))
	require.NoError(t, store.Save("ABC123", Credential{Token: "new"}))

	loaded, err := store.Load("ABC123")
	require.NoError(t, err)
	require.Equal(t, "new", loaded.Token)
}

func Test_Queue_RoundTripAndCorruption(t *testing.T) {
	store := newStore(t)

	type entry struct {
		Channel string `json:"channel"`
	}
	require.NoError(t, store.SaveQueue("signal-queue.ABC123.deadbeef", []entry{{Channel: "READY"}}))

	var restored []entry
	require.NoError(t, store.LoadQueue("signal-queue.ABC123.deadbeef", &restored))
	require.Len(t, restored, 1)
	require.Equal(t, "READY", restored[0].Channel)

	var missing []entry
	require.NoError(t, store.LoadQueue("signal-queue.OTHER.cafe", &missing))
	require.Nil(t, missing)
}
