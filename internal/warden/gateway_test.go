package warden

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wordwarden/internal/store"
)

// brokenStore fails every operation, standing in for a full disk or
// unreadable database.
type brokenStore struct{}

func (brokenStore) Get(string) (string, bool, error) {
	return "", false, errors.New("read failed")
}

func (brokenStore) Set(string, string) error {
	return errors.New("write failed")
}

func TestGatewayRoundTrip(t *testing.T) {
	gw := NewGateway(store.NewMemory(), "session:x:", zap.NewNop())

	Save(gw, "attempts", 4)
	Save(gw, "messages", []Message{{ID: "1", Role: RoleUser, Content: "hi"}})

	assert.Equal(t, 4, Load(gw, "attempts", 0))
	msgs := Load(gw, "messages", []Message(nil))
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi", msgs[0].Content)
}

func TestGatewayAbsentKeyYieldsDefault(t *testing.T) {
	gw := NewGateway(store.NewMemory(), "session:x:", zap.NewNop())

	assert.Equal(t, 42, Load(gw, "missing", 42))
	assert.True(t, Load(gw, "missing", true))
}

func TestGatewayCorruptValueYieldsDefault(t *testing.T) {
	st := store.NewMemory()
	require.NoError(t, st.Set("session:x:attempts", "not a number"))

	gw := NewGateway(st, "session:x:", zap.NewNop())
	assert.Equal(t, 7, Load(gw, "attempts", 7))
}

func TestGatewayPrefixIsolatesSessions(t *testing.T) {
	st := store.NewMemory()
	a := NewGateway(st, "session:a:", zap.NewNop())
	b := NewGateway(st, "session:b:", zap.NewNop())

	Save(a, "attempts", 3)
	assert.Equal(t, 3, Load(a, "attempts", 0))
	assert.Equal(t, 0, Load(b, "attempts", 0))
}

func TestGatewayFailSoft(t *testing.T) {
	gw := NewGateway(brokenStore{}, "session:x:", zap.NewNop())

	// Neither direction surfaces an error to the caller.
	assert.NotPanics(t, func() { Save(gw, "attempts", 1) })
	assert.Equal(t, 9, Load(gw, "attempts", 9))

	sess := gw.LoadSession()
	assert.Empty(t, sess.Messages)
	assert.Zero(t, sess.AttemptCount)
	assert.NotPanics(t, func() { gw.SaveSession(sess) })
}

func TestSaveSessionLoadSession(t *testing.T) {
	st := store.NewMemory()
	gw := NewGateway(st, "session:x:", zap.NewNop())

	sess := &Session{
		Messages: []Message{
			{ID: "1", Role: RoleUser, Content: "guess"},
			{ID: "2", Role: RoleResponder, Content: "clue", Revealing: true},
		},
		AttemptCount: 1,
		Solved:       false,
		HintIndex:    0,
	}
	gw.SaveSession(sess)

	loaded := gw.LoadSession()
	assert.Equal(t, 1, loaded.AttemptCount)
	require.Len(t, loaded.Messages, 2)
	assert.False(t, loaded.Messages[1].Revealing, "interrupted reveals are cleared on load")
	assert.Equal(t, PhaseIdle, loaded.Phase())
}
