package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"character-companion/backend/internal/models"
)

func testCharacter(name string) models.Character {
	return models.Character{
		ID:       1,
		Name:     name,
		Title:    "A test persona",
		Greeting: "Hello!",
		Image:    "img-key",
	}
}

type stubLoader struct {
	messages []models.Message
	err      error
}

func (l *stubLoader) LoadMessages(_ context.Context, _ uint) ([]models.Message, error) {
	return l.messages, l.err
}

func TestSendMessageAppendsOptimisticPairThenFills(t *testing.T) {
	store := NewStore()
	store.SelectCharacter(testCharacter("Ada"))

	token, err := store.SendMessage("Hi")
	require.NoError(t, err)
	require.Equal(t, StateAwaitingReply, store.State())

	msgs := store.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, models.AuthorUser, msgs[0].Author)
	assert.Equal(t, "Hi", msgs[0].Content)
	assert.Equal(t, models.AuthorAssistant, msgs[1].Author)
	assert.Equal(t, "", msgs[1].Content)
	assert.True(t, msgs[1].IsPending())

	err = store.ReceiveReply(token, 7, models.Message{
		Author:  models.AuthorAssistant,
		Content: "Hey there!",
	})
	require.NoError(t, err)

	msgs = store.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Hi", msgs[0].Content)
	assert.Equal(t, "Hey there!", msgs[1].Content)
	assert.Equal(t, StateActive, store.State())
	assert.Equal(t, uint(7), store.ChatID())
	assert.Equal(t, 0, store.PendingCount())
}

func TestSendMessageWhileAwaitingReplyIsRejected(t *testing.T) {
	store := NewStore()
	store.SelectCharacter(testCharacter("Ada"))

	_, err := store.SendMessage("first")
	require.NoError(t, err)

	before := store.Messages()
	_, err = store.SendMessage("second")
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, before, store.Messages(), "rejected send must leave the log unchanged")
	assert.Equal(t, StateAwaitingReply, store.State())
}

func TestSendMessageWhileIdleIsRejected(t *testing.T) {
	store := NewStore()

	_, err := store.SendMessage("hello?")
	assert.ErrorIs(t, err, ErrNoCharacter)
	assert.Empty(t, store.Messages())
}

func TestAtMostOnePlaceholderEver(t *testing.T) {
	store := NewStore()
	store.SelectCharacter(testCharacter("Ada"))

	for i := 0; i < 5; i++ {
		token, err := store.SendMessage(fmt.Sprintf("msg %d", i))
		require.NoError(t, err)
		assert.Equal(t, 1, store.PendingCount())

		// A rejected second send must not mint another placeholder.
		_, err = store.SendMessage("interleaved")
		require.ErrorIs(t, err, ErrBusy)
		assert.Equal(t, 1, store.PendingCount())

		require.NoError(t, store.ReceiveReply(token, 3, models.Message{
			Author:  models.AuthorAssistant,
			Content: fmt.Sprintf("reply %d", i),
		}))
		assert.Equal(t, 0, store.PendingCount())
	}
}

func TestLogPreservesSendOrder(t *testing.T) {
	store := NewStore()
	store.SelectCharacter(testCharacter("Ada"))

	for i := 0; i < 4; i++ {
		token, err := store.SendMessage(fmt.Sprintf("user %d", i))
		require.NoError(t, err)
		require.NoError(t, store.ReceiveReply(token, 3, models.Message{
			Author:  models.AuthorAssistant,
			Content: fmt.Sprintf("assistant %d", i),
		}))
	}

	msgs := store.Messages()
	require.Len(t, msgs, 8)
	for i := 0; i < 4; i++ {
		assert.Equal(t, fmt.Sprintf("user %d", i), msgs[2*i].Content)
		assert.Equal(t, fmt.Sprintf("assistant %d", i), msgs[2*i+1].Content)
	}
}

func TestSelectCharacterDiscardsPriorSession(t *testing.T) {
	store := NewStore()
	store.SelectCharacter(testCharacter("Ada"))

	token, err := store.SendMessage("Hi")
	require.NoError(t, err)
	require.NoError(t, store.ReceiveReply(token, 9, models.Message{
		Author:  models.AuthorAssistant,
		Content: "Hello",
	}))
	require.NotEmpty(t, store.Messages())

	other := testCharacter("Brin")
	other.ID = 2
	store.SelectCharacter(other)

	assert.Empty(t, store.Messages())
	assert.Equal(t, uint(0), store.ChatID())
	assert.Equal(t, "Brin", store.Character().Name)

	// Reselecting the same character also starts fresh.
	store.SelectCharacter(other)
	assert.Empty(t, store.Messages())
}

func TestStaleReplyIsDropped(t *testing.T) {
	store := NewStore()
	store.SelectCharacter(testCharacter("Ada"))

	token, err := store.SendMessage("Hi")
	require.NoError(t, err)

	// Navigation away replaces the session while the reply is in flight.
	other := testCharacter("Brin")
	other.ID = 2
	store.SelectCharacter(other)

	err = store.ReceiveReply(token, 9, models.Message{
		Author:  models.AuthorAssistant,
		Content: "late reply",
	})
	assert.ErrorIs(t, err, ErrStaleReply)
	assert.Empty(t, store.Messages(), "late reply must not leak into the new session")
}

func TestReceiveErrorKeepsPlaceholderAndUnblocks(t *testing.T) {
	store := NewStore()
	store.SelectCharacter(testCharacter("Ada"))

	token, err := store.SendMessage("Hi")
	require.NoError(t, err)

	require.NoError(t, store.ReceiveError(token))
	assert.Equal(t, StateActive, store.State())

	msgs := store.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Hi", msgs[0].Content, "optimistic user message survives a failed reply")
	assert.True(t, msgs[1].IsPending(), "placeholder is retained for the retry surface")
}

func TestSendAfterReceiveErrorKeepsSinglePlaceholder(t *testing.T) {
	store := NewStore()
	store.SelectCharacter(testCharacter("Ada"))

	token, err := store.SendMessage("Hi")
	require.NoError(t, err)
	require.NoError(t, store.ReceiveError(token))
	require.Equal(t, 1, store.PendingCount())

	token, err = store.SendMessage("Hi again")
	require.NoError(t, err)
	assert.Equal(t, 1, store.PendingCount(), "a retry send must supersede the retained placeholder")

	msgs := store.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "Hi", msgs[0].Content)
	assert.Equal(t, "Hi again", msgs[1].Content)
	assert.True(t, msgs[2].IsPending())

	require.NoError(t, store.ReceiveReply(token, 3, models.Message{
		Author:  models.AuthorAssistant,
		Content: "Hello",
	}))
	assert.Equal(t, 0, store.PendingCount())
	assert.Equal(t, "Hello", store.Messages()[2].Content)
}

func TestReceiveReplySwapsPlaceholderForServerMessage(t *testing.T) {
	store := NewStore()
	store.SelectCharacter(testCharacter("Ada"))

	token, err := store.SendMessage("Hi")
	require.NoError(t, err)

	confirmed := models.Message{
		ExternalID: "server-assigned-id",
		Author:     models.AuthorAssistant,
		Content:    "from the server",
		CreatedAt:  time.Now(),
	}
	require.NoError(t, store.ReceiveReply(token, 5, confirmed))

	msgs := store.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "server-assigned-id", msgs[1].ExternalID)
	assert.Equal(t, "from the server", msgs[1].Content)
}

func TestResumeChatRehydratesHistory(t *testing.T) {
	store := NewStore()
	history := []models.Message{
		{ExternalID: "m1", Author: models.AuthorAssistant, Content: "Hello!", CreatedAt: time.Now()},
		{ExternalID: "m2", Author: models.AuthorUser, Content: "Hi", CreatedAt: time.Now()},
	}

	err := store.ResumeChat(context.Background(), testCharacter("Ada"), 12, &stubLoader{messages: history})
	require.NoError(t, err)

	assert.Equal(t, StateActive, store.State())
	assert.Equal(t, uint(12), store.ChatID())
	assert.Equal(t, history, store.Messages())
}

func TestResumeChatLoaderFailureLeavesStoreUntouched(t *testing.T) {
	store := NewStore()
	store.SelectCharacter(testCharacter("Ada"))
	_, err := store.SendMessage("Hi")
	require.NoError(t, err)
	before := store.Messages()

	err = store.ResumeChat(context.Background(), testCharacter("Brin"), 12, &stubLoader{err: errors.New("boom")})
	require.Error(t, err)
	assert.Equal(t, before, store.Messages())
	assert.Equal(t, "Ada", store.Character().Name)
}

func TestSubscribeNotifiesOnEveryMutation(t *testing.T) {
	store := NewStore()

	var states []State
	unsubscribe := store.Subscribe(func(snap Snapshot) {
		states = append(states, snap.State)
	})

	store.SelectCharacter(testCharacter("Ada"))
	token, err := store.SendMessage("Hi")
	require.NoError(t, err)
	require.NoError(t, store.ReceiveReply(token, 1, models.Message{
		Author:  models.AuthorAssistant,
		Content: "Hello",
	}))

	assert.Equal(t, []State{StateActive, StateAwaitingReply, StateActive}, states)

	unsubscribe()
	store.Reset()
	assert.Len(t, states, 3, "unsubscribed observer must not fire")
}

func TestResetReturnsToIdle(t *testing.T) {
	store := NewStore()
	store.SelectCharacter(testCharacter("Ada"))
	_, err := store.SendMessage("Hi")
	require.NoError(t, err)

	store.Reset()
	assert.Equal(t, StateIdle, store.State())
	assert.Nil(t, store.Character())
	assert.Empty(t, store.Messages())
}
