package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"character-companion/backend/internal/models"
	"character-companion/backend/internal/session"
	apperrors "character-companion/backend/pkg/errors"
)

func testCharacter() models.Character {
	return models.Character{
		ID:       1,
		Name:     "Ada",
		Title:    "A test persona",
		Greeting: "Hello!",
		Image:    "img-key",
	}
}

func chatServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func respond(w http.ResponseWriter, chatID uint, msgs ...models.Message) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"chat_id":  chatID,
		"messages": msgs,
	})
}

func TestStartSeedsGreeting(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "1", r.PostForm.Get("characterId"))
		assert.Equal(t, "Ada", r.PostForm.Get("name"))
		assert.Equal(t, "Hello!", r.PostForm.Get("greeting"))
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))

		respond(w, 12, models.Message{
			ExternalID: "m-greeting",
			Author:     models.AuthorAssistant,
			Content:    "Hello!",
			CreatedAt:  time.Now(),
		})
	})

	store := session.NewStore()
	store.SelectCharacter(testCharacter())
	d := New(srv.URL, srv.Client(), store, func() string { return "tok-1" }, time.Second)

	chatID, err := d.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint(12), chatID)
	assert.Equal(t, uint(12), store.ChatID())

	msgs := store.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, models.AuthorAssistant, msgs[0].Author)
	assert.Equal(t, "Hello!", msgs[0].Content)
	assert.Equal(t, session.StateActive, store.State())
}

func TestSendFillsPlaceholder(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "12", r.PostForm.Get("chatId"))
		assert.Equal(t, "Hi", r.PostForm.Get("text"))

		respond(w, 12,
			models.Message{ExternalID: "m-user", Author: models.AuthorUser, Content: "Hi"},
			models.Message{ExternalID: "m-reply", Author: models.AuthorAssistant, Content: "Hey there!"},
		)
	})

	store := session.NewStore()
	store.SelectCharacter(testCharacter())
	d := New(srv.URL, srv.Client(), store, nil, time.Second)

	require.NoError(t, store.ResumeChat(context.Background(), testCharacter(), 12, literalHistory(nil)))
	require.NoError(t, d.Send(context.Background(), "Hi"))

	msgs := store.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Hi", msgs[0].Content)
	assert.Equal(t, "Hey there!", msgs[1].Content)
	assert.Equal(t, 0, store.PendingCount())
	assert.Equal(t, session.StateActive, store.State())
}

func TestSendWhileAwaitingReplyIsBusy(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		respond(w, 12)
	})

	store := session.NewStore()
	store.SelectCharacter(testCharacter())
	require.NoError(t, store.ResumeChat(context.Background(), testCharacter(), 12, literalHistory(nil)))
	_, err := store.SendMessage("first")
	require.NoError(t, err)

	d := New(srv.URL, srv.Client(), store, nil, time.Second)
	err = d.Send(context.Background(), "second")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeBusy))
}

func TestSendNotFoundRevertsOutOfAwaitingReply(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	store := session.NewStore()
	store.SelectCharacter(testCharacter())
	require.NoError(t, store.ResumeChat(context.Background(), testCharacter(), 12, literalHistory(nil)))

	d := New(srv.URL, srv.Client(), store, nil, time.Second)
	err := d.Send(context.Background(), "Hi")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	// Placeholder retained, session unblocked for a retry.
	assert.Equal(t, session.StateActive, store.State())
	assert.Equal(t, 1, store.PendingCount())

	msgs := store.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Hi", msgs[0].Content)
}

func TestSendUnauthenticated(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	store := session.NewStore()
	store.SelectCharacter(testCharacter())
	require.NoError(t, store.ResumeChat(context.Background(), testCharacter(), 12, literalHistory(nil)))

	d := New(srv.URL, srv.Client(), store, nil, time.Second)
	err := d.Send(context.Background(), "Hi")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthenticated))
	assert.Equal(t, session.StateActive, store.State())
}

func TestSendTimeoutBoundsTheRoundTrip(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		respond(w, 12)
	})

	store := session.NewStore()
	store.SelectCharacter(testCharacter())
	require.NoError(t, store.ResumeChat(context.Background(), testCharacter(), 12, literalHistory(nil)))

	d := New(srv.URL, srv.Client(), store, nil, 50*time.Millisecond)
	err := d.Send(context.Background(), "Hi")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeReplyTimeout))
	assert.Equal(t, session.StateActive, store.State(), "timeout must not leave the session stuck awaiting a reply")
}

func TestZeroTimeoutUsesConfiguredDefault(t *testing.T) {
	t.Setenv("CHAT_REPLY_TIMEOUT", "75ms")

	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		respond(w, 12)
	})

	store := session.NewStore()
	store.SelectCharacter(testCharacter())
	require.NoError(t, store.ResumeChat(context.Background(), testCharacter(), 12, literalHistory(nil)))

	d := New(srv.URL, srv.Client(), store, nil, 0)
	err := d.Send(context.Background(), "Hi")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeReplyTimeout))
}

func TestLateReplyForReplacedSessionIsDropped(t *testing.T) {
	release := make(chan struct{})
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
		respond(w, 12,
			models.Message{ExternalID: "m-late", Author: models.AuthorAssistant, Content: "late reply"},
		)
	})

	store := session.NewStore()
	store.SelectCharacter(testCharacter())
	require.NoError(t, store.ResumeChat(context.Background(), testCharacter(), 12, literalHistory(nil)))

	d := New(srv.URL, srv.Client(), store, nil, time.Second)

	done := make(chan error, 1)
	go func() { done <- d.Send(context.Background(), "Hi") }()

	// Wait for the send to be accepted, then navigate away mid-flight.
	require.Eventually(t, func() bool {
		return store.State() == session.StateAwaitingReply
	}, time.Second, 5*time.Millisecond)

	other := testCharacter()
	other.ID = 2
	other.Name = "Brin"
	store.SelectCharacter(other)
	close(release)

	require.NoError(t, <-done)
	assert.Empty(t, store.Messages(), "late reply must not be applied to the new session")
	assert.Equal(t, "Brin", store.Character().Name)
}
