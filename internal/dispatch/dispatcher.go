// Package dispatch drives the chat round trip: it packages a user's intent
// to start or continue a conversation, submits it to the chat endpoint and
// feeds the outcome back into the session store. It decides nothing about
// conversational content.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"character-companion/backend/internal/models"
	"character-companion/backend/internal/session"
	"character-companion/backend/pkg/config"
	apperrors "character-companion/backend/pkg/errors"
)

// TokenSource supplies the bearer token attached to every request.
type TokenSource func() string

// Dispatcher submits chat requests on behalf of one session store.
type Dispatcher struct {
	endpoint     string
	client       *http.Client
	store        *session.Store
	tokenSource  TokenSource
	replyTimeout time.Duration
}

// replyEnvelope is the chat endpoint's response shape.
type replyEnvelope struct {
	ChatID   uint             `json:"chat_id"`
	Messages []models.Message `json:"messages"`
}

// New creates a dispatcher for the given chat endpoint. replyTimeout bounds
// every round trip so the session cannot hang in the awaiting-reply state;
// zero means the configured CHAT_REPLY_TIMEOUT.
func New(endpoint string, client *http.Client, store *session.Store, tokenSource TokenSource, replyTimeout time.Duration) *Dispatcher {
	if client == nil {
		client = http.DefaultClient
	}
	if replyTimeout <= 0 {
		replyTimeout = config.Get().Chat.ReplyTimeout
	}
	return &Dispatcher{
		endpoint:     endpoint,
		client:       client,
		store:        store,
		tokenSource:  tokenSource,
		replyTimeout: replyTimeout,
	}
}

// Start opens a fresh conversation with the store's active character. The
// server creates the chat row seeded with the character's greeting; the
// returned log replaces the session's (rehydration, same as resuming).
func (d *Dispatcher) Start(ctx context.Context) (uint, error) {
	character := d.store.Character()
	if character == nil {
		return 0, apperrors.NewNotFoundError("no character selected")
	}

	form := url.Values{}
	form.Set("characterId", strconv.FormatUint(uint64(character.ID), 10))
	form.Set("name", character.Name)
	form.Set("greeting", character.Greeting)

	envelope, err := d.submit(ctx, form)
	if err != nil {
		return 0, err
	}

	err = d.store.ResumeChat(ctx, *character, envelope.ChatID, literalHistory(envelope.Messages))
	if err != nil {
		return 0, err
	}
	return envelope.ChatID, nil
}

// Send appends text optimistically and submits it as a continuation of the
// persisted chat. On success the outstanding placeholder is resolved with
// the server's assistant message; on failure the session reverts out of
// awaiting-reply and the error is surfaced as a retryable state. A reply
// arriving after the session was replaced is dropped.
func (d *Dispatcher) Send(ctx context.Context, text string) error {
	chatID := d.store.ChatID()
	if chatID == 0 {
		return apperrors.NewNotFoundError("no persisted chat to continue")
	}

	token, err := d.store.SendMessage(text)
	if err != nil {
		if err == session.ErrBusy {
			return apperrors.NewBusyError("a reply is already outstanding")
		}
		return apperrors.FromError(err)
	}

	form := url.Values{}
	form.Set("chatId", strconv.FormatUint(uint64(chatID), 10))
	form.Set("text", text)

	envelope, err := d.submit(ctx, form)
	if err != nil {
		// The placeholder is retained; the caller owns the retry surface.
		// A stale token here means the session moved on, nothing to revert.
		_ = d.store.ReceiveError(token)
		return err
	}

	confirmed, ok := lastAssistantMessage(envelope.Messages)
	if !ok {
		_ = d.store.ReceiveError(token)
		return apperrors.NewReplyFailedError("response carried no assistant message")
	}

	if err := d.store.ReceiveReply(token, envelope.ChatID, confirmed); err != nil {
		// Stale token: the session moved on while the reply was in flight.
		return nil
	}
	return nil
}

// submit performs the form POST within the reply timeout and maps transport
// and status failures onto the pipeline's error taxonomy.
func (d *Dispatcher) submit(ctx context.Context, form url.Values) (*replyEnvelope, error) {
	ctx, cancel := context.WithTimeout(ctx, d.replyTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, apperrors.NewReplyFailedError(err.Error())
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if d.tokenSource != nil {
		if token := d.tokenSource(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := d.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, apperrors.NewError(http.StatusGatewayTimeout, apperrors.CodeReplyTimeout,
				"the chat round trip did not complete in time")
		}
		return nil, apperrors.NewReplyFailedError(err.Error())
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, apperrors.NewUnauthenticatedError("identity rejected by the chat endpoint")
	case resp.StatusCode == http.StatusNotFound:
		return nil, apperrors.NewNotFoundError("character or chat does not exist")
	case resp.StatusCode >= 400:
		return nil, apperrors.NewReplyFailedError(fmt.Sprintf("chat endpoint returned %d", resp.StatusCode))
	}

	var envelope replyEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, apperrors.NewReplyFailedError("malformed chat response")
	}
	return &envelope, nil
}

func lastAssistantMessage(msgs []models.Message) (models.Message, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Author == models.AuthorAssistant {
			return msgs[i], true
		}
	}
	return models.Message{}, false
}

// literalHistory adapts an already-fetched transcript to the store's
// history-loader boundary.
type literalHistory []models.Message

func (h literalHistory) LoadMessages(context.Context, uint) ([]models.Message, error) {
	return h, nil
}
