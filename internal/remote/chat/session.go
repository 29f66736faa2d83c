// Package chat implements the conversational channel with the robot: an
// append-only transcript and at most one request in flight.
package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"

	"github.com/mizuna-io/mizuna/internal/pkg/metrics"
	"github.com/mizuna-io/mizuna/internal/remote/connectivity"
	"github.com/mizuna-io/mizuna/internal/remote/transport"
	"github.com/mizuna-io/mizuna/pkg/log"
)

// Feed is the liveness feed name reported for chat exchanges.
const Feed = "chat"

const (
	stateIdle     = "idle"
	stateInFlight = "in_flight"

	eventSend     = "send"
	eventComplete = "complete"
)

// Listener is called after every appended message.
type Listener func(Message)

// Session holds one conversation with the robot.
type Session struct {
	id       string
	caller   transport.Caller
	observer connectivity.Observer
	now      func() time.Time
	logger   log.Logger

	mu         sync.Mutex
	machine    *fsm.FSM
	transcript []Message
	lastID     int64
	closed     bool
	listeners  []Listener

	wg sync.WaitGroup
}

// NewSession creates an idle session. observer receives the chat liveness
// outcome of each exchange and may be nil.
func NewSession(caller transport.Caller, observer connectivity.Observer) *Session {
	id := uuid.NewString()
	return &Session{
		id:       id,
		caller:   caller,
		observer: observer,
		now:      time.Now,
		logger:   log.WithName("chat").WithValues("session", id),
		machine: fsm.NewFSM(
			stateIdle,
			fsm.Events{
				{Name: eventSend, Src: []string{stateIdle}, Dst: stateInFlight},
				{Name: eventComplete, Src: []string{stateInFlight}, Dst: stateIdle},
			},
			fsm.Callbacks{},
		),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Busy reports whether a request is in flight.
func (s *Session) Busy() bool {
	return s.machine.Current() == stateInFlight
}

// Transcript returns a copy of the messages in display order.
func (s *Session) Transcript() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.transcript...)
}

// Subscribe registers fn for appended messages.
func (s *Session) Subscribe(fn Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Send appends the user's message and asks the robot in the background. It
// returns false without doing anything when text is blank, a request is
// already in flight, or the session is closed.
func (s *Session) Send(ctx context.Context, text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	if err := s.machine.Event(ctx, eventSend); err != nil {
		s.mu.Unlock()
		s.logger.Debug("Send ignored while a request is in flight")
		return false
	}
	msg := s.appendLocked(Message{Role: RoleUser, Text: text})
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	notify(listeners, msg)

	// The exchange outlives the caller's context; the transport timeout bounds it.
	exCtx := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.exchange(exCtx, text)
	}()
	return true
}

// Clear asks the robot to drop its conversational memory and returns the
// number of deleted items. The transcript is left untouched.
func (s *Session) Clear(ctx context.Context) (int, error) {
	const path = "/clear_context"

	raw, err := s.caller.Call(ctx, transport.Request{Method: http.MethodPost, Path: path})
	if err != nil {
		if transport.IsKind(err, transport.KindHTTPStatus) {
			return 0, &ClearError{Message: firstNonEmpty(transport.ServerMessage(err), TextResetFailed), Err: err}
		}
		return 0, &ClearError{Message: TextResetUnreachable, Err: err}
	}

	var resp struct {
		Status       string `json:"status"`
		DeletedCount int    `json:"deleted_count"`
		Detail       string `json:"detail"`
	}
	if err := transport.Decode(http.MethodPost, path, raw, &resp); err != nil {
		return 0, &ClearError{Message: TextResetUnreachable, Err: err}
	}
	if resp.Status != "ok" {
		msg := firstNonEmpty(resp.Detail, TextResetFailed)
		return 0, &ClearError{Message: msg, Err: transport.ApplicationError(http.MethodPost, path, msg)}
	}

	s.logger.Info("Robot memory reset", "deleted", resp.DeletedCount)
	return resp.DeletedCount, nil
}

// Close marks the session gone. An exchange still in flight completes but its
// result is discarded.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// Wait blocks until no exchange is running.
func (s *Session) Wait() {
	s.wg.Wait()
}

func (s *Session) exchange(ctx context.Context, text string) {
	reply := s.ask(ctx, text)

	s.mu.Lock()
	_ = s.machine.Event(ctx, eventComplete)
	if s.closed {
		s.mu.Unlock()
		metrics.ChatExchangeTotal.WithLabelValues("discarded").Inc()
		s.logger.Info("Discarding chat reply for a closed session")
		return
	}
	msg := s.appendLocked(reply)
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	outcome := connectivity.Success
	if reply.IsError {
		outcome = connectivity.Failure
		metrics.ChatExchangeTotal.WithLabelValues("error").Inc()
	} else {
		metrics.ChatExchangeTotal.WithLabelValues("reply").Inc()
	}
	if s.observer != nil {
		s.observer.Observe(Feed, outcome)
	}
	notify(listeners, msg)
}

// ask performs the /ask call and builds the assistant entry.
func (s *Session) ask(ctx context.Context, text string) Message {
	const path = "/ask"

	raw, err := s.caller.Call(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   path,
		Body:   map[string]string{"text": text},
	})
	if err != nil {
		s.logger.Warn("Chat request failed", "error", err)
		return Message{Role: RoleAssistant, Text: failureText(err), IsError: true}
	}

	var resp struct {
		Reply *string `json:"reply"`
		Error *string `json:"error"`
		Voice *struct {
			Spoken bool `json:"spoken"`
		} `json:"voice"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		s.logger.Warn("Chat reply could not be decoded", "error", err)
		return Message{Role: RoleAssistant, Text: TextContactError, IsError: true}
	}

	if resp.Error != nil && *resp.Error != "" {
		err := transport.ApplicationError(http.MethodPost, path, *resp.Error)
		s.logger.Warn("Robot reported a chat failure", "error", err)
		return Message{Role: RoleAssistant, Text: *resp.Error, IsError: true}
	}

	msg := Message{Role: RoleAssistant, Text: TextNoResponse}
	if resp.Reply != nil {
		msg.Text = *resp.Reply
	}
	if resp.Voice != nil {
		msg.Spoken = resp.Voice.Spoken
	}
	return msg
}

func (s *Session) appendLocked(m Message) Message {
	s.lastID++
	m.ID = s.lastID
	m.At = s.now()
	s.transcript = append(s.transcript, m)
	return m
}

// failureText turns a transport failure into the transcript text.
func failureText(err error) string {
	if transport.IsKind(err, transport.KindHTTPStatus) {
		return firstNonEmpty(transport.ServerMessage(err), TextRequestFailed)
	}
	return TextContactError
}

func notify(listeners []Listener, m Message) {
	for _, l := range listeners {
		l(m)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// ClearError is returned by Clear. Message is suitable for display.
type ClearError struct {
	Message string
	Err     error
}

func (e *ClearError) Error() string { return e.Message }

func (e *ClearError) Unwrap() error { return e.Err }
