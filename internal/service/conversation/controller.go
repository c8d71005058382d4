// Package conversation implements the chat widget's message-resolution state machine:
// local knowledge match first, generative fallback second, escalation last.
package conversation

import (
	"context"
	"crypto/rand"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/camwood/camwood-site/backend/internal/model/chat"
	"github.com/camwood/camwood-site/backend/internal/model/knowledge"
	"github.com/camwood/camwood-site/backend/internal/service/ai"
)

var (
	ErrEmptyInput       = errors.New("message text is empty")
	ErrAwaitingResponse = errors.New("assistant is still responding")
	ErrDisposed         = errors.New("conversation disposed")
)

// Phase is the controller's position in the resolution pipeline.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseMatching      Phase = "matching"
	PhaseRemoteCalling Phase = "remote_calling"
	PhaseResponded     Phase = "responded"
)

// Matcher finds a knowledge entry for free text.
type Matcher interface {
	Match(query string) (knowledge.Entry, bool)
}

// Responder produces generated text, or false when generation is unavailable.
type Responder interface {
	Generate(ctx context.Context, userMessage, systemInstruction string, history []chat.Message) (string, bool)
}

// Snapshot is an immutable copy of the conversation state.
type Snapshot struct {
	Messages           []chat.Message `json:"messages"`
	IsOpen             bool           `json:"isOpen"`
	IsAwaitingResponse bool           `json:"isAwaitingResponse"`
	Draft              string         `json:"draft"`
	Phase              Phase          `json:"phase"`
	Disposed           bool           `json:"disposed"`
}

// Controller owns one widget conversation. It is safe for concurrent use; at most one
// submission is resolved at a time.
type Controller struct {
	matcher   Matcher
	responder Responder
	opts      Options
	logger    *zap.Logger
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	entropy     *ulid.MonotonicEntropy
	messages    []chat.Message
	welcomeID   string
	isOpen      bool
	awaiting    bool
	disposed    bool
	draft       string
	phase       Phase
	subscribers map[int]chan Snapshot
	nextSubID   int
}

// New creates an empty conversation. A nil responder behaves like one without credentials.
func New(matcher Matcher, responder Responder, opts Options, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Controller{
		matcher:     matcher,
		responder:   responder,
		opts:        opts.withDefaults(),
		logger:      logger.Named("conversation"),
		now:         func() time.Time { return time.Now().UTC() },
		ctx:         ctx,
		cancel:      cancel,
		entropy:     ulid.Monotonic(rand.Reader, 0),
		phase:       PhaseIdle,
		subscribers: make(map[int]chan Snapshot),
	}
}

// Open shows the widget. The welcome message is appended on the first open only.
func (c *Controller) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return ErrDisposed
	}

	c.isOpen = true
	if c.welcomeID == "" {
		welcome := c.newMessageLocked(c.opts.WelcomeText, true, chat.KindWelcome)
		c.welcomeID = welcome.ID
		c.messages = append(c.messages, welcome)
	}
	c.publishLocked()
	return nil
}

// Close hides the widget. Pending work keeps running and still appends to the log.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return ErrDisposed
	}
	c.isOpen = false
	c.publishLocked()
	return nil
}

// SetDraft records the current input text.
func (c *Controller) SetDraft(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return ErrDisposed
	}
	if c.awaiting {
		return ErrAwaitingResponse
	}
	c.draft = text
	c.publishLocked()
	return nil
}

// Submit appends the user's message and starts resolving a reply in the background.
// Submissions while a reply is pending are rejected and leave the state untouched.
func (c *Controller) Submit(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return ErrDisposed
	}
	if c.awaiting {
		return ErrAwaitingResponse
	}
	if strings.TrimSpace(text) == "" {
		return ErrEmptyInput
	}

	history := c.historyLocked()
	userMsg := c.newMessageLocked(text, false, chat.KindUser)
	c.messages = append(c.messages, userMsg)
	c.draft = ""
	c.awaiting = true
	c.phase = PhaseMatching
	c.publishLocked()

	c.wg.Add(1)
	go c.resolve(userMsg, history)
	return nil
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe streams snapshots, starting with the current one. Slow readers only see the
// latest state. The channel is closed on unsubscribe or dispose.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan Snapshot, 1)
	ch <- c.snapshotLocked()
	if c.disposed {
		close(ch)
		return ch, func() {}
	}

	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = ch

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subscribers[id]; ok {
			delete(c.subscribers, id)
			close(sub)
		}
	}
}

// Dispose cancels the thinking delay, in-flight generation and pending follow-ups, then
// waits for them to return. It is idempotent.
func (c *Controller) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	c.isOpen = false
	c.awaiting = false
	c.phase = PhaseIdle
	c.cancel()
	c.publishLocked()
	for id, ch := range c.subscribers {
		delete(c.subscribers, id)
		close(ch)
	}
	c.mu.Unlock()

	c.wg.Wait()
	c.logger.Debug("conversation disposed")
}

// Wait blocks until the pending reply and any scheduled follow-up have been appended, or
// ctx is done. It must not race with Submit.
func (c *Controller) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disposed reports whether Dispose has been called.
func (c *Controller) Disposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposed
}

func (c *Controller) resolve(userMsg chat.Message, history []chat.Message) {
	defer c.wg.Done()

	if err := sleep(c.ctx, c.opts.ThinkingDelay); err != nil {
		return
	}

	reply, followUp := c.answer(userMsg, history)
	if c.ctx.Err() != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}

	msg := c.newMessageLocked(reply.Text, true, reply.Kind)
	msg.Category = reply.Category
	msg.IsEscalation = reply.IsEscalation
	c.messages = append(c.messages, msg)
	c.awaiting = false
	c.phase = PhaseResponded
	c.publishLocked()

	if followUp {
		c.wg.Add(1)
		go c.sendFollowUp()
	}

	c.phase = PhaseIdle
	c.publishLocked()
}

// answer runs the local match and, on a miss, the generative fallback.
func (c *Controller) answer(userMsg chat.Message, history []chat.Message) (chat.Message, bool) {
	if entry, ok := c.matcher.Match(userMsg.Text); ok {
		c.logger.Info("answered from knowledge base", zap.String("entry", entry.ID))
		return chat.Message{
			Text:         entry.Answer,
			Category:     entry.Question,
			IsEscalation: slices.Contains(c.opts.EscalationEntryIDs, entry.ID),
			Kind:         chat.KindAnswer,
		}, slices.Contains(c.opts.FollowUpEntryIDs, entry.ID)
	}

	c.setPhase(PhaseRemoteCalling)

	if c.responder != nil {
		if text, ok := c.responder.Generate(c.ctx, userMsg.Text, c.opts.SystemInstruction, history); ok {
			c.logger.Info("answered with generated text", zap.Int("length", len(text)))
			return chat.Message{
				Text:     ai.MarkGenerated(text),
				Category: c.opts.GeneratedCategory,
				Kind:     chat.KindGenerated,
			}, true
		}
	}

	c.logger.Info("no answer available, escalating")
	return chat.Message{
		Text:         c.opts.ApologyText,
		IsEscalation: true,
		Kind:         chat.KindEscalation,
	}, true
}

func (c *Controller) sendFollowUp() {
	defer c.wg.Done()

	if err := sleep(c.ctx, c.opts.FollowUpDelay); err != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}
	c.messages = append(c.messages, c.newMessageLocked(c.opts.FollowUpText, true, chat.KindFollowUp))
	c.publishLocked()
}

func (c *Controller) setPhase(phase Phase) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}
	c.phase = phase
	c.publishLocked()
}

// historyLocked returns the log without the welcome message.
func (c *Controller) historyLocked() []chat.Message {
	history := make([]chat.Message, 0, len(c.messages))
	for _, msg := range c.messages {
		if msg.ID == c.welcomeID {
			continue
		}
		history = append(history, msg)
	}
	return history
}

func (c *Controller) newMessageLocked(text string, fromAssistant bool, kind chat.Kind) chat.Message {
	now := c.now()
	return chat.Message{
		ID:              ulid.MustNew(ulid.Timestamp(now), c.entropy).String(),
		Text:            text,
		IsFromAssistant: fromAssistant,
		Timestamp:       now,
		Kind:            kind,
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		Messages:           append([]chat.Message(nil), c.messages...),
		IsOpen:             c.isOpen,
		IsAwaitingResponse: c.awaiting,
		Draft:              c.draft,
		Phase:              c.phase,
		Disposed:           c.disposed,
	}
}

func (c *Controller) publishLocked() {
	if len(c.subscribers) == 0 {
		return
	}
	snap := c.snapshotLocked()
	for _, ch := range c.subscribers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
