// Package conversation implements the multi-step entry dialogue that turns
// a few user messages into one committed transaction.
//
// Each user has at most one session. Transitions for the same user are
// serialized; different users proceed independently.
package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"

	"finbot/internal/core"
	"finbot/internal/log"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type State int

const (
	// StateNone means the user has no active session.
	StateNone State = iota
	StateAwaitingAmount
	StateAwaitingCategory
	// StateTerminal is reported once after a commit; the session is gone.
	StateTerminal
)

func (s State) String() string {
	switch s {
	case StateAwaitingAmount:
		return "awaiting_amount"
	case StateAwaitingCategory:
		return "awaiting_category"
	case StateTerminal:
		return "terminal"
	default:
		return "none"
	}
}

type ReplyKind int

const (
	ReplyAskAmount ReplyKind = iota
	ReplyInvalidAmount
	ReplyAskCategory
	ReplySaved
	ReplyCancelled
	ReplyNoSession
)

// Reply describes the outcome of one event. The transport turns it into
// localized text.
type Reply struct {
	Kind     ReplyKind
	State    State
	IsIncome bool
	// Set on ReplySaved.
	Amount        decimal.Decimal
	Category      core.Category
	TransactionID int64
}

// Recorder commits a transaction. It is the only write the dialogue makes.
type Recorder interface {
	RecordTransaction(ctx context.Context, t core.NewTransaction) (int64, error)
}

type session struct {
	id       uuid.UUID
	state    State
	isIncome bool
	amount   decimal.Decimal
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

type Manager struct {
	recorder Recorder
	currency string
	logger   *log.Logger

	mu       sync.Mutex
	sessions map[int64]*session
	locks    map[int64]*userLock
}

type Option func(*Manager)

// WithCurrency sets the currency tag of committed transactions.
func WithCurrency(currency string) Option {
	return func(m *Manager) { m.currency = currency }
}

func WithLogger(l *log.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

func NewManager(recorder Recorder, opts ...Option) *Manager {
	m := &Manager{
		recorder: recorder,
		sessions: map[int64]*session{},
		locks:    map[int64]*userLock{},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = log.ForComponent(nil, log.ComponentConversation)
	}
	return m
}

// StartExpense opens an expense session, discarding any active one.
func (m *Manager) StartExpense(ctx context.Context, userID int64) Reply {
	return m.start(ctx, userID, false)
}

// StartIncome opens an income session, discarding any active one.
func (m *Manager) StartIncome(ctx context.Context, userID int64) Reply {
	return m.start(ctx, userID, true)
}

func (m *Manager) start(ctx context.Context, userID int64, isIncome bool) Reply {
	unlock := m.lock(userID)
	defer unlock()

	if old := m.session(userID); old != nil {
		m.logger.DebugContext(ctx, "Discarding active session",
			log.FieldUserID, userID,
			log.FieldSessionID, old.id.String(),
			log.FieldState, old.state.String())
	}
	s := &session{id: uuid.New(), state: StateAwaitingAmount, isIncome: isIncome}
	m.setSession(userID, s)

	m.logger.DebugContext(ctx, "Session started",
		log.FieldUserID, userID,
		log.FieldSessionID, s.id.String(),
		log.FieldIsIncome, isIncome)
	return Reply{Kind: ReplyAskAmount, State: StateAwaitingAmount, IsIncome: isIncome}
}

// HandleText feeds free text into the user's session.
//
// A storage failure is returned as is and the session keeps its state, so
// resending the same text retries the commit. A commit for an unregistered
// user aborts the session.
func (m *Manager) HandleText(ctx context.Context, userID int64, text string) (Reply, error) {
	unlock := m.lock(userID)
	defer unlock()

	s := m.session(userID)
	if s == nil {
		return Reply{Kind: ReplyNoSession, State: StateNone}, nil
	}

	switch s.state {
	case StateAwaitingAmount:
		amount, err := core.ParseAmount(text)
		if err != nil {
			return Reply{Kind: ReplyInvalidAmount, State: s.state, IsIncome: s.isIncome}, nil
		}
		if !s.isIncome {
			s.amount = amount
			s.state = StateAwaitingCategory
			return Reply{Kind: ReplyAskCategory, State: s.state, Amount: amount}, nil
		}
		return m.commit(ctx, userID, s, amount, core.Category{})

	case StateAwaitingCategory:
		cat := core.NewCategory(strings.ToLower(text))
		return m.commit(ctx, userID, s, s.amount, cat)
	}

	// Unreachable: terminal sessions are removed on commit.
	m.deleteSession(userID)
	return Reply{Kind: ReplyNoSession, State: StateNone}, nil
}

func (m *Manager) commit(ctx context.Context, userID int64, s *session, amount decimal.Decimal, cat core.Category) (Reply, error) {
	id, err := m.recorder.RecordTransaction(ctx, core.NewTransaction{
		UserID:   userID,
		Amount:   amount,
		Category: cat,
		IsIncome: s.isIncome,
		Currency: m.currency,
	})
	if errors.Is(err, core.ErrUnknownUser) {
		m.deleteSession(userID)
		m.logger.WarnContext(ctx, "Commit for unregistered user, session discarded",
			log.FieldUserID, userID,
			log.FieldSessionID, s.id.String())
		return Reply{}, err
	}
	if err != nil {
		m.logger.WarnContext(ctx, "Commit failed, session kept",
			log.FieldUserID, userID,
			log.FieldSessionID, s.id.String(),
			log.FieldState, s.state.String(),
			log.FieldError, err)
		return Reply{}, err
	}

	m.deleteSession(userID)
	m.logger.InfoContext(ctx, "Session committed",
		log.FieldUserID, userID,
		log.FieldSessionID, s.id.String(),
		log.FieldTransactionID, id)
	return Reply{
		Kind:          ReplySaved,
		State:         StateTerminal,
		IsIncome:      s.isIncome,
		Amount:        amount,
		Category:      cat,
		TransactionID: id,
	}, nil
}

// Cancel discards the user's session, if any. It never fails.
func (m *Manager) Cancel(ctx context.Context, userID int64) Reply {
	unlock := m.lock(userID)
	defer unlock()

	if s := m.session(userID); s != nil {
		m.deleteSession(userID)
		m.logger.DebugContext(ctx, "Session cancelled",
			log.FieldUserID, userID,
			log.FieldSessionID, s.id.String())
	}
	return Reply{Kind: ReplyCancelled, State: StateNone}
}

// State returns the user's current state.
func (m *Manager) State(userID int64) State {
	unlock := m.lock(userID)
	defer unlock()
	if s := m.session(userID); s != nil {
		return s.state
	}
	return StateNone
}

// Active returns the number of open sessions.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) lock(userID int64) func() {
	m.mu.Lock()
	l, ok := m.locks[userID]
	if !ok {
		l = &userLock{}
		m.locks[userID] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, userID)
		}
		m.mu.Unlock()
	}
}

func (m *Manager) session(userID int64) *session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[userID]
}

func (m *Manager) setSession(userID int64, s *session) {
	m.mu.Lock()
	m.sessions[userID] = s
	m.mu.Unlock()
}

func (m *Manager) deleteSession(userID int64) {
	m.mu.Lock()
	delete(m.sessions, userID)
	m.mu.Unlock()
}
