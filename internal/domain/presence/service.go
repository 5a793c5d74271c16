package presence

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	workspacedomain "eastask-go/internal/domain/workspace"
	"eastask-go/pkg/logger"
	"golang.org/x/time/rate"
)

const (
	defaultWindow     = 5 * time.Second
	defaultStaleAfter = 2 * time.Minute
	pruneThreshold    = 1024
)

type AccessChecker interface {
	CheckAccess(ctx context.Context, userID, workspaceID string) (workspacedomain.Access, error)
}

type Observer interface {
	ObservePresence(outcome string)
}

type Options struct {
	Window     time.Duration
	StaleAfter time.Duration
	Observer   Observer
	Now        func() time.Time
}

// Service accepts at most one presence update per user per window and rejects
// updates that overlap one still being written.
type Service struct {
	store      Store
	access     AccessChecker
	log        logger.Logger
	window     time.Duration
	staleAfter time.Duration
	observer   Observer
	now        func() time.Time

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	inFlight map[string]struct{}
	slots    map[string]*writeSlot
	tickets  uint64
}

// writeSlot orders store writes for one user in one workspace. Tickets are
// handed out when a write is admitted; a write that finds a newer ticket
// already applied is dropped.
type writeSlot struct {
	mu      sync.Mutex
	applied uint64
	refs    int
}

func NewService(store Store, access AccessChecker, log logger.Logger, opts Options) *Service {
	if log == nil {
		log = logger.Nop()
	}
	window := opts.Window
	if window <= 0 {
		window = defaultWindow
	}
	staleAfter := opts.StaleAfter
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:      store,
		access:     access,
		log:        log.With("component", "presence"),
		window:     window,
		staleAfter: staleAfter,
		observer:   opts.Observer,
		now:        now,
		limiters:   make(map[string]*rate.Limiter),
		inFlight:   make(map[string]struct{}),
		slots:      make(map[string]*writeSlot),
	}
}

func (s *Service) Update(ctx context.Context, input UpdateInput) (*Presence, error) {
	status := strings.ToLower(strings.TrimSpace(input.Status))
	if status == "" {
		status = StatusOnline
	}
	if !IsValidStatus(status) {
		return nil, ErrInvalidStatus
	}

	if _, err := s.access.CheckAccess(ctx, input.UserID, input.WorkspaceID); err != nil {
		return nil, err
	}

	now := s.now()
	key := slotKey(input.WorkspaceID, input.UserID)
	var (
		slot   *writeSlot
		ticket uint64
	)
	if status == StatusOffline {
		slot, ticket = s.enter(key)
		defer s.leave(key)
	} else {
		var err error
		slot, ticket, err = s.acquire(input.UserID, key, now)
		if err != nil {
			return nil, err
		}
		defer s.release(input.UserID, key)
	}

	entry := Presence{
		UserID:      input.UserID,
		WorkspaceID: input.WorkspaceID,
		Status:      status,
		Location:    strings.TrimSpace(input.Location),
		LastSeen:    now.UTC(),
	}
	err := s.apply(slot, ticket, func() error { return s.store.Set(ctx, entry) })
	if err != nil {
		s.log.InternalError("presence.update: store write failed", err,
			"workspace_id", entry.WorkspaceID, "user_id", entry.UserID)
		return nil, err
	}
	return &entry, nil
}

// SetOffline marks the user offline without consuming the update window.
// A write still in flight for the same user cannot overwrite it afterwards.
func (s *Service) SetOffline(ctx context.Context, userID, workspaceID string) error {
	_, err := s.Update(ctx, UpdateInput{UserID: userID, WorkspaceID: workspaceID, Status: StatusOffline})
	return err
}

// Forget drops the user's entry for a workspace they no longer belong to.
// There is no access check: the caller has just revoked the membership.
func (s *Service) Forget(ctx context.Context, workspaceID, userID string) error {
	key := slotKey(workspaceID, userID)
	slot, ticket := s.enter(key)
	defer s.leave(key)

	return s.apply(slot, ticket, func() error { return s.store.Delete(ctx, workspaceID, userID) })
}

// ListOnline returns users that are not offline and were seen within the
// stale window, most recent first.
func (s *Service) ListOnline(ctx context.Context, userID, workspaceID string) ([]Presence, error) {
	if _, err := s.access.CheckAccess(ctx, userID, workspaceID); err != nil {
		return nil, err
	}
	return s.Online(ctx, workspaceID)
}

// Online is ListOnline without the access check, for callers that already
// performed it.
func (s *Service) Online(ctx context.Context, workspaceID string) ([]Presence, error) {
	entries, err := s.store.List(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	cutoff := s.now().Add(-s.staleAfter)
	online := make([]Presence, 0, len(entries))
	for _, entry := range entries {
		if entry.Status == StatusOffline || entry.LastSeen.Before(cutoff) {
			continue
		}
		online = append(online, entry)
	}
	sort.Slice(online, func(i, j int) bool {
		return online[i].LastSeen.After(online[j].LastSeen)
	})
	return online, nil
}

func (s *Service) acquire(userID, key string, now time.Time) (*writeSlot, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.inFlight[userID]; busy {
		s.observe(OutcomeInFlight)
		return nil, 0, ErrUpdateInFlight
	}

	if len(s.limiters) > pruneThreshold {
		s.pruneLocked(now)
	}
	limiter, ok := s.limiters[userID]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(s.window), 1)
		s.limiters[userID] = limiter
	}

	reservation := limiter.ReserveN(now, 1)
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		s.observe(OutcomeThrottled)
		return nil, 0, &ThrottleError{RetryAfter: delay}
	}

	s.inFlight[userID] = struct{}{}
	s.observe(OutcomeAccepted)
	slot, ticket := s.enterLocked(key)
	return slot, ticket, nil
}

func (s *Service) release(userID, key string) {
	s.mu.Lock()
	delete(s.inFlight, userID)
	s.leaveLocked(key)
	s.mu.Unlock()
}

func (s *Service) enter(key string) (*writeSlot, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enterLocked(key)
}

func (s *Service) enterLocked(key string) (*writeSlot, uint64) {
	slot, ok := s.slots[key]
	if !ok {
		slot = &writeSlot{}
		s.slots[key] = slot
	}
	slot.refs++
	s.tickets++
	return slot, s.tickets
}

func (s *Service) leave(key string) {
	s.mu.Lock()
	s.leaveLocked(key)
	s.mu.Unlock()
}

func (s *Service) leaveLocked(key string) {
	slot, ok := s.slots[key]
	if !ok {
		return
	}
	slot.refs--
	if slot.refs <= 0 {
		delete(s.slots, key)
	}
}

// apply runs write unless a write admitted later has already landed.
func (s *Service) apply(slot *writeSlot, ticket uint64, write func() error) error {
	slot.mu.Lock()
	defer slot.mu.Unlock()

	if ticket < slot.applied {
		return nil
	}
	if err := write(); err != nil {
		return err
	}
	slot.applied = ticket
	return nil
}

func slotKey(workspaceID, userID string) string {
	return workspaceID + "/" + userID
}

// pruneLocked drops limiters that have refilled, they carry no state.
func (s *Service) pruneLocked(now time.Time) {
	for userID, limiter := range s.limiters {
		if _, busy := s.inFlight[userID]; busy {
			continue
		}
		if limiter.TokensAt(now) >= 1 {
			delete(s.limiters, userID)
		}
	}
}

func (s *Service) observe(outcome string) {
	if s.observer != nil {
		s.observer.ObservePresence(outcome)
	}
}
