package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rl1809/allshop-fulfillment/internal/core/domain"
	"github.com/rl1809/allshop-fulfillment/internal/port"
)

const (
	CollectionOrders    = "orders"
	CollectionLots      = "inventory_lots"
	CollectionMovements = "stock_movements"
	CollectionSerials   = "serials"
)

type FulfillmentService struct {
	store  port.DocumentStore
	events port.EventPublisher
	logger *zap.Logger
	now    func() time.Time
	newID  func() string

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

type sessionEntry struct {
	mu      sync.Mutex
	session *domain.Session
	closed  bool
}

type Option func(*FulfillmentService)

func WithClock(now func() time.Time) Option {
	return func(s *FulfillmentService) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *FulfillmentService) { s.newID = newID }
}

func NewFulfillmentService(store port.DocumentStore, events port.EventPublisher, logger *zap.Logger, opts ...Option) *FulfillmentService {
	s := &FulfillmentService{
		store:    store,
		events:   events,
		logger:   logger.Named("fulfillment"),
		now:      time.Now,
		newID:    uuid.NewString,
		sessions: make(map[string]*sessionEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ItemProgress reports scanning progress of one normalized item.
type ItemProgress struct {
	domain.NormalizedItem
	Scanned int      `json:"scanned"`
	Serials []string `json:"serials"`
}

type SessionView struct {
	ID        string         `json:"id"`
	OrderID   string         `json:"orderId"`
	Items     []ItemProgress `json:"items"`
	Complete  bool           `json:"complete"`
	LastError string         `json:"lastError,omitempty"`
	OpenedAt  time.Time      `json:"openedAt"`
}

type CommitResult struct {
	OrderID     string   `json:"orderId"`
	MovementID  string   `json:"movementId"`
	Serials     []string `json:"serials"`
	LotsUpdated []string `json:"lotsUpdated"`
}

// GetOrder reads an order outside of any transaction.
func (s *FulfillmentService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	var order domain.Order
	if err := s.store.Get(ctx, CollectionOrders, orderID, &order); err != nil {
		if errors.Is(err, port.ErrDocumentNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return &order, nil
}

// OpenSession starts a fulfillment workflow for the order, taking a snapshot
// of current inventory for speculative matching.
func (s *FulfillmentService) OpenSession(ctx context.Context, orderID string) (SessionView, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return SessionView{}, err
	}
	if order.IsFulfilled() {
		return SessionView{}, fmt.Errorf("%w: %s", ErrAlreadyFulfilled, orderID)
	}

	items, skipped := NormalizeItems(order.Items)
	if skipped > 0 {
		s.logger.Warn("skipped unfulfillable order items",
			zap.String("order_id", orderID),
			zap.Int("skipped", skipped),
		)
	}

	if len(items) == 0 {
		return SessionView{}, fmt.Errorf("%w: %s", ErrNothingToFulfill, orderID)
	}

	lots, err := listLots(ctx, s.store)
	if err != nil {
		return SessionView{}, err
	}

	now := s.now()
	sess := &domain.Session{
		ID:        s.newID(),
		OrderID:   orderID,
		Items:     items,
		Lots:      lots,
		OpenedAt:  now,
		TouchedAt: now,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = &sessionEntry{session: sess}
	s.mu.Unlock()

	s.logger.Info("fulfillment session opened",
		zap.String("session_id", sess.ID),
		zap.String("order_id", orderID),
		zap.Int("items", len(items)),
		zap.Int("lots", len(lots)),
	)

	return viewOf(sess), nil
}

func (s *FulfillmentService) Session(sessionID string) (SessionView, error) {
	var view SessionView
	err := s.withSession(sessionID, func(sess *domain.Session) error {
		view = viewOf(sess)
		return nil
	})
	return view, err
}

// Scan feeds a decoded barcode through the matcher. On an operator error the
// returned view carries the message and no scan is recorded.
func (s *FulfillmentService) Scan(sessionID, code string) (SessionView, error) {
	var view SessionView
	err := s.withSession(sessionID, func(sess *domain.Session) error {
		var err error
		view, err = s.scanLocked(sess, code)
		return err
	})
	return view, err
}

// SelectUnit is the manual fallback when a barcode cannot be read. The serial
// must be one of the item's current candidates.
func (s *FulfillmentService) SelectUnit(sessionID, itemKey, serial string) (SessionView, error) {
	var view SessionView
	err := s.withSession(sessionID, func(sess *domain.Session) error {
		candidates, err := AvailableUnitsFor(sess, itemKey)
		if err != nil {
			return err
		}

		want := domain.NormalizeSerial(serial)
		for _, c := range candidates {
			if c.Serial == want {
				view, err = s.scanLocked(sess, want)
				return err
			}
		}

		err = fmt.Errorf("%w: %s is not a candidate for %s", ErrNoMatchingLineItem, want, itemKey)
		sess.LastError = err.Error()
		view = viewOf(sess)
		return err
	})
	return view, err
}

func (s *FulfillmentService) scanLocked(sess *domain.Session, code string) (SessionView, error) {
	sess.TouchedAt = s.now()
	_, err := MatchScan(code, sess)
	if err != nil {
		sess.LastError = err.Error()
		s.logger.Info("scan rejected",
			zap.String("session_id", sess.ID),
			zap.String("code", code),
			zap.Error(err),
		)
	}
	return viewOf(sess), err
}

func (s *FulfillmentService) Candidates(sessionID, itemKey string) ([]Candidate, error) {
	var out []Candidate
	err := s.withSession(sessionID, func(sess *domain.Session) error {
		var err error
		out, err = AvailableUnitsFor(sess, itemKey)
		return err
	})
	return out, err
}

// Cancel discards the session. Nothing was persisted, so nothing is undone.
func (s *FulfillmentService) Cancel(sessionID string) error {
	s.mu.Lock()
	entry, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	entry.mu.Lock()
	entry.closed = true
	entry.mu.Unlock()

	s.logger.Info("fulfillment session cancelled", zap.String("session_id", sessionID))
	return nil
}

// ExpireSessions drops sessions idle since before the cutoff.
func (s *FulfillmentService) ExpireSessions(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	expired := 0
	for id, entry := range s.sessions {
		if !entry.mu.TryLock() {
			continue
		}
		if entry.session.TouchedAt.Before(cutoff) {
			entry.closed = true
			delete(s.sessions, id)
			expired++
		}
		entry.mu.Unlock()
	}
	if expired > 0 {
		s.logger.Info("expired idle fulfillment sessions", zap.Int("count", expired))
	}
	return expired
}

// Commit atomically applies the session's scans. It is rejected before the
// transaction starts unless every item is fully scanned.
func (s *FulfillmentService) Commit(ctx context.Context, sessionID string, actor domain.Actor, trackingNumber string) (*CommitResult, error) {
	var (
		result  *CommitResult
		discard bool
	)
	err := s.withSession(sessionID, func(sess *domain.Session) error {
		if !sess.Complete() {
			return ErrIncompleteScan
		}

		movementID := s.newID()
		var plan *FulfillmentPlan
		err := s.store.RunTransaction(ctx, func(ctx context.Context, tx port.Transaction) error {
			var err error
			plan, err = s.planInTx(ctx, tx, sess, actor, trackingNumber, movementID)
			if err != nil {
				return err
			}
			return applyPlan(ctx, tx, sess.OrderID, plan)
		})
		if err != nil {
			s.logger.Warn("fulfillment aborted",
				zap.String("session_id", sess.ID),
				zap.String("order_id", sess.OrderID),
				zap.Error(err),
			)
			discard = s.recoverFromConflict(ctx, sess, err)
			return err
		}

		result = &CommitResult{
			OrderID:    sess.OrderID,
			MovementID: plan.Movement.ID,
			Serials:    plan.OrderFields["serialNumbers"].([]string),
		}
		for _, lot := range plan.Lots {
			result.LotsUpdated = append(result.LotsUpdated, lot.ID)
		}
		return nil
	})
	if err != nil {
		if discard {
			s.dropSession(sessionID)
		}
		return nil, err
	}

	s.dropSession(sessionID)
	s.logger.Info("order fulfilled",
		zap.String("order_id", result.OrderID),
		zap.String("movement_id", result.MovementID),
		zap.Strings("serials", result.Serials),
		zap.String("actor", actor.DisplayName()),
	)
	s.publish(ctx, result, actor, trackingNumber)

	return result, nil
}

func (s *FulfillmentService) planInTx(ctx context.Context, tx port.Transaction, sess *domain.Session, actor domain.Actor, tracking, movementID string) (*FulfillmentPlan, error) {
	var order domain.Order
	if err := tx.Get(ctx, CollectionOrders, sess.OrderID, &order); err != nil {
		if errors.Is(err, port.ErrDocumentNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, sess.OrderID)
		}
		return nil, fmt.Errorf("read order: %w", err)
	}

	lots := make(map[string]domain.Lot)
	for _, id := range LotIDs(sess.Scanned) {
		var lot domain.Lot
		if err := tx.Get(ctx, CollectionLots, id, &lot); err != nil {
			if errors.Is(err, port.ErrDocumentNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrLotNotFound, id)
			}
			return nil, fmt.Errorf("read lot %s: %w", id, err)
		}
		lots[id] = lot
	}

	return PlanFulfillment(FulfillmentInput{
		Order:          order,
		Lots:           lots,
		Items:          sess.Items,
		Scanned:        sess.Scanned,
		Actor:          actor,
		TrackingNumber: tracking,
		MovementID:     movementID,
		Now:            s.now(),
	})
}

func applyPlan(ctx context.Context, tx port.Transaction, orderID string, plan *FulfillmentPlan) error {
	for _, lot := range plan.Lots {
		err := tx.Update(ctx, CollectionLots, lot.ID, map[string]any{
			"quantitySold": lot.QuantitySold,
			"status":       lot.Status,
			"units":        lot.Units,
			"updatedAt":    lot.UpdatedAt,
		})
		if err != nil {
			return fmt.Errorf("update lot %s: %w", lot.ID, err)
		}
	}

	if err := tx.Set(CollectionMovements, plan.Movement.ID, plan.Movement); err != nil {
		return fmt.Errorf("write stock movement: %w", err)
	}

	if err := tx.Update(ctx, CollectionOrders, orderID, plan.OrderFields); err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if err := tx.ArrayAppend(ctx, CollectionOrders, orderID, "statusHistory", plan.History); err != nil {
		return fmt.Errorf("append status history: %w", err)
	}
	return nil
}

// recoverFromConflict leaves the session ready for re-scanning. Scans whose
// units were claimed elsewhere are dropped. It returns true when the session
// can no longer succeed and must be discarded.
func (s *FulfillmentService) recoverFromConflict(ctx context.Context, sess *domain.Session, cause error) bool {
	sess.LastError = cause.Error()

	if errors.Is(cause, ErrAlreadyFulfilled) || errors.Is(cause, ErrOrderNotFound) {
		return true
	}
	if !IsConflict(cause) {
		return false
	}

	lots, err := listLots(ctx, s.store)
	if err != nil {
		s.logger.Warn("refresh inventory after conflict failed", zap.Error(err))
		return false
	}
	sess.Lots = lots

	kept := sess.Scanned[:0]
	for _, si := range sess.Scanned {
		lot, unit := findUnit(lots, si.Serial)
		if lot != nil && lot.ID == si.LotID && unit.Status == domain.UnitAvailable {
			kept = append(kept, si)
		}
	}
	sess.Scanned = kept
	return false
}

func (s *FulfillmentService) publish(ctx context.Context, result *CommitResult, actor domain.Actor, tracking string) {
	if s.events == nil {
		return
	}

	event := domain.FulfillmentCompletedEvent{
		EventID:        uuid.NewString(),
		OrderID:        result.OrderID,
		MovementID:     result.MovementID,
		Serials:        result.Serials,
		TrackingNumber: tracking,
		ActorID:        actor.ID,
		OccurredAt:     s.now(),
	}
	if err := s.events.PublishFulfillmentCompleted(ctx, event); err != nil {
		s.logger.Warn("publish fulfillment event failed",
			zap.String("order_id", result.OrderID),
			zap.Error(err),
		)
	}
}

func (s *FulfillmentService) withSession(sessionID string, fn func(*domain.Session) error) error {
	s.mu.Lock()
	entry, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.closed {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return fn(entry.session)
}

func (s *FulfillmentService) dropSession(sessionID string) {
	s.mu.Lock()
	entry, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	if ok {
		entry.mu.Lock()
		entry.closed = true
		entry.mu.Unlock()
	}
}

func viewOf(sess *domain.Session) SessionView {
	view := SessionView{
		ID:        sess.ID,
		OrderID:   sess.OrderID,
		Items:     make([]ItemProgress, 0, len(sess.Items)),
		Complete:  sess.Complete(),
		LastError: sess.LastError,
		OpenedAt:  sess.OpenedAt,
	}
	for _, it := range sess.Items {
		serials := sess.SerialsFor(it.Key)
		if serials == nil {
			serials = []string{}
		}
		view.Items = append(view.Items, ItemProgress{
			NormalizedItem: it,
			Scanned:        len(serials),
			Serials:        serials,
		})
	}
	return view
}
