package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"bill-reconciliation-service/internal/matcher"
	"bill-reconciliation-service/internal/models"
	"bill-reconciliation-service/pkg/errors"
	"bill-reconciliation-service/pkg/logger"
)

// Store is an in-memory session store. It is safe for concurrent use.
// Sessions are lost when the process exits.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
	logger   logger.Logger
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
		now:      time.Now,
		logger:   logger.GetGlobalLogger().WithComponent("session"),
	}
}

// Create starts a new session and returns a copy of it
func (s *Store) Create(ctx context.Context) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := s.now()
	sess := &Session{
		ID:            uuid.New().String(),
		Status:        StatusCreated,
		PurchaseItems: []*models.Record{},
		SaleItems:     []*models.Record{},
		PurchaseFiles: []string{},
		SaleFiles:     []string{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	s.logger.WithField("session_id", sess.ID).Debug("Session created")
	return sess.clone(), nil
}

// Get returns a copy of the session
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return sess.clone(), nil
}

// Delete removes the session
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.lookup(id); err != nil {
		return err
	}
	delete(s.sessions, id)

	s.logger.WithField("session_id", id).Debug("Session deleted")
	return nil
}

// AddRecords appends the records extracted from one bill file and moves
// the session to processing. It returns the number of records now held
// for the role.
func (s *Store) AddRecords(ctx context.Context, id string, role models.Role, file string, records []*models.Record) (int, error) {
	if !role.IsValid() {
		return 0, errors.ValidationError(errors.CodeInvalidRole, "role", role, nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookup(id)
	if err != nil {
		return 0, err
	}

	items := sess.Items(role)
	for _, r := range records {
		if r == nil {
			continue
		}
		c := r.Clone()
		if c.SourceFile == "" {
			c.SourceFile = file
		}
		items = append(items, c)
	}
	sess.setItems(role, items)
	sess.addFile(role, file)
	sess.Status = StatusProcessing
	sess.UpdatedAt = s.now()

	s.logger.WithFields(logger.Fields{
		"session_id": id,
		"role":       role,
		"file":       file,
		"records":    len(records),
	}).Debug("Records added to session")

	return len(items), nil
}

// AddItem appends a manually entered record. The record must carry an
// identifier and the role price.
func (s *Store) AddItem(ctx context.Context, id string, role models.Role, record *models.Record) (int, error) {
	if !role.IsValid() {
		return 0, errors.ValidationError(errors.CodeInvalidRole, "role", role, nil)
	}
	if record == nil || !record.IsValid(role) {
		return 0, errors.ValidationError(errors.CodeMissingField, "item", record, nil).
			WithSuggestion("provide a name, serial number or HSN code and the " + role.String() + " price")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookup(id)
	if err != nil {
		return 0, err
	}

	c := record.Clone()
	c.Quantity = models.ClampQuantity(c.Quantity)
	items := append(sess.Items(role), c)
	sess.setItems(role, items)
	sess.UpdatedAt = s.now()

	return len(items), nil
}

// UpdateItem edits the record at index and returns a copy of the result
func (s *Store) UpdateItem(ctx context.Context, id string, role models.Role, index int, update ItemUpdate) (*models.Record, error) {
	if !role.IsValid() {
		return nil, errors.ValidationError(errors.CodeInvalidRole, "role", role, nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	items := sess.Items(role)
	if index < 0 || index >= len(items) {
		return nil, errors.ValidationError(errors.CodeOutOfRange, "item_index", index, nil)
	}

	update.apply(items[index], role)
	sess.UpdatedAt = s.now()

	return items[index].Clone(), nil
}

// DeleteItem removes the record at index and returns it
func (s *Store) DeleteItem(ctx context.Context, id string, role models.Role, index int) (*models.Record, error) {
	if !role.IsValid() {
		return nil, errors.ValidationError(errors.CodeInvalidRole, "role", role, nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	items := sess.Items(role)
	if index < 0 || index >= len(items) {
		return nil, errors.ValidationError(errors.CodeOutOfRange, "item_index", index, nil)
	}

	removed := items[index]
	remaining := make([]*models.Record, 0, len(items)-1)
	remaining = append(remaining, items[:index]...)
	remaining = append(remaining, items[index+1:]...)
	sess.setItems(role, remaining)
	sess.UpdatedAt = s.now()

	return removed, nil
}

// SaveResult stores a reconciliation outcome and completes the session
func (s *Store) SaveResult(ctx context.Context, id string, result *matcher.MatchResult, summary *models.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookup(id)
	if err != nil {
		return err
	}

	sess.Result = result
	sess.Summary = summary
	sess.Status = StatusCompleted
	sess.UpdatedAt = s.now()
	return nil
}

// lookup must be called with the lock held
func (s *Store) lookup(id string) (*Session, error) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, errors.ValidationError(errors.CodeSessionNotFound, "session_id", id, nil)
	}
	return sess, nil
}
