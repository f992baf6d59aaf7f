package health

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cachegrab/cachegrab/internal/provider"
)

// Service manages the health state of all tracked items.
// All state is in-memory and resets on application restart.
type Service struct {
	items  map[string]*HealthItem
	mu     sync.RWMutex
	now    func() time.Time
	logger zerolog.Logger
}

// NewService creates a new health service.
func NewService(logger zerolog.Logger) *Service {
	return &Service{
		items:  make(map[string]*HealthItem),
		now:    time.Now,
		logger: logger.With().Str("component", "health").Logger(),
	}
}

// RegisterItem adds a new item to health tracking with OK status.
func (s *Service) RegisterItem(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[id] = &HealthItem{ID: id, Name: name, Status: StatusOK}

	s.logger.Debug().Str("id", id).Str("name", name).Msg("Registered health item")
}

// Observe records the outcome of a call to the collaborator id. Rate limits
// and timeouts count as warnings; cancellation is not recorded.
func (s *Service) Observe(id string, err error) {
	switch {
	case err == nil:
		s.setStatus(id, StatusOK, "")
	case errors.Is(err, context.Canceled):
	case provider.IsTransient(err):
		s.setStatus(id, StatusWarning, err.Error())
	default:
		s.setStatus(id, StatusError, err.Error())
	}
}

// SetError sets an item to Error status with a message.
func (s *Service) SetError(id, message string) {
	s.setStatus(id, StatusError, message)
}

// SetWarning sets an item to Warning status with a message.
func (s *Service) SetWarning(id, message string) {
	s.setStatus(id, StatusWarning, message)
}

// ClearStatus resets an item to OK status.
func (s *Service) ClearStatus(id string) {
	s.setStatus(id, StatusOK, "")
}

func (s *Service) setStatus(id string, status HealthStatus, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, exists := s.items[id]
	if !exists {
		s.logger.Warn().Str("id", id).Msg("Attempted to update status for unregistered item")
		return
	}

	now := s.now()
	item.LastChecked = &now

	if item.Status == status && item.Message == message {
		return
	}

	oldStatus := item.Status
	item.Status = status
	item.Message = message
	if status != StatusOK {
		item.Timestamp = &now
	} else {
		item.Timestamp = nil
	}

	event := s.logger.Info()
	if status != StatusOK {
		event = s.logger.Warn()
	}
	event.
		Str("id", id).
		Str("name", item.Name).
		Str("oldStatus", string(oldStatus)).
		Str("newStatus", string(status)).
		Str("message", message).
		Msg("Health status changed")
}

// GetItem returns a copy of one item, or nil when it is not tracked.
func (s *Service) GetItem(id string) *HealthItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil
	}
	copied := *item
	return &copied
}

// GetAll returns every tracked item sorted by id.
func (s *Service) GetAll() []HealthItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]HealthItem, 0, len(s.items))
	for _, item := range s.items {
		items = append(items, *item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

// IsHealthy returns true when no tracked item is in Error status.
func (s *Service) IsHealthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, item := range s.items {
		if item.Status == StatusError {
			return false
		}
	}
	return true
}

// Response builds the API view.
func (s *Service) Response() HealthResponse {
	status := "ok"
	if !s.IsHealthy() {
		status = "degraded"
	}
	return HealthResponse{Status: status, Components: s.GetAll()}
}
