package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cmarket/permalink/models"
)

// memStore is an in-memory Store with the same conditional-update semantics
// as the GORM implementation, plus failure injection for the degraded paths.
type memStore struct {
	mu sync.Mutex

	slots        map[int]*models.PermanentLink
	products     map[string]*models.Product
	assignments  []*models.LinkAssignment
	queue        []*models.QueueEntry
	events       []*models.LinkAnalyticsEvent
	snapshots    map[string]*models.PerformanceSnapshot
	nextAssignID uint
	nextQueueID  uint

	failNextClaims int  // next N ClaimSlot calls lose the race
	failFinalize   bool // FinalizeAssignment returns an error
	failOpen       bool // OpenAssignment returns an error
}

func newMemStore(poolSize int) *memStore {
	s := &memStore{
		slots:     make(map[int]*models.PermanentLink),
		products:  make(map[string]*models.Product),
		snapshots: make(map[string]*models.PerformanceSnapshot),
	}
	_ = s.SeedSlots(context.Background(), poolSize)
	return s
}

func (s *memStore) addProduct(id, status string, durationHours int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[id] = &models.Product{
		ID:            id,
		Title:         "product " + id,
		Status:        status,
		DurationHours: durationHours,
	}
}

func (s *memStore) SeedSlots(ctx context.Context, poolSize int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for n := 1; n <= poolSize; n++ {
		if _, ok := s.slots[n]; ok {
			continue
		}
		s.slots[n] = &models.PermanentLink{
			ID:         uint(n),
			SlotNumber: n,
			Path:       models.SlotPath(n),
			Status:     models.LinkStatusAvailable,
		}
	}
	return nil
}

func (s *memStore) FreeSlots(ctx context.Context) ([]models.PermanentLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PermanentLink
	for _, slot := range s.slots {
		if slot.Status == models.LinkStatusAvailable {
			out = append(out, *slot)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SlotNumber < out[j].SlotNumber })
	return out, nil
}

func (s *memStore) ActiveSlots(ctx context.Context) ([]models.PermanentLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PermanentLink
	for _, slot := range s.slots {
		if slot.Status == models.LinkStatusActive {
			out = append(out, *slot)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PerformanceScore > out[j].PerformanceScore })
	return out, nil
}

func (s *memStore) ExpiredSlots(ctx context.Context, now time.Time) ([]models.PermanentLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PermanentLink
	for _, slot := range s.slots {
		if slot.Status == models.LinkStatusActive && slot.ExpiresAt != nil && !slot.ExpiresAt.After(now) {
			out = append(out, *slot)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SlotNumber < out[j].SlotNumber })
	return out, nil
}

func (s *memStore) SlotByNumber(ctx context.Context, slotNumber int) (*models.PermanentLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[slotNumber]
	if !ok {
		return nil, ErrSlotNotFound
	}
	cp := *slot
	return &cp, nil
}

func (s *memStore) ActiveSlotForProduct(ctx context.Context, productID string) (*models.PermanentLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, slot := range s.slots {
		if slot.Status == models.LinkStatusActive && slot.ProductID != nil && *slot.ProductID == productID {
			cp := *slot
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) ClaimSlot(ctx context.Context, slotNumber int, productID string, now, expiresAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNextClaims > 0 {
		s.failNextClaims--
		return false, nil
	}
	slot, ok := s.slots[slotNumber]
	if !ok || slot.Status != models.LinkStatusAvailable {
		return false, nil
	}
	pid := productID
	exp := expiresAt
	la := now
	slot.Status = models.LinkStatusActive
	slot.ProductID = &pid
	slot.LastAssigned = &la
	slot.ExpiresAt = &exp
	slot.ViewsCount = 0
	slot.WhatsappClicks = 0
	slot.FacebookShares = 0
	slot.PerformanceScore = 0
	return true, nil
}

func (s *memStore) ReleaseSlot(ctx context.Context, slotNumber int, productID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[slotNumber]
	if !ok || slot.Status != models.LinkStatusActive || slot.ProductID == nil || *slot.ProductID != productID {
		return false, nil
	}
	slot.Status = models.LinkStatusAvailable
	slot.ProductID = nil
	slot.ExpiresAt = nil
	slot.RotationCount++
	return true, nil
}

func (s *memStore) SetSlotScore(ctx context.Context, slotNumber int, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[slotNumber]
	if !ok {
		return ErrSlotNotFound
	}
	slot.PerformanceScore = score
	return nil
}

func (s *memStore) SetSlotMeta(ctx context.Context, slotNumber int, title, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[slotNumber]
	if !ok {
		return ErrSlotNotFound
	}
	slot.MetaTitle = title
	slot.MetaDescription = description
	return nil
}

func (s *memStore) BumpSlotCounter(ctx context.Context, linkID uint, eventType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, slot := range s.slots {
		if slot.ID != linkID {
			continue
		}
		switch eventType {
		case models.EventTypeView:
			slot.ViewsCount++
		case models.EventTypeWhatsappClick:
			slot.WhatsappClicks++
		case models.EventTypeFacebookShare:
			slot.FacebookShares++
		}
		return nil
	}
	return ErrSlotNotFound
}

func (s *memStore) OpenAssignment(ctx context.Context, a *models.LinkAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOpen {
		return fmt.Errorf("storage unavailable")
	}
	s.nextAssignID++
	a.ID = s.nextAssignID
	cp := *a
	s.assignments = append(s.assignments, &cp)
	return nil
}

func (s *memStore) OpenAssignmentForLink(ctx context.Context, linkID uint) (*models.LinkAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.assignments) - 1; i >= 0; i-- {
		a := s.assignments[i]
		if a.LinkID == linkID && a.ExpiredAt == nil {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) FinalizeAssignment(ctx context.Context, id uint, expiredAt time.Time, totals CounterTotals, finalScore float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFinalize {
		return fmt.Errorf("storage unavailable")
	}
	for _, a := range s.assignments {
		if a.ID == id && a.ExpiredAt == nil {
			exp := expiredAt
			a.ExpiredAt = &exp
			a.TotalViews = totals.Views
			a.TotalClicks = totals.Clicks
			a.TotalShares = totals.Shares
			a.FinalScore = finalScore
		}
	}
	return nil
}

func (s *memStore) AssignmentsForSlot(ctx context.Context, slotNumber int, limit int) ([]models.LinkAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.LinkAssignment
	for i := len(s.assignments) - 1; i >= 0 && len(out) < limit; i-- {
		if s.assignments[i].SlotNumber == slotNumber {
			out = append(out, *s.assignments[i])
		}
	}
	return out, nil
}

func (s *memStore) Enqueue(ctx context.Context, productID string, now time.Time) (*models.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextQueueID++
	entry := &models.QueueEntry{ID: s.nextQueueID, ProductID: productID, EnqueuedAt: now}
	s.queue = append(s.queue, entry)
	cp := *entry
	return &cp, nil
}

func (s *memStore) PendingEntry(ctx context.Context, productID string) (*models.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range s.queue {
		if entry.ProductID == productID && entry.PromotedAt == nil {
			cp := *entry
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) PendingQueue(ctx context.Context) ([]models.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.QueueEntry
	for _, entry := range s.queue {
		if entry.PromotedAt == nil {
			out = append(out, *entry)
		}
	}
	return out, nil
}

func (s *memStore) QueueHead(ctx context.Context) (*models.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range s.queue {
		if entry.PromotedAt == nil {
			cp := *entry
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) MarkPromoted(ctx context.Context, entryID uint, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range s.queue {
		if entry.ID == entryID && entry.PromotedAt == nil {
			ts := now
			entry.PromotedAt = &ts
		}
	}
	return nil
}

func (s *memStore) ProductByID(ctx context.Context, id string) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *memStore) SetProductStatus(ctx context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.products[id]; ok {
		p.Status = status
	}
	return nil
}

func (s *memStore) InsertEvent(ctx context.Context, e *models.LinkAnalyticsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	s.events = append(s.events, &cp)
	return nil
}

func (s *memStore) AggregateSignals(ctx context.Context, linkID uint, since time.Time) (ScoreSignals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sig ScoreSignals
	var dwellSum float64
	var dwellCount, bounceCount, viewWithMeta int64
	for _, e := range s.events {
		if e.LinkID != linkID || e.CreatedAt.Before(since) {
			continue
		}
		switch e.EventType {
		case models.EventTypeView:
			sig.Views++
			var meta struct {
				DwellMs int64 `json:"dwell_ms"`
				Bounced bool  `json:"bounced"`
			}
			if e.Metadata != "" && json.Unmarshal([]byte(e.Metadata), &meta) == nil {
				viewWithMeta++
				dwellSum += float64(meta.DwellMs) / 1000
				dwellCount++
				if meta.Bounced {
					bounceCount++
				}
			}
		case models.EventTypeWhatsappClick:
			sig.WhatsappClicks++
		case models.EventTypeFacebookShare:
			sig.FacebookShares++
		}
	}
	if dwellCount > 0 {
		sig.AvgDwellSec = dwellSum / float64(dwellCount)
	}
	if viewWithMeta > 0 {
		sig.BounceRate = float64(bounceCount) / float64(viewWithMeta)
	}
	return sig, nil
}

func (s *memStore) InsertSnapshot(ctx context.Context, snap *models.PerformanceSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := fmt.Sprintf("%d|%s", snap.LinkID, snap.Day.Format("2006-01-02"))
	if _, ok := s.snapshots[key]; ok {
		return nil
	}
	cp := *snap
	s.snapshots[key] = &cp
	return nil
}

func (s *memStore) SnapshotsForSlot(ctx context.Context, slotNumber int, days int) ([]models.PerformanceSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PerformanceSnapshot
	for _, snap := range s.snapshots {
		if snap.LinkID == uint(slotNumber) {
			out = append(out, *snap)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.After(out[j].Day) })
	if len(out) > days {
		out = out[:days]
	}
	return out, nil
}
