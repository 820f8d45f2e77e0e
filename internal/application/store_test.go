package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/example/desk-booking/internal/events"
	"github.com/example/desk-booking/internal/persistence"
	"github.com/example/desk-booking/internal/scheduler"
)

var referenceDay = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

func on(hour, minute int) time.Time {
	return referenceDay.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock { return &fakeClock{now: now} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(now time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%03d", prefix, n)
	}
}

// memoryStore is an in-memory persistence.Store with the same overlap and
// compare-and-set guarantees as the SQL implementations.
type memoryStore struct {
	mu       sync.Mutex
	desks    map[string]scheduler.Desk
	statuses map[scheduler.Status]int64
	bookings map[string]scheduler.Booking
	users    map[string]persistence.User
	audit    []persistence.AuditEntry

	createErr   error
	listErr     error
	reportErr   error
	beforeCAS   func(change persistence.StatusChange)
	changeErr   map[string]error
	createCalls int
}

var _ persistence.Store = (*memoryStore)(nil)

func newMemoryStore() *memoryStore {
	s := &memoryStore{
		desks:    make(map[string]scheduler.Desk),
		statuses: make(map[scheduler.Status]int64),
		bookings: make(map[string]scheduler.Booking),
		users:    make(map[string]persistence.User),
	}
	for i, st := range scheduler.AllStatuses() {
		s.statuses[st] = int64(i + 1)
	}
	return s
}

func (s *memoryStore) addDesk(code string) scheduler.Desk {
	s.mu.Lock()
	defer s.mu.Unlock()
	desk := scheduler.Desk{
		ID:       int64(len(s.desks) + 1),
		Code:     code,
		Location: scheduler.Location{Office: "HQ", Floor: "1", Sector: "A", LocalID: len(s.desks) + 1},
	}
	s.desks[code] = desk
	return desk
}

func (s *memoryStore) addBooking(b scheduler.Booking) {
	s.mu.Lock()
	s.bookings[b.ID] = b
	s.mu.Unlock()
}

func (s *memoryStore) booking(id string) scheduler.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bookings[id]
}

func (s *memoryStore) auditEntries() []persistence.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]persistence.AuditEntry(nil), s.audit...)
}

func (s *memoryStore) DeskExists(_ context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.desks[code]
	return ok, nil
}

func (s *memoryStore) GetDesk(_ context.Context, code string) (scheduler.Desk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	desk, ok := s.desks[code]
	if !ok {
		return scheduler.Desk{}, persistence.ErrNotFound
	}
	return desk, nil
}

func (s *memoryStore) CreateDesk(_ context.Context, desk scheduler.Desk) (scheduler.Desk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.desks {
		if existing.Code == desk.Code || existing.Location == desk.Location {
			return scheduler.Desk{}, persistence.ErrDuplicate
		}
	}
	desk.ID = int64(len(s.desks) + 1)
	s.desks[desk.Code] = desk
	return desk, nil
}

func (s *memoryStore) ListOffices(context.Context) ([]string, error) {
	return s.names(func(d scheduler.Desk) (string, bool) { return d.Location.Office, true }), nil
}

func (s *memoryStore) ListFloors(_ context.Context, office string) ([]string, error) {
	return s.names(func(d scheduler.Desk) (string, bool) { return d.Location.Floor, d.Location.Office == office }), nil
}

func (s *memoryStore) ListSectors(_ context.Context, office, floor string) ([]string, error) {
	return s.names(func(d scheduler.Desk) (string, bool) {
		return d.Location.Sector, d.Location.Office == office && d.Location.Floor == floor
	}), nil
}

func (s *memoryStore) names(pick func(scheduler.Desk) (string, bool)) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]bool{}
	out := []string{}
	for _, d := range s.desks {
		if name, ok := pick(d); ok && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (s *memoryStore) ListDesks(_ context.Context, filter persistence.DeskFilter) ([]scheduler.Desk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []scheduler.Desk
	for _, d := range s.desks {
		if (filter.Office == "" || d.Location.Office == filter.Office) &&
			(filter.Floor == "" || d.Location.Floor == filter.Floor) &&
			(filter.Sector == "" || d.Location.Sector == filter.Sector) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Location.LocalID < out[j].Location.LocalID })
	return out, nil
}

func (s *memoryStore) ResolveStatusID(_ context.Context, status scheduler.Status) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.statuses[status]
	if !ok {
		return 0, persistence.ErrUnknownStatus
	}
	return id, nil
}

func (s *memoryStore) CreateBooking(_ context.Context, booking scheduler.Booking, audit *persistence.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls++
	if s.createErr != nil {
		return s.createErr
	}
	if _, ok := s.statuses[booking.Status]; !ok {
		return persistence.ErrUnknownStatus
	}
	if _, ok := s.bookings[booking.ID]; ok {
		return persistence.ErrDuplicate
	}
	for _, existing := range s.bookings {
		if existing.DeskCode == booking.DeskCode && existing.Status.OccupiesDesk() &&
			scheduler.Overlaps(existing.Start, existing.End, booking.Start, booking.End) {
			return fmt.Errorf("%w: desk %s already held by booking %s", persistence.ErrOverlap, booking.DeskCode, existing.ID)
		}
	}
	s.bookings[booking.ID] = booking
	s.appendAudit(audit)
	return nil
}

func (s *memoryStore) GetBooking(_ context.Context, id string) (scheduler.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return scheduler.Booking{}, persistence.ErrNotFound
	}
	return b, nil
}

func (s *memoryStore) ListBookings(_ context.Context, filter persistence.BookingFilter) ([]scheduler.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []scheduler.Booking
	for _, b := range s.bookings {
		if filter.UserID != "" && b.UserID != filter.UserID {
			continue
		}
		if filter.DeskCode != "" && b.DeskCode != filter.DeskCode {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, b.Status) {
			continue
		}
		if filter.StartsBefore != nil && !b.Start.Before(*filter.StartsBefore) {
			continue
		}
		if filter.EndsAfter != nil && !b.End.After(*filter.EndsAfter) {
			continue
		}
		if filter.ExcludeID != "" && b.ID == filter.ExcludeID {
			continue
		}
		out = append(out, b)
	}
	sortBookings(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *memoryStore) ChangeStatus(_ context.Context, change persistence.StatusChange, audit *persistence.AuditEntry) (scheduler.Booking, error) {
	if s.beforeCAS != nil {
		s.beforeCAS(change)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.changeErr[change.BookingID]; err != nil {
		return scheduler.Booking{}, err
	}
	b, ok := s.bookings[change.BookingID]
	if !ok {
		return scheduler.Booking{}, persistence.ErrNotFound
	}
	if b.Status != change.From {
		return scheduler.Booking{}, fmt.Errorf("%w: booking %s is %s", persistence.ErrStatusMismatch, b.ID, b.Status)
	}
	b.Status = change.To
	b.UpdatedAt = change.At
	s.bookings[b.ID] = b
	s.appendAudit(audit)
	return b, nil
}

func (s *memoryStore) ListSweepCandidates(_ context.Context, now, noShowCutoff time.Time) ([]scheduler.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []scheduler.Booking
	for _, b := range s.bookings {
		switch {
		case b.Status == scheduler.StatusPending && (b.Start.Before(noShowCutoff) || !b.End.After(now)):
			out = append(out, b)
		case b.Status == scheduler.StatusActive && !b.End.After(now):
			out = append(out, b)
		}
	}
	sortBookings(out)
	return out, nil
}

func (s *memoryStore) MostBookedDesk(context.Context) (persistence.DeskUsage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reportErr != nil {
		return persistence.DeskUsage{}, s.reportErr
	}
	counts := map[string]int{}
	for _, b := range s.bookings {
		counts[b.DeskCode]++
	}
	code, total := topCount(counts)
	if total == 0 {
		return persistence.DeskUsage{}, persistence.ErrNotFound
	}
	return persistence.DeskUsage{Desk: s.desks[code], Bookings: total}, nil
}

func (s *memoryStore) MostFrequentUser(context.Context) (persistence.UserUsage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reportErr != nil {
		return persistence.UserUsage{}, s.reportErr
	}
	counts := map[string]int{}
	for _, b := range s.bookings {
		counts[b.UserID]++
	}
	id, total := topCount(counts)
	if total == 0 {
		return persistence.UserUsage{}, persistence.ErrNotFound
	}
	return persistence.UserUsage{UserID: id, Bookings: total}, nil
}

func (s *memoryStore) CreateUser(_ context.Context, user persistence.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; ok {
		return persistence.ErrDuplicate
	}
	s.users[user.ID] = user
	return nil
}

func (s *memoryStore) GetUser(_ context.Context, id string) (persistence.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return persistence.User{}, persistence.ErrNotFound
	}
	return user, nil
}

func (s *memoryStore) RecordAudit(_ context.Context, entry persistence.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendAudit(&entry)
	return nil
}

func (s *memoryStore) ListAudit(_ context.Context, limit int) ([]persistence.AuditEntry, error) {
	entries := s.auditEntries()
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

func (s *memoryStore) Ping(context.Context) error { return nil }

func (s *memoryStore) Close() error { return nil }

func (s *memoryStore) appendAudit(entry *persistence.AuditEntry) {
	if entry == nil {
		return
	}
	e := *entry
	e.ID = int64(len(s.audit) + 1)
	s.audit = append(s.audit, e)
}

func containsStatus(statuses []scheduler.Status, st scheduler.Status) bool {
	for _, candidate := range statuses {
		if candidate == st {
			return true
		}
	}
	return false
}

func sortBookings(bookings []scheduler.Booking) {
	sort.Slice(bookings, func(i, j int) bool {
		if !bookings[i].Start.Equal(bookings[j].Start) {
			return bookings[i].Start.Before(bookings[j].Start)
		}
		return bookings[i].ID < bookings[j].ID
	})
}

func topCount(counts map[string]int) (string, int) {
	var best string
	total := 0
	for key, n := range counts {
		if n > total || (n == total && key < best) {
			best, total = key, n
		}
	}
	return best, total
}

// recordingSink captures published events.
type recordingSink struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (r *recordingSink) Record(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

func (r *recordingSink) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

var errStoreDown = errors.New("store unavailable")
