package http_test

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/samirrijal/geobubbles/internal/core/domain"
)

// memStore backs all four repositories in memory.
type memStore struct {
	mu       sync.Mutex
	seq      int
	users    map[string]*domain.User
	messages map[string]*domain.Message
	replies  map[string]*domain.Reply
	friends  map[string]map[string]struct{}

	listInBoundsFn func(ctx context.Context, q domain.CandidateQuery) ([]domain.Message, error)
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[string]*domain.User{},
		messages: map[string]*domain.Message{},
		replies:  map[string]*domain.Reply{},
		friends:  map[string]map[string]struct{}{},
	}
}

func (s *memStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s%d", prefix, s.seq)
}

func (s *memStore) addUser(id string, loc *domain.Coordinate) {
	u := &domain.User{ID: id, Username: id, Active: true}
	if loc != nil {
		p := domain.FromCoordinate(*loc)
		u.LastLocation = &p
	}
	s.users[id] = u
}

func (s *memStore) addMessage(id, author string, vis domain.Visibility, lat, lon float64) {
	s.messages[id] = &domain.Message{
		ID:         id,
		AuthorID:   author,
		Text:       "bubble " + id,
		Visibility: vis,
		Location:   domain.FromCoordinate(domain.Coordinate{Lat: lat, Lon: lon}),
	}
}

func (s *memStore) link(a, b string) {
	for _, p := range [][2]string{{a, b}, {b, a}} {
		if s.friends[p[0]] == nil {
			s.friends[p[0]] = map[string]struct{}{}
		}
		s.friends[p[0]][p[1]] = struct{}{}
	}
}

type userRepo struct{ *memStore }

func (r userRepo) Create(ctx context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == u.Username {
			return domain.ErrConflict
		}
	}
	if u.ID == "" {
		u.ID = r.nextID("u")
	}
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r userRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r userRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r userRepo) UpdateLocation(ctx context.Context, id string, loc domain.GeoPoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.LastLocation = &loc
	return nil
}

func (r userRepo) SetActive(ctx context.Context, id string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.Active = active
	return nil
}

func (r userRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

type messageRepo struct{ *memStore }

func (r messageRepo) Create(ctx context.Context, m *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID == "" {
		m.ID = r.nextID("m")
	}
	cp := *m
	r.messages[m.ID] = &cp
	return nil
}

func (r messageRepo) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (r messageRepo) sorted(keep func(*domain.Message) bool) []domain.Message {
	var out []domain.Message
	for _, m := range r.messages {
		if keep(m) {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r messageRepo) ListByAuthor(ctx context.Context, authorID string, limit int) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.sorted(func(m *domain.Message) bool { return m.AuthorID == authorID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListInBounds ignores the box and pages by ID; the visibility filter does the geofencing.
func (r messageRepo) ListInBounds(ctx context.Context, q domain.CandidateQuery) ([]domain.Message, error) {
	if r.listInBoundsFn != nil {
		return r.listInBoundsFn(ctx, q)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.sorted(func(m *domain.Message) bool {
		return q.Admits(m) && (q.After == nil || m.ID > q.After.ID)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (r messageRepo) UpdateVisibility(ctx context.Context, id string, v domain.Visibility) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return domain.ErrNotFound
	}
	m.Visibility = v
	return nil
}

func (r messageRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.messages[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.messages, id)
	return nil
}

func (r messageRepo) DeleteByAuthor(ctx context.Context, authorID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, m := range r.messages {
		if m.AuthorID == authorID {
			ids = append(ids, id)
			delete(r.messages, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

type replyRepo struct{ *memStore }

func (r replyRepo) Create(ctx context.Context, rep *domain.Reply) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rep.ID == "" {
		rep.ID = r.nextID("r")
	}
	cp := *rep
	r.replies[rep.ID] = &cp
	if m, ok := r.messages[rep.MessageID]; ok {
		m.ReplyCount++
	}
	return nil
}

func (r replyRepo) GetByID(ctx context.Context, id string) (*domain.Reply, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rep, ok := r.replies[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *rep
	return &cp, nil
}

func (r replyRepo) ListByMessage(ctx context.Context, messageID string, limit int) ([]domain.Reply, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Reply
	for _, rep := range r.replies {
		if rep.MessageID == messageID {
			out = append(out, *rep)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r replyRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.replies[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.replies, id)
	return nil
}

func (r replyRepo) deleteWhere(keep func(*domain.Reply) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, rep := range r.replies {
		if !keep(rep) {
			delete(r.replies, id)
		}
	}
}

func (r replyRepo) DeleteByMessage(ctx context.Context, messageID string) error {
	r.deleteWhere(func(rep *domain.Reply) bool { return rep.MessageID != messageID })
	return nil
}

func (r replyRepo) DeleteByAuthor(ctx context.Context, authorID string) error {
	r.deleteWhere(func(rep *domain.Reply) bool { return rep.AuthorID != authorID })
	return nil
}

type friendRepo struct{ *memStore }

func (r friendRepo) Add(ctx context.Context, userID, friendID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.friends[userID][friendID]; ok {
		return domain.ErrConflict
	}
	r.link(userID, friendID)
	return nil
}

func (r friendRepo) Remove(ctx context.Context, userID, friendID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.friends[userID][friendID]; !ok {
		return domain.ErrNotFound
	}
	delete(r.friends[userID], friendID)
	delete(r.friends[friendID], userID)
	return nil
}

func (r friendRepo) List(ctx context.Context, userID string) ([]domain.Friend, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Friend{}
	for id := range r.friends[userID] {
		f := domain.Friend{UserID: id}
		if u, ok := r.users[id]; ok {
			f.Username = u.Username
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (r friendRepo) RemoveAll(ctx context.Context, userID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id := range r.friends[userID] {
		ids = append(ids, id)
		delete(r.friends[id], userID)
	}
	delete(r.friends, userID)
	sort.Strings(ids)
	return ids, nil
}

type mockScheduler struct {
	scheduled []string
}

func (m *mockScheduler) SchedulePurge(ctx context.Context, userID string) (string, error) {
	m.scheduled = append(m.scheduled, userID)
	return "purge-" + userID, nil
}
