package usecases_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/geobubbles/internal/core/domain"
)

// --- Mock UserRepository ---

type mockUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User

	getByIDFn   func(ctx context.Context, id string) (*domain.User, error)
	setActiveFn func(ctx context.Context, id string, active bool) error
}

func newMockUserRepo(users ...domain.User) *mockUserRepo {
	m := &mockUserRepo{users: map[string]*domain.User{}}
	for i := range users {
		u := users[i]
		m.users[u.ID] = &u
	}
	return m
}

func (m *mockUserRepo) Create(ctx context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockUserRepo) UpdateLocation(ctx context.Context, id string, loc domain.GeoPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now()
	u.LastLocation = &loc
	u.LocationUpdatedAt = &now
	return nil
}

func (m *mockUserRepo) SetActive(ctx context.Context, id string, active bool) error {
	if m.setActiveFn != nil {
		return m.setActiveFn(ctx, id, active)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.Active = active
	return nil
}

func (m *mockUserRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.users, id)
	return nil
}

// --- Mock MessageRepository ---

type mockMessageRepo struct {
	mu       sync.Mutex
	messages map[string]*domain.Message

	listInBoundsFn   func(ctx context.Context, q domain.CandidateQuery) ([]domain.Message, error)
	deleteByAuthorFn func(ctx context.Context, authorID string) ([]string, error)
	getCalls         int
	listCalls        int
}

func newMockMessageRepo(msgs ...domain.Message) *mockMessageRepo {
	m := &mockMessageRepo{messages: map[string]*domain.Message{}}
	for i := range msgs {
		msg := msgs[i]
		m.messages[msg.ID] = &msg
	}
	return m
}

func (m *mockMessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	cp := *msg
	m.messages[msg.ID] = &cp
	return nil
}

func (m *mockMessageRepo) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	msg, ok := m.messages[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *msg
	return &cp, nil
}

func (m *mockMessageRepo) ListByAuthor(ctx context.Context, authorID string, limit int) ([]domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Message
	for _, msg := range m.messages {
		if msg.AuthorID == authorID {
			out = append(out, *msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListInBounds ignores the box and pages by ID; the feed filter does the geofencing.
func (m *mockMessageRepo) ListInBounds(ctx context.Context, q domain.CandidateQuery) ([]domain.Message, error) {
	m.listCalls++
	if m.listInBoundsFn != nil {
		return m.listInBoundsFn(ctx, q)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Message
	for _, msg := range m.messages {
		if q.Admits(msg) && (q.After == nil || msg.ID > q.After.ID) {
			out = append(out, *msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *mockMessageRepo) UpdateVisibility(ctx context.Context, id string, v domain.Visibility) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return domain.ErrNotFound
	}
	msg.Visibility = v
	return nil
}

func (m *mockMessageRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.messages[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.messages, id)
	return nil
}

func (m *mockMessageRepo) DeleteByAuthor(ctx context.Context, authorID string) ([]string, error) {
	if m.deleteByAuthorFn != nil {
		return m.deleteByAuthorFn(ctx, authorID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, msg := range m.messages {
		if msg.AuthorID == authorID {
			ids = append(ids, id)
			delete(m.messages, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// --- Mock ReplyRepository ---

type mockReplyRepo struct {
	mu      sync.Mutex
	replies map[string]*domain.Reply
}

func newMockReplyRepo(replies ...domain.Reply) *mockReplyRepo {
	m := &mockReplyRepo{replies: map[string]*domain.Reply{}}
	for i := range replies {
		r := replies[i]
		m.replies[r.ID] = &r
	}
	return m
}

func (m *mockReplyRepo) Create(ctx context.Context, r *domain.Reply) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	cp := *r
	m.replies[r.ID] = &cp
	return nil
}

func (m *mockReplyRepo) GetByID(ctx context.Context, id string) (*domain.Reply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.replies[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *mockReplyRepo) ListByMessage(ctx context.Context, messageID string, limit int) ([]domain.Reply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Reply
	for _, r := range m.replies {
		if r.MessageID == messageID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockReplyRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.replies, id)
	return nil
}

func (m *mockReplyRepo) DeleteByMessage(ctx context.Context, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.replies {
		if r.MessageID == messageID {
			delete(m.replies, id)
		}
	}
	return nil
}

func (m *mockReplyRepo) DeleteByAuthor(ctx context.Context, authorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.replies {
		if r.AuthorID == authorID {
			delete(m.replies, id)
		}
	}
	return nil
}

// --- Mock FriendRepository ---

type mockFriendRepo struct {
	mu     sync.Mutex
	edges  map[string]map[string]struct{}
	listFn func(ctx context.Context, userID string) ([]domain.Friend, error)
	lists  int
}

func newMockFriendRepo(pairs ...[2]string) *mockFriendRepo {
	m := &mockFriendRepo{edges: map[string]map[string]struct{}{}}
	for _, p := range pairs {
		m.link(p[0], p[1])
	}
	return m
}

func (m *mockFriendRepo) link(a, b string) {
	for _, p := range [][2]string{{a, b}, {b, a}} {
		if m.edges[p[0]] == nil {
			m.edges[p[0]] = map[string]struct{}{}
		}
		m.edges[p[0]][p[1]] = struct{}{}
	}
}

func (m *mockFriendRepo) Add(ctx context.Context, userID, friendID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.edges[userID][friendID]; ok {
		return domain.ErrConflict
	}
	m.link(userID, friendID)
	return nil
}

func (m *mockFriendRepo) Remove(ctx context.Context, userID, friendID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.edges[userID][friendID]; !ok {
		return domain.ErrNotFound
	}
	delete(m.edges[userID], friendID)
	delete(m.edges[friendID], userID)
	return nil
}

func (m *mockFriendRepo) List(ctx context.Context, userID string) ([]domain.Friend, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists++
	var out []domain.Friend
	for id := range m.edges[userID] {
		out = append(out, domain.Friend{UserID: id, Username: id})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (m *mockFriendRepo) RemoveAll(ctx context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id := range m.edges[userID] {
		ids = append(ids, id)
		delete(m.edges[id], userID)
	}
	delete(m.edges, userID)
	sort.Strings(ids)
	return ids, nil
}

// --- Mock CacheService ---

type mockCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	deleted []string
}

func newMockCache() *mockCache { return &mockCache{data: map[string][]byte{}} }

func (c *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return v, nil
}

func (c *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *mockCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	c.deleted = append(c.deleted, key)
	return nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu        sync.Mutex
	events    []domain.MessageEvent
	locations []domain.LocationUpdate
}

func (p *mockPublisher) PublishMessageEvent(ctx context.Context, ev *domain.MessageEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *ev)
	return nil
}

func (p *mockPublisher) PublishLocationUpdate(ctx context.Context, u *domain.LocationUpdate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.locations = append(p.locations, *u)
	return nil
}

func point(lat, lon float64) domain.GeoPoint {
	return domain.FromCoordinate(domain.Coordinate{Lat: lat, Lon: lon})
}
