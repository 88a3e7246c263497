package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	handler "github.com/samirrijal/geobubbles/internal/adapters/http"
	"github.com/samirrijal/geobubbles/internal/core/domain"
	"github.com/samirrijal/geobubbles/internal/core/usecases"
)

// ---- Test helpers ----

var bilbao = domain.Coordinate{Lat: 43.2630, Lon: -2.9350}

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true, ErrorHandler: handler.ErrorHandler})
	handler.SetupRoutes(app, deps)
	return app
}

func makeDeps(store *memStore, opts ...func(*handler.Dependencies)) *handler.Dependencies {
	users := usecases.NewUserService(userRepo{store}, nil)
	friends := usecases.NewFriendService(friendRepo{store}, userRepo{store}, nil)
	messages := usecases.NewMessageService(messageRepo{store}, replyRepo{store}, users, friends, nil, nil)
	d := &handler.Dependencies{
		Users:    users,
		Friends:  friends,
		Messages: messages,
		Replies:  usecases.NewReplyService(replyRepo{store}, messages, users),
		Feed: usecases.NewFeedService(messageRepo{store}, users, friends, usecases.FeedConfig{
			DefaultRadiusKm: 1, MaxRadiusKm: 10, CandidateLimit: 100,
		}),
		Accounts: usecases.NewAccountService(userRepo{store}, messageRepo{store}, replyRepo{store}, friendRepo{store}, nil, nil),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// seededStore holds a viewer "v" with friend "f", a stranger "s" and a
// neighbourhood of bubbles around Bilbao plus one in Madrid.
func seededStore() *memStore {
	s := newMemStore()
	s.addUser("v", &bilbao)
	s.addUser("f", nil)
	s.addUser("s", nil)
	s.link("v", "f")
	s.addMessage("m1", "s", domain.VisibilityPublic, 43.2631, -2.9351)
	s.addMessage("m2", "f", domain.VisibilityFriends, 43.2632, -2.9352)
	s.addMessage("m3", "s", domain.VisibilityFriends, 43.2633, -2.9353)
	s.addMessage("m4", "s", domain.VisibilityPublic, 40.4168, -3.7038)
	s.addMessage("m5", "v", domain.VisibilityFriends, 43.2634, -2.9354)
	return s
}

func do(t *testing.T, app *fiber.App, method, path, viewer string, body interface{}) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if viewer != "" {
		req.Header.Set(handler.HeaderUserID, viewer)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return v
}

func messageIDs(ms []domain.Message) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.ID
	}
	return out
}

// ---- Nearby feed ----

func TestNearbyMessages_VisibilityRules(t *testing.T) {
	app := setupApp(makeDeps(seededStore()))

	resp := do(t, app, "GET", "/v1/messages/nearby?lat=43.2630&lon=-2.9350", "v", nil)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	feed := decode[handler.FeedResponse](t, resp)

	got := strings.Join(messageIDs(feed.Data), ",")
	if got != "m1,m2,m5" {
		t.Errorf("expected m1,m2,m5, got %s", got)
	}
	if feed.LocationSource != usecases.LocationExplicit {
		t.Errorf("expected explicit location, got %q", feed.LocationSource)
	}
	if feed.RadiusKm != 1 {
		t.Errorf("expected default radius 1, got %v", feed.RadiusKm)
	}
	for _, m := range feed.Data {
		if m.DistanceKm == nil {
			t.Errorf("message %s has no distance", m.ID)
		}
	}
}

func TestNearbyMessages_AnonymousSeesPublicOnly(t *testing.T) {
	app := setupApp(makeDeps(seededStore()))

	resp := do(t, app, "GET", "/v1/messages/nearby?lat=43.2630&lon=-2.9350", "", nil)
	feed := decode[handler.FeedResponse](t, resp)
	if got := strings.Join(messageIDs(feed.Data), ","); got != "m1" {
		t.Errorf("expected m1, got %s", got)
	}
}

func TestNearbyMessages_UsesLastSeenLocation(t *testing.T) {
	app := setupApp(makeDeps(seededStore()))

	resp := do(t, app, "GET", "/v1/messages/nearby", "v", nil)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	feed := decode[handler.FeedResponse](t, resp)
	if feed.LocationSource != usecases.LocationLastSeen {
		t.Errorf("expected last_seen, got %q", feed.LocationSource)
	}
}

func TestNearbyMessages_Fallback(t *testing.T) {
	madrid := domain.Coordinate{Lat: 40.4168, Lon: -3.7038}
	app := setupApp(makeDeps(seededStore(), func(d *handler.Dependencies) { d.Fallback = &madrid }))

	resp := do(t, app, "GET", "/v1/messages/nearby", "s", nil)
	feed := decode[handler.FeedResponse](t, resp)
	if feed.LocationSource != usecases.LocationFallback {
		t.Errorf("expected fallback, got %q", feed.LocationSource)
	}
	if got := strings.Join(messageIDs(feed.Data), ","); got != "m4" {
		t.Errorf("expected m4, got %s", got)
	}
}

func TestNearbyMessages_NoLocation(t *testing.T) {
	app := setupApp(makeDeps(seededStore()))

	resp := do(t, app, "GET", "/v1/messages/nearby", "s", nil)
	if resp.StatusCode != 422 {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	apiErr := decode[handler.APIError](t, resp)
	if apiErr.Code != "location_unavailable" {
		t.Errorf("expected location_unavailable, got %q", apiErr.Code)
	}
}

func TestNearbyMessages_BadParams(t *testing.T) {
	app := setupApp(makeDeps(seededStore()))

	for _, path := range []string{
		"/v1/messages/nearby?lat=43.26",
		"/v1/messages/nearby?lat=91&lon=0",
		"/v1/messages/nearby?lat=43.26&lon=-2.93&radius_km=-1",
		"/v1/messages/nearby?lat=abc&lon=xyz",
		"/v1/messages/nearby?lat=43.26&lon=xyz",
		"/v1/messages/nearby?lat=43.26&lon=-2.93&radius_km=abc",
		"/v1/messages/nearby?lat=43.26&lon=-2.93&radius_km=NaN",
		"/v1/messages/nearby?lat=NaN&lon=-2.93",
	} {
		resp := do(t, app, "GET", path, "v", nil)
		if resp.StatusCode != 400 {
			t.Errorf("%s: expected 400, got %d", path, resp.StatusCode)
		}
	}
}

func TestNearbyMessages_MalformedGeometryCounted(t *testing.T) {
	store := seededStore()
	store.messages["bad"] = &domain.Message{
		ID: "bad", AuthorID: "s", Visibility: domain.VisibilityPublic,
		Location: domain.GeoPoint{Type: "LineString", Coordinates: []float64{-2.93, 43.26}},
	}
	app := setupApp(makeDeps(store))

	resp := do(t, app, "GET", "/v1/messages/nearby?lat=43.2630&lon=-2.9350", "v", nil)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	feed := decode[handler.FeedResponse](t, resp)
	if feed.Rejected != 1 {
		t.Errorf("expected 1 rejected, got %d", feed.Rejected)
	}
	if len(feed.Data) != 3 {
		t.Errorf("expected 3 visible, got %d", len(feed.Data))
	}
}

func TestNearbyMessages_StoreError(t *testing.T) {
	store := seededStore()
	store.listInBoundsFn = func(ctx context.Context, q domain.CandidateQuery) ([]domain.Message, error) {
		return nil, errors.New("connection reset")
	}
	app := setupApp(makeDeps(store))

	resp := do(t, app, "GET", "/v1/messages/nearby?lat=43.2630&lon=-2.9350", "v", nil)
	if resp.StatusCode != 500 {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
}

func TestNearbyMessages_NoStoreCacheControl(t *testing.T) {
	app := setupApp(makeDeps(seededStore()))

	resp := do(t, app, "GET", "/v1/messages/nearby?lat=43.2630&lon=-2.9350", "v", nil)
	if cc := resp.Header.Get("Cache-Control"); cc != "private, no-store" {
		t.Errorf("expected private, no-store, got %q", cc)
	}
	if resp.Header.Get("ETag") != "" {
		t.Error("nearby feed must not carry an ETag")
	}
}

func TestNearbyMessages_LinkHeader(t *testing.T) {
	app := setupApp(makeDeps(seededStore()))

	resp := do(t, app, "GET", "/v1/messages/nearby?lat=43.2630&lon=-2.9350&limit=1", "v", nil)
	feed := decode[handler.FeedResponse](t, resp)
	if len(feed.Data) != 1 || feed.Pagination.Total != 3 {
		t.Fatalf("expected 1 of 3, got %d of %d", len(feed.Data), feed.Pagination.Total)
	}
	link := resp.Header.Get("Link")
	if !strings.Contains(link, `rel="next"`) {
		t.Errorf("expected next link, got %s", link)
	}
	if !strings.Contains(link, "lat=43.2630") {
		t.Errorf("expected link to keep the position, got %s", link)
	}
}

// ---- Messages ----

func TestPostMessage_Success(t *testing.T) {
	store := seededStore()
	app := setupApp(makeDeps(store))

	resp := do(t, app, "POST", "/v1/messages", "v", map[string]interface{}{
		"text": "coffee here is great", "lat": 43.26, "lon": -2.93,
	})
	if resp.StatusCode != 201 {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	m := decode[domain.Message](t, resp)
	if m.Visibility != domain.VisibilityPublic {
		t.Errorf("expected default public visibility, got %q", m.Visibility)
	}
	if m.Location.Coordinates[0] != -2.93 || m.Location.Coordinates[1] != 43.26 {
		t.Errorf("expected [lon, lat] storage, got %v", m.Location.Coordinates)
	}
	if _, ok := store.messages[m.ID]; !ok {
		t.Error("message was not stored")
	}
}

func TestPostMessage_Errors(t *testing.T) {
	app := setupApp(makeDeps(seededStore()))

	tests := []struct {
		name   string
		viewer string
		body   map[string]interface{}
		want   int
	}{
		{"anonymous", "", map[string]interface{}{"text": "hi", "lat": 1.0, "lon": 1.0}, 401},
		{"empty text", "v", map[string]interface{}{"text": "  ", "lat": 1.0, "lon": 1.0}, 400},
		{"missing lon", "v", map[string]interface{}{"text": "hi", "lat": 1.0}, 400},
		{"bad visibility", "v", map[string]interface{}{"text": "hi", "lat": 1.0, "lon": 1.0, "visibility": "secret"}, 400},
		{"out of range", "v", map[string]interface{}{"text": "hi", "lat": 1.0, "lon": 181.0}, 400},
		{"unknown author", "ghost", map[string]interface{}{"text": "hi", "lat": 1.0, "lon": 1.0}, 404},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, app, "POST", "/v1/messages", tt.viewer, tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("expected %d, got %d", tt.want, resp.StatusCode)
			}
		})
	}
}

func TestPostMessage_InactiveAuthor(t *testing.T) {
	store := seededStore()
	store.users["v"].Active = false
	app := setupApp(makeDeps(store))

	resp := do(t, app, "POST", "/v1/messages", "v", map[string]interface{}{"text": "hi", "lat": 1.0, "lon": 1.0})
	if resp.StatusCode != 403 {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestGetMessage_HiddenFromStranger(t *testing.T) {
	app := setupApp(makeDeps(seededStore()))

	if resp := do(t, app, "GET", "/v1/messages/m2", "v", nil); resp.StatusCode != 200 {
		t.Errorf("friend: expected 200, got %d", resp.StatusCode)
	}
	if resp := do(t, app, "GET", "/v1/messages/m2", "s", nil); resp.StatusCode != 404 {
		t.Errorf("stranger: expected 404, got %d", resp.StatusCode)
	}
	// direct lookups are not geofenced
	if resp := do(t, app, "GET", "/v1/messages/m4", "v", nil); resp.StatusCode != 200 {
		t.Errorf("far public: expected 200, got %d", resp.StatusCode)
	}
}

func TestUserMessages_FiltersByViewer(t *testing.T) {
	app := setupApp(makeDeps(seededStore()))

	resp := do(t, app, "GET", "/v1/users/s/messages", "v", nil)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	page := decode[struct {
		Data []domain.Message `json:"data"`
	}](t, resp)
	if got := strings.Join(messageIDs(page.Data), ","); got != "m1,m4" {
		t.Errorf("expected m1,m4, got %s", got)
	}
}

func TestSetVisibility(t *testing.T) {
	store := seededStore()
	app := setupApp(makeDeps(store))

	resp := do(t, app, "PATCH", "/v1/messages/m1/visibility", "v", map[string]string{"visibility": "friends"})
	if resp.StatusCode != 403 {
		t.Fatalf("non-author: expected 403, got %d", resp.StatusCode)
	}

	resp = do(t, app, "PATCH", "/v1/messages/m1/visibility", "s", map[string]string{"visibility": "friends"})
	if resp.StatusCode != 200 {
		t.Fatalf("author: expected 200, got %d", resp.StatusCode)
	}
	if store.messages["m1"].Visibility != domain.VisibilityFriends {
		t.Error("visibility not updated")
	}
}

func TestDeleteMessage(t *testing.T) {
	store := seededStore()
	store.replies["r1"] = &domain.Reply{ID: "r1", MessageID: "m1", AuthorID: "v", Text: "nice"}
	app := setupApp(makeDeps(store))

	if resp := do(t, app, "DELETE", "/v1/messages/m1", "v", nil); resp.StatusCode != 403 {
		t.Fatalf("non-author: expected 403, got %d", resp.StatusCode)
	}
	if resp := do(t, app, "DELETE", "/v1/messages/m1", "s", nil); resp.StatusCode != 204 {
		t.Fatalf("author: expected 204, got %d", resp.StatusCode)
	}
	if _, ok := store.messages["m1"]; ok {
		t.Error("message still stored")
	}
	if _, ok := store.replies["r1"]; ok {
		t.Error("reply still stored")
	}
}

// ---- Replies ----

func TestReplies_Flow(t *testing.T) {
	store := seededStore()
	app := setupApp(makeDeps(store))

	resp := do(t, app, "POST", "/v1/messages/m2/replies", "v", map[string]string{"text": "see you there"})
	if resp.StatusCode != 201 {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	reply := decode[domain.Reply](t, resp)

	// the stranger cannot see the friends-only message, so it does not exist for them
	if resp := do(t, app, "POST", "/v1/messages/m2/replies", "s", map[string]string{"text": "hi"}); resp.StatusCode != 404 {
		t.Errorf("stranger reply: expected 404, got %d", resp.StatusCode)
	}

	resp = do(t, app, "GET", "/v1/messages/m2/replies", "f", nil)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	list := decode[struct {
		Data []domain.Reply `json:"data"`
	}](t, resp)
	if len(list.Data) != 1 || list.Data[0].ID != reply.ID {
		t.Fatalf("expected the new reply, got %+v", list.Data)
	}

	// the message author may remove replies under their message
	if resp := do(t, app, "DELETE", "/v1/replies/"+reply.ID, "s", nil); resp.StatusCode != 403 {
		t.Errorf("stranger delete: expected 403, got %d", resp.StatusCode)
	}
	if resp := do(t, app, "DELETE", "/v1/replies/"+reply.ID, "f", nil); resp.StatusCode != 204 {
		t.Errorf("message author delete: expected 204, got %d", resp.StatusCode)
	}
}

func TestReply_TooLong(t *testing.T) {
	app := setupApp(makeDeps(seededStore()))

	resp := do(t, app, "POST", "/v1/messages/m1/replies", "v", map[string]string{"text": strings.Repeat("x", 301)})
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

// ---- Users & friends ----

func TestRegisterUser(t *testing.T) {
	app := setupApp(makeDeps(seededStore()))

	resp := do(t, app, "POST", "/v1/users", "", map[string]string{"username": "Ane_Bilbao", "display_name": "Ane"})
	if resp.StatusCode != 201 {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	u := decode[domain.User](t, resp)
	if u.Username != "ane_bilbao" || !u.Active {
		t.Errorf("unexpected user %+v", u)
	}

	if resp := do(t, app, "POST", "/v1/users", "", map[string]string{"username": "ane_bilbao"}); resp.StatusCode != 409 {
		t.Errorf("duplicate: expected 409, got %d", resp.StatusCode)
	}
	if resp := do(t, app, "POST", "/v1/users", "", map[string]string{"username": "a"}); resp.StatusCode != 400 {
		t.Errorf("short name: expected 400, got %d", resp.StatusCode)
	}
}

func TestGetUser_HidesLocationFromOthers(t *testing.T) {
	app := setupApp(makeDeps(seededStore()))

	own := decode[domain.User](t, do(t, app, "GET", "/v1/users/v", "v", nil))
	if own.LastLocation == nil {
		t.Error("owner should see their location")
	}
	other := decode[domain.User](t, do(t, app, "GET", "/v1/users/v", "f", nil))
	if other.LastLocation != nil {
		t.Error("location leaked to another user")
	}
	if resp := do(t, app, "GET", "/v1/users/nobody", "v", nil); resp.StatusCode != 404 {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestUpdateLocation(t *testing.T) {
	store := seededStore()
	app := setupApp(makeDeps(store))

	if resp := do(t, app, "PUT", "/v1/users/f/location", "v", map[string]float64{"lat": 1, "lon": 2}); resp.StatusCode != 403 {
		t.Errorf("other user: expected 403, got %d", resp.StatusCode)
	}
	if resp := do(t, app, "PUT", "/v1/users/f/location", "f", map[string]float64{"lat": 95, "lon": 2}); resp.StatusCode != 400 {
		t.Errorf("bad lat: expected 400, got %d", resp.StatusCode)
	}
	if resp := do(t, app, "PUT", "/v1/users/f/location", "f", map[string]float64{"lat": 1, "lon": 2}); resp.StatusCode != 204 {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if loc := store.users["f"].LastLocation; loc == nil || loc.Coordinates[1] != 1 {
		t.Errorf("location not stored: %+v", loc)
	}
}

func TestFriends_Flow(t *testing.T) {
	store := seededStore()
	app := setupApp(makeDeps(store))

	if resp := do(t, app, "POST", "/v1/users/v/friends", "v", map[string]string{"friend_id": "s"}); resp.StatusCode != 201 {
		t.Fatalf("add: expected 201, got %d", resp.StatusCode)
	}
	if _, ok := store.friends["s"]["v"]; !ok {
		t.Error("friendship is not mutual")
	}
	if resp := do(t, app, "POST", "/v1/users/v/friends", "v", map[string]string{"friend_id": "v"}); resp.StatusCode != 400 {
		t.Errorf("self: expected 400, got %d", resp.StatusCode)
	}

	resp := do(t, app, "GET", "/v1/users/v/friends", "v", nil)
	if resp.StatusCode != 200 {
		t.Fatalf("list: expected 200, got %d", resp.StatusCode)
	}
	list := decode[struct {
		Data       []domain.Friend    `json:"data"`
		Pagination handler.Pagination `json:"pagination"`
	}](t, resp)
	if list.Pagination.Total != 2 {
		t.Errorf("expected 2 friends, got %d", list.Pagination.Total)
	}
	if resp := do(t, app, "GET", "/v1/users/v/friends", "s", nil); resp.StatusCode != 403 {
		t.Errorf("other user's list: expected 403, got %d", resp.StatusCode)
	}

	if resp := do(t, app, "DELETE", "/v1/users/v/friends/s", "v", nil); resp.StatusCode != 204 {
		t.Errorf("remove: expected 204, got %d", resp.StatusCode)
	}
	if resp := do(t, app, "DELETE", "/v1/users/v/friends/s", "v", nil); resp.StatusCode != 404 {
		t.Errorf("remove twice: expected 404, got %d", resp.StatusCode)
	}
}

func TestDeleteUser_Inline(t *testing.T) {
	store := seededStore()
	app := setupApp(makeDeps(store))

	if resp := do(t, app, "DELETE", "/v1/users/s", "v", nil); resp.StatusCode != 403 {
		t.Fatalf("other user: expected 403, got %d", resp.StatusCode)
	}
	resp := do(t, app, "DELETE", "/v1/users/s", "s", nil)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	report := decode[usecases.PurgeReport](t, resp)
	if report.MessagesDeleted != 3 {
		t.Errorf("expected 3 messages deleted, got %d", report.MessagesDeleted)
	}
	if _, ok := store.users["s"]; ok {
		t.Error("user still stored")
	}
}

func TestDeleteUser_Scheduled(t *testing.T) {
	sched := &mockScheduler{}
	store := seededStore()
	app := setupApp(makeDeps(store, func(d *handler.Dependencies) { d.Purges = sched }))

	resp := do(t, app, "DELETE", "/v1/users/s", "s", nil)
	if resp.StatusCode != 202 {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	if len(sched.scheduled) != 1 || sched.scheduled[0] != "s" {
		t.Errorf("expected purge of s to be scheduled, got %v", sched.scheduled)
	}
	if _, ok := store.users["s"]; !ok {
		t.Error("scheduled purge must not delete inline")
	}
}

// ---- GraphQL ----

func TestGraphQL_NearbyMessages(t *testing.T) {
	app := setupApp(makeDeps(seededStore()))

	resp := do(t, app, "POST", "/graphql", "v", map[string]string{
		"query": `{ nearbyMessages(lat: 43.2630, lon: -2.9350) { location_source messages { id visibility } } }`,
	})
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var result struct {
		Data struct {
			NearbyMessages struct {
				LocationSource string `json:"location_source"`
				Messages       []struct {
					ID string `json:"id"`
				} `json:"messages"`
			} `json:"nearbyMessages"`
		} `json:"data"`
		Errors []interface{} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if n := len(result.Data.NearbyMessages.Messages); n != 3 {
		t.Errorf("expected 3 messages, got %d", n)
	}
}

func TestGraphQL_PostMessageRequiresViewer(t *testing.T) {
	app := setupApp(makeDeps(seededStore()))

	resp := do(t, app, "POST", "/graphql", "", map[string]string{
		"query": `mutation { postMessage(text: "hi", lat: 1, lon: 1) { id } }`,
	})
	var result struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if len(result.Errors) == 0 || !strings.Contains(result.Errors[0].Message, handler.HeaderUserID) {
		t.Errorf("expected auth error, got %+v", result.Errors)
	}
}

// ---- Middleware & system ----

func TestHealth_Returns200(t *testing.T) {
	app := setupApp(makeDeps(newMemStore()))

	resp := do(t, app, "GET", "/v1/health", "", nil)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	result := decode[map[string]interface{}](t, resp)
	if result["status"] != "healthy" {
		t.Errorf("expected healthy status, got %v", result["status"])
	}
}

func TestReady_NoDB(t *testing.T) {
	app := setupApp(makeDeps(newMemStore()))

	resp := do(t, app, "GET", "/v1/ready", "", nil)
	if resp.StatusCode != 503 {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

func TestDocs_ServesValidatedDocument(t *testing.T) {
	app := setupApp(makeDeps(newMemStore(), func(d *handler.Dependencies) {
		d.DocsPath = "../../../api/openapi.yaml"
	}))

	resp := do(t, app, "GET", "/docs/openapi.json", "", nil)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	doc := decode[map[string]interface{}](t, resp)
	if _, ok := doc["paths"]; !ok {
		t.Error("expected paths in JSON document")
	}

	resp = do(t, app, "GET", "/docs/openapi.yaml", "", nil)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/yaml" {
		t.Errorf("expected application/yaml, got %q", ct)
	}
}

func TestDocs_MissingDocument404(t *testing.T) {
	app := setupApp(makeDeps(newMemStore(), func(d *handler.Dependencies) {
		d.DocsPath = "testdata/missing.yaml"
	}))

	resp := do(t, app, "GET", "/docs/openapi.json", "", nil)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	resp = do(t, app, "GET", "/docs", "", nil)
	if resp.StatusCode != 200 {
		t.Fatalf("expected swagger page, got %d", resp.StatusCode)
	}
}

type pinger struct{ err error }

func (p pinger) Ping(ctx context.Context) error { return p.err }

func TestReady_WithStore(t *testing.T) {
	app := setupApp(makeDeps(newMemStore(), func(d *handler.Dependencies) {
		d.DB = pinger{}
		d.Cache = pinger{}
	}))
	if resp := do(t, app, "GET", "/v1/ready", "", nil); resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	app = setupApp(makeDeps(newMemStore(), func(d *handler.Dependencies) {
		d.DB = pinger{}
		d.Cache = pinger{err: errors.New("refused")}
	}))
	if resp := do(t, app, "GET", "/v1/ready", "", nil); resp.StatusCode != 503 {
		t.Fatalf("broken cache: expected 503, got %d", resp.StatusCode)
	}
}

func TestAPIVersionHeader(t *testing.T) {
	app := setupApp(makeDeps(newMemStore()))

	resp := do(t, app, "GET", "/v1/health", "", nil)
	if v := resp.Header.Get("X-API-Version"); v != "1.0.0" {
		t.Errorf("expected X-API-Version 1.0.0, got %q", v)
	}
}

func TestUnknownRoute_APIError(t *testing.T) {
	app := setupApp(makeDeps(newMemStore()))

	resp := do(t, app, "GET", "/v1/nope", "", nil)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	apiErr := decode[handler.APIError](t, resp)
	if apiErr.Code != "not_found" {
		t.Errorf("expected not_found, got %q", apiErr.Code)
	}
}

func TestGetMessage_ETagRevalidation(t *testing.T) {
	app := setupApp(makeDeps(seededStore()))

	first := do(t, app, "GET", "/v1/messages/m1", "v", nil)
	etag := first.Header.Get("ETag")
	if etag == "" {
		t.Fatal("expected ETag")
	}
	if cc := first.Header.Get("Cache-Control"); !strings.HasPrefix(cc, "private") {
		t.Errorf("expected private Cache-Control, got %q", cc)
	}

	req := httptest.NewRequest("GET", "/v1/messages/m1", nil)
	req.Header.Set(handler.HeaderUserID, "v")
	req.Header.Set("If-None-Match", etag)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 304 {
		t.Errorf("expected 304, got %d", resp.StatusCode)
	}
}

// TestAccessLogMiddleware verifies structured access logging does not alter responses.
func TestAccessLogMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(handler.AccessLogMiddleware())
	app.Get("/test", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Request-ID", "test-req-123")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "ok") {
		t.Errorf("expected response body to contain 'ok', got %s", string(body))
	}
}
