package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caldog20/chattun/adapter"
)

// botServer is a minimal Bot API keeping one chat per id or username.
type botServer struct {
	mu    sync.Mutex
	chats map[string]*struct{ title, description string }
	calls []string
}

func (b *botServer) chat(r *http.Request) *struct{ title, description string } {
	key := r.FormValue("chat_id")
	c, ok := b.chats[key]
	if !ok {
		c = &struct{ title, description string }{}
		b.chats[key] = c
	}
	return c
}

func (b *botServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	method := path.Base(r.URL.Path)
	b.calls = append(b.calls, method)

	reply := func(result any) {
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": result})
	}
	fail := func(desc string) {
		json.NewEncoder(w).Encode(map[string]any{"ok": false, "error_code": 400, "description": desc})
	}

	switch method {
	case "getMe":
		reply(map[string]any{"id": 1, "is_bot": true, "first_name": "tun", "username": "tunbot"})
	case "getChat":
		c := b.chat(r)
		reply(map[string]any{"id": -100, "type": "supergroup", "title": c.title, "description": c.description})
	case "setChatTitle":
		if r.FormValue("title") == "" {
			fail("Bad Request: chat title can't be empty")
			return
		}
		b.chat(r).title = r.FormValue("title")
		reply(true)
	case "setChatDescription":
		c := b.chat(r)
		if c.description == r.FormValue("description") {
			fail("Bad Request: chat description is not modified")
			return
		}
		c.description = r.FormValue("description")
		reply(true)
	default:
		fail("Not Found: method not found")
	}
}

func (b *botServer) title(key string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.chats[key].title
}

func (b *botServer) methods() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string{}, b.calls...)
}

func newTestStore(t *testing.T) (*Store, *botServer) {
	t.Helper()
	srv := &botServer{chats: make(map[string]*struct{ title, description string })}
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	store, err := NewWithEndpoint("123:abc", ts.URL+"/bot%s/%s", ts.Client())
	require.NoError(t, err)
	return store, srv
}

func TestSlotRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetSlot(ctx, "-100", adapter.SlotPrimary, "head"))
	require.NoError(t, store.SetSlot(ctx, "-100", adapter.SlotSecondary, "tail"))

	v, err := store.GetSlot(ctx, "-100", adapter.SlotPrimary)
	require.NoError(t, err)
	assert.Equal(t, "head", v)

	v, err = store.GetSlot(ctx, "-100", adapter.SlotSecondary)
	require.NoError(t, err)
	assert.Equal(t, "tail", v)
}

func TestUsernameGroup(t *testing.T) {
	store, srv := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetSlot(ctx, "@tunnel", adapter.SlotPrimary, "x"))
	assert.Equal(t, "x", srv.title("@tunnel"))

	v, err := store.GetSlot(ctx, "@tunnel", adapter.SlotPrimary)
	require.NoError(t, err)
	assert.Equal(t, "x", v)
}

func TestUnchangedDescriptionIsNotAnError(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetSlot(ctx, "-100", adapter.SlotSecondary, "same"))
	assert.NoError(t, store.SetSlot(ctx, "-100", adapter.SlotSecondary, "same"))
}

func TestInvalidGroup(t *testing.T) {
	store, srv := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetSlot(ctx, "tunnel", adapter.SlotPrimary)
	assert.Error(t, err)
	assert.Error(t, store.SetSlot(ctx, "@", adapter.SlotPrimary, "x"))
	assert.Equal(t, []string{"getMe"}, srv.methods())
}

func TestCanceledContextSkipsCall(t *testing.T) {
	store, srv := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.GetSlot(ctx, "-100", adapter.SlotPrimary)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, store.SetSlot(ctx, "-100", adapter.SlotPrimary, "x"), context.Canceled)
	assert.Equal(t, []string{"getMe"}, srv.methods())
}

func TestApiErrorIsReturned(t *testing.T) {
	store, _ := newTestStore(t)

	err := store.SetSlot(context.Background(), "-100", adapter.SlotPrimary, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "can't be empty")
}
