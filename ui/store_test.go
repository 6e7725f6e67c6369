package ui_test

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-auth-gate/ui"
)

func newStore(t *testing.T) (*ui.Store, *clockwork.FakeClock) {
	t.Helper()

	clock := clockwork.NewFakeClock()
	store, err := ui.NewStore(ui.WithClock(clock))
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return store, clock
}

func ids(ns []ui.Notification) []string {
	out := make([]string, 0, len(ns))
	for _, n := range ns {
		out = append(out, n.ID)
	}
	return out
}

func TestStore_NotificationExpiresAfterTTL(t *testing.T) {
	store, clock := newStore(t)

	n := store.AddNotification(ui.Notification{Message: "x"})
	assert.NotEmpty(t, n.ID)
	assert.Equal(t, ui.NotificationInfo, n.Type)
	assert.Equal(t, clock.Now(), n.Timestamp)

	clock.Advance(4999 * time.Millisecond)
	// give a wrongly scheduled expiry the chance to run
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, []string{n.ID}, ids(store.Notifications()))

	clock.Advance(time.Millisecond)
	require.Eventually(t, func() bool {
		return len(store.Notifications()) == 0
	}, time.Second, time.Millisecond)
}

func TestStore_NotificationsExpireIndependently(t *testing.T) {
	store, clock := newStore(t)

	first := store.Success("saved")
	clock.Advance(2 * time.Second)
	second := store.Error("failed")

	assert.Equal(t, []string{first.ID, second.ID}, ids(store.Notifications()))

	clock.Advance(3 * time.Second)
	require.Eventually(t, func() bool {
		got := ids(store.Notifications())
		return len(got) == 1 && got[0] == second.ID
	}, time.Second, time.Millisecond)

	clock.Advance(2 * time.Second)
	require.Eventually(t, func() bool {
		return len(store.Notifications()) == 0
	}, time.Second, time.Millisecond)
}

func TestStore_RemoveNotification(t *testing.T) {
	store, clock := newStore(t)

	n := store.Warning("careful")
	keep := store.Info("hello")

	store.RemoveNotification(n.ID)
	store.RemoveNotification(n.ID)
	store.RemoveNotification("unknown")
	assert.Equal(t, []string{keep.ID}, ids(store.Notifications()))

	clock.Advance(time.Second)
	later := store.Info("later")

	// the removed notification's timer must not touch anything else
	clock.Advance(4 * time.Second)
	require.Eventually(t, func() bool {
		got := ids(store.Notifications())
		return len(got) == 1 && got[0] == later.ID
	}, time.Second, time.Millisecond)
}

func TestStore_UniqueIDs(t *testing.T) {
	store, _ := newStore(t)

	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		n := store.AddNotification(ui.Notification{Message: "x"})
		seen[n.ID] = struct{}{}
	}
	assert.Len(t, seen, 1000)
	assert.Len(t, store.Notifications(), 1000)
}

func TestStore_UniqueIDsConcurrent(t *testing.T) {
	store, _ := newStore(t)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[string]struct{}{}
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 250; i++ {
				n := store.Info("x")
				mu.Lock()
				seen[n.ID] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 2000)
}

func TestStore_Loading(t *testing.T) {
	store, _ := newStore(t)

	assert.False(t, store.IsLoading("auth"))

	store.SetLoading("auth", true)
	store.SetLoading("auth", true)
	store.SetLoading("quests", false)

	assert.True(t, store.IsLoading("auth"))
	assert.False(t, store.IsLoading("quests"))
	assert.False(t, store.IsLoading("profile"))
	assert.Equal(t, map[string]bool{"auth": true, "quests": false}, store.Loading())

	store.SetLoading("auth", false)
	assert.False(t, store.IsLoading("auth"))
}

func TestStore_Modals(t *testing.T) {
	store, _ := newStore(t)

	assert.Equal(t, ui.ModalState{}, store.Modal("quest"))

	store.OpenModal("quest", map[string]any{"id": 7})
	store.OpenModal("confirm", "delete?")
	assert.True(t, store.Modal("quest").IsOpen)

	store.CloseModal("confirm")
	assert.Equal(t, ui.ModalState{IsOpen: false, Data: "delete?"}, store.Modal("confirm"))

	store.CloseAllModals()
	assert.Equal(t, ui.ModalState{IsOpen: false, Data: map[string]any{"id": 7}}, store.Modal("quest"))
}

func TestStore_Close(t *testing.T) {
	store, clock := newStore(t)
	store.Info("bye")

	store.Close()
	assert.Empty(t, store.Notifications())

	clock.Advance(10 * time.Second)
	assert.Empty(t, store.Notifications())
}

func TestNewStore_InvalidNode(t *testing.T) {
	_, err := ui.NewStore(ui.WithNode(1 << 20))
	require.Error(t, err)
}
