package devserver

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type historyItem struct {
	ID          string         `json:"_id"`
	Timestamp   string         `json:"timestamp"`
	FoodName    string         `json:"food_name"`
	Confidence  float64        `json:"confidence"`
	ImageBase64 string         `json:"image_base64,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// historyStore keeps items per user in insertion order. Usernames are
// matched case-insensitively.
type historyStore struct {
	mu    sync.Mutex
	items map[string][]historyItem
	now   func() time.Time
}

func newHistoryStore() *historyStore {
	return &historyStore{items: make(map[string][]historyItem), now: time.Now}
}

func (h *historyStore) add(username string, item historyItem) historyItem {
	item.ID = uuid.NewString()
	item.Timestamp = h.now().Format(time.RFC3339Nano)
	key := strings.ToLower(username)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.items[key] = append(h.items[key], item)
	return item
}

// list returns up to limit items, newest first.
func (h *historyStore) list(username string, limit int) []historyItem {
	h.mu.Lock()
	defer h.mu.Unlock()
	all := h.items[strings.ToLower(username)]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := slices.Clone(all)
	slices.Reverse(out)
	if out == nil {
		out = []historyItem{}
	}
	return out
}

func (h *historyStore) remove(username, id string) bool {
	key := strings.ToLower(username)
	h.mu.Lock()
	defer h.mu.Unlock()
	before := len(h.items[key])
	h.items[key] = slices.DeleteFunc(h.items[key], func(item historyItem) bool {
		return item.ID == id
	})
	return len(h.items[key]) != before
}

func (h *historyStore) clear(username string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.items, strings.ToLower(username))
}
