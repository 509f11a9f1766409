// Package progress は購読IDをキーとした進捗イベントの配信を提供します。
//
// バッファも再送も行いません。イベント発行時に購読者がいなければそのまま破棄されます。
package progress

import "sync"

// Event は1件の進捗通知です。永続化されません。
type Event struct {
	SubscriptionID string `json:"subscriptionId"`
	Percent        int    `json:"percent"`
	Message        string `json:"message"`
}

// Hub は購読IDごとの購読者集合を管理します。
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan Event]struct{}
}

// NewHub は空の Hub を作成します。
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]map[chan Event]struct{}),
	}
}

// Subscribe は購読IDに対する受信チャネルを登録して返します。
func (h *Hub) Subscribe(subscriptionID string) chan Event {
	ch := make(chan Event, 16)

	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.subscribers[subscriptionID]
	if !ok {
		set = make(map[chan Event]struct{})
		h.subscribers[subscriptionID] = set
	}
	set[ch] = struct{}{}
	return ch
}

// Unsubscribe は購読を解除し、チャネルを閉じます。
func (h *Hub) Unsubscribe(subscriptionID string, ch chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.subscribers[subscriptionID]
	if !ok {
		return
	}
	if _, ok := set[ch]; !ok {
		return
	}
	delete(set, ch)
	if len(set) == 0 {
		delete(h.subscribers, subscriptionID)
	}
	close(ch)
}

// Publish は購読IDの全購読者へイベントを送信します。
// 送信はノンブロッキングで、受信が追いつかない購読者へのイベントは破棄されます。
func (h *Hub) Publish(subscriptionID string, percent int, message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	set, ok := h.subscribers[subscriptionID]
	if !ok {
		return
	}

	event := Event{
		SubscriptionID: subscriptionID,
		Percent:        percent,
		Message:        message,
	}
	for ch := range set {
		select {
		case ch <- event:
		default:
		}
	}
}

// SubscriberCount は購読IDに紐づく購読者数を返します。
func (h *Hub) SubscriberCount(subscriptionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[subscriptionID])
}
