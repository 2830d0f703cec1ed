package realtime

import (
	"net/http"
	"sync"

	"crosspost/domain/model"

	"github.com/gin-gonic/gin"
)

const postStatusEvent = "post_status"

// PostHub fans post status changes out to per-user SSE subscribers.
type PostHub struct {
	mu    sync.RWMutex
	users map[string]map[chan model.PostEvent]struct{}
}

func NewPostHub() *PostHub {
	return &PostHub{users: make(map[string]map[chan model.PostEvent]struct{})}
}

// Serve streams events for the authenticated user (user_id set by middleware).
func (h *PostHub) Serve(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.Status(http.StatusUnauthorized)
		return
	}
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ch := make(chan model.PostEvent, 8)
	h.addSubscriber(userID, ch)
	defer h.removeSubscriber(userID, ch)

	_, _ = c.Writer.Write([]byte(":ok\n\n"))
	c.Writer.Flush()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case evt := <-ch:
			c.SSEvent(postStatusEvent, evt)
			c.Writer.Flush()
		}
	}
}

func (h *PostHub) addSubscriber(userID string, ch chan model.PostEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.users[userID] == nil {
		h.users[userID] = make(map[chan model.PostEvent]struct{})
	}
	h.users[userID][ch] = struct{}{}
}

func (h *PostHub) removeSubscriber(userID string, ch chan model.PostEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs := h.users[userID]; subs != nil {
		delete(subs, ch)
		if len(subs) == 0 {
			delete(h.users, userID)
		}
	}
}

// Subscribers reports how many streams are open for userID.
func (h *PostHub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

// BroadcastPostEvent delivers to the owner's streams; slow streams miss events.
func (h *PostHub) BroadcastPostEvent(evt model.PostEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.users[evt.UserID] {
		select {
		case ch <- evt:
		default:
		}
	}
}
