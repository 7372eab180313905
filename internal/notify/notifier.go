package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"bigbag/internal/store"
)

// Notifier resolves users to push tokens and sends in the background so a
// push failure never fails the request that triggered it.
type Notifier struct {
	users  store.UserStore
	pusher Pusher
	wg     sync.WaitGroup
}

func NewNotifier(users store.UserStore, pusher Pusher) *Notifier {
	return &Notifier{users: users, pusher: pusher}
}

// NotifyUser queues a push to userID. Users without a push token are skipped.
func (n *Notifier) NotifyUser(ctx context.Context, userID primitive.ObjectID, title, body string, data map[string]string) {
	if n == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()

		u, err := n.users.GetUser(ctx, userID)
		if err != nil {
			slog.Warn("Push recipient lookup failed", "user_id", userID.Hex(), "error", err)
			return
		}
		if u.PushToken == "" {
			return
		}
		msg := Message{To: u.PushToken, Title: title, Body: body, Data: data, Sound: "default"}
		if err := n.pusher.Push(ctx, []Message{msg}); err != nil {
			slog.Warn("Push delivery failed", "user_id", userID.Hex(), "error", err)
		}
	}()
}

// Wait blocks until queued pushes have finished.
func (n *Notifier) Wait() {
	if n != nil {
		n.wg.Wait()
	}
}
