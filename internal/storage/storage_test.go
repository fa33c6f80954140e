package storage

import (
	"net/url"
	"testing"
	"time"

	"github.com/julianstephens/daystreak/internal/models"
)

func TestBroadcasterDeliversToAllSubscribers(t *testing.T) {
	var b Broadcaster
	first, cancelFirst := b.Subscribe()
	defer cancelFirst()
	second, cancelSecond := b.Subscribe()
	defer cancelSecond()

	b.Publish(models.AuthEvent{Type: models.AuthEventSignedOut})

	for i, ch := range []<-chan models.AuthEvent{first, second} {
		select {
		case ev := <-ch:
			if ev.Type != models.AuthEventSignedOut {
				t.Errorf("subscriber %d got %q", i, ev.Type)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d received nothing", i)
		}
	}
}

func TestBroadcasterCancelClosesChannel(t *testing.T) {
	var b Broadcaster
	ch, cancel := b.Subscribe()

	cancel()
	cancel() // idempotent

	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed after cancel")
	}

	// Publishing after cancel must not panic
	b.Publish(models.AuthEvent{Type: models.AuthEventSignedIn})
}

func TestBroadcasterDropsWhenFull(t *testing.T) {
	var b Broadcaster
	ch, cancel := b.Subscribe()
	defer cancel()

	for i := 0; i < subscriberBuffer+5; i++ {
		b.Publish(models.AuthEvent{Type: models.AuthEventTokenRefreshed})
	}

	if got := len(ch); got != subscriberBuffer {
		t.Errorf("buffered events = %d, want %d", got, subscriberBuffer)
	}
}

func TestBroadcasterClose(t *testing.T) {
	var b Broadcaster
	ch, cancel := b.Subscribe()

	b.Close()
	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed by Close")
	}
	cancel() // safe after Close
}

func TestRecoveryLink(t *testing.T) {
	link := RecoveryLink("http://localhost:3000/reset-password?lang=en", "abc 123")

	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("RecoveryLink produced invalid URL %q: %v", link, err)
	}
	q := u.Query()
	if q.Get("token") != "abc 123" {
		t.Errorf("token = %q", q.Get("token"))
	}
	if q.Get("lang") != "en" {
		t.Errorf("existing query lost: %q", link)
	}
	if q.Get("type") != "recovery" {
		t.Errorf("type = %q, want recovery", q.Get("type"))
	}
}
