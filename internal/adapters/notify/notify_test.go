package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/okian/goalpulse/internal/adapters/notify"
	"github.com/okian/goalpulse/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func sampleAlert() model.Alert {
	prev := model.TierLow
	return model.Alert{
		ID:           "a-1",
		EntityID:     "fx-9",
		Score:        71.25,
		Tier:         model.TierHigh,
		PreviousTier: &prev,
		Timestamp:    time.Date(2026, 3, 1, 20, 15, 0, 0, time.UTC),
	}
}

type captured struct {
	mu      sync.Mutex
	path    string
	headers http.Header
	body    []byte
}

func (c *captured) handler(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.path = r.URL.Path
		c.headers = r.Header.Clone()
		c.body = b
		c.mu.Unlock()
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}
}

func TestWebhook(t *testing.T) {
	convey.Convey("Given a webhook endpoint", t, func() {
		rec := &captured{}
		srv := httptest.NewServer(rec.handler(http.StatusAccepted))
		defer srv.Close()

		n, err := notify.NewWebhook(srv.URL)
		convey.So(err, convey.ShouldBeNil)
		convey.So(n.Name(), convey.ShouldEqual, "webhook")

		convey.Convey("the alert is posted as JSON", func() {
			convey.So(n.Deliver(context.Background(), sampleAlert()), convey.ShouldBeNil)

			var got model.Alert
			convey.So(json.Unmarshal(rec.body, &got), convey.ShouldBeNil)
			convey.So(got.EntityID, convey.ShouldEqual, "fx-9")
			convey.So(got.Tier, convey.ShouldEqual, model.TierHigh)
			convey.So(*got.PreviousTier, convey.ShouldEqual, model.TierLow)
			convey.So(rec.headers.Get("Content-Type"), convey.ShouldEqual, "application/json")
		})
	})

	convey.Convey("Given a failing webhook endpoint", t, func() {
		srv := httptest.NewServer((&captured{}).handler(http.StatusInternalServerError))
		defer srv.Close()
		n, _ := notify.NewWebhook(srv.URL)

		err := n.Deliver(context.Background(), sampleAlert())
		convey.So(errors.Is(err, notify.ErrDeliveryStatus), convey.ShouldBeTrue)
	})

	convey.Convey("An empty webhook url is rejected", t, func() {
		_, err := notify.NewWebhook("")
		convey.So(errors.Is(err, notify.ErrNotifierMisconfigured), convey.ShouldBeTrue)
	})
}

func TestTelegram(t *testing.T) {
	convey.Convey("Given a Bot API endpoint", t, func() {
		rec := &captured{}
		srv := httptest.NewServer(rec.handler(http.StatusOK))
		defer srv.Close()

		n, err := notify.NewTelegram("TOKEN", "42", notify.WithEndpoint(srv.URL))
		convey.So(err, convey.ShouldBeNil)
		convey.So(n.Deliver(context.Background(), sampleAlert()), convey.ShouldBeNil)

		form, err := url.ParseQuery(string(rec.body))
		convey.So(err, convey.ShouldBeNil)
		convey.So(rec.path, convey.ShouldEqual, "/botTOKEN/sendMessage")
		convey.So(form.Get("chat_id"), convey.ShouldEqual, "42")
		convey.So(form.Get("parse_mode"), convey.ShouldEqual, "Markdown")
		convey.So(form.Get("text"), convey.ShouldContainSubstring, "Fixture: fx-9")
		convey.So(form.Get("text"), convey.ShouldContainSubstring, "Previous: LOW")
	})

	convey.Convey("Missing credentials are rejected", t, func() {
		_, err := notify.NewTelegram("TOKEN", "")
		convey.So(errors.Is(err, notify.ErrNotifierMisconfigured), convey.ShouldBeTrue)
	})
}

func TestOneSignal(t *testing.T) {
	convey.Convey("Given a push endpoint", t, func() {
		rec := &captured{}
		srv := httptest.NewServer(rec.handler(http.StatusOK))
		defer srv.Close()

		n, err := notify.NewOneSignal("app", "key", notify.WithEndpoint(srv.URL))
		convey.So(err, convey.ShouldBeNil)
		convey.So(n.Deliver(context.Background(), sampleAlert()), convey.ShouldBeNil)

		var payload struct {
			AppID    string            `json:"app_id"`
			Segments []string          `json:"included_segments"`
			Headings map[string]string `json:"headings"`
			Contents map[string]string `json:"contents"`
			Data     struct {
				Type    string      `json:"type"`
				Payload model.Alert `json:"payload"`
			} `json:"data"`
		}
		convey.So(json.Unmarshal(rec.body, &payload), convey.ShouldBeNil)
		convey.So(rec.headers.Get("Authorization"), convey.ShouldEqual, "Basic key")
		convey.So(payload.AppID, convey.ShouldEqual, "app")
		convey.So(payload.Segments, convey.ShouldResemble, []string{"Subscribed Users"})
		convey.So(payload.Headings["en"], convey.ShouldEqual, "[HIGH] GoalPulse")
		convey.So(payload.Contents["en"], convey.ShouldEqual, "Fixture fx-9 - Level HIGH - Pressure 71.2 (was LOW)")
		convey.So(payload.Data.Type, convey.ShouldEqual, "level_alert")
		convey.So(payload.Data.Payload.ID, convey.ShouldEqual, "a-1")
	})

	convey.Convey("Missing credentials are rejected", t, func() {
		_, err := notify.NewOneSignal("", "key")
		convey.So(errors.Is(err, notify.ErrNotifierMisconfigured), convey.ShouldBeTrue)
	})
}

type fakeNotifier struct {
	name  string
	err   error
	calls int
}

func (f *fakeNotifier) Name() string { return f.name }

func (f *fakeNotifier) Deliver(context.Context, model.Alert) error {
	f.calls++
	return f.err
}

func TestMulti(t *testing.T) {
	convey.Convey("Given several notifiers", t, func() {
		boom := errors.New("boom")
		a := &fakeNotifier{name: "a", err: boom}
		b := &fakeNotifier{name: "b"}
		m := notify.NewMulti(a, nil, b, notify.NewLog(nil))

		convey.So(m.Len(), convey.ShouldEqual, 3)
		convey.So(m.Name(), convey.ShouldEqual, "a+b+log")

		convey.Convey("every notifier is attempted and failures are joined", func() {
			err := m.Deliver(context.Background(), sampleAlert())
			convey.So(errors.Is(err, boom), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldContainSubstring, "a: boom")
			convey.So(a.calls, convey.ShouldEqual, 1)
			convey.So(b.calls, convey.ShouldEqual, 1)
		})

		convey.Convey("all successes yield nil", func() {
			a.err = nil
			convey.So(m.Deliver(context.Background(), sampleAlert()), convey.ShouldBeNil)
		})
	})
}

// blockingNotifier waits for its context to end, or for delay when set.
type blockingNotifier struct {
	name  string
	delay time.Duration
}

func (b *blockingNotifier) Name() string { return b.name }

func (b *blockingNotifier) Deliver(ctx context.Context, _ model.Alert) error {
	if b.delay > 0 {
		select {
		case <-time.After(b.delay):
			return ctx.Err()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestMultiTimeouts(t *testing.T) {
	convey.Convey("Given a slow notifier next to a fast one", t, func() {
		slow := &blockingNotifier{name: "slow"}
		fast := &blockingNotifier{name: "fast", delay: 20 * time.Millisecond}

		convey.Convey("the slow one does not consume the fast one's budget", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
			defer cancel()

			err := notify.NewMulti(slow, fast).Deliver(ctx, sampleAlert())
			convey.So(errors.Is(err, context.DeadlineExceeded), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldContainSubstring, "slow: ")
			convey.So(err.Error(), convey.ShouldNotContainSubstring, "fast: ")
		})

		convey.Convey("a per-notifier timeout bounds each delivery", func() {
			m := notify.NewMulti(slow, fast).WithTimeout(100 * time.Millisecond)
			start := time.Now()

			err := m.Deliver(context.Background(), sampleAlert())
			convey.So(errors.Is(err, context.DeadlineExceeded), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldNotContainSubstring, "fast: ")
			convey.So(time.Since(start), convey.ShouldBeLessThan, time.Second)
		})

		convey.Convey("a non-positive timeout leaves the caller's deadline in charge", func() {
			m := notify.NewMulti(fast).WithTimeout(0)
			convey.So(m.Deliver(context.Background(), sampleAlert()), convey.ShouldBeNil)
		})

		convey.Convey("the fan-out marker is set", func() {
			convey.So(notify.NewMulti(fast).Fanout(), convey.ShouldBeTrue)
		})
	})
}

func TestHub(t *testing.T) {
	convey.Convey("Given a hub with one subscriber", t, func() {
		hub := notify.NewHub(nil)
		srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
		defer srv.Close()

		conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
		convey.So(err, convey.ShouldBeNil)
		defer conn.Close()

		deadline := time.Now().Add(2 * time.Second)
		for hub.Clients() == 0 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		convey.So(hub.Clients(), convey.ShouldEqual, 1)

		convey.Convey("alerts are broadcast as typed envelopes", func() {
			convey.So(hub.Deliver(context.Background(), sampleAlert()), convey.ShouldBeNil)

			_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			var msg struct {
				Type    string      `json:"type"`
				Payload model.Alert `json:"payload"`
			}
			convey.So(conn.ReadJSON(&msg), convey.ShouldBeNil)
			convey.So(msg.Type, convey.ShouldEqual, "alert")
			convey.So(msg.Payload.EntityID, convey.ShouldEqual, "fx-9")
		})

		convey.Convey("a closed hub disconnects clients and rejects deliveries", func() {
			hub.Close()
			convey.So(hub.Clients(), convey.ShouldEqual, 0)
			convey.So(errors.Is(hub.Deliver(context.Background(), sampleAlert()), notify.ErrHubClosed), convey.ShouldBeTrue)
		})
	})

	convey.Convey("A hub without subscribers accepts deliveries", t, func() {
		hub := notify.NewHub(nil)
		convey.So(hub.Deliver(context.Background(), sampleAlert()), convey.ShouldBeNil)
	})
}
