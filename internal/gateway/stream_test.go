package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/flemzord/pulse/internal/core"
	"github.com/flemzord/pulse/internal/watch"
)

func newStreamServer(t *testing.T) (*Gateway, *watch.StatusRecorder, *httptest.Server) {
	t.Helper()

	rec := watch.NewStatusRecorder()
	appCtx := core.NewAppContext(testLogger(), t.TempDir())
	appCtx.RegisterService("watch.status", rec)

	g := newTestGateway(t, `auth: {bearer_token: tok}`, appCtx)
	g.done = make(chan struct{})

	srv := httptest.NewServer(g.buildRouter())
	t.Cleanup(srv.Close)
	return g, rec, srv
}

func dialStream(ctx context.Context, t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ticks/stream"
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer tok"}},
	})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

func readTick(ctx context.Context, t *testing.T, conn *websocket.Conn) tickJSON {
	t.Helper()

	typ, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if typ != websocket.MessageText {
		t.Fatalf("message type = %v, want text", typ)
	}
	var tick tickJSON
	if err := json.Unmarshal(data, &tick); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return tick
}

func TestTickStream_BacklogThenLive(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, rec, srv := newStreamServer(t)
	rec.ObserveTick(watch.TickResult{Job: "banned_nk", Added: 2})

	conn := dialStream(ctx, t, srv)

	if got := readTick(ctx, t, conn); got.Job != "banned_nk" || got.Added != 2 {
		t.Errorf("backlog tick = %+v", got)
	}

	rec.ObserveTick(watch.TickResult{Job: "rotom_offline", Removed: 1})
	if got := readTick(ctx, t, conn); got.Job != "rotom_offline" || got.Removed != 1 {
		t.Errorf("live tick = %+v", got)
	}

	if err := conn.Close(websocket.StatusNormalClosure, ""); err != nil {
		t.Fatalf("Close: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for rec.Subscribers() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscription not released, %d left", rec.Subscribers())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestTickStream_ShutdownClosesConnection(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	g, rec, srv := newStreamServer(t)
	rec.ObserveTick(watch.TickResult{Job: "banned_nk"})

	conn := dialStream(ctx, t, srv)
	readTick(ctx, t, conn)

	close(g.done)

	_, _, err := conn.Read(ctx)
	if got := websocket.CloseStatus(err); got != websocket.StatusGoingAway {
		t.Errorf("close status = %v (err %v), want StatusGoingAway", got, err)
	}
}

func TestTickStream_RequiresAuth(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, _, srv := newStreamServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ticks/stream"
	conn, resp, err := websocket.Dial(ctx, url, nil)
	if err == nil {
		_ = conn.CloseNow()
		t.Fatal("Dial without credentials succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("response = %+v, want 401", resp)
	}
}

func TestTickStream_Unavailable(t *testing.T) {
	t.Parallel()

	g := &Gateway{logger: testLogger()}
	rr := httptest.NewRecorder()
	g.handleTickStream().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/ticks/stream", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rr.Code)
	}
}
