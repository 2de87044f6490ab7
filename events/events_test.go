package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu        sync.Mutex
	closed    bool
	err       error
	subjects  []string
	payloads  [][]byte
}

func (f *fakeConn) Publish(subj string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.subjects = append(f.subjects, subj)
	f.payloads = append(f.payloads, data)
	return nil
}

func (f *fakeConn) IsClosed() bool { return f.closed }

type failingPublisher struct{ calls int }

func (p *failingPublisher) Publish(context.Context, Event) error {
	p.calls++
	return errors.New("unavailable")
}

func TestSSEEventWriteTo(t *testing.T) {
	var buf bytes.Buffer
	_, err := SSEEvent{ID: "1", Event: "post.created", Data: "a\nb"}.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, "id: 1\nevent: post.created\ndata: a\ndata: b\n\n", buf.String())
}

func TestBroadcasterPublishReachesEveryClient(t *testing.T) {
	b := NewBroadcaster()
	_, ch1 := b.NewClient()
	id2, ch2 := b.NewClient()
	assert.Equal(t, 2, b.ClientCount())

	ev := New(PostCreated, 7, 3, time.Now())
	require.NoError(t, b.Publish(context.Background(), ev))

	for _, ch := range []<-chan SSEEvent{ch1, ch2} {
		got := <-ch
		assert.Equal(t, string(PostCreated), got.Event)
		var decoded Event
		require.NoError(t, json.Unmarshal([]byte(got.Data), &decoded))
		assert.Equal(t, int64(7), decoded.PostID)
	}

	b.RemoveClient(id2)
	_, open := <-ch2
	assert.False(t, open)
	assert.Equal(t, 1, b.ClientCount())
}

func TestBroadcasterDropsForFullClient(t *testing.T) {
	b := NewBroadcaster()
	id, ch := b.NewClient()
	for i := 0; i < clientBuffer; i++ {
		require.NoError(t, b.Send(id, NewSSEEvent("x")))
	}
	assert.Error(t, b.Send(id, NewSSEEvent("overflow")))
	// Publish never fails because of one slow client.
	assert.NoError(t, b.Publish(context.Background(), New(PostDeleted, 1, 1, time.Now())))
	assert.Len(t, ch, clientBuffer)

	assert.Error(t, b.Send("unknown", NewSSEEvent("x")))

	dropped, ok := b.Dropped(id)
	require.True(t, ok)
	assert.Equal(t, 2, dropped)

	b.RemoveClient(id)
	_, ok = b.Dropped(id)
	assert.False(t, ok)
}

func TestHandleStreamDeliversEvents(t *testing.T) {
	b := NewBroadcaster()
	srv := httptest.NewServer(b.HandleStream())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return b.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, b.Publish(ctx, New(PostExpired, 42, 0, time.Now())))

	buf := make([]byte, 4096)
	var got strings.Builder
	for !strings.Contains(got.String(), "event: post.expired") {
		n, err := resp.Body.Read(buf)
		require.NoError(t, err)
		got.Write(buf[:n])
	}
	assert.Contains(t, got.String(), "event: connected")
	assert.Contains(t, got.String(), `"post_id":42`)
}

func TestNATSPublisher(t *testing.T) {
	conn := &fakeConn{}
	p := NewNATSPublisher(conn, "blog")

	require.NoError(t, p.Publish(context.Background(), New(PostExpired, 9, 2, time.Now())))
	require.Len(t, conn.subjects, 1)
	assert.Equal(t, "blog.post.expired", conn.subjects[0])

	var decoded Event
	require.NoError(t, json.Unmarshal(conn.payloads[0], &decoded))
	assert.Equal(t, PostExpired, decoded.Type)
	assert.Equal(t, int64(9), decoded.PostID)

	conn.closed = true
	err := p.Publish(context.Background(), New(PostCreated, 1, 1, time.Now()))
	assert.ErrorIs(t, err, nats.ErrConnectionClosed)
	assert.Len(t, conn.subjects, 1)

	assert.Equal(t, "post.created", NewNATSPublisher(conn, "").Subject(PostCreated))
}

func TestMultiAttemptsEveryPublisher(t *testing.T) {
	bad := &failingPublisher{}
	conn := &fakeConn{}
	m := Multi{bad, nil, NewNATSPublisher(conn, "x"), Nop{}}

	err := m.Publish(context.Background(), New(PostUpdated, 1, 1, time.Now()))
	assert.Error(t, err)
	assert.Equal(t, 1, bad.calls)
	assert.Len(t, conn.subjects, 1)

	assert.NoError(t, Multi{Nop{}}.Publish(context.Background(), Event{}))
}
