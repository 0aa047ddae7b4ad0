package transport

import (
	"dqlcluster/wire"
	"testing"
	"time"

	"github.com/magiconair/properties/assert"
)

func TestRequestResponseRoundTrip(t *testing.T) {
	srv, err := NewServer("127.0.0.1:0", func(m *wire.Message) *wire.Message {
		resp, _ := wire.New(wire.Ack, 99, &m.SenderID, map[string]interface{}{"echo": m.Data["x"]})
		return resp
	})
	assert.Equal(t, err, nil)
	go srv.Run()
	defer srv.Close()

	req, _ := wire.New(wire.Query, 1, nil, map[string]interface{}{"x": float64(7)})
	resp, err := Send(srv.Addr().String(), req, true, time.Second)
	assert.Equal(t, err, nil)
	assert.Equal(t, resp.Type, wire.Ack)
	assert.Equal(t, resp.Data["echo"], float64(7))
}

func TestFireAndForgetSendsNoResponse(t *testing.T) {
	received := make(chan *wire.Message, 1)
	srv, err := NewServer("127.0.0.1:0", func(m *wire.Message) *wire.Message {
		received <- m
		return nil
	})
	assert.Equal(t, err, nil)
	go srv.Run()
	defer srv.Close()

	req, _ := wire.New(wire.Heartbeat, 1, nil, map[string]interface{}{})
	resp, err := Send(srv.Addr().String(), req, false, time.Second)
	assert.Equal(t, err, nil)
	assert.Equal(t, resp == nil, true)

	select {
	case m := <-received:
		assert.Equal(t, m.Type, wire.Heartbeat)
	case <-time.After(time.Second):
		t.Fatal("handler never received the heartbeat")
	}
}

func TestBroadcastIsolatesPerPeerFailure(t *testing.T) {
	srv, err := NewServer("127.0.0.1:0", func(m *wire.Message) *wire.Message {
		resp, _ := wire.New(wire.Ack, 2, &m.SenderID, nil)
		return resp
	})
	assert.Equal(t, err, nil)
	go srv.Run()
	defer srv.Close()

	addresses := map[int]string{
		2: srv.Addr().String(),
		3: "127.0.0.1:1", // nothing listening there
	}
	results := Broadcast(addresses, func(nodeID int) *wire.Message {
		m, _ := wire.New(wire.Query, 1, nil, nil)
		return m
	}, true, 300*time.Millisecond)

	assert.Equal(t, len(results), 1)
	_, ok := results[2]
	assert.Equal(t, ok, true)
	_, ok = results[3]
	assert.Equal(t, ok, false)
}
