// Package transport implements the cluster's one-request-per-connection TCP
// transport (§4.2): a client that dials, writes one framed request and
// optionally reads one framed response, and a server that accepts
// connections and spawns one worker per connection.
package transport

import (
	"dqlcluster/configs"
	"dqlcluster/wire"
	"net"
	"sync"
	"time"
)

// Handler processes one received message and returns the response to write
// back, or nil if no response should be sent (heartbeats, fire-and-forget
// announcements, §4.9).
type Handler func(*wire.Message) *wire.Message

// Server accepts TCP connections and dispatches exactly one request per
// connection to Handler, mirroring the teacher's Commu accept loop.
type Server struct {
	listener net.Listener
	handler  Handler
	sem      chan struct{}
	done     chan struct{}
	wg       sync.WaitGroup
}

// MaxConnectionHandlers bounds the number of concurrently-handled
// connections, same role as the teacher's configs.MaxConnectionHandler.
const MaxConnectionHandlers = 64

// NewServer binds address and returns a Server ready to Run.
func NewServer(address string, handler Handler) (*Server, error) {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: ln,
		handler:  handler,
		sem:      make(chan struct{}, MaxConnectionHandlers),
		done:     make(chan struct{}),
	}, nil
}

// Addr returns the server's bound address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Run accepts connections until Close is called. Accept errors that are not
// shutdown-induced are logged and the loop keeps running (§4.2).
func (s *Server) Run() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				configs.Warn(false, "accept error: "+err.Error())
				continue
			}
		}
		s.sem <- struct{}{}
		s.wg.Add(1)
		go func() {
			defer func() {
				<-s.sem
				s.wg.Done()
			}()
			s.handleConn(conn)
		}()
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	defer func() {
		// a handler panic must never take the accept loop down with it
		// (§7): convert it into a dropped connection.
		if r := recover(); r != nil {
			configs.Warn(false, "recovered from handler panic: "+formatRecover(r))
		}
	}()

	if err := conn.SetReadDeadline(time.Now().Add(configs.TransportTimeout)); err != nil {
		return
	}
	msg, err := wire.ReadMessage(conn)
	if err != nil {
		configs.Warn(false, "read error: "+err.Error())
		return
	}

	resp := s.handler(msg)
	if resp == nil {
		return
	}
	if err := conn.SetWriteDeadline(time.Now().Add(configs.TransportTimeout)); err != nil {
		return
	}
	if err := wire.WriteMessage(conn, resp); err != nil {
		configs.Warn(false, "write error: "+err.Error())
	}
}

func formatRecover(r interface{}) string {
	if err, ok := r.(error); ok {
		return err.Error()
	}
	return "panic"
}

// Close stops accepting new connections and waits for in-flight workers to
// finish.
func (s *Server) Close() {
	close(s.done)
	s.listener.Close()
	s.wg.Wait()
}

// Send dials address, writes req, and reads exactly one response. Pass
// waitForResponse=false for fire-and-forget sends (heartbeats, abort
// broadcasts, coordinator announcements, §4.2/§4.5/§4.6/§4.8).
func Send(address string, req *wire.Message, waitForResponse bool, timeout time.Duration) (*wire.Message, error) {
	if timeout <= 0 {
		timeout = configs.TransportTimeout
	}
	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}
	if err := wire.WriteMessage(conn, req); err != nil {
		return nil, err
	}
	if !waitForResponse {
		return nil, nil
	}
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}
	return wire.ReadMessage(conn)
}

// Broadcast dispatches build(nodeID) to every peer in addresses concurrently
// (independent per-peer failure, §4.2) and collects the results into a
// {node_id -> response} map. A peer that errors or times out is simply
// absent from the result map; it never aborts the broadcast for the others.
func Broadcast(addresses map[int]string, build func(nodeID int) *wire.Message, waitForResponse bool, timeout time.Duration) map[int]*wire.Message {
	results := make(map[int]*wire.Message, len(addresses))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for nodeID, addr := range addresses {
		nodeID, addr := nodeID, addr
		wg.Add(1)
		go func() {
			defer wg.Done()
			msg := build(nodeID)
			resp, err := Send(addr, msg, waitForResponse, timeout)
			if err != nil {
				configs.Warn(false, "broadcast to node failed: "+err.Error())
				return
			}
			mu.Lock()
			results[nodeID] = resp
			mu.Unlock()
		}()
	}
	wg.Wait()
	return results
}
