package gateway

import (
	"net"
	"strings"
	"sync"
)

// mockGateway speaks the gateway wire protocol on 127.0.0.1.
type mockGateway struct {
	listener net.Listener
	mu       sync.Mutex
	conns    []net.Conn

	// requests receives every request before it is answered.
	requests chan string

	// handle returns the reply for req; drop closes the connection instead.
	// An empty reply is never answered.
	handle func(req string) (reply string, drop bool)

	color string
	isOn  bool
}

func newMockGateway() (*mockGateway, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	m := &mockGateway{
		listener: ln,
		requests: make(chan string, 100),
		color:    "0x1a2b3c",
		isOn:     true,
	}
	m.handle = m.defaultReply
	go m.serve()
	return m, nil
}

func (m *mockGateway) Port() int {
	return m.listener.Addr().(*net.TCPAddr).Port
}

func (m *mockGateway) Close() error {
	err := m.listener.Close()
	m.mu.Lock()
	for _, conn := range m.conns {
		conn.Close()
	}
	m.mu.Unlock()
	return err
}

func (m *mockGateway) setHandler(h func(req string) (string, bool)) {
	m.mu.Lock()
	m.handle = h
	m.mu.Unlock()
}

func (m *mockGateway) setBulb(color string, on bool) {
	m.mu.Lock()
	m.color = color
	m.isOn = on
	m.mu.Unlock()
}

func (m *mockGateway) defaultReply(req string) (string, bool) {
	path := req
	query := ""
	if i := strings.Index(req, "?"); i >= 0 {
		path, query = req[:i], req[i+1:]
	}
	switch path {
	case "":
		return ReplyAlive, false
	case ReqColor:
		return m.color, false
	case ReqIsOn:
		if m.isOn {
			return ReplyOn, false
		}
		return ReplyOff, false
	case "/rgb":
		if len(query) != 8 || !strings.HasPrefix(query, "0x") {
			return ReplyBadRequest, false
		}
		m.color = query
		return "OK", false
	case "/on":
		m.isOn = true
		return "OK", false
	case "/off":
		m.isOn = false
		return "OK", false
	case "/warm", "/disco", "/cool", "/soft":
		return "OK", false
	}
	return ReplyBadRequest, false
}

func (m *mockGateway) serve() {
	for {
		conn, err := m.listener.Accept()
		if err != nil {
			return
		}
		m.mu.Lock()
		m.conns = append(m.conns, conn)
		m.mu.Unlock()
		go m.handleConn(conn)
	}
}

func (m *mockGateway) handleConn(conn net.Conn) {
	defer conn.Close()
	pending := ""
	tmp := make([]byte, 1024)
	for {
		n, err := conn.Read(tmp)
		if err != nil {
			return
		}
		pending += string(tmp[:n])
		for {
			k := strings.Index(pending, Delimiter)
			if k < 0 {
				break
			}
			req := pending[:k]
			pending = pending[k+len(Delimiter):]

			m.requests <- req
			m.mu.Lock()
			reply, drop := m.handle(req)
			m.mu.Unlock()
			if drop {
				return
			}
			if reply == "" {
				continue
			}
			if _, err := conn.Write([]byte(reply + Delimiter)); err != nil {
				return
			}
		}
	}
}
