package scan

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeServer is a scripted scan server for one test scenario. It accepts
// one command per connection, records everything it receives, and answers
// per the configured script. A nil reply closes the connection without
// sending any data.
type fakeServer struct {
	t  *testing.T
	ln net.Listener

	initReply  []byte
	moveReply  []byte
	doneReply  []byte
	failAtStep int // 0-based MOVE index answered with a bare close, -1 = never

	// moveSeen receives one token per MOVE command, for cancellation tests.
	moveSeen chan struct{}

	mu        sync.Mutex
	commands  []string
	moveTimes []time.Time
	conns     int
}

func newFakeServer(t *testing.T, steps int32) *fakeServer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	fs := &fakeServer{
		t:          t,
		ln:         ln,
		initReply:  EncodeStepCount(steps),
		moveReply:  []byte{0x06}, // 1-byte ack
		doneReply:  []byte("ok"),
		failAtStep: -1,
		moveSeen:   make(chan struct{}, 64),
	}

	go fs.serve()
	t.Cleanup(func() { _ = ln.Close() })

	return fs
}

func (fs *fakeServer) port() int {
	return fs.ln.Addr().(*net.TCPAddr).Port
}

func (fs *fakeServer) serve() {
	moveIdx := 0

	for {
		conn, err := fs.ln.Accept()
		if err != nil {
			return
		}

		buf := make([]byte, 64)
		n, _ := conn.Read(buf)
		cmd := string(buf[:n])

		fs.mu.Lock()
		fs.conns++
		fs.commands = append(fs.commands, cmd)
		if cmd == "MOVE" {
			fs.moveTimes = append(fs.moveTimes, time.Now())
		}
		fs.mu.Unlock()

		switch cmd {
		case "INIT":
			if fs.initReply != nil {
				_, _ = conn.Write(fs.initReply)
			}
		case "MOVE":
			idx := moveIdx
			moveIdx++
			if idx != fs.failAtStep {
				_, _ = conn.Write(fs.moveReply)
			}
			select {
			case fs.moveSeen <- struct{}{}:
			default:
			}
		case "DONE":
			if fs.doneReply != nil {
				_, _ = conn.Write(fs.doneReply)
			}
		}

		_ = conn.Close()
	}
}

func (fs *fakeServer) commandLog() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	return append([]string(nil), fs.commands...)
}

func (fs *fakeServer) moveTimestamps() []time.Time {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	return append([]time.Time(nil), fs.moveTimes...)
}

func (fs *fakeServer) connCount() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	return fs.conns
}

// newTestController creates a controller pointed at the fake server with
// short timeouts suitable for tests.
func newTestController(t *testing.T, fs *fakeServer, opts ...ControllerOption) *Controller {
	t.Helper()

	defaults := []ControllerOption{
		WithStepDelay(5 * time.Millisecond),
		WithExchangeTimeout(500 * time.Millisecond),
		WithConnectTimeout(500 * time.Millisecond),
	}

	cfg, err := NewControllerConfig("127.0.0.1", fs.port(), append(defaults, opts...)...)
	require.NoError(t, err)

	ctrl, err := NewController(cfg)
	require.NoError(t, err)

	return ctrl
}
