package stage

import (
	"context"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peaklab/scanctl/scan"
)

// startTestServer runs a server on an ephemeral loopback port and tears it
// down with the test.
func startTestServer(t *testing.T, inst Instrument) (*Server, int) {
	t.Helper()

	cfg, err := NewServerConfig("127.0.0.1", 0,
		WithAcceptTimeout(100*time.Millisecond),
		WithReadTimeout(500*time.Millisecond),
		WithWriteTimeout(500*time.Millisecond),
	)
	require.NoError(t, err)

	srv, err := NewServer(cfg, inst)
	require.NoError(t, err)
	require.NoError(t, srv.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		_ = srv.Close()
		<-done
	})

	port := srv.Addr().(*net.TCPAddr).Port

	return srv, port
}

// sendCommand performs one raw exchange against the server.
func sendCommand(t *testing.T, port int, cmd string) []byte {
	t.Helper()

	conn, err := net.DialTimeout("tcp", "127.0.0.1:"+strconv.Itoa(port), time.Second)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetDeadline(time.Now().Add(time.Second)))

	_, err = conn.Write([]byte(cmd))
	require.NoError(t, err)

	buf := make([]byte, 1024)
	n, err := conn.Read(buf)
	require.NoError(t, err)

	return buf[:n]
}

func TestNewServer_NilArgs(t *testing.T) {
	cfg, err := NewServerConfig("127.0.0.1", 0)
	require.NoError(t, err)

	_, err = NewServer(nil, NewSimStage(1, 0))
	assert.ErrorIs(t, err, ErrConfigNil)

	_, err = NewServer(cfg, nil)
	assert.ErrorIs(t, err, ErrInstrumentNil)
}

func TestServer_InitReply(t *testing.T) {
	_, port := startTestServer(t, NewSimStage(3, 0))

	reply := sendCommand(t, port, "INIT")
	require.Len(t, reply, scan.StepCountLength)

	count, err := scan.DecodeStepCount(reply)
	require.NoError(t, err)
	assert.Equal(t, int32(3), count)
}

func TestServer_MoveAndDone(t *testing.T) {
	stage := NewSimStage(2, 0)
	_, port := startTestServer(t, stage)

	_ = sendCommand(t, port, "INIT")

	assert.Equal(t, []byte("ok"), sendCommand(t, port, "MOVE"))
	assert.Equal(t, []byte("ok"), sendCommand(t, port, "MOVE"))
	assert.Equal(t, int32(2), stage.Step())

	assert.Equal(t, []byte("ok"), sendCommand(t, port, "DONE"))
	assert.Equal(t, int32(0), stage.Step())
}

func TestServer_MotorSetAndQuery(t *testing.T) {
	_, port := startTestServer(t, NewSimStage(1, 0))

	assert.Equal(t, []byte("set_x_1.5"), sendCommand(t, port, "MOTOR_x_1.5"))
	assert.Equal(t, []byte("current_x_1.5"), sendCommand(t, port, "MOTOR_x"))
}

func TestServer_MotorQueryUnseenAxis(t *testing.T) {
	_, port := startTestServer(t, NewSimStage(1, 0))

	reply := string(sendCommand(t, port, "MOTOR_theta"))
	require.True(t, strings.HasPrefix(reply, "current_theta_"), "reply %q", reply)

	pos, err := strconv.ParseFloat(strings.TrimPrefix(reply, "current_theta_"), 64)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, pos, 0.0)
	assert.Less(t, pos, 1.0)
}

func TestServer_MotorBadValue(t *testing.T) {
	_, port := startTestServer(t, NewSimStage(1, 0))

	reply := string(sendCommand(t, port, "MOTOR_x_abc"))
	assert.Equal(t, "ERR bad motor value", reply)
}

func TestServer_UnknownCommand(t *testing.T) {
	_, port := startTestServer(t, NewSimStage(1, 0))

	reply := string(sendCommand(t, port, "XXXX"))
	assert.Equal(t, "ERR unknown command", reply)
}

func TestServer_EndToEndScan(t *testing.T) {
	srv, port := startTestServer(t, NewSimStage(3, 0))

	res, err := scan.RunExperiment(context.Background(), "127.0.0.1", port,
		scan.WithStepDelay(time.Millisecond))
	require.NoError(t, err)

	assert.Equal(t, 3, res.StepsCompleted)
	assert.Equal(t, int32(3), res.TotalSteps)
	assert.Equal(t, scan.DoneState, res.State)
	assert.Equal(t, uint64(5), srv.ConnCount()) // 1 INIT + 3 MOVE + 1 DONE
}

func TestServer_CloseStopsServe(t *testing.T) {
	cfg, err := NewServerConfig("127.0.0.1", 0, WithAcceptTimeout(100*time.Millisecond))
	require.NoError(t, err)

	srv, err := NewServer(cfg, NewSimStage(1, 0))
	require.NoError(t, err)
	require.NoError(t, srv.Listen())

	done := make(chan error, 1)
	go func() { done <- srv.Serve(context.Background()) }()

	require.NoError(t, srv.Close())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrServerClosed)
	case <-time.After(time.Second):
		t.Fatal("Serve did not stop after Close")
	}
}
