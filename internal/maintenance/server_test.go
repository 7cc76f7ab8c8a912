package maintenance

import (
	"encoding/json"
	"io"
	"net"
	"testing"
	"time"

	"github.com/novy-bridge/internal/commands"
	"github.com/novy-bridge/internal/config"
	"github.com/novy-bridge/internal/dispatch"
	"github.com/novy-bridge/internal/transceiver"
	"github.com/novy-bridge/internal/transceiver/stub"
)

func createTestServer(t *testing.T, cfg *config.Config) (*Server, *stub.Recorder) {
	t.Helper()
	rec := stub.NewRecorder()
	driver := transceiver.New(rec.Line("data"), rec.Line("power"), rec, dispatch.DriverOptions(cfg.Driver))
	d, err := dispatch.New(cfg, driver, nil)
	if err != nil {
		t.Fatalf("dispatch.New() error = %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return NewServer(cfg, d), rec
}

// roundTrip runs req through handleConnection on a mock connection
func roundTrip(t *testing.T, server *Server, data []byte) commands.Response {
	t.Helper()
	conn := &mockConn{remoteAddr: "127.0.0.1:12345", readData: data}

	done := make(chan bool, 1)
	go func() {
		server.handleConnection(conn)
		done <- true
	}()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("handleConnection timed out")
	}

	if len(conn.writtenData) == 0 {
		t.Fatal("Expected response to be written")
	}
	var response commands.Response
	if err := json.Unmarshal(conn.writtenData, &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	return response
}

func TestHandleConnection(t *testing.T) {
	server, _ := createTestServer(t, config.Default())

	tests := []struct {
		name     string
		request  string
		wantCode int
	}{
		{"status", `{"jsonrpc":"2.0","method":"status","id":"test-1"}`, 0},
		{"code table", `{"jsonrpc":"2.0","method":"code_table","id":"test-1"}`, 0},
		{"preview", `{"jsonrpc":"2.0","method":"preview","params":["0","light"],"id":"test-1"}`, 0},
		{"commands", `{"jsonrpc":"2.0","method":"commands","id":"test-1"}`, 0},
		{"preview bad device", `{"jsonrpc":"2.0","method":"preview","params":["12","light"],"id":"test-1"}`, commands.CodeCommandFailed},
		{"wrong version", `{"jsonrpc":"1.0","method":"status","id":"test-1"}`, commands.CodeInvalidRequest},
		{"unknown method", `{"jsonrpc":"2.0","method":"zeroize","id":"test-1"}`, commands.CodeMethodNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			response := roundTrip(t, server, []byte(tt.request))

			if response.JSONRPC != "2.0" {
				t.Errorf("Expected JSONRPC 2.0, got %s", response.JSONRPC)
			}
			if response.ID != "test-1" {
				t.Errorf("Expected ID 'test-1', got %v", response.ID)
			}
			if tt.wantCode == 0 {
				if response.Error != nil {
					t.Errorf("Expected no error, got %+v", response.Error)
				}
				if response.Result == nil {
					t.Error("Expected result")
				}
				return
			}
			if response.Error == nil || response.Error.Code != tt.wantCode {
				t.Errorf("error = %+v, want code %d", response.Error, tt.wantCode)
			}
		})
	}
}

func TestTransmittingCommandsAreNotExposed(t *testing.T) {
	server, rec := createTestServer(t, config.Default())

	for _, method := range []string{"light", "power", "plus", "minus", "novy"} {
		req := `{"jsonrpc":"2.0","method":"` + method + `","params":["0"],"id":1}`
		response := roundTrip(t, server, []byte(req))
		if response.Error == nil || response.Error.Code != commands.CodeMethodNotFound {
			t.Errorf("%s: error = %+v, want method not found", method, response.Error)
		}
	}

	if len(rec.Events()) != 0 {
		t.Error("maintenance port reached the transmitter")
	}
}

func TestHandleConnectionInvalidJSON(t *testing.T) {
	server, _ := createTestServer(t, config.Default())

	response := roundTrip(t, server, []byte("invalid json"))
	if response.Error == nil || response.Error.Code != commands.CodeParseError {
		t.Errorf("error = %+v, want parse error", response.Error)
	}
}

func TestCIDRFiltering(t *testing.T) {
	cfg := config.Default()
	cfg.Network.Maintenance.AllowedCIDRs = []string{
		"127.0.0.0/8",
		"192.168.10.0/24",
		"not-a-cidr",
	}
	server, _ := createTestServer(t, cfg)

	tests := []struct {
		name        string
		remoteAddr  string
		expectAllow bool
	}{
		{"localhost", "127.0.0.1:12345", true},
		{"home network", "192.168.10.20:12345", true},
		{"localhost IPv6", "[::1]:12345", false},
		{"other private", "192.168.1.1:12345", false},
		{"public network", "8.8.8.8:12345", false},
		{"invalid IP", "invalid:12345", false},
		{"invalid address", "invalid", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &mockConn{remoteAddr: tt.remoteAddr}
			allowed := server.isAllowedConnection(conn)
			if allowed != tt.expectAllow {
				t.Errorf("Expected allowed=%v for %s, got %v", tt.expectAllow, tt.remoteAddr, allowed)
			}
		})
	}
}

func TestServeOverTCP(t *testing.T) {
	server, _ := createTestServer(t, config.Default())

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	served := make(chan error, 1)
	go func() { served <- server.Serve(listener) }()

	conn, err := net.Dial("tcp", listener.Addr().String())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(2 * time.Second))

	if _, err := conn.Write([]byte(`{"jsonrpc":"2.0","method":"status","id":7}`)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	var response commands.Response
	if err := json.NewDecoder(conn).Decode(&response); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if response.Error != nil {
		t.Errorf("Expected no error, got %+v", response.Error)
	}
	status := response.Result.(map[string]interface{})
	if status["state"] != "idle" {
		t.Errorf("state = %v, want idle", status["state"])
	}

	if err := server.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	select {
	case err := <-served:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Error("Serve() did not return after Close")
	}
}

func TestServerClose(t *testing.T) {
	server, _ := createTestServer(t, config.Default())

	// Closing a server that never listened is fine
	if err := server.Close(); err != nil {
		t.Errorf("Close() returned error: %v", err)
	}
	if err := server.Close(); err != nil {
		t.Errorf("Close() on already closed server returned error: %v", err)
	}
}

// Mock connection for testing
type mockConn struct {
	remoteAddr  string
	readData    []byte
	writtenData []byte
	readPos     int
}

func (m *mockConn) Read(b []byte) (n int, err error) {
	if m.readPos >= len(m.readData) {
		return 0, io.EOF
	}

	n = copy(b, m.readData[m.readPos:])
	m.readPos += n
	return n, nil
}

func (m *mockConn) Write(b []byte) (n int, err error) {
	m.writtenData = append(m.writtenData, b...)
	return len(b), nil
}

func (m *mockConn) Close() error {
	return nil
}

func (m *mockConn) LocalAddr() net.Addr {
	return &mockAddr{"local"}
}

func (m *mockConn) RemoteAddr() net.Addr {
	return &mockAddr{m.remoteAddr}
}

func (m *mockConn) SetDeadline(t time.Time) error {
	return nil
}

func (m *mockConn) SetReadDeadline(t time.Time) error {
	return nil
}

func (m *mockConn) SetWriteDeadline(t time.Time) error {
	return nil
}

type mockAddr struct {
	addr string
}

func (m *mockAddr) Network() string {
	return "tcp"
}

func (m *mockAddr) String() string {
	return m.addr
}
