package natsnotify

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"slotwatch/internal/components/telemetry"
	"slotwatch/internal/slots"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// pubServer speaks just enough of the nats protocol for a client to connect, publish and
// flush: INFO on accept, PONG for every PING, PUB payloads recorded.
type pubServer struct {
	listener net.Listener

	mutex    sync.Mutex
	subjects []string
	payloads [][]byte
}

func newPubServer(t *testing.T) *pubServer {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &pubServer{listener: listener}
	t.Cleanup(func() { listener.Close() })
	go s.accept()
	return s
}

func (s *pubServer) url() string {
	return "nats://" + s.listener.Addr().String()
}

func (s *pubServer) accept() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.serve(conn)
	}
}

func (s *pubServer) serve(conn net.Conn) {
	defer conn.Close()

	fmt.Fprintf(conn, "INFO {\"server_id\":\"test\",\"version\":\"2.10.0\",\"proto\":1,\"max_payload\":1048576}\r\n")

	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch strings.ToUpper(fields[0]) {
		case "PING":
			fmt.Fprintf(conn, "PONG\r\n")
		case "PUB":
			size, err := strconv.Atoi(fields[len(fields)-1])
			if err != nil {
				return
			}
			payload := make([]byte, size+2)
			_, err = io.ReadFull(reader, payload)
			if err != nil {
				return
			}
			s.mutex.Lock()
			s.subjects = append(s.subjects, fields[1])
			s.payloads = append(s.payloads, payload[:size])
			s.mutex.Unlock()
		}
	}
}

func (s *pubServer) published() ([]string, [][]byte) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.subjects, s.payloads
}

func TestNotifyWithoutDeadline(t *testing.T) {
	server := newPubServer(t)

	notifier, closer, err := Connect(Config{Url: server.url()}, telemetry.NewRecorder())
	require.NoError(t, err)
	defer closer()

	// contexts from cobra, signal handling and http requests carry no deadline
	err = notifier.Notify(context.Background(), slots.Notification{
		Source: "src",
		Slots:  []string{"01/01/2024-9:00"},
	})
	require.NoError(t, err)

	// the flush only returns once the server answered the PING sent after the PUB
	subjects, payloads := server.published()
	require.Equal(t, []string{DefaultSubject}, subjects)

	var msg Message
	require.NoError(t, json.Unmarshal(payloads[0], &msg))
	require.Equal(t, []string{"01/01/2024-9:00"}, msg.Slots)
}
