package services_test

import (
	"encoding/json"
	"net"
	"testing"

	"github.com/benmeehan/whatsminer-cli/internal/models"
	"github.com/benmeehan/whatsminer-cli/internal/transport"
	"github.com/benmeehan/whatsminer-cli/pkg/encryption"
	"github.com/stretchr/testify/require"
)

// fakeMiner answers get.device.info with its salt and accepts set.* commands
// only when the token matches the one derived from that salt.
type fakeMiner struct {
	host     string
	port     int
	salt     string
	password string
}

func newFakeMiner(t *testing.T, salt string) *fakeMiner {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })

	addr := listener.Addr().(*net.TCPAddr)
	m := &fakeMiner{host: addr.IP.String(), port: addr.Port, salt: salt, password: "passw0rd"}

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go m.serve(conn)
		}
	}()

	return m
}

func (m *fakeMiner) serve(conn net.Conn) {
	defer conn.Close()

	body, err := transport.ReadFrame(conn, 0)
	if err != nil {
		return
	}

	var req models.Request
	if err := json.Unmarshal(body, &req); err != nil {
		transport.WriteFrame(conn, []byte(`{"STATUS":"E","msg":"bad json"}`))
		return
	}

	switch {
	case req.Cmd == "get.device.info":
		transport.WriteFrame(conn, []byte(`{"STATUS":"S","When":1,"Code":131,"msg":{"salt":"`+m.salt+`"}}`))
	case req.TS != nil && req.Account != nil:
		token, _ := encryption.DeriveToken(req.Cmd, m.password, m.salt, *req.TS)
		if token != req.Token {
			transport.WriteFrame(conn, []byte(`{"STATUS":"E","msg":"invalid token"}`))
			return
		}
		transport.WriteFrame(conn, []byte(`{"STATUS":"S"}`))
	default:
		transport.WriteFrame(conn, nil)
	}
}
