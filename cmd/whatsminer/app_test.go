package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/benmeehan/whatsminer-cli/internal/models"
	"github.com/benmeehan/whatsminer-cli/internal/transport"
	"github.com/benmeehan/whatsminer-cli/pkg/encryption"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingMiner replies with a salt to get.device.info and records every request.
type recordingMiner struct {
	addr *net.TCPAddr
	salt string

	mu       sync.Mutex
	requests []models.Request
}

func newRecordingMiner(t *testing.T, salt string) *recordingMiner {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })

	m := &recordingMiner{addr: listener.Addr().(*net.TCPAddr), salt: salt}
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			m.serve(conn)
		}
	}()
	return m
}

func (m *recordingMiner) serve(conn net.Conn) {
	defer conn.Close()

	body, err := transport.ReadFrame(conn, 0)
	if err != nil {
		return
	}

	var req models.Request
	_ = json.Unmarshal(body, &req)
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if req.Cmd == "get.device.info" && m.salt != "" {
		transport.WriteFrame(conn, []byte(`{"STATUS":"S","msg":{"salt":"`+m.salt+`"}}`))
		return
	}
	transport.WriteFrame(conn, []byte(`{"STATUS":"S","When":1700000000,"msg":{"ok":true}}`))
}

func (m *recordingMiner) recorded() []models.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Request(nil), m.requests...)
}

func (m *recordingMiner) globalArgs() []string {
	return []string{
		"--config", "does-not-exist.json",
		"--host", m.addr.IP.String(),
		"--port", strconv.Itoa(m.addr.Port),
		"--password", "passw0rd",
		"--timeout", "2",
		"--log-level", "error",
	}
}

func runApp(t *testing.T, args ...string) (int, string, string) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	app := &App{Stdout: &stdout, Stderr: &stderr}
	code := app.Run(context.Background(), args)
	return code, stdout.String(), stderr.String()
}

func TestApp_MissingConfig(t *testing.T) {
	code, _, stderr := runApp(t, "--config", filepath.Join(t.TempDir(), "none.json"), "get-salt")

	assert.Equal(t, exitConfig, code)
	assert.Contains(t, stderr, "host and password must be supplied")
}

func TestApp_UnknownCommand(t *testing.T) {
	code, _, stderr := runApp(t, "reboot")

	assert.Equal(t, exitConfig, code)
	assert.Contains(t, stderr, "Unknown command: reboot")
}

func TestApp_Version(t *testing.T) {
	code, stdout, _ := runApp(t, "version")

	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "whatsminer")
}

func TestApp_GetSalt(t *testing.T) {
	miner := newRecordingMiner(t, "BQ5hoXV9")

	code, stdout, stderr := runApp(t, append(miner.globalArgs(), "get-salt")...)

	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, `"salt": "BQ5hoXV9"`)
	assert.Contains(t, stdout, "Extracted salt: BQ5hoXV9")
}

func TestApp_CallQuery(t *testing.T) {
	miner := newRecordingMiner(t, "")

	code, stdout, stderr := runApp(t, append(miner.globalArgs(), "call", "get.miner.status", "--param", "summary")...)

	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, `"STATUS": "S"`)

	requests := miner.recorded()
	require.Len(t, requests, 1)
	assert.Equal(t, "get.miner.status", requests[0].Cmd)
	assert.Equal(t, `"summary"`, string(requests[0].Param))
	assert.Nil(t, requests[0].TS)
}

func TestApp_CallSetFetchesSalt(t *testing.T) {
	miner := newRecordingMiner(t, "salt-1")
	pools := `{"pools":[{"url":"stratum+tcp://pool:3333","user":"w","pass":"x"}]}`

	code, stdout, stderr := runApp(t, append(miner.globalArgs(),
		"call", "set.miner.pools", "--param-json", pools, "--ts", "1111", "--show-request")...)

	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "=== Request preview ===")
	assert.Contains(t, stdout, `"ts": 1111`)

	requests := miner.recorded()
	require.Len(t, requests, 2)
	assert.Equal(t, "get.device.info", requests[0].Cmd)

	set := requests[1]
	token, key := encryption.DeriveToken("set.miner.pools", "passw0rd", "salt-1", 1111)
	assert.Equal(t, token, set.Token)
	assert.Equal(t, "super", *set.Account)

	var encoded string
	require.NoError(t, json.Unmarshal(set.Param, &encoded))
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	manager, err := encryption.NewEncryptionManager(key)
	require.NoError(t, err)
	plaintext, err := manager.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, pools, string(plaintext))
}

func TestApp_CallSetWithoutObtainableSalt(t *testing.T) {
	miner := newRecordingMiner(t, "")

	code, _, stderr := runApp(t, append(miner.globalArgs(), "call", "set.miner.power", "--param", "3200")...)

	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, "salt required")
	assert.Len(t, miner.recorded(), 1)
}

func TestApp_CallSaveResponse(t *testing.T) {
	miner := newRecordingMiner(t, "")
	path := filepath.Join(t.TempDir(), "resp.json")

	code, _, stderr := runApp(t, append(miner.globalArgs(), "call", "--save-response", path, "get.device.info")...)
	require.Equal(t, exitOK, code, stderr)

	saved, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"STATUS\": \"S\",\n  \"When\": 1700000000,\n  \"msg\": {\n    \"ok\": true\n  }\n}\n", string(saved))
}

func TestApp_CallConflictingParams(t *testing.T) {
	miner := newRecordingMiner(t, "")

	code, _, stderr := runApp(t, append(miner.globalArgs(), "call", "get.x", "--param", "1", "--param-json", "2")...)

	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, "only one of")
	assert.Empty(t, miner.recorded())
}

func TestApp_ConfigFileAndPrompt(t *testing.T) {
	miner := newRecordingMiner(t, "")
	path := filepath.Join(t.TempDir(), "miner-conf.yaml")
	content := "host: " + miner.addr.IP.String() + "\nport: " + strconv.Itoa(miner.addr.Port) + "\nlog:\n  level: error\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	var stdout, stderr bytes.Buffer
	prompted := false
	app := &App{
		Stdout: &stdout,
		Stderr: &stderr,
		ReadPassword: func() (string, error) {
			prompted = true
			return "typed", nil
		},
	}

	code := app.Run(context.Background(), []string{"-c", path, "call", "get.device.info"})

	require.Equal(t, exitOK, code, stderr.String())
	assert.True(t, prompted)
	assert.Len(t, miner.recorded(), 1)
}

func TestParseWithPositional(t *testing.T) {
	parse := func(args ...string) (string, *callOptions, error) {
		opts := &callOptions{}
		cmd, err := parseWithPositional(newCallFlagSet(opts, io.Discard), args)
		return cmd, opts, err
	}

	cmd, opts, err := parse("get.a", "--salt", "s")
	require.NoError(t, err)
	assert.Equal(t, "get.a", cmd)
	assert.Equal(t, "s", *opts.salt.value)

	cmd, opts, err = parse("--ts", "42", "get.b")
	require.NoError(t, err)
	assert.Equal(t, "get.b", cmd)
	assert.Equal(t, int64(42), *opts.ts.value)

	_, _, err = parse("--salt", "s")
	assert.Error(t, err)

	_, _, err = parse("get.c", "extra")
	assert.Error(t, err)

	_, _, err = parse("get.d", "--ts", "soon")
	assert.Error(t, err)
}
