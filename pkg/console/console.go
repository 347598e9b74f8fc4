// Copyright 2025-2026 LittleRpg Community
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package console implements the game server's remote console protocol
// (Source RCON). Connections are short-lived: every batch opens a fresh
// connection, authenticates, runs its commands and disconnects. The client
// never retries; retry policy belongs to the caller.
package console

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/rs/zerolog"
)

// Packet types of the RCON wire protocol.
const (
	typeResponse     = 0
	typeCommand      = 2
	typeAuthResponse = 2
	typeAuth         = 3
)

// maxPayload bounds a single inbound packet body.
const maxPayload = 1 << 16

// DefaultTimeout bounds connect and authenticate time when the client is
// configured without one.
const DefaultTimeout = 5 * time.Second

// ErrAuthFailed is returned when the server rejects the shared secret, or
// when connect/authenticate does not complete within the configured timeout.
var ErrAuthFailed = errors.New("console: authentication failed")

// BatchError reports a transport or protocol failure partway through a
// command batch. Executed counts the commands already sent before the
// failure; the caller is responsible for idempotency.
type BatchError struct {
	Executed int
	Err      error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("console: batch failed after %d command(s): %v", e.Executed, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// Client runs command batches against the game server's remote console.
type Client struct {
	addr     string
	password string
	timeout  time.Duration
	log      zerolog.Logger
}

// NewClient creates a console client for the given address and shared
// secret. A non-positive timeout falls back to DefaultTimeout.
func NewClient(addr, password string, timeout time.Duration, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		addr:     addr,
		password: password,
		timeout:  timeout,
		log:      log.With().Str("component", "console").Logger(),
	}
}

// Run connects, authenticates and executes commands in order, returning the
// per-command textual responses. The connection is always closed before
// returning. A failure mid-batch returns the responses collected so far and
// a *BatchError surfacing how many commands were already sent.
func (c *Client) Run(ctx context.Context, commands []string) ([]string, error) {
	conn, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	responses := make([]string, 0, len(commands))
	for i, cmd := range commands {
		resp, sent, err := c.exchange(conn, typeCommand, cmd)
		if err != nil {
			executed := i
			if sent {
				executed++
			}
			return responses, &BatchError{Executed: executed, Err: err}
		}
		c.log.Debug().Str("command", cmd).Str("response", resp).Msg("Command executed")
		responses = append(responses, resp)
	}
	return responses, nil
}

// Probe performs a connect/authenticate/disconnect cycle and reports whether
// it succeeded. Used as a startup health check.
func (c *Client) Probe(ctx context.Context) bool {
	conn, err := c.connect(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("Console probe failed")
		return false
	}
	conn.Close()
	return true
}

// connect dials the server and authenticates. Every failure on this path is
// reported as ErrAuthFailed, and the socket is closed before returning it.
func (c *Client) connect(ctx context.Context) (net.Conn, error) {
	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}

	if _, err := c.exchangeAuth(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// exchangeAuth sends the auth packet and waits for the auth response,
// skipping the empty response-value packet some servers emit first. A
// response id of -1 means the secret was rejected.
func (c *Client) exchangeAuth(conn net.Conn) (int32, error) {
	reqID := int32(1)
	if err := writePacket(conn, c.timeout, reqID, typeAuth, c.password); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	for {
		id, ptype, _, err := readPacket(conn, c.timeout)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrAuthFailed, err)
		}
		if ptype != typeAuthResponse {
			continue
		}
		if id == -1 {
			return id, ErrAuthFailed
		}
		return id, nil
	}
}

// exchange sends one command packet and reads its response body. sent
// reports that the packet reached the wire: a command counts as executed
// once its write succeeds, even when the response never arrives.
func (c *Client) exchange(conn net.Conn, ptype int32, body string) (resp string, sent bool, err error) {
	reqID := int32(2)
	if err := writePacket(conn, c.timeout, reqID, ptype, body); err != nil {
		return "", false, err
	}
	_, _, resp, err = readPacket(conn, c.timeout)
	if err != nil {
		return "", true, err
	}
	return resp, true, nil
}

func writePacket(conn net.Conn, timeout time.Duration, id, ptype int32, body string) error {
	if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	size := int32(4 + 4 + len(body) + 2)
	buf := make([]byte, 0, 4+size)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(size))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(id))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(ptype))
	buf = append(buf, body...)
	buf = append(buf, 0, 0)
	_, err := conn.Write(buf)
	return err
}

func readPacket(conn net.Conn, timeout time.Duration) (id, ptype int32, body string, err error) {
	if err = conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, 0, "", err
	}
	var sizeBuf [4]byte
	if _, err = io.ReadFull(conn, sizeBuf[:]); err != nil {
		return 0, 0, "", err
	}
	size := int32(binary.LittleEndian.Uint32(sizeBuf[:]))
	if size < 10 || size > maxPayload {
		return 0, 0, "", fmt.Errorf("console: invalid packet size %d", size)
	}
	payload := make([]byte, size)
	if _, err = io.ReadFull(conn, payload); err != nil {
		return 0, 0, "", err
	}
	id = int32(binary.LittleEndian.Uint32(payload[0:4]))
	ptype = int32(binary.LittleEndian.Uint32(payload[4:8]))
	body = string(payload[8 : size-2])
	return id, ptype, body, nil
}
