// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package sender speaks the FCast v1 protocol to network media receivers.
package sender

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"time"
)

// FCast v1 framing: a 4-byte little-endian length covering opcode plus
// payload, then one opcode byte, then a JSON payload.
const (
	opPlay byte = 1
	opStop byte = 4

	hlsMIME = "application/vnd.apple.mpegurl"

	// DefaultPort is the FCast session port.
	DefaultPort = 46899

	dialTimeout  = 5 * time.Second
	writeTimeout = 5 * time.Second
)

type playPayload struct {
	Container string `json:"container"`
	URL       string `json:"url"`
}

// Conn is one FCast control connection.
type Conn struct {
	c net.Conn
}

// Dial connects to an FCast receiver at host:port.
func Dial(ctx context.Context, host string, port int) (*Conn, error) {
	if port <= 0 {
		port = DefaultPort
	}
	d := net.Dialer{Timeout: dialTimeout}
	c, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("dial fcast receiver %s:%d: %w", host, port, err)
	}
	return &Conn{c: c}, nil
}

// Play commands the receiver to play the given HLS media URL.
func (c *Conn) Play(mediaURL string) error {
	body, err := json.Marshal(playPayload{Container: hlsMIME, URL: mediaURL})
	if err != nil {
		return fmt.Errorf("encode play payload: %w", err)
	}
	return c.send(opPlay, body)
}

// Stop commands the receiver to stop playback.
func (c *Conn) Stop() error {
	return c.send(opStop, nil)
}

// Close closes the control connection.
func (c *Conn) Close() error {
	return c.c.Close()
}

func (c *Conn) send(opcode byte, payload []byte) error {
	frame := make([]byte, 0, 5+len(payload))
	frame = binary.LittleEndian.AppendUint32(frame, uint32(1+len(payload))) // #nosec G115 -- payloads are small JSON bodies
	frame = append(frame, opcode)
	frame = append(frame, payload...)

	if err := c.c.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if _, err := c.c.Write(frame); err != nil {
		return fmt.Errorf("send fcast opcode %d: %w", opcode, err)
	}
	return nil
}
