package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/aldrin-bus/aldrin/wire"
)

// connTransport is a Transport over a net.Conn (TCP or Unix socket),
// built directly on the packetizer's length-framing.
type connTransport struct {
	conn net.Conn
	pz   *wire.Packetizer

	writeMu sync.Mutex
	closeMu sync.Mutex
	closed  bool
}

// NewConn wraps conn as a Transport. The caller retains ownership of
// conn only insofar as Close on the returned Transport closes it too.
func NewConn(conn net.Conn) Transport {
	return &connTransport{conn: conn, pz: wire.NewPacketizer()}
}

func (c *connTransport) Recv(ctx context.Context) (wire.Message, error) {
	for {
		if frame, ok := c.pz.NextFrame(); ok {
			msg, err := wire.DecodeBody(frame)
			if err != nil {
				return nil, fmt.Errorf("transport: decode frame: %w", err)
			}
			return msg, nil
		}
		if err := c.applyDeadline(ctx); err != nil {
			return nil, err
		}
		dst := c.pz.Reserve(wire.MinReserveCapacity)
		n, err := c.conn.Read(dst)
		if n > 0 {
			c.pz.CommitWrite(n)
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if err == io.EOF {
				return nil, io.ErrClosedPipe
			}
			return nil, fmt.Errorf("transport: read: %w", err)
		}
	}
}

func (c *connTransport) Send(ctx context.Context, msg wire.Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.applyDeadline(ctx); err != nil {
		return err
	}
	frame := wire.EncodeFrame(msg)
	if _, err := c.conn.Write(frame); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("transport: write: %w", err)
	}
	return nil
}

func (c *connTransport) applyDeadline(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if dl, ok := ctx.Deadline(); ok {
		return c.conn.SetDeadline(dl)
	}
	return c.conn.SetDeadline(time.Time{})
}

func (c *connTransport) Close() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}
