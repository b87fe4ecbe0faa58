package transport

import (
	"context"
	"io"
	"sync"

	"github.com/aldrin-bus/aldrin/wire"
)

// pipeTransport is an in-process Transport backed by unbuffered
// channels, grounded in the teacher's InMemoryCommBus role: a
// same-interface stand-in for a real socket, used by unit tests and by
// in-process broker+client wiring that skips the network entirely.
type pipeTransport struct {
	send chan<- wire.Message
	recv <-chan wire.Message

	closeOnce sync.Once
	closeCh   chan struct{}
	peerClose <-chan struct{}
}

// NewPipe returns two Transports, each other's peer: messages sent on
// one arrive on the other's Recv, and vice versa.
func NewPipe() (a, b Transport) {
	ab := make(chan wire.Message)
	ba := make(chan wire.Message)
	closeA := make(chan struct{})
	closeB := make(chan struct{})

	ta := &pipeTransport{send: ab, recv: ba, closeCh: closeA, peerClose: closeB}
	tb := &pipeTransport{send: ba, recv: ab, closeCh: closeB, peerClose: closeA}
	return ta, tb
}

func (p *pipeTransport) Recv(ctx context.Context) (wire.Message, error) {
	select {
	case msg, ok := <-p.recv:
		if !ok {
			return nil, io.ErrClosedPipe
		}
		return msg, nil
	case <-p.closeCh:
		return nil, io.ErrClosedPipe
	case <-p.peerClose:
		return nil, io.ErrClosedPipe
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *pipeTransport) Send(ctx context.Context, msg wire.Message) error {
	select {
	case p.send <- msg:
		return nil
	case <-p.closeCh:
		return io.ErrClosedPipe
	case <-p.peerClose:
		return io.ErrClosedPipe
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipeTransport) Close() error {
	p.closeOnce.Do(func() { close(p.closeCh) })
	return nil
}
