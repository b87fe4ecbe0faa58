// Aldrin Bench
//
// A throughput/capacity benchmark client: dials a running broker,
// hosts one service answering a no-op function, then hammers it with
// concurrent calls from a second connection and reports calls/sec.
//
// Usage:
//
//	go run ./cmd/aldrin-bench -addr 127.0.0.1:8980 -calls 100000 -concurrency 32
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aldrin-bus/aldrin/bus"
	"github.com/aldrin-bus/aldrin/client"
	"github.com/aldrin-bus/aldrin/config"
	"github.com/aldrin-bus/aldrin/observability"
	"github.com/aldrin-bus/aldrin/transport"
	"github.com/aldrin-bus/aldrin/wire"
	"github.com/google/uuid"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8980", "broker address")
	calls := flag.Int("calls", 100000, "total calls to issue")
	concurrency := flag.Int("concurrency", 32, "concurrent callers")
	flag.Parse()

	logger := observability.NewStdLogger("[aldrin-bench] ")

	host := dial(*addr, logger)
	defer host.Close()
	caller := dial(*addr, logger)
	defer caller.Close()

	ctx := context.Background()

	objCookie, err := host.CreateObject(ctx, bus.ObjectUUID(uuid.New()))
	must(err)
	svcCookie, err := host.CreateService(ctx, objCookie, bus.ServiceUUID(uuid.New()), 1, nil)
	must(err)

	host.RegisterFunction(svcCookie, 0, func(context.Context, wire.SerializedValue) (*wire.SerializedValue, wire.CallResult) {
		return nil, wire.CallOK
	})

	var issued atomic.Int64
	var failed atomic.Int64
	var wg sync.WaitGroup

	start := time.Now()
	perWorker := *calls / *concurrency
	for w := 0; w < *concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if _, err := caller.Call(ctx, svcCookie, 0, nil); err != nil {
					failed.Add(1)
				}
				issued.Add(1)
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	total := issued.Load()
	rate := float64(total) / elapsed.Seconds()
	fmt.Printf("issued=%d failed=%d elapsed=%s rate=%.0f calls/sec\n", total, failed.Load(), elapsed, rate)
}

func dial(addr string, logger observability.Logger) client.Handle {
	conn, err := net.Dial("tcp", addr)
	must(err)
	t := transport.NewConn(conn)

	ctx := context.Background()
	must(t.Send(ctx, wire.Connect{Major: bus.ProtocolMajor, Minor: bus.MaxSupportedMinor}))
	reply, err := t.Recv(ctx)
	must(err)
	r, ok := reply.(wire.ConnectReply)
	if !ok || r.Result != wire.ConnectOK {
		panic(fmt.Sprintf("handshake rejected: %+v", reply))
	}

	d := client.NewDispatcher(t, config.DefaultClientConfig(), logger)
	return client.NewHandle(d)
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
