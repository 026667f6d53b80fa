package workspace

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSOptions selects between an external server and an embedded one.
type NATSOptions struct {
	// URL of an external server. Ignored when Embedded is set.
	URL string
	// Embedded starts an in-process server with JetStream enabled.
	Embedded bool
	// StoreDir holds JetStream data for the embedded server.
	StoreDir string
	Bucket   string
	// ReadyTimeout bounds how long to wait for the embedded server.
	ReadyTimeout time.Duration
}

// NATSBackend owns the connection, and the embedded server if any, behind a
// KVStore.
type NATSBackend struct {
	*KVStore
	conn     *nats.Conn
	embedded *server.Server
}

// OpenNATS connects to NATS and opens the workspace bucket.
func OpenNATS(ctx context.Context, opts NATSOptions) (*NATSBackend, error) {
	b := &NATSBackend{}

	url := opts.URL
	if opts.Embedded || url == "" {
		ns, err := startEmbedded(opts)
		if err != nil {
			return nil, err
		}
		b.embedded = ns
		url = ns.ClientURL()
	}

	conn, err := nats.Connect(url, nats.Name("plancraft"))
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}
	b.conn = conn

	js, err := jetstream.New(conn)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	store, err := NewKVStore(ctx, js, opts.Bucket)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.KVStore = store
	return b, nil
}

func startEmbedded(opts NATSOptions) (*server.Server, error) {
	ns, err := server.NewServer(&server.Options{
		Port:      -1,
		JetStream: true,
		StoreDir:  opts.StoreDir,
		NoLog:     true,
		NoSigs:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedded NATS server: %w", err)
	}

	go ns.Start()

	wait := opts.ReadyTimeout
	if wait <= 0 {
		wait = 5 * time.Second
	}
	if !ns.ReadyForConnections(wait) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded NATS server failed to start")
	}
	return ns, nil
}

// ClientURL returns the URL clients use to reach the server.
func (b *NATSBackend) ClientURL() string {
	if b.conn == nil {
		return ""
	}
	return b.conn.ConnectedUrl()
}

// Close drains the connection and stops the embedded server.
func (b *NATSBackend) Close() {
	if b.conn != nil {
		_ = b.conn.Drain()
		b.conn.Close()
	}
	if b.embedded != nil {
		b.embedded.Shutdown()
		b.embedded.WaitForShutdown()
	}
}
