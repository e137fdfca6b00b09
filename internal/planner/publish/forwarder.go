package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/banshee-data/drive.report/internal/monitoring"
)

// UDPForwarder serialises each cycle record to JSON and sends it to a fixed
// downstream address. Sends are queued through a buffered channel so a slow
// or unreachable consumer never blocks the planning loop; records that do
// not fit the queue are dropped and counted.
type UDPForwarder struct {
	conn        *net.UDPConn
	channel     chan []byte
	logInterval time.Duration
	address     string
}

// NewUDPForwarder dials the downstream address. Start must be called before
// records flow.
func NewUDPForwarder(address string, logInterval time.Duration) (*UDPForwarder, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve forward address: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to create forward connection: %w", err)
	}
	if logInterval == 0 {
		logInterval = time.Minute
	}
	return &UDPForwarder{
		conn:        conn,
		channel:     make(chan []byte, 100),
		logInterval: logInterval,
		address:     address,
	}, nil
}

// Start launches the send goroutine. Drop counts are reported on the log
// interval rather than per record.
func (f *UDPForwarder) Start(ctx context.Context) {
	go func() {
		dropped := 0
		var lastErr error
		ticker := time.NewTicker(f.logInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case payload := <-f.channel:
				if _, err := f.conn.Write(payload); err != nil {
					dropped++
					lastErr = err
				}
			case <-ticker.C:
				if dropped > 0 && lastErr != nil {
					monitoring.Logf("publish: dropped %d forwarded records (latest: %v)", dropped, lastErr)
					dropped = 0
					lastErr = nil
				}
			}
		}
	}()

	monitoring.Logf("publish: forwarding cycle records to %s", f.address)
}

// Publish queues one record without blocking. Marshal failures and a full
// queue both drop the record.
func (f *UDPForwarder) Publish(out Outputs) {
	payload, err := json.Marshal(out)
	if err != nil {
		monitoring.Logf("publish: failed to marshal cycle record: %v", err)
		return
	}
	select {
	case f.channel <- payload:
	default:
	}
}

// Close releases the socket.
func (f *UDPForwarder) Close() error {
	return f.conn.Close()
}
