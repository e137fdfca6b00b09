package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/banshee-data/drive.report/internal/monitoring"
	"github.com/banshee-data/drive.report/internal/planner/frenet"
	"github.com/banshee-data/drive.report/internal/planner/lane"
	"github.com/banshee-data/drive.report/internal/planner/vehicle"
)

// Message is the wire envelope for all planner inputs. Exactly one payload
// field is set, named by Type.
type Message struct {
	Type string `json:"type"` // "lane", "odometry" or "obstacles"

	Lane      *LaneMessage      `json:"lane,omitempty"`
	Odometry  *OdometryMessage  `json:"odometry,omitempty"`
	Obstacles *ObstaclesMessage `json:"obstacles,omitempty"`
}

// LaneMessage carries a full reference-path replacement.
type LaneMessage struct {
	Waypoints []lane.Waypoint `json:"waypoints"`
	MapHeight float64         `json:"map_height"`
}

// OdometryMessage carries one pose/velocity sample.
type OdometryMessage struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Yaw        float64 `json:"yaw"`
	Speed      float64 `json:"speed"`
	YawRate    float64 `json:"yaw_rate"`
	TUnixNanos int64   `json:"t_unix_nanos"`
}

// ObstaclesMessage carries the full current detection set, tagged with the
// frame the poses are expressed in.
type ObstaclesMessage struct {
	Frame     string            `json:"frame"`
	Obstacles []frenet.Obstacle `json:"obstacles"`
}

// Dispatch applies a decoded message to the store. Returns the odometry
// sequence number when the message was an odometry update, zero otherwise.
func Dispatch(s *Store, msg Message) (uint64, error) {
	switch msg.Type {
	case "lane":
		if msg.Lane == nil {
			return 0, fmt.Errorf("lane message missing payload")
		}
		s.UpdateLane(&lane.Lane{Waypoints: msg.Lane.Waypoints, MapHeight: msg.Lane.MapHeight})
		return 0, nil
	case "odometry":
		if msg.Odometry == nil {
			return 0, fmt.Errorf("odometry message missing payload")
		}
		o := msg.Odometry
		t := o.TUnixNanos
		if t == 0 {
			t = time.Now().UnixNano()
		}
		return s.UpdateOdometry(vehicle.NewState(o.X, o.Y, o.Yaw, o.Speed, o.YawRate, t)), nil
	case "obstacles":
		if msg.Obstacles == nil {
			return 0, fmt.Errorf("obstacles message missing payload")
		}
		s.UpdateObstacles(msg.Obstacles.Obstacles, msg.Obstacles.Frame)
		return 0, nil
	default:
		return 0, fmt.Errorf("unknown message type %q", msg.Type)
	}
}

// UDPListenerConfig configures a planner input listener.
type UDPListenerConfig struct {
	Address string
	RcvBuf  int
	Store   *Store
}

// UDPListener receives JSON input messages over UDP and writes them into
// the snapshot store. One datagram carries one Message.
type UDPListener struct {
	address string
	rcvBuf  int
	store   *Store
	conn    *net.UDPConn
}

// NewUDPListener creates a listener; Start must be called to begin reading.
func NewUDPListener(config UDPListenerConfig) *UDPListener {
	rcvBuf := config.RcvBuf
	if rcvBuf == 0 {
		rcvBuf = 1 << 20
	}
	return &UDPListener{address: config.Address, rcvBuf: rcvBuf, store: config.Store}
}

// Start blocks reading datagrams until ctx is cancelled. Malformed
// datagrams are logged and skipped; the listener never stops on bad input.
func (l *UDPListener) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", l.address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	l.conn = conn
	defer conn.Close()

	if err := conn.SetReadBuffer(l.rcvBuf); err != nil {
		monitoring.Logf("ingest: failed to set UDP receive buffer to %d: %v", l.rcvBuf, err)
	}
	monitoring.Logf("ingest: input listener started on %s", l.address)

	buffer := make([]byte, 64*1024)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
			n, from, err := conn.ReadFromUDP(buffer)
			if err != nil {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					continue
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				monitoring.Logf("ingest: UDP read error: %v", err)
				continue
			}

			var msg Message
			if err := json.Unmarshal(buffer[:n], &msg); err != nil {
				monitoring.Logf("ingest: bad datagram from %v: %v", from, err)
				continue
			}
			if _, err := Dispatch(l.store, msg); err != nil {
				monitoring.Logf("ingest: message from %v rejected: %v", from, err)
			}
		}
	}
}

// Close releases the socket if Start opened one.
func (l *UDPListener) Close() error {
	if l.conn != nil {
		return l.conn.Close()
	}
	return nil
}
