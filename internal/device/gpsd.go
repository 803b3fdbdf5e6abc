package device

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/i474232898/airquality/internal/location"
)

const gpsdWatch = `?WATCH={"enable":true,"json":true}` + "\n"

// tpvReport is the gpsd time-position-velocity report. Mode 2 is a 2D fix,
// mode 3 a 3D fix.
type tpvReport struct {
	Class string  `json:"class"`
	Mode  int     `json:"mode"`
	Time  string  `json:"time"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
}

// GPSDBackend reads satellite fixes from a gpsd daemon.
type GPSDBackend struct {
	addr        string
	enabled     func() bool
	dialTimeout time.Duration
	logger      *slog.Logger
}

// NewGPSDBackend returns a backend for the gpsd daemon at addr. enabled is
// consulted on every Enabled call.
func NewGPSDBackend(addr string, enabled func() bool, logger *slog.Logger) *GPSDBackend {
	return &GPSDBackend{
		addr:        addr,
		enabled:     enabled,
		dialTimeout: 3 * time.Second,
		logger:      logger,
	}
}

func (b *GPSDBackend) ID() location.BackendID { return location.BackendGPS }

func (b *GPSDBackend) Enabled(_ context.Context) bool {
	return b.addr != "" && b.enabled()
}

func (b *GPSDBackend) Subscribe(ctx context.Context, onReading func(location.Reading)) (func(), error) {
	dialer := net.Dialer{Timeout: b.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", b.addr)
	if err != nil {
		return nil, fmt.Errorf("dial gpsd %s: %w", b.addr, err)
	}
	if _, err := conn.Write([]byte(gpsdWatch)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("start gpsd watch: %w", err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	var closeOnce sync.Once
	stop := func() {
		cancel()
		closeOnce.Do(func() { conn.Close() })
	}

	go func() {
		<-subCtx.Done()
		stop()
	}()

	go func() {
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			var report tpvReport
			if err := json.Unmarshal(scanner.Bytes(), &report); err != nil {
				b.logger.Debug("skipping gpsd line", "error", err)
				continue
			}
			if report.Class != "TPV" || report.Mode < 2 {
				continue
			}
			if subCtx.Err() != nil {
				return
			}

			ts, err := time.Parse(time.RFC3339Nano, report.Time)
			if err != nil {
				ts = time.Now()
			}
			onReading(location.Reading{
				Latitude:  report.Lat,
				Longitude: report.Lon,
				Source:    location.BackendGPS,
				Timestamp: ts.UTC(),
			})
		}
		if err := scanner.Err(); err != nil && subCtx.Err() == nil {
			b.logger.Warn("gpsd stream ended", "error", err)
		}
	}()

	return stop, nil
}
