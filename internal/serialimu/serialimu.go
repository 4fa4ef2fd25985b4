// Package serialimu reads inertial samples from a serial-attached IMU
// speaking a simple line protocol: one sample per line,
//
//	<kind>,<timestamp_nanos>,<x>,<y>,<z>
//
// where kind is G (gyroscope, rad/s), A (accelerometer, m/s²) or
// M (magnetometer, µT). Malformed lines are counted and skipped; the stream
// keeps flowing.
package serialimu

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"go.bug.st/serial"

	"github.com/banshee-data/stabilize/internal/monitoring"
)

// Kind identifies the sensor a sample came from.
type Kind byte

const (
	KindGyro  Kind = 'G'
	KindAccel Kind = 'A'
	KindMag   Kind = 'M'
)

// Sample is one parsed IMU line.
type Sample struct {
	Kind           Kind
	TimestampNanos int64
	X, Y, Z        float64
}

// ParseLine parses one protocol line into a Sample.
func ParseLine(line string) (Sample, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) != 5 {
		return Sample{}, fmt.Errorf("expected 5 fields, got %d", len(fields))
	}
	if len(fields[0]) != 1 {
		return Sample{}, fmt.Errorf("invalid sensor kind %q", fields[0])
	}
	kind := Kind(fields[0][0])
	switch kind {
	case KindGyro, KindAccel, KindMag:
	default:
		return Sample{}, fmt.Errorf("unknown sensor kind %q", fields[0])
	}

	ts, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return Sample{}, fmt.Errorf("failed to parse timestamp: %w", err)
	}
	var axes [3]float64
	for i := 0; i < 3; i++ {
		axes[i], err = strconv.ParseFloat(fields[2+i], 64)
		if err != nil {
			return Sample{}, fmt.Errorf("failed to parse axis %d: %w", i, err)
		}
	}
	return Sample{Kind: kind, TimestampNanos: ts, X: axes[0], Y: axes[1], Z: axes[2]}, nil
}

// Sink receives dispatched sensor samples. *motion.Engine satisfies this.
type Sink interface {
	DeliverGyroscope(x, y, z float64, tsNanos int64)
	DeliverAccelerometer(x, y, z float64, tsNanos int64)
	DeliverMagnetometer(x, y, z float64, tsNanos int64)
}

// Dispatch routes a parsed sample to the matching sink callback.
func Dispatch(sink Sink, s Sample) {
	switch s.Kind {
	case KindGyro:
		sink.DeliverGyroscope(s.X, s.Y, s.Z, s.TimestampNanos)
	case KindAccel:
		sink.DeliverAccelerometer(s.X, s.Y, s.Z, s.TimestampNanos)
	case KindMag:
		sink.DeliverMagnetometer(s.X, s.Y, s.Z, s.TimestampNanos)
	}
}

// Port wraps a serial connection to an IMU.
type Port struct {
	serial.Port
	malformed atomic.Int64
}

// Open opens the named serial port at the given baud rate (8N1).
func Open(portName string, baudRate int) (*Port, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: 1,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open IMU port %s: %w", portName, err)
	}
	return &Port{Port: port}, nil
}

// MalformedLines returns the number of lines dropped so far.
func (p *Port) MalformedLines() int64 {
	return p.malformed.Load()
}

// Monitor reads lines from the port and dispatches parsed samples to the sink
// until the context is cancelled or the port errors out. It closes the port
// on return.
func (p *Port) Monitor(ctx context.Context, sink Sink) error {
	defer p.Close()
	scan := bufio.NewScanner(p.Port)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			if !scan.Scan() {
				return scan.Err()
			}
			line := scan.Text()
			if line == "" {
				continue
			}
			sample, err := ParseLine(line)
			if err != nil {
				n := p.malformed.Add(1)
				if n <= 10 || n%1000 == 0 {
					monitoring.Logf("serialimu: dropping malformed line %q: %v", line, err)
				}
				continue
			}
			Dispatch(sink, sample)
		}
	}
}
