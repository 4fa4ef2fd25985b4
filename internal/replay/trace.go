// Package replay reads and writes motion traces: CSV files of raw sensor
// samples that can be run back through the engine offline. The column layout
// matches the serial IMU line protocol: kind,timestamp_nanos,x,y,z.
package replay

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// Record is one traced sensor sample. Kind is 'G', 'A' or 'M'.
type Record struct {
	Kind           byte
	TimestampNanos int64
	X, Y, Z        float64
}

// Sink receives replayed samples. *motion.Engine satisfies this.
type Sink interface {
	DeliverGyroscope(x, y, z float64, tsNanos int64)
	DeliverAccelerometer(x, y, z float64, tsNanos int64)
	DeliverMagnetometer(x, y, z float64, tsNanos int64)
}

// ReadAll parses a full trace. Records are returned in file order, which is
// expected to be timestamp order (the writer preserves it).
func ReadAll(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 5

	var records []Record
	for lineNo := 1; ; lineNo++ {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("trace line %d: %w", lineNo, err)
		}
		rec, err := parseFields(fields)
		if err != nil {
			return nil, fmt.Errorf("trace line %d: %w", lineNo, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseFields(fields []string) (Record, error) {
	if len(fields[0]) != 1 {
		return Record{}, fmt.Errorf("invalid kind %q", fields[0])
	}
	kind := fields[0][0]
	switch kind {
	case 'G', 'A', 'M':
	default:
		return Record{}, fmt.Errorf("unknown kind %q", fields[0])
	}
	ts, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("bad timestamp: %w", err)
	}
	var axes [3]float64
	for i := 0; i < 3; i++ {
		axes[i], err = strconv.ParseFloat(fields[2+i], 64)
		if err != nil {
			return Record{}, fmt.Errorf("bad axis %d: %w", i, err)
		}
	}
	return Record{Kind: kind, TimestampNanos: ts, X: axes[0], Y: axes[1], Z: axes[2]}, nil
}

// WriteAll writes records as CSV in the given order.
func WriteAll(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	for _, rec := range records {
		row := []string{
			string(rec.Kind),
			strconv.FormatInt(rec.TimestampNanos, 10),
			strconv.FormatFloat(rec.X, 'g', -1, 64),
			strconv.FormatFloat(rec.Y, 'g', -1, 64),
			strconv.FormatFloat(rec.Z, 'g', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write trace row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Feed delivers records to the sink in order.
func Feed(sink Sink, records []Record) {
	for _, rec := range records {
		switch rec.Kind {
		case 'G':
			sink.DeliverGyroscope(rec.X, rec.Y, rec.Z, rec.TimestampNanos)
		case 'A':
			sink.DeliverAccelerometer(rec.X, rec.Y, rec.Z, rec.TimestampNanos)
		case 'M':
			sink.DeliverMagnetometer(rec.X, rec.Y, rec.Z, rec.TimestampNanos)
		}
	}
}
