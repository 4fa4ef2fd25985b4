package replay

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	order []Record
}

func (r *recordingSink) DeliverGyroscope(x, y, z float64, ts int64) {
	r.order = append(r.order, Record{'G', ts, x, y, z})
}
func (r *recordingSink) DeliverAccelerometer(x, y, z float64, ts int64) {
	r.order = append(r.order, Record{'A', ts, x, y, z})
}
func (r *recordingSink) DeliverMagnetometer(x, y, z float64, ts int64) {
	r.order = append(r.order, Record{'M', ts, x, y, z})
}

func TestReadAll(t *testing.T) {
	t.Parallel()

	t.Run("parses mixed sensor rows", func(t *testing.T) {
		t.Parallel()
		trace := strings.Join([]string{
			"G,1000000,0.1,-0.2,0.3",
			"A,1500000,0,0,9.81",
			"M,2000000,30,0,-40",
		}, "\n")

		records, err := ReadAll(strings.NewReader(trace))
		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.Equal(t, byte('G'), records[0].Kind)
		assert.Equal(t, int64(1500000), records[1].TimestampNanos)
		assert.Equal(t, -40.0, records[2].Z)
	})

	t.Run("reports line number on parse failure", func(t *testing.T) {
		t.Parallel()
		trace := "G,1000,0.1,0.2,0.3\nQ,2000,0,0,0\n"
		_, err := ReadAll(strings.NewReader(trace))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "line 2")
	})

	t.Run("rejects wrong column count", func(t *testing.T) {
		t.Parallel()
		_, err := ReadAll(strings.NewReader("G,1000,0.1,0.2\n"))
		assert.Error(t, err)
	})

	t.Run("empty trace", func(t *testing.T) {
		t.Parallel()
		records, err := ReadAll(strings.NewReader(""))
		require.NoError(t, err)
		assert.Empty(t, records)
	})
}

func TestWriteAllReadAllRoundTrip(t *testing.T) {
	t.Parallel()
	in := []Record{
		{'G', 1_000_000, 0.1, -0.2, 0.3},
		{'A', 1_500_000, 0, 0, 9.81},
		{'M', 2_000_000, 30.5, 0, -40.25},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteAll(&buf, in))

	out, err := ReadAll(&buf)
	require.NoError(t, err)
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestFeed(t *testing.T) {
	t.Parallel()
	records := []Record{
		{'A', 1, 0, 0, 9.81},
		{'G', 2, 0.5, 0, 0},
		{'M', 3, 30, 0, -40},
		{'G', 4, 0.6, 0, 0},
	}
	sink := &recordingSink{}
	Feed(sink, records)

	// Delivery preserves trace order across sensor kinds.
	assert.Equal(t, records, sink.order)
}
