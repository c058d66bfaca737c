// Package export writes scan checkpoints as Apache Arrow IPC files so they
// can be loaded by dataframe tooling.
package export

import (
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"strconv"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/nvandessel/collatzmap/internal/scan"
)

// Metadata keys stored on the Arrow schema.
const (
	MetaMaxValue  = "collatzmap.max_value"
	MetaProcessed = "collatzmap.processed"
	MetaPairs     = "collatzmap.pairs"
)

// Totals are written as decimal strings because they can outgrow uint64.
var checkpointFields = []arrow.Field{
	{Name: "power", Type: arrow.PrimitiveTypes.Uint32},
	{Name: "boundary", Type: arrow.PrimitiveTypes.Uint64},
	{Name: "emitted_at", Type: arrow.PrimitiveTypes.Uint64},
	{Name: "deferred", Type: arrow.FixedWidthTypes.Boolean},
	{Name: "processed", Type: arrow.PrimitiveTypes.Uint64},
	{Name: "discovered_pct", Type: arrow.PrimitiveTypes.Float64},
	{Name: "known_pct", Type: arrow.PrimitiveTypes.Float64},
	{Name: "total_discovered", Type: arrow.BinaryTypes.String},
	{Name: "total_known", Type: arrow.BinaryTypes.String},
}

// Schema returns the checkpoint schema carrying the scan-level metadata of sum.
func Schema(sum *scan.Summary) *arrow.Schema {
	md := arrow.NewMetadata(
		[]string{MetaMaxValue, MetaProcessed, MetaPairs},
		[]string{
			strconv.FormatUint(sum.MaxValue, 10),
			strconv.FormatUint(sum.Processed, 10),
			strconv.FormatUint(sum.Pairs, 10),
		},
	)
	return arrow.NewSchema(checkpointFields, &md)
}

// WriteCheckpoints writes the checkpoints of sum to w as a single-record
// Arrow IPC file. The file format patches its footer, so w must seek.
func WriteCheckpoints(w io.WriteSeeker, sum *scan.Summary) error {
	if sum == nil {
		return fmt.Errorf("summary is required")
	}

	mem := memory.NewGoAllocator()
	schema := Schema(sum)

	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	for _, c := range sum.Checkpoints {
		b.Field(0).(*array.Uint32Builder).Append(uint32(c.Power))
		b.Field(1).(*array.Uint64Builder).Append(c.Boundary)
		b.Field(2).(*array.Uint64Builder).Append(c.EmittedAt)
		b.Field(3).(*array.BooleanBuilder).Append(c.Deferred)
		b.Field(4).(*array.Uint64Builder).Append(c.Processed)
		b.Field(5).(*array.Float64Builder).Append(c.DiscoveredPct)
		b.Field(6).(*array.Float64Builder).Append(c.KnownPct)
		b.Field(7).(*array.StringBuilder).Append(bigString(c.TotalDiscovered))
		b.Field(8).(*array.StringBuilder).Append(bigString(c.TotalKnown))
	}

	rec := b.NewRecord()
	defer rec.Release()

	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(mem))
	if err != nil {
		return fmt.Errorf("failed to create arrow writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		fw.Close()
		return fmt.Errorf("failed to write arrow record: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("failed to finalize arrow file: %w", err)
	}
	return nil
}

// WriteFile writes the checkpoints of sum to path, creating parent
// directories as needed.
func WriteFile(path string, sum *scan.Summary) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	if err := WriteCheckpoints(f, sum); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Table is the decoded content of a checkpoint file.
type Table struct {
	MaxValue    uint64
	Processed   uint64
	Pairs       uint64
	Checkpoints []scan.Checkpoint
}

// ReadCheckpoints decodes an Arrow IPC file written by WriteCheckpoints.
func ReadCheckpoints(r ipc.ReadAtSeeker) (*Table, error) {
	mem := memory.NewGoAllocator()
	fr, err := ipc.NewFileReader(r, ipc.WithAllocator(mem))
	if err != nil {
		return nil, fmt.Errorf("failed to open arrow file: %w", err)
	}
	defer fr.Close()

	schema := fr.Schema()
	if err := checkFields(schema); err != nil {
		return nil, err
	}

	t := &Table{}
	md := schema.Metadata()
	for key, dst := range map[string]*uint64{
		MetaMaxValue:  &t.MaxValue,
		MetaProcessed: &t.Processed,
		MetaPairs:     &t.Pairs,
	} {
		i := md.FindKey(key)
		if i < 0 {
			return nil, fmt.Errorf("arrow metadata is missing %s", key)
		}
		if *dst, err = strconv.ParseUint(md.Values()[i], 10, 64); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", key, err)
		}
	}

	for i := 0; i < fr.NumRecords(); i++ {
		rec, err := fr.Record(i)
		if err != nil {
			return nil, fmt.Errorf("failed to read arrow record %d: %w", i, err)
		}

		power := rec.Column(0).(*array.Uint32)
		boundary := rec.Column(1).(*array.Uint64)
		emitted := rec.Column(2).(*array.Uint64)
		deferred := rec.Column(3).(*array.Boolean)
		processed := rec.Column(4).(*array.Uint64)
		discPct := rec.Column(5).(*array.Float64)
		knownPct := rec.Column(6).(*array.Float64)
		discTotal := rec.Column(7).(*array.String)
		knownTotal := rec.Column(8).(*array.String)

		for j := 0; j < int(rec.NumRows()); j++ {
			c := scan.Checkpoint{
				Power:         uint(power.Value(j)),
				Boundary:      boundary.Value(j),
				EmittedAt:     emitted.Value(j),
				Deferred:      deferred.Value(j),
				Processed:     processed.Value(j),
				DiscoveredPct: discPct.Value(j),
				KnownPct:      knownPct.Value(j),
			}
			if c.TotalDiscovered, err = parseBig(discTotal.Value(j)); err != nil {
				return nil, err
			}
			if c.TotalKnown, err = parseBig(knownTotal.Value(j)); err != nil {
				return nil, err
			}
			t.Checkpoints = append(t.Checkpoints, c)
		}
	}

	return t, nil
}

// ReadFile decodes the checkpoint file at path.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open export file: %w", err)
	}
	defer f.Close()
	return ReadCheckpoints(f)
}

func checkFields(schema *arrow.Schema) error {
	if schema.NumFields() != len(checkpointFields) {
		return fmt.Errorf("unexpected arrow schema: %d fields, want %d", schema.NumFields(), len(checkpointFields))
	}
	for i, want := range checkpointFields {
		got := schema.Field(i)
		if got.Name != want.Name || !arrow.TypeEqual(got.Type, want.Type) {
			return fmt.Errorf("unexpected arrow field %d: %s %s, want %s %s", i, got.Name, got.Type, want.Name, want.Type)
		}
	}
	return nil
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseBig(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q in arrow file", s)
	}
	return v, nil
}
