package copyengine

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/sarchlab/copyengine/datarecording"
	"github.com/sarchlab/copyengine/sim"
)

// TransferTableName is the table that RecordStats writes to.
const TransferTableName = "copy_engine_transfers"

// A TransferRecord describes one finished transfer.
type TransferRecord struct {
	ID        string
	Kind      Kind
	Direction Direction
	Src       uint64
	Dst       uint64
	Bytes     uint64
	Start     sim.VTimeInSec
	End       sim.VTimeInSec
	Cycles    uint64
	Faulted   bool
}

// Duration returns the simulated time that the transfer took.
func (r TransferRecord) Duration() sim.VTimeInSec {
	return r.End - r.Start
}

// directionLabel is empty for fills, which have no source space.
func (r TransferRecord) directionLabel() string {
	if r.Kind == KindFill {
		return ""
	}

	return r.Direction.String()
}

type transferRow struct {
	ID        string
	Location  string
	Kind      string
	Direction string
	Src       uint64
	Dst       uint64
	Bytes     uint64
	StartTime float64
	EndTime   float64
	Cycles    uint64
	Faulted   bool
}

func makeTransferRow(location string, r TransferRecord) transferRow {
	return transferRow{
		ID:        r.ID,
		Location:  location,
		Kind:      r.Kind.String(),
		Direction: r.directionLabel(),
		Src:       r.Src,
		Dst:       r.Dst,
		Bytes:     r.Bytes,
		StartTime: float64(r.Start),
		EndTime:   float64(r.End),
		Cycles:    r.Cycles,
		Faulted:   r.Faulted,
	}
}

// A StatsLedger keeps the records of finished transfers in completion order.
// Records are only appended.
type StatsLedger struct {
	records []TransferRecord
}

func (l *StatsLedger) append(r TransferRecord) {
	l.records = append(l.records, r)
}

// Len returns the number of finished transfers.
func (l *StatsLedger) Len() int {
	return len(l.records)
}

// Records returns a copy of all the records.
func (l *StatsLedger) Records() []TransferRecord {
	records := make([]TransferRecord, len(l.records))
	copy(records, l.records)

	return records
}

// TotalBytes returns the number of bytes requested by all the transfers that
// did not fault.
func (l *StatsLedger) TotalBytes() uint64 {
	total := uint64(0)

	for _, r := range l.records {
		if !r.Faulted {
			total += r.Bytes
		}
	}

	return total
}

// NumFaulted returns the number of transfers aborted by translation faults.
func (l *StatsLedger) NumFaulted() int {
	n := 0

	for _, r := range l.records {
		if r.Faulted {
			n++
		}
	}

	return n
}

// AverageCycles returns the mean transfer duration in cycles, or 0 when the
// ledger is empty.
func (l *StatsLedger) AverageCycles() float64 {
	if len(l.records) == 0 {
		return 0
	}

	sum := uint64(0)
	for _, r := range l.records {
		sum += r.Cycles
	}

	return float64(sum) / float64(len(l.records))
}

// Export writes one CSV row per transfer followed by the aggregate rows.
func (l *StatsLedger) Export(w io.Writer) error {
	cw := csv.NewWriter(w)

	err := cw.Write([]string{
		"id", "kind", "direction", "src", "dst", "bytes",
		"start", "end", "cycles", "duration", "faulted",
	})
	if err != nil {
		return err
	}

	for _, r := range l.records {
		err = cw.Write([]string{
			r.ID,
			r.Kind.String(),
			r.directionLabel(),
			"0x" + strconv.FormatUint(r.Src, 16),
			"0x" + strconv.FormatUint(r.Dst, 16),
			strconv.FormatUint(r.Bytes, 10),
			formatTime(r.Start),
			formatTime(r.End),
			strconv.FormatUint(r.Cycles, 10),
			formatTime(r.Duration()),
			strconv.FormatBool(r.Faulted),
		})
		if err != nil {
			return err
		}
	}

	aggregates := [][]string{
		{"aggregate", "count", strconv.Itoa(l.Len())},
		{"aggregate", "total_bytes", strconv.FormatUint(l.TotalBytes(), 10)},
		{"aggregate", "faulted", strconv.Itoa(l.NumFaulted())},
		{"aggregate", "average_cycles",
			strconv.FormatFloat(l.AverageCycles(), 'f', 2, 64)},
	}

	if err := cw.WriteAll(aggregates); err != nil {
		return err
	}

	return cw.Error()
}

func formatTime(t sim.VTimeInSec) string {
	return strconv.FormatFloat(float64(t), 'g', -1, 64)
}

type statsRecorder struct {
	location string
	recorder datarecording.DataRecorder
}

func (s statsRecorder) record(r TransferRecord) {
	s.recorder.InsertData(TransferTableName, makeTransferRow(s.location, r))
}

// ExportStats writes the duration of every finished transfer and the
// aggregates to w.
func (c *Comp) ExportStats(w io.Writer) error {
	return c.stats.Export(w)
}

// RecordStats writes every finished transfer, including those that finished
// before the call, into the TransferTableName table of r.
func (c *Comp) RecordStats(r datarecording.DataRecorder) {
	if !hasTable(r, TransferTableName) {
		r.CreateTable(TransferTableName, transferRow{})
	}

	sr := statsRecorder{location: c.Name(), recorder: r}
	for _, record := range c.stats.records {
		sr.record(record)
	}

	c.recorders = append(c.recorders, sr)
}

func hasTable(r datarecording.DataRecorder, name string) bool {
	for _, t := range r.ListTables() {
		if t == name {
			return true
		}
	}

	return false
}
