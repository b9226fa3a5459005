// Package trace provides tracers that record the transactions served by
// memory controllers.
package trace

import (
	"log"

	"github.com/sarchlab/copyengine/datarecording"
	"github.com/sarchlab/copyengine/mem/mem"
	"github.com/sarchlab/copyengine/sim"
	"github.com/sarchlab/copyengine/tracing"
)

// Tables written by the database tracer.
const (
	TransactionTableName = "memory_transactions"
	StepTableName        = "memory_steps"
)

// memoryTransactionEntry represents a memory transaction in the database
type memoryTransactionEntry struct {
	ID        string  `json:"id"`
	Location  string  `json:"location"`
	What      string  `json:"what"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Address   uint64  `json:"address"`
	ByteSize  uint64  `json:"byte_size"`
}

// memoryStepEntry represents a milestone of a memory transaction in the
// database.
type memoryStepEntry struct {
	ID     string  `json:"id"`
	TaskID string  `json:"task_id"`
	Time   float64 `json:"time"`
	What   string  `json:"what"`
}

// isMemoryTransaction tells if the task is a controller serving an access.
func isMemoryTransaction(task tracing.Task) (mem.AccessReq, bool) {
	if task.Kind != "req_in" {
		return nil, false
	}

	req, ok := task.Detail.(mem.AccessReq)

	return req, ok
}

// A tracer is a hook that can record the actions of a memory model into
// traces.
type tracer struct {
	timeTeller sim.TimeTeller
	logger     *log.Logger
	pending    map[string]bool
}

// NewTracer creates a tracer that writes one line per transaction event into
// the logger.
func NewTracer(logger *log.Logger, timeTeller sim.TimeTeller) tracing.Tracer {
	return &tracer{
		timeTeller: timeTeller,
		logger:     logger,
		pending:    make(map[string]bool),
	}
}

// StartTask marks the start of a memory transaction
func (t *tracer) StartTask(task tracing.Task) {
	req, ok := isMemoryTransaction(task)
	if !ok {
		return
	}

	t.pending[task.ID] = true

	t.logger.Printf(
		"start, %.12f, %s, %s, %s, 0x%x, %d\n",
		t.timeTeller.CurrentTime(),
		task.Location,
		task.ID,
		task.What,
		req.GetAddress(),
		req.GetByteSize(),
	)
}

// StepTask marks that the memory transaction reached a milestone.
func (t *tracer) StepTask(task tracing.Task) {
	if !t.pending[task.ID] || len(task.Steps) == 0 {
		return
	}

	t.logger.Printf("step, %.12f, %s, %s\n",
		t.timeTeller.CurrentTime(), task.ID, task.Steps[0].What)
}

// EndTask marks the end of a memory transaction
func (t *tracer) EndTask(task tracing.Task) {
	if !t.pending[task.ID] {
		return
	}

	delete(t.pending, task.ID)

	t.logger.Printf("end, %.12f, %s\n", t.timeTeller.CurrentTime(), task.ID)
}

// A dbTracer is a hook that can record the actions of a memory model into
// a database using the data recorder.
type dbTracer struct {
	timeTeller          sim.TimeTeller
	dataRecorder        datarecording.DataRecorder
	pendingTransactions map[string]*memoryTransactionEntry
}

// NewDBTracer creates a tracer that writes one row per finished transaction.
func NewDBTracer(
	dataRecorder datarecording.DataRecorder,
	timeTeller sim.TimeTeller,
) tracing.Tracer {
	t := &dbTracer{
		timeTeller:          timeTeller,
		dataRecorder:        dataRecorder,
		pendingTransactions: make(map[string]*memoryTransactionEntry),
	}

	t.dataRecorder.CreateTable(TransactionTableName, memoryTransactionEntry{})
	t.dataRecorder.CreateTable(StepTableName, memoryStepEntry{})

	return t
}

// StartTask marks the start of a memory transaction
func (t *dbTracer) StartTask(task tracing.Task) {
	req, ok := isMemoryTransaction(task)
	if !ok {
		return
	}

	t.pendingTransactions[task.ID] = &memoryTransactionEntry{
		ID:        task.ID,
		Location:  task.Location,
		What:      task.What,
		StartTime: float64(t.timeTeller.CurrentTime()),
		Address:   req.GetAddress(),
		ByteSize:  req.GetByteSize(),
	}
}

// StepTask records a milestone of a memory transaction.
func (t *dbTracer) StepTask(task tracing.Task) {
	if _, pending := t.pendingTransactions[task.ID]; !pending {
		return
	}

	if len(task.Steps) == 0 {
		return
	}

	what := task.Steps[0].What
	t.dataRecorder.InsertData(StepTableName, memoryStepEntry{
		ID:     task.ID + "_step_" + what,
		TaskID: task.ID,
		Time:   float64(t.timeTeller.CurrentTime()),
		What:   what,
	})
}

// EndTask marks the end of a memory transaction
func (t *dbTracer) EndTask(task tracing.Task) {
	entry, exists := t.pendingTransactions[task.ID]
	if !exists {
		return
	}

	entry.EndTime = float64(t.timeTeller.CurrentTime())
	t.dataRecorder.InsertData(TransactionTableName, *entry)

	delete(t.pendingTransactions, task.ID)
}
