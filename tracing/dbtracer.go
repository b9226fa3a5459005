package tracing

import (
	"sync"

	"github.com/sarchlab/copyengine/datarecording"
	"github.com/sarchlab/copyengine/sim"
)

// TraceTableName is the table that DBTracer writes tasks into.
const TraceTableName = "trace"

type taskTableEntry struct {
	ID        string
	ParentID  string
	Kind      string
	What      string
	Location  string
	StartTime float64
	EndTime   float64
	NumSteps  int
}

// DBTracer stores every finished task as a row of a DataRecorder table.
type DBTracer struct {
	lock       sync.Mutex
	timeTeller sim.TimeTeller
	backend    datarecording.DataRecorder
	filter     TaskFilter

	tracingTasks map[string]Task
}

// NewDBTracer creates a new DBTracer. A nil filter keeps all tasks.
func NewDBTracer(
	timeTeller sim.TimeTeller,
	dataRecorder datarecording.DataRecorder,
	filter TaskFilter,
) *DBTracer {
	dataRecorder.CreateTable(TraceTableName, taskTableEntry{})

	return &DBTracer{
		timeTeller:   timeTeller,
		backend:      dataRecorder,
		filter:       filter,
		tracingTasks: make(map[string]Task),
	}
}

// StartTask marks the start of a task.
func (t *DBTracer) StartTask(task Task) {
	if t.filter != nil && !t.filter(task) {
		return
	}

	task.StartTime = t.timeTeller.CurrentTime()

	t.lock.Lock()
	t.tracingTasks[task.ID] = task
	t.lock.Unlock()
}

// StepTask records a step of a task.
func (t *DBTracer) StepTask(task Task) {
	t.lock.Lock()
	defer t.lock.Unlock()

	originalTask, ok := t.tracingTasks[task.ID]
	if !ok {
		return
	}

	now := t.timeTeller.CurrentTime()
	for _, step := range task.Steps {
		step.Time = now
		originalTask.Steps = append(originalTask.Steps, step)
	}

	t.tracingTasks[task.ID] = originalTask
}

// EndTask writes the task into the database.
func (t *DBTracer) EndTask(task Task) {
	t.lock.Lock()
	originalTask, ok := t.tracingTasks[task.ID]
	if ok {
		delete(t.tracingTasks, task.ID)
	}
	t.lock.Unlock()

	if !ok {
		return
	}

	originalTask.EndTime = t.timeTeller.CurrentTime()

	t.backend.InsertData(TraceTableName, taskTableEntry{
		ID:        originalTask.ID,
		ParentID:  originalTask.ParentID,
		Kind:      originalTask.Kind,
		What:      originalTask.What,
		Location:  originalTask.Location,
		StartTime: float64(originalTask.StartTime),
		EndTime:   float64(originalTask.EndTime),
		NumSteps:  len(originalTask.Steps),
	})
}
