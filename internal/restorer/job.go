package restorer

import (
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// Status is the state of a restore job.
type Status int32

// Job states.
const (
	StatusInit Status = iota
	StatusRunning
	StatusDone
)

func (s Status) String() string {
	switch s {
	case StatusInit:
		return "init"
	case StatusRunning:
		return "running"
	case StatusDone:
		return "done"
	}
	return "unknown"
}

// Timer accumulates the time spent in one stage. It is safe for concurrent
// use.
type Timer struct {
	ns *xsync.Counter
}

func newTimer() Timer {
	return Timer{ns: xsync.NewCounter()}
}

// Since adds the time elapsed since start.
func (t Timer) Since(start time.Time) {
	t.ns.Add(int64(time.Since(start)))
}

// Add adds d.
func (t Timer) Add(d time.Duration) {
	t.ns.Add(int64(d))
}

// Duration returns the accumulated time.
func (t Timer) Duration() time.Duration {
	return time.Duration(t.ns.Value())
}

// Job is the record of one restore run. The counters are updated by the
// stages concurrently and read by the progress monitor.
type Job struct {
	ID         int
	BackupPath string
	Target     string
	Strategy   string
	Simulation SimulationLevel

	DataSize       *xsync.Counter
	ChunkCount     *xsync.Counter
	FileCount      *xsync.Counter
	ContainerReads *xsync.Counter
	MetaReads      *xsync.Counter
	RangeReads     *xsync.Counter
	BytesRead      *xsync.Counter
	CacheHits      *xsync.Counter

	ReadRecipeTime Timer
	ReadChunkTime  Timer
	WriteChunkTime Timer
	TotalTime      time.Duration

	m      sync.Mutex
	status Status
	done   chan struct{}
}

func newJob(id int, backupPath, target, strategy string, level SimulationLevel) *Job {
	return &Job{
		ID:         id,
		BackupPath: backupPath,
		Target:     target,
		Strategy:   strategy,
		Simulation: level,

		DataSize:       xsync.NewCounter(),
		ChunkCount:     xsync.NewCounter(),
		FileCount:      xsync.NewCounter(),
		ContainerReads: xsync.NewCounter(),
		MetaReads:      xsync.NewCounter(),
		RangeReads:     xsync.NewCounter(),
		BytesRead:      xsync.NewCounter(),
		CacheHits:      xsync.NewCounter(),

		ReadRecipeTime: newTimer(),
		ReadChunkTime:  newTimer(),
		WriteChunkTime: newTimer(),

		done: make(chan struct{}),
	}
}

// Status returns the current job state.
func (j *Job) Status() Status {
	j.m.Lock()
	defer j.m.Unlock()
	return j.status
}

func (j *Job) setRunning() {
	j.m.Lock()
	defer j.m.Unlock()
	j.status = StatusRunning
}

// setDone marks the job done and wakes up the monitor. Only the first call
// has an effect.
func (j *Job) setDone() {
	j.m.Lock()
	defer j.m.Unlock()
	if j.status == StatusDone {
		return
	}
	j.status = StatusDone
	close(j.done)
}

// Done returns a channel that is closed once the files writer finished.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Progress is a snapshot of the job counters.
type Progress struct {
	DataSize       int64
	ChunkCount     int64
	FileCount      int64
	ContainerReads int64
	MetaReads      int64
	RangeReads     int64
	BytesRead      int64
	CacheHits      int64
}

// Progress returns the current counter values.
func (j *Job) Progress() Progress {
	return Progress{
		DataSize:       j.DataSize.Value(),
		ChunkCount:     j.ChunkCount.Value(),
		FileCount:      j.FileCount.Value(),
		ContainerReads: j.ContainerReads.Value(),
		MetaReads:      j.MetaReads.Value(),
		RangeReads:     j.RangeReads.Value(),
		BytesRead:      j.BytesRead.Value(),
		CacheHits:      j.CacheHits.Value(),
	}
}
