package restorer

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fdl66/chongshan/internal/errors"
)

const mib = 1024 * 1024

// rate returns bytes per d in MiB/s, or zero if d is zero.
func rate(bytes int64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(bytes) / mib / d.Seconds()
}

// Throughput returns the restore throughput in MiB/s.
func (j *Job) Throughput() float64 {
	return rate(j.DataSize.Value(), j.TotalTime)
}

// SpeedFactor returns the MiB restored per container read. It is zero if no
// container was read.
func (j *Job) SpeedFactor() float64 {
	reads := j.ContainerReads.Value()
	if reads == 0 {
		return 0
	}
	return float64(j.DataSize.Value()) / mib / float64(reads)
}

// ReadAmplification returns the bytes read from the container store per byte
// restored. It is zero if nothing was restored.
func (j *Job) ReadAmplification() float64 {
	size := j.DataSize.Value()
	if size == 0 {
		return 0
	}
	return float64(j.BytesRead.Value()) / float64(size)
}

// WriteSummary writes the human-readable statistics of the job to w.
func (j *Job) WriteSummary(w io.Writer) error {
	size := j.DataSize.Value()
	lines := []string{
		fmt.Sprintf("job id: %d", j.ID),
		fmt.Sprintf("restore path: %s", j.Target),
		fmt.Sprintf("number of files: %d", j.FileCount.Value()),
		fmt.Sprintf("number of chunks: %d", j.ChunkCount.Value()),
		fmt.Sprintf("total size(B): %d", size),
		fmt.Sprintf("total time(s): %.3f", j.TotalTime.Seconds()),
		fmt.Sprintf("throughput(MB/s): %.2f", j.Throughput()),
		fmt.Sprintf("speed factor: %.2f", j.SpeedFactor()),
		fmt.Sprintf("container reads: %d, metadata reads: %d, range reads: %d, cache hits: %d",
			j.ContainerReads.Value(), j.MetaReads.Value(), j.RangeReads.Value(), j.CacheHits.Value()),
		fmt.Sprintf("read amplification: %.2f", j.ReadAmplification()),
	}
	for _, t := range []struct {
		name  string
		timer Timer
	}{
		{"read_recipe_time", j.ReadRecipeTime},
		{"read_chunk_time", j.ReadChunkTime},
		{"write_chunk_time", j.WriteChunkTime},
	} {
		d := t.timer.Duration()
		lines = append(lines, fmt.Sprintf("%s : %.3fs, %.2fMB/s", t.name, d.Seconds(), rate(size, d)))
	}

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// StatsRecord returns the line appended to the statistics log: job id, bytes
// restored, container reads, speed factor and throughput.
func (j *Job) StatsRecord() string {
	return fmt.Sprintf("%d %d %d %.4f %.4f\n", j.ID, j.DataSize.Value(), j.ContainerReads.Value(), j.SpeedFactor(), j.Throughput())
}

func appendStatsLog(path string, j *Job) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrap(err, "open statistics log")
	}

	if _, err := f.WriteString(j.StatsRecord()); err != nil {
		_ = f.Close()
		return errors.Wrap(err, "write statistics log")
	}
	return errors.Wrap(f.Close(), "close statistics log")
}
