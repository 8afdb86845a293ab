package restorer

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fdl66/chongshan/internal/debug"
	"github.com/fdl66/chongshan/internal/dedup"
	"github.com/fdl66/chongshan/internal/errors"
	"github.com/fdl66/chongshan/internal/fs"
)

const (
	dirMode  os.FileMode = 0700
	fileMode os.FileMode = 0600

	writeBufferSize = 1 << 20
)

// filesWriter is the last stage of a restore: it replays the resolved chunk
// stream into files below target.
type filesWriter struct {
	target string
	level  SimulationLevel
	job    *Job

	// file is the file currently written, nil between FILE_END and the next
	// FILE_START.
	file *partialFile
}

type partialFile struct {
	path string
	f    *os.File
	// wr is nil if the simulation level skips writing the file.
	wr *bufio.Writer
}

func newFilesWriter(target string, level SimulationLevel, job *Job) *filesWriter {
	return &filesWriter{target: target, level: level, job: job}
}

func createFile(path string) (*partialFile, error) {
	if err := fs.MkdirAll(filepath.Dir(path), dirMode); err != nil {
		return nil, errors.Wrapf(err, "create directory for %v", path)
	}

	f, err := fs.OpenFile(path, fs.O_CREATE|fs.O_TRUNC|fs.O_WRONLY|fs.O_NOFOLLOW, fileMode)
	if err != nil {
		return nil, errors.Wrapf(err, "create %v", path)
	}
	return &partialFile{
		path: path,
		f:    f,
		wr:   bufio.NewWriterSize(f, writeBufferSize),
	}, nil
}

func (w *filesWriter) start(name string) error {
	if w.file != nil {
		return errors.Consistency("file %v started while %v is still open", name, w.file.path)
	}

	if w.level == SimulationAll {
		w.file = &partialFile{path: name}
		return nil
	}

	path, err := fs.TargetPath(w.target, name)
	if err != nil {
		return err
	}

	if w.level == SimulationRestore {
		if err := fs.MkdirAll(filepath.Dir(path), dirMode); err != nil {
			return errors.Wrapf(err, "create directory for %v", path)
		}
		w.file = &partialFile{path: path}
		return nil
	}

	debug.Log("create %v", path)
	w.file, err = createFile(path)
	return err
}

func (w *filesWriter) write(c *dedup.Chunk) error {
	if w.file == nil {
		return errors.Consistency("chunk %v outside of a file", c.Fingerprint.Str())
	}

	if w.file.wr != nil {
		if len(c.Data) != c.Size {
			return errors.Consistency("chunk %v of %v has %d bytes, recipe says %d", c.Fingerprint.Str(), w.file.path, len(c.Data), c.Size)
		}
		if _, err := w.file.wr.Write(c.Data); err != nil {
			return errors.Wrapf(err, "write %v", w.file.path)
		}
	}

	w.job.DataSize.Add(int64(c.Size))
	w.job.ChunkCount.Inc()
	return nil
}

func (w *filesWriter) end() error {
	if w.file == nil {
		return errors.Consistency("end of file without a file being written")
	}

	file := w.file
	w.file = nil
	if file.f != nil {
		if err := file.wr.Flush(); err != nil {
			_ = file.f.Close()
			return errors.Wrapf(err, "write %v", file.path)
		}
		if err := file.f.Close(); err != nil {
			return errors.Wrapf(err, "close %v", file.path)
		}
	}

	w.job.FileCount.Inc()
	return nil
}

// abort closes the file currently written without flushing it.
func (w *filesWriter) abort() {
	if w.file != nil && w.file.f != nil {
		debug.Log("abort %v", w.file.path)
		_ = w.file.f.Close()
	}
	w.file = nil
}

// Run consumes in until it is closed. The job is marked done on return.
func (w *filesWriter) Run(ctx context.Context, in <-chan *dedup.Chunk) (err error) {
	defer w.job.setDone()
	defer func() {
		if err != nil {
			w.abort()
		}
	}()

	for {
		c, ok, rerr := receive(ctx, in)
		if rerr != nil {
			return rerr
		}
		if !ok {
			break
		}

		start := time.Now()
		switch {
		case c.Is(dedup.FlagFileStart):
			err = w.start(c.Path)
		case c.Is(dedup.FlagFileEnd):
			err = w.end()
		default:
			err = w.write(c)
		}
		w.job.WriteChunkTime.Since(start)
		if err != nil {
			return err
		}
	}

	if w.file != nil {
		return errors.Consistency("chunk stream ended inside %v", w.file.path)
	}
	debug.Log("writer done, %d files", w.job.FileCount.Value())
	return nil
}
