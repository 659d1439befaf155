// Package rundir owns the on-disk layout of a training run and the
// tolerant readers the control surface uses to inspect one.
package rundir

import (
	"fmt"
	"os"
	"path/filepath"
)

// Well-known file names inside a run directory.
const (
	StatusFileName   = "status.json"
	EvalLogFileName  = "eval.jsonl"
	MetadataFileName = "metadata.json"
	StdoutLogName    = "trainer_stdout.log"
	StderrLogName    = "trainer_stderr.log"
)

// Dir locates one run inside the runs root.
type Dir struct {
	Root string
	Name string
}

func New(root, name string) Dir {
	return Dir{Root: root, Name: name}
}

// Path is the run directory itself.
func (d Dir) Path() string {
	return filepath.Join(d.Root, d.Name)
}

func (d Dir) StatusFile() string {
	return filepath.Join(d.Path(), StatusFileName)
}

func (d Dir) EvalLog() string {
	return filepath.Join(d.Path(), EvalLogFileName)
}

func (d Dir) MetadataFile() string {
	return filepath.Join(d.Path(), MetadataFileName)
}

func (d Dir) StdoutLog() string {
	return filepath.Join(d.Path(), StdoutLogName)
}

func (d Dir) StderrLog() string {
	return filepath.Join(d.Path(), StderrLogName)
}

// Ensure creates the run directory, parents included.
func (d Dir) Ensure() error {
	if err := os.MkdirAll(d.Path(), 0o755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}
	return nil
}
