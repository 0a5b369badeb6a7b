package schema

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"team-ingest/internal/logging"
)

// ReferenceFile stores the last fingerprinted payload verbatim. At most one exists.
type ReferenceFile struct {
	path string
}

func NewReferenceFile(path string) *ReferenceFile {
	return &ReferenceFile{path: path}
}

func (r *ReferenceFile) Path() string {
	return r.path
}

// Load returns the stored payload, or ok=false when no reference exists yet.
func (r *ReferenceFile) Load() (payload []byte, ok bool, err error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "failed to read schema reference %s", r.path)
	}
	return data, true, nil
}

// Save replaces the reference atomically.
func (r *ReferenceFile) Save(payload []byte) error {
	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "failed to create directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".schema-reference-*.json")
	if err != nil {
		return errors.Wrap(err, "failed to create temp reference")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to write temp reference")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close temp reference")
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return errors.Wrapf(err, "failed to replace schema reference %s", r.path)
	}
	return nil
}

// Result describes what a drift check found.
type Result struct {
	// Baseline is true when no usable reference existed and the payload became it.
	Baseline bool
	Drift    Drift
}

// Detector compares a fresh payload against the persisted reference.
type Detector struct {
	ref    *ReferenceFile
	logger *logging.Logger
}

func NewDetector(ref *ReferenceFile, logger *logging.Logger) *Detector {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Detector{ref: ref, logger: logger.Named("schema")}
}

// Check fingerprints payload and diffs it against the reference. A payload that fails
// Validate is returned as an error and never touches the reference. A missing, unreadable
// or incomplete reference is replaced by payload without reporting drift; a differing
// reference is reported and then overwritten. Drift never fails the check.
func (d *Detector) Check(payload []byte) (Result, error) {
	if err := Validate(payload); err != nil {
		return Result{}, err
	}
	current, err := Compute(payload)
	if err != nil {
		return Result{}, err
	}

	stored, ok, err := d.ref.Load()
	if err != nil {
		return Result{}, err
	}

	var reference Fingerprint
	if ok {
		err = Validate(stored)
		if err == nil {
			reference, err = Compute(stored)
		}
		if err != nil {
			d.logger.Warn("schema reference is corrupt, re-establishing baseline",
				"path", d.ref.Path(), "error", err)
			ok = false
		}
	}

	if !ok {
		if err := d.ref.Save(payload); err != nil {
			return Result{}, err
		}
		d.logger.Info("schema reference established", "path", d.ref.Path(), "keys", len(current))
		return Result{Baseline: true}, nil
	}

	drift := Diff(reference, current)
	if drift.Empty() {
		d.logger.Debug("schema matches reference", "keys", len(current))
		return Result{}, nil
	}

	d.logger.Warn("match payload schema drift detected, review field extraction",
		"added", drift.Added, "removed", drift.Removed)
	if err := d.ref.Save(payload); err != nil {
		return Result{}, err
	}
	return Result{Drift: drift}, nil
}
