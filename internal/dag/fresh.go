package dag

import (
	"os"
	"time"

	"weave/internal/core"
)

// Oracle decides, per file target, whether its action may be skipped. It
// holds the DigestStore consulted by the hash policy; the mtime policy needs
// no persisted state beyond the filesystem itself.
type Oracle struct {
	digests *DigestStore
}

// NewOracle builds an oracle backed by store.
func NewOracle(store *DigestStore) *Oracle {
	return &Oracle{digests: store}
}

// inputDigest resolves the current digest of a dependency name: the file
// it names on disk, regardless of whether that name is a source leaf or
// the primary output of another target (a target's freshness only cares
// about the bytes its declared inputs currently hold).
func (o *Oracle) inputDigest(name string) (string, error) {
	return o.digests.Digest(name)
}

// Fresh reports whether target t's outputs are up to date with its inputs,
// per the policy selected by t.UseHash. Phony targets are handled by the
// caller — the oracle is never consulted for them (they are never fresh).
func (o *Oracle) Fresh(t *core.FileTarget) (bool, error) {
	for _, out := range t.Outputs {
		if _, err := os.Stat(out); err != nil {
			if os.IsNotExist(err) {
				return false, nil
			}
			return false, err
		}
	}

	if t.UseHash != nil && *t.UseHash {
		return o.freshByHash(t)
	}
	return o.freshByMtime(t)
}

func (o *Oracle) freshByMtime(t *core.FileTarget) (bool, error) {
	var minOut time.Time
	for i, out := range t.Outputs {
		info, err := os.Stat(out)
		if err != nil {
			return false, err
		}
		if i == 0 || info.ModTime().Before(minOut) {
			minOut = info.ModTime()
		}
	}

	var maxIn time.Time
	for i, in := range t.Inputs {
		info, err := os.Stat(in)
		if err != nil {
			// A dependency target (not a source leaf) need not exist as a
			// file on disk at resolution time — e.g. a phony. Skip it: its
			// own freshness is governed elsewhere in the graph walk.
			if os.IsNotExist(err) {
				continue
			}
			return false, err
		}
		if i == 0 || info.ModTime().After(maxIn) {
			maxIn = info.ModTime()
		}
	}

	return !minOut.Before(maxIn), nil
}

func (o *Oracle) freshByHash(t *core.FileTarget) (bool, error) {
	current := make([]string, len(t.Inputs))
	for i, in := range t.Inputs {
		d, err := o.inputDigest(in)
		if err != nil {
			if os.IsNotExist(err) {
				current[i] = ""
				continue
			}
			return false, err
		}
		current[i] = d
	}

	stored, ok := o.digests.Vector(t.Primary())
	if !ok || len(stored) != len(current) {
		return false, nil
	}
	for i := range current {
		if current[i] != stored[i] {
			return false, nil
		}
	}
	return true, nil
}

// RecordSuccess persists the current input-digest vector for t after a
// successful build, when t's policy is hash-based. The mtime policy
// persists nothing.
func (o *Oracle) RecordSuccess(t *core.FileTarget) error {
	if t.UseHash == nil || !*t.UseHash {
		return nil
	}
	vector := make([]string, len(t.Inputs))
	for i, in := range t.Inputs {
		d, err := o.inputDigest(in)
		if err != nil {
			if os.IsNotExist(err) {
				vector[i] = ""
				continue
			}
			return err
		}
		vector[i] = d
	}
	o.digests.RecordVector(t.Primary(), vector)
	return o.digests.Save()
}
