// Package resumer journals accepted batches so runs interrupted by a crash or
// restart get re-executed. Each in-flight batch is a .scrapn file with the spec
// json, removed when the run finishes.
package resumer

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	log "github.com/go-pkgz/lgr"

	"github.com/umputun/scrapn/app/batch"
)

// Resumer keeps track of in-flight batches in .scrapn files
type Resumer struct {
	location string
	enabled  bool
}

// Entry keeps file name and the journaled batch spec
type Entry struct {
	Spec  batch.Spec
	Fname string
}

// New makes resumer for given location. Enabled affects List only
func New(location string, enabled bool) *Resumer {
	if enabled {
		if err := os.MkdirAll(location, 0o700); err != nil {
			log.Printf("[DEBUG] can't make %s, %s", location, err)
		}
	}
	return &Resumer{location: location, enabled: enabled}
}

// OnStart journals the accepted batch spec as <run-uuid>-<batch>.scrapn,
// batches of the same run uuid get separate journal files
func (r *Resumer) OnStart(spec batch.Spec) (string, error) {
	if !r.enabled {
		return "", nil
	}
	data, err := json.Marshal(spec)
	if err != nil {
		return "", fmt.Errorf("can't marshal batch spec: %w", err)
	}
	fname := path.Join(r.location, spec.RunUUID+"-"+spec.BatchNumber+".scrapn")
	log.Printf("[DEBUG] create resumer file %s", fname)
	return fname, os.WriteFile(fname, data, 0o600)
}

// OnFinish removes the journal file for a completed run
func (r *Resumer) OnFinish(fname string) error {
	if !r.enabled || fname == "" {
		return nil
	}
	log.Printf("[DEBUG] delete resumer file %s", fname)
	return os.Remove(fname)
}

// List returns journaled batches, dropping files too old to retry
func (r *Resumer) List() (res []Entry) {
	if !r.enabled {
		return []Entry{}
	}

	entries, err := os.ReadDir(r.location)
	if err != nil {
		log.Printf("[WARN] can't get resume list for %s, %s", r.location, err)
		return []Entry{}
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !strings.HasSuffix(entry.Name(), ".scrapn") {
			continue
		}

		finfo, err := entry.Info()
		if err != nil {
			log.Printf("[WARN] can't get resume info for %s, %s", entry.Name(), err)
			continue
		}

		fileName := path.Join(r.location, finfo.Name())
		// skip old files
		if finfo.ModTime().Add(24 * time.Hour).Before(time.Now()) {
			log.Printf("[DEBUG] resume file %s too old", fileName)
			if err := os.Remove(fileName); err != nil {
				log.Printf("[WARN] can't delete %s, %s", fileName, err)
			}
			continue
		}

		data, err := os.ReadFile(fileName) // nolint gosec // file under resumer location
		if err != nil {
			log.Printf("[WARN] failed to read resume file %s, %s", fileName, err)
			continue
		}

		var spec batch.Spec
		if err := json.Unmarshal(data, &spec); err != nil {
			log.Printf("[WARN] corrupted resume file %s, removing, %s", fileName, err)
			if e := os.Remove(fileName); e != nil {
				log.Printf("[WARN] can't delete %s, %s", fileName, e)
			}
			continue
		}

		resEntry := Entry{Fname: fileName, Spec: spec}
		log.Printf("[DEBUG] resume entry %s", spec.String())
		res = append(res, resEntry)
	}
	return res
}

func (r *Resumer) String() string {
	return fmt.Sprintf("enabled:%v, location:%s", r.enabled, r.location)
}
