// Package artifacts collects run outputs into named bundles and enforces
// per-bundle retention. A bundle is a set of globs picked up from the run
// directory after execution, stored under location/<run-uuid>/<bundle> with
// a manifest. Expired bundles are removed by Cleanup.
package artifacts

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/go-pkgz/lgr"
	"gopkg.in/yaml.v3"
)

// MissingPolicy defines what to do when bundle globs match nothing
type MissingPolicy string

// missing-file policies
const (
	MissingWarn   = MissingPolicy("warn")
	MissingIgnore = MissingPolicy("ignore")
)

// Bundle describes one artifact set: globs resolved against the run directory,
// retention in days and the policy for empty matches
type Bundle struct {
	Name          string        `yaml:"name"`
	Globs         []string      `yaml:"globs"`
	RetentionDays int           `yaml:"retention_days"`
	OnMissing     MissingPolicy `yaml:"on_missing"`
	FailureOnly   bool          `yaml:"failure_only"` // collected only for failed runs
}

// DefaultBundles returns the standard three bundles: batch results, debug
// captures and the error set collected for failed runs only
func DefaultBundles() []Bundle {
	return []Bundle{
		{Name: "results", Globs: []string{"*.json"}, RetentionDays: 30, OnMissing: MissingWarn},
		{Name: "debug", Globs: []string{"debug_*.png", "debug_*.html"}, RetentionDays: 7, OnMissing: MissingIgnore},
		{Name: "errors", Globs: []string{"error_*.png", "error_*.html", "workflow.log"}, RetentionDays: 30,
			OnMissing: MissingIgnore, FailureOnly: true},
	}
}

// Manifest is stored next to collected files and drives retention cleanup
type Manifest struct {
	Bundle    string         `yaml:"bundle"`
	RunUUID   string         `yaml:"run_uuid"`
	CreatedAt time.Time      `yaml:"created_at"`
	ExpiresAt time.Time      `yaml:"expires_at"`
	Files     []ManifestFile `yaml:"files"`
}

// ManifestFile is a single collected file entry
type ManifestFile struct {
	Name string `yaml:"name"`
	Size int64  `yaml:"size"`
}

const manifestName = "manifest.yml"

// Store keeps collected bundles under Location
type Store struct {
	Location string
	Bundles  []Bundle
}

// NewStore makes the store, creating the location directory
func NewStore(location string, bundles []Bundle) (*Store, error) {
	if err := os.MkdirAll(location, 0o700); err != nil {
		return nil, fmt.Errorf("can't make artifacts location %s: %w", location, err)
	}
	if len(bundles) == 0 {
		bundles = DefaultBundles()
	}
	return &Store{Location: location, Bundles: bundles}, nil
}

// Collect picks up bundle files from the run directory. failed controls
// failure-only bundles. Missing matches are a warning or silently skipped
// per bundle policy, never an error.
func (s *Store) Collect(runDir, runUUID string, failed bool) ([]Manifest, error) {
	var res []Manifest
	for _, b := range s.Bundles {
		if b.FailureOnly && !failed {
			continue
		}

		files, err := resolveGlobs(runDir, b.Globs)
		if err != nil {
			return res, fmt.Errorf("can't resolve %s globs: %w", b.Name, err)
		}

		if len(files) == 0 {
			if b.OnMissing == MissingWarn {
				log.Printf("[WARN] no files matched for bundle %s in %s", b.Name, runDir)
			}
			continue
		}

		m, err := s.collectBundle(b, runDir, runUUID, files)
		if err != nil {
			return res, err
		}
		res = append(res, m)
		log.Printf("[INFO] collected bundle %s for run %s, %d file(s), expires %s",
			b.Name, runUUID, len(m.Files), m.ExpiresAt.Format(time.RFC3339))
	}
	return res, nil
}

func (s *Store) collectBundle(b Bundle, runDir, runUUID string, files []string) (Manifest, error) {
	dest := filepath.Join(s.Location, runUUID, b.Name)
	if err := os.MkdirAll(dest, 0o700); err != nil {
		return Manifest{}, fmt.Errorf("can't make bundle dir %s: %w", dest, err)
	}

	now := time.Now()
	m := Manifest{
		Bundle:    b.Name,
		RunUUID:   runUUID,
		CreatedAt: now,
		ExpiresAt: now.AddDate(0, 0, b.RetentionDays),
	}

	for _, f := range files {
		size, err := copyFile(filepath.Join(runDir, f), filepath.Join(dest, f))
		if err != nil {
			return Manifest{}, fmt.Errorf("can't collect %s into %s: %w", f, b.Name, err)
		}
		m.Files = append(m.Files, ManifestFile{Name: f, Size: size})
	}

	data, err := yaml.Marshal(m)
	if err != nil {
		return Manifest{}, fmt.Errorf("can't marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dest, manifestName), data, 0o600); err != nil {
		return Manifest{}, fmt.Errorf("can't write manifest: %w", err)
	}
	return m, nil
}

// List returns manifests of all bundles collected for the run
func (s *Store) List(runUUID string) ([]Manifest, error) {
	runDir := filepath.Join(s.Location, runUUID)
	entries, err := os.ReadDir(runDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("can't read run dir %s: %w", runDir, err)
	}

	var res []Manifest
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m, err := readManifest(filepath.Join(runDir, e.Name(), manifestName))
		if err != nil {
			log.Printf("[WARN] skip bundle %s for run %s, %v", e.Name(), runUUID, err)
			continue
		}
		res = append(res, m)
	}
	return res, nil
}

// FilePath resolves a collected file for download, rejecting path traversal
func (s *Store) FilePath(runUUID, bundle, name string) (string, error) {
	for _, part := range []string{runUUID, bundle, name} {
		if part == "" || strings.Contains(part, "..") || strings.ContainsAny(part, `/\`) {
			return "", fmt.Errorf("invalid artifact path element %q", part)
		}
	}
	path := filepath.Join(s.Location, runUUID, bundle, name)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("artifact not found: %w", err)
	}
	return path, nil
}

// Cleanup removes bundles past their expiry and empty run directories
func (s *Store) Cleanup(now time.Time) error {
	runs, err := os.ReadDir(s.Location)
	if err != nil {
		return fmt.Errorf("can't read artifacts location %s: %w", s.Location, err)
	}

	for _, run := range runs {
		if !run.IsDir() {
			continue
		}
		runDir := filepath.Join(s.Location, run.Name())
		bundles, err := os.ReadDir(runDir)
		if err != nil {
			log.Printf("[WARN] can't read %s, %v", runDir, err)
			continue
		}

		remaining := 0
		for _, b := range bundles {
			if !b.IsDir() {
				continue
			}
			bundleDir := filepath.Join(runDir, b.Name())
			m, err := readManifest(filepath.Join(bundleDir, manifestName))
			if err != nil {
				log.Printf("[WARN] no manifest in %s, skipping, %v", bundleDir, err)
				remaining++
				continue
			}
			if m.ExpiresAt.After(now) {
				remaining++
				continue
			}
			if err := os.RemoveAll(bundleDir); err != nil {
				log.Printf("[WARN] can't remove expired bundle %s, %v", bundleDir, err)
				remaining++
				continue
			}
			log.Printf("[INFO] removed expired bundle %s of run %s", m.Bundle, m.RunUUID)
		}

		if remaining == 0 {
			if err := os.Remove(runDir); err != nil {
				log.Printf("[WARN] can't remove empty run dir %s, %v", runDir, err)
			}
		}
	}
	return nil
}

func resolveGlobs(dir string, globs []string) ([]string, error) {
	var res []string
	seen := map[string]struct{}{}
	for _, g := range globs {
		matches, err := filepath.Glob(filepath.Join(dir, g))
		if err != nil {
			return nil, fmt.Errorf("bad glob %q: %w", g, err)
		}
		for _, m := range matches {
			name := filepath.Base(m)
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			res = append(res, name)
		}
	}
	return res, nil
}

func readManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path) // nolint gosec // path built from store location
	if err != nil {
		return Manifest{}, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("can't parse manifest %s: %w", path, err)
	}
	return m, nil
}

func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src) // nolint gosec // src resolved from run dir globs
	if err != nil {
		return 0, err
	}
	defer func() {
		if e := in.Close(); e != nil {
			log.Printf("[WARN] can't close %s, %v", src, e)
		}
	}()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) // nolint gosec
	if err != nil {
		return 0, err
	}

	size, err := io.Copy(out, in)
	if err != nil {
		_ = out.Close()
		return 0, err
	}
	return size, out.Close()
}
