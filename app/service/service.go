// Package service provides the top level run orchestrator. Combines all elements
// (scraper, resumer, conditions, artifacts and notifications) together and provides
// the main entry points for dispatched and resumed batch runs.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"reflect"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/syncs"

	"github.com/umputun/scrapn/app/batch"
	"github.com/umputun/scrapn/app/conditions"
	"github.com/umputun/scrapn/app/resumer"
	"github.com/umputun/scrapn/app/scraper"
	"github.com/umputun/scrapn/app/service/request"
	"github.com/umputun/scrapn/app/web/enums"
)

//go:generate moq -out mocks/resumer.go -pkg mocks -skip-ensure -fmt goimports . Resumer
//go:generate moq -out mocks/notifier.go -pkg mocks -skip-ensure -fmt goimports . Notifier
//go:generate moq -out mocks/dedupper.go -pkg mocks -skip-ensure -fmt goimports . Dedupper
//go:generate moq -out mocks/batch_scraper.go -pkg mocks -skip-ensure -fmt goimports . BatchScraper
//go:generate moq -out mocks/collector.go -pkg mocks -skip-ensure -fmt goimports . Collector
//go:generate moq -out mocks/condition_checker.go -pkg mocks -skip-ensure -fmt goimports . ConditionChecker
//go:generate moq -out mocks/run_event_handler.go -pkg mocks -skip-ensure -fmt goimports . RunEventHandler

// Runner is a top-level service wiring scraper, resumer, conditions, artifact
// collection and notifications, providing the main entry point (blocking) to
// process dispatched batch runs.
type Runner struct {
	Scraper           BatchScraper
	Resumer           Resumer
	ResumeConcurrency int
	Notifier          Notifier
	DeDup             Dedupper
	ConditionChecker  ConditionChecker
	Conditions        conditions.Config
	Collector         Collector
	HostName          string
	NotifyMaxLogLines int // controls notification output capture buffer size
	EnableLogPrefix   bool
	NotifyTimeout     time.Duration
	Jitter            time.Duration
	WorkDir           string // root for per-run working directories
	Stdout            io.Writer
	RunEventHandler   RunEventHandler // handler for run lifecycle events
	Dispatch          chan batch.Spec // channel for externally dispatched runs
	AltTemplate       bool            // use alternative template format [[.YYYYMMDD]]
}

// BatchScraper runs the scrape for all links of a batch, writing debug and
// error captures into dir
type BatchScraper interface {
	Scrape(ctx context.Context, spec batch.Spec, dir string) ([]scraper.Result, error)
}

// Resumer defines interface for resumer.Resumer providing auto-restart for interrupted runs
type Resumer interface {
	OnStart(spec batch.Spec) (string, error)
	OnFinish(fname string) error
	List() (res []resumer.Entry)
	String() string
}

// Notifier interface defines notification delivery on failed and completed runs
type Notifier interface {
	Send(ctx context.Context, subj, text string) error
	IsOnError() bool
	IsOnCompletion() bool
	MakeErrorHTML(batchDesc, target, errorLog string) (string, error)
	MakeCompletionHTML(batchDesc, target string) (string, error)
}

// Dedupper defines a locking primitive to register/unregister runs in order to prevent dbl registration
type Dedupper interface {
	Add(key string) bool
	Remove(key string)
}

// Collector gathers run artifacts into retention bundles after the run
type Collector interface {
	Collect(runDir, runUUID string, failed bool) ([]string, error)
}

// ConditionChecker defines interface for checking run preflight conditions
type ConditionChecker interface {
	Check(conditions conditions.Config) (bool, string)
}

// RunEventHandler defines interface for handling run lifecycle events
type RunEventHandler interface {
	OnRunStart(req request.OnRunStart)
	OnRunComplete(req request.OnRunComplete)
}

// Do runs the blocking dispatch loop. Interrupted runs are resumed first,
// then runs arriving on the Dispatch channel are executed until ctx is canceled.
func (s *Runner) Do(ctx context.Context) {
	if s.ResumeConcurrency <= 0 {
		s.ResumeConcurrency = 1
	}
	if s.Stdout == nil {
		s.Stdout = os.Stdout
	}
	s.resumeInterrupted(ctx, s.ResumeConcurrency)

	for {
		select {
		case <-ctx.Done():
			log.Print("[DEBUG] terminate")
			return
		case spec, ok := <-s.Dispatch:
			if !ok {
				log.Print("[INFO] dispatch channel closed")
				return
			}
			go func(spec batch.Spec) {
				if err := s.Run(ctx, spec, enums.EventTypeDispatched); err != nil {
					log.Printf("[WARN] run failed: %s, %v", spec.String(), err)
				}
			}(spec)
		}
	}
}

// Run executes a single batch run end to end: conditions gate, dedup, resumer
// registration, scrape, result write, artifact collection and notification.
func (s *Runner) Run(ctx context.Context, spec batch.Spec, event enums.EventType) error {
	if s.Stdout == nil {
		s.Stdout = os.Stdout
	}

	var err error
	if spec, err = s.expandTemplates(spec); err != nil {
		return err
	}
	runDesc := spec.String()

	if !s.waitForConditions(ctx, runDesc) {
		return nil
	}

	if !s.DeDup.Add(spec.DedupKey()) {
		return fmt.Errorf("duplicated run %q ignored", spec.DedupKey())
	}
	defer s.DeDup.Remove(spec.DedupKey())

	rfile, rerr := s.Resumer.OnStart(spec) // register run in resumer prior to execution
	if rerr != nil {
		return fmt.Errorf("failed to initiate resumer for %s: %w", runDesc, rerr)
	}

	startTime := time.Now()
	if s.RunEventHandler != nil {
		s.RunEventHandler.OnRunStart(request.OnRunStart{
			RunUUID:     spec.RunUUID,
			BatchNumber: spec.BatchNumber,
			ParentURL:   spec.ParentURL,
			CSVFilename: spec.CSVFilename,
			Links:       len(spec.Links),
			Event:       event,
			StartTime:   startTime,
		})
	}

	scraped, capture, err := s.execute(ctx, spec)
	output := capture.GetOutput()

	endTime := time.Now()
	if s.RunEventHandler != nil {
		s.RunEventHandler.OnRunComplete(request.OnRunComplete{
			RunUUID:     spec.RunUUID,
			BatchNumber: spec.BatchNumber,
			ParentURL:   spec.ParentURL,
			CSVFilename: spec.CSVFilename,
			Links:       len(spec.Links),
			Scraped:     scraped,
			ResultFile:  spec.ResultFile(),
			Event:       event,
			StartTime:   startTime,
			EndTime:     endTime,
			Output:      output,
			Err:         err,
		})
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, s.notifyTimeout())
	defer cancel()
	var errMsg string
	if err != nil {
		capture.SerError(err)
		errMsg = capture.Error()
	}
	if e := s.notify(ctxTimeout, spec, errMsg); e != nil {
		return fmt.Errorf("failed to notify: %w", e)
	}
	if err != nil {
		return err // keep resumer entry, the run will be retried on restart
	}

	if err := s.Resumer.OnFinish(rfile); err != nil {
		return fmt.Errorf("failed to finish resumer for %s: %w", rfile, err)
	}
	return nil
}

// expandTemplates applies day templates to URL and csv name, i.e. {{.YYYYMMDD}}
func (s *Runner) expandTemplates(spec batch.Spec) (batch.Spec, error) {
	tmpl := NewDayTemplate(time.Now(), AltTemplateFormat(s.AltTemplate))
	purl, err := tmpl.Parse(spec.ParentURL)
	if err != nil {
		return spec, err
	}
	csv, err := tmpl.Parse(spec.CSVFilename)
	if err != nil {
		return spec, err
	}
	spec.ParentURL, spec.CSVFilename = purl, csv
	return spec, nil
}

// execute runs the scrape in a per-run working directory, writes the result file
// and collects artifacts. Returns the number of scraped profiles and the output capture.
func (s *Runner) execute(ctx context.Context, spec batch.Spec) (scraped int, capture *OutputCapture, err error) {
	capture = NewOutputCapture(s.NotifyMaxLogLines)

	if s.Jitter > 0 {
		time.Sleep(time.Millisecond * time.Duration(rand.Intn(int(s.Jitter.Milliseconds())))) //nolint gosec // jitter up to jitter duration
	}

	runDir := filepath.Join(s.WorkDir, spec.RunUUID+"-"+spec.BatchNumber)
	if err = os.MkdirAll(runDir, 0o750); err != nil {
		return 0, capture, fmt.Errorf("can't make run dir %s: %w", runDir, err)
	}

	logFile, err := os.Create(filepath.Join(runDir, "workflow.log")) // nolint gosec // path under WorkDir
	if err != nil {
		return 0, capture, fmt.Errorf("can't create workflow log: %w", err)
	}
	defer logFile.Close() // nolint gosec // log file, closing error not critical

	writers := []io.Writer{capture, logFile}
	if s.EnableLogPrefix {
		writers = append(writers, NewLogPrefixer(s.Stdout, spec.String()))
	} else {
		writers = append(writers, s.Stdout)
	}
	logw := io.MultiWriter(writers...)

	fmt.Fprintf(logw, "starting batch %s of %s, %d links\n", spec.BatchNumber, spec.CSVFilename, len(spec.Links))

	results, scrapeErr := s.Scraper.Scrape(ctx, spec, runDir)
	for _, r := range results {
		fmt.Fprintf(logw, "scraped %s\n", r.ProfileLink)
	}

	if scrapeErr == nil {
		target := filepath.Join(runDir, spec.ResultFile())
		if werr := scraper.WriteResults(target, results); werr != nil {
			scrapeErr = fmt.Errorf("can't write results to %s: %w", target, werr)
		} else {
			fmt.Fprintf(logw, "results saved to %s\n", spec.ResultFile())
		}
	} else {
		fmt.Fprintf(logw, "batch failed: %v\n", scrapeErr)
	}

	if s.Collector != nil && !reflect.ValueOf(s.Collector).IsNil() {
		if bundles, cerr := s.Collector.Collect(runDir, spec.RunUUID, scrapeErr != nil); cerr != nil {
			log.Printf("[WARN] failed to collect artifacts for %s, %v", spec.RunUUID, cerr)
		} else {
			fmt.Fprintf(logw, "collected artifact bundles: %v\n", bundles)
		}
	}

	if scrapeErr != nil {
		return len(results), capture, fmt.Errorf("batch run failed: %w", scrapeErr)
	}
	return len(results), capture, nil
}

func (s *Runner) notify(ctx context.Context, spec batch.Spec, errMsg string) error {
	if s.Notifier == nil || reflect.ValueOf(s.Notifier).IsNil() {
		return nil
	}

	if errMsg != "" && s.Notifier.IsOnError() {
		msg, err := s.Notifier.MakeErrorHTML(spec.String(), spec.ResultFile(), errMsg)
		if err != nil {
			return fmt.Errorf("can't make html email: %w", err)
		}
		if err := s.Notifier.Send(ctx, fmt.Sprintf("failed %q on %s", spec.String(), s.HostName), msg); err != nil {
			return fmt.Errorf("failed to send error notification: %w", err)
		}
		return nil
	}

	if errMsg == "" && s.Notifier.IsOnCompletion() {
		msg, err := s.Notifier.MakeCompletionHTML(spec.String(), spec.ResultFile())
		if err != nil {
			return fmt.Errorf("can't make html email: %w", err)
		}
		if err := s.Notifier.Send(ctx, fmt.Sprintf("completed %q on %s", spec.String(), s.HostName), msg); err != nil {
			return fmt.Errorf("failed to send completion notification: %w", err)
		}
		return nil
	}

	return nil
}

// resumeInterrupted restarts runs left in the resumer journal by a previous
// process, with limited concurrency
func (s *Runner) resumeInterrupted(ctx context.Context, concur int) {
	entries := s.Resumer.List()
	if len(entries) > 0 {
		log.Printf("[INFO] interrupted runs detected - %+v", entries)
	}

	go func() {
		gr := syncs.NewSizedGroup(concur)
		for _, entry := range entries {
			time.Sleep(time.Millisecond * 100) // keep some time between runs and prevent reordering if no concurrency
			gr.Go(func(gctx context.Context) {
				if err := s.Run(gctx, entry.Spec, enums.EventTypeResumed); err != nil {
					log.Printf("[WARN] failed to resume %s, %v", entry.Spec.String(), err)
					return
				}
				if err := s.Resumer.OnFinish(entry.Fname); err != nil && !errors.Is(err, os.ErrNotExist) {
					log.Printf("[WARN] failed to finish resumer for %s, %v", entry.Fname, err)
				}
			})
		}
		gr.Wait()
	}()
}

func (s *Runner) notifyTimeout() time.Duration {
	if s.NotifyTimeout <= 0 {
		return 30 * time.Second
	}
	return s.NotifyTimeout
}

// waitForConditions checks if preflight conditions are met and optionally waits for them.
// Returns true if the run should execute, false if it should be skipped.
func (s *Runner) waitForConditions(ctx context.Context, runDesc string) bool {
	if s.ConditionChecker == nil || reflect.ValueOf(s.ConditionChecker).IsNil() || s.Conditions.Empty() {
		return true
	}

	met, reason := s.ConditionChecker.Check(s.Conditions)
	if met {
		return true
	}

	if s.Conditions.MaxPostpone == nil {
		log.Printf("[INFO] run skipped: %s, reason: %s", runDesc, reason)
		return false
	}

	deadline := time.Now().Add(*s.Conditions.MaxPostpone)
	log.Printf("[INFO] run postponed: %s, reason: %s, deadline: %s",
		runDesc, reason, deadline.Format(time.RFC3339))

	checkInterval := 30 * time.Second
	if s.Conditions.CheckInterval != nil {
		checkInterval = *s.Conditions.CheckInterval
	}

	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	deadlineTimer := time.NewTimer(*s.Conditions.MaxPostpone)
	defer deadlineTimer.Stop()

	for {
		select {
		case <-ticker.C:
			met, reason = s.ConditionChecker.Check(s.Conditions)
			if met {
				log.Printf("[INFO] conditions met, executing postponed run: %s", runDesc)
				return true
			}
			log.Printf("[DEBUG] conditions not met yet: %s, reason: %s", runDesc, reason)

		case <-deadlineTimer.C:
			log.Printf("[WARN] max postpone reached, executing anyway: %s", runDesc)
			return true

		case <-ctx.Done():
			log.Printf("[INFO] postponed run canceled: %s", runDesc)
			return false
		}
	}
}
