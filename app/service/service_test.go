package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/scrapn/app/batch"
	"github.com/umputun/scrapn/app/conditions"
	"github.com/umputun/scrapn/app/resumer"
	"github.com/umputun/scrapn/app/scraper"
	"github.com/umputun/scrapn/app/service/mocks"
	"github.com/umputun/scrapn/app/service/request"
	"github.com/umputun/scrapn/app/web/enums"
)

func testSpec() batch.Spec {
	return batch.Spec{
		ParentURL:   "https://example.com/listings",
		BatchNumber: "3",
		Links:       []string{"https://example.com/p/1", "https://example.com/p/2"},
		CSVFilename: "listings.csv",
		RunUUID:     "u1",
	}
}

func TestRunner_Run(t *testing.T) {
	resmr := &mocks.ResumerMock{
		OnStartFunc:  func(spec batch.Spec) (string, error) { return "u1.scrapn", nil },
		OnFinishFunc: func(fname string) error { return nil },
	}
	scr := &mocks.BatchScraperMock{
		ScrapeFunc: func(_ context.Context, spec batch.Spec, dir string) ([]scraper.Result, error) {
			return []scraper.Result{
				{ProfileLink: spec.Links[0], ProfileData: scraper.Profile{Name: new(string)}},
				{ProfileLink: spec.Links[1], ProfileData: scraper.Profile{}},
			}, nil
		},
	}
	coll := &mocks.CollectorMock{
		CollectFunc: func(runDir, runUUID string, failed bool) ([]string, error) { return []string{"results"}, nil },
	}
	events := &mocks.RunEventHandlerMock{
		OnRunStartFunc:    func(req request.OnRunStart) {},
		OnRunCompleteFunc: func(req request.OnRunComplete) {},
	}

	svc := Runner{
		Scraper:           scr,
		Resumer:           resmr,
		DeDup:             NewDeDup(true),
		Collector:         coll,
		WorkDir:           t.TempDir(),
		NotifyMaxLogLines: 100,
		Stdout:            os.Stdout,
		RunEventHandler:   events,
	}

	err := svc.Run(context.Background(), testSpec(), enums.EventTypeDispatched)
	require.NoError(t, err)

	require.Len(t, resmr.OnStartCalls(), 1)
	assert.Equal(t, "u1", resmr.OnStartCalls()[0].Spec.RunUUID)
	require.Len(t, resmr.OnFinishCalls(), 1)
	assert.Equal(t, "u1.scrapn", resmr.OnFinishCalls()[0].Fname)

	require.Len(t, coll.CollectCalls(), 1)
	assert.False(t, coll.CollectCalls()[0].Failed)
	assert.Equal(t, "u1", coll.CollectCalls()[0].RunUUID)

	require.Len(t, events.OnRunStartCalls(), 1)
	assert.Equal(t, enums.EventTypeDispatched, events.OnRunStartCalls()[0].Req.Event)
	require.Len(t, events.OnRunCompleteCalls(), 1)
	assert.Equal(t, 2, events.OnRunCompleteCalls()[0].Req.Scraped)
	assert.NoError(t, events.OnRunCompleteCalls()[0].Req.Err)

	// results file and workflow log written into the run dir
	runDir := filepath.Join(svc.WorkDir, "u1-3")
	assert.FileExists(t, filepath.Join(runDir, "listings-3-u1.json"))
	assert.FileExists(t, filepath.Join(runDir, "workflow.log"))
	logBody, err := os.ReadFile(filepath.Join(runDir, "workflow.log"))
	require.NoError(t, err)
	assert.Contains(t, string(logBody), "starting batch 3 of listings.csv, 2 links")
	assert.Contains(t, string(logBody), "scraped https://example.com/p/1")
}

func TestRunner_RunFailed(t *testing.T) {
	resmr := &mocks.ResumerMock{
		OnStartFunc:  func(spec batch.Spec) (string, error) { return "u1.scrapn", nil },
		OnFinishFunc: func(fname string) error { return nil },
	}
	scr := &mocks.BatchScraperMock{
		ScrapeFunc: func(_ context.Context, spec batch.Spec, dir string) ([]scraper.Result, error) {
			return nil, errors.New("access denied by upstream")
		},
	}
	coll := &mocks.CollectorMock{
		CollectFunc: func(runDir, runUUID string, failed bool) ([]string, error) { return []string{"errors"}, nil },
	}
	notif := &mocks.NotifierMock{
		IsOnErrorFunc: func() bool { return true },
		MakeErrorHTMLFunc: func(batchDesc, target, errorLog string) (string, error) {
			assert.True(t, strings.HasPrefix(errorLog, "batch run failed: access denied by upstream\n\n"),
				"error first, then captured output: %q", errorLog)
			assert.Contains(t, errorLog, "starting batch")
			return "email msg", nil
		},
		SendFunc: func(_ context.Context, subj, text string) error {
			assert.Contains(t, subj, "failed")
			assert.Equal(t, "email msg", text)
			return nil
		},
	}

	svc := Runner{
		Scraper:           scr,
		Resumer:           resmr,
		Notifier:          notif,
		DeDup:             NewDeDup(true),
		Collector:         coll,
		WorkDir:           t.TempDir(),
		NotifyMaxLogLines: 100,
		Stdout:            os.Stdout,
	}

	err := svc.Run(context.Background(), testSpec(), enums.EventTypeDispatched)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied by upstream")

	// resumer entry kept for retry on restart
	assert.Empty(t, resmr.OnFinishCalls())

	require.Len(t, coll.CollectCalls(), 1)
	assert.True(t, coll.CollectCalls()[0].Failed)
	require.Len(t, notif.SendCalls(), 1)
}

func TestRunner_RunDeduplicated(t *testing.T) {
	resmr := &mocks.ResumerMock{
		OnStartFunc:  func(spec batch.Spec) (string, error) { return "u1.scrapn", nil },
		OnFinishFunc: func(fname string) error { return nil },
	}
	scr := &mocks.BatchScraperMock{
		ScrapeFunc: func(_ context.Context, spec batch.Spec, dir string) ([]scraper.Result, error) {
			return nil, nil
		},
	}

	dedup := &mocks.DedupperMock{
		AddFunc:    func(key string) bool { return false },
		RemoveFunc: func(key string) {},
	}

	svc := Runner{Scraper: scr, Resumer: resmr, DeDup: dedup, WorkDir: t.TempDir(), Stdout: os.Stdout}
	err := svc.Run(context.Background(), testSpec(), enums.EventTypeDispatched)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicated run")
	assert.Empty(t, scr.ScrapeCalls())
	assert.Empty(t, resmr.OnStartCalls())
}

func TestRunner_RunNotifyOnCompletion(t *testing.T) {
	resmr := &mocks.ResumerMock{
		OnStartFunc:  func(spec batch.Spec) (string, error) { return "u1.scrapn", nil },
		OnFinishFunc: func(fname string) error { return nil },
	}
	scr := &mocks.BatchScraperMock{
		ScrapeFunc: func(_ context.Context, spec batch.Spec, dir string) ([]scraper.Result, error) {
			return []scraper.Result{}, nil
		},
	}
	notif := &mocks.NotifierMock{
		IsOnErrorFunc:      func() bool { return true },
		IsOnCompletionFunc: func() bool { return true },
		MakeCompletionHTMLFunc: func(batchDesc, target string) (string, error) {
			assert.Equal(t, "listings-3-u1.json", target)
			return "email msg", nil
		},
		SendFunc: func(_ context.Context, subj, text string) error {
			assert.Contains(t, subj, "completed")
			return nil
		},
	}

	svc := Runner{
		Scraper:  scr,
		Resumer:  resmr,
		Notifier: notif,
		DeDup:    NewDeDup(false),
		WorkDir:  t.TempDir(),
		Stdout:   os.Stdout,
	}
	err := svc.Run(context.Background(), testSpec(), enums.EventTypeDispatched)
	require.NoError(t, err)
	require.Len(t, notif.SendCalls(), 1)
}

func TestRunner_RunConditionsSkip(t *testing.T) {
	below := 1
	checker := &mocks.ConditionCheckerMock{
		CheckFunc: func(_ conditions.Config) (bool, string) { return false, "cpu too busy" },
	}

	scr := &mocks.BatchScraperMock{
		ScrapeFunc: func(_ context.Context, spec batch.Spec, dir string) ([]scraper.Result, error) {
			return nil, nil
		},
	}
	resmr := &mocks.ResumerMock{
		OnStartFunc: func(spec batch.Spec) (string, error) { return "u1.scrapn", nil },
	}

	svc := Runner{
		Scraper:          scr,
		Resumer:          resmr,
		DeDup:            NewDeDup(false),
		ConditionChecker: checker,
		WorkDir:          t.TempDir(),
		Stdout:           os.Stdout,
	}
	svc.Conditions.CPUBelow = &below

	err := svc.Run(context.Background(), testSpec(), enums.EventTypeDispatched)
	require.NoError(t, err)
	assert.Empty(t, scr.ScrapeCalls(), "run skipped, scraper not called")
	assert.Empty(t, resmr.OnStartCalls())
}

func TestRunner_RunTemplatedURL(t *testing.T) {
	var scrapedSpec batch.Spec
	scr := &mocks.BatchScraperMock{
		ScrapeFunc: func(_ context.Context, spec batch.Spec, dir string) ([]scraper.Result, error) {
			scrapedSpec = spec
			return []scraper.Result{}, nil
		},
	}
	resmr := &mocks.ResumerMock{
		OnStartFunc:  func(spec batch.Spec) (string, error) { return "u1.scrapn", nil },
		OnFinishFunc: func(fname string) error { return nil },
	}

	svc := Runner{Scraper: scr, Resumer: resmr, DeDup: NewDeDup(false), WorkDir: t.TempDir(), Stdout: os.Stdout}

	spec := testSpec()
	spec.ParentURL = "https://example.com/listings/{{.YYYYMMDD}}"
	err := svc.Run(context.Background(), spec, enums.EventTypeDispatched)
	require.NoError(t, err)

	expected := "https://example.com/listings/" + time.Now().Format("20060102")
	assert.Equal(t, expected, scrapedSpec.ParentURL)
}

func TestRunner_DoWithResume(t *testing.T) {
	resmr := &mocks.ResumerMock{
		ListFunc: func() []resumer.Entry {
			return []resumer.Entry{{Spec: testSpec(), Fname: "u1.scrapn"}}
		},
		OnStartFunc:  func(spec batch.Spec) (string, error) { return "u1.scrapn", nil },
		OnFinishFunc: func(fname string) error { return nil },
	}
	scr := &mocks.BatchScraperMock{
		ScrapeFunc: func(_ context.Context, spec batch.Spec, dir string) ([]scraper.Result, error) {
			return []scraper.Result{}, nil
		},
	}
	events := &mocks.RunEventHandlerMock{
		OnRunStartFunc:    func(req request.OnRunStart) {},
		OnRunCompleteFunc: func(req request.OnRunComplete) {},
	}

	svc := Runner{
		Scraper:         scr,
		Resumer:         resmr,
		DeDup:           NewDeDup(true),
		WorkDir:         t.TempDir(),
		Stdout:          os.Stdout,
		RunEventHandler: events,
		Dispatch:        make(chan batch.Spec),
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	svc.Do(ctx)

	require.Len(t, scr.ScrapeCalls(), 1)
	require.Len(t, events.OnRunStartCalls(), 1)
	assert.Equal(t, enums.EventTypeResumed, events.OnRunStartCalls()[0].Req.Event)
}

func TestRunner_DoWithDispatch(t *testing.T) {
	resmr := &mocks.ResumerMock{
		ListFunc:     func() []resumer.Entry { return nil },
		OnStartFunc:  func(spec batch.Spec) (string, error) { return "u1.scrapn", nil },
		OnFinishFunc: func(fname string) error { return nil },
	}
	scr := &mocks.BatchScraperMock{
		ScrapeFunc: func(_ context.Context, spec batch.Spec, dir string) ([]scraper.Result, error) {
			return []scraper.Result{}, nil
		},
	}

	dispatch := make(chan batch.Spec, 1)
	svc := Runner{
		Scraper:  scr,
		Resumer:  resmr,
		DeDup:    NewDeDup(true),
		WorkDir:  t.TempDir(),
		Stdout:   os.Stdout,
		Dispatch: dispatch,
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	dispatch <- testSpec()
	svc.Do(ctx)

	require.Len(t, scr.ScrapeCalls(), 1)
	assert.Equal(t, "u1", scr.ScrapeCalls()[0].Spec.RunUUID)
}
