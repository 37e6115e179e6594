package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/repeater"
	"github.com/go-pkgz/repeater/strategy"
	"github.com/robfig/cron/v3"
	"github.com/umputun/go-flags"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/umputun/scrapn/app/artifacts"
	"github.com/umputun/scrapn/app/batch"
	"github.com/umputun/scrapn/app/conditions"
	"github.com/umputun/scrapn/app/discover"
	"github.com/umputun/scrapn/app/notify"
	"github.com/umputun/scrapn/app/resumer"
	"github.com/umputun/scrapn/app/scraper"
	"github.com/umputun/scrapn/app/service"
	"github.com/umputun/scrapn/app/web"
	"github.com/umputun/scrapn/app/web/enums"
)

var opts struct {
	ParentURL   string `long:"parent-url" env:"SCRAPN_PARENT_URL" description:"listing page the batch links came from"`
	BatchNumber string `long:"batch-number" env:"SCRAPN_BATCH_NUMBER" description:"batch sequence number"`
	BatchLinks  string `long:"batch-links" env:"SCRAPN_BATCH_LINKS" description:"json array of profile links"`
	CSVFilename string `long:"csv-filename" env:"SCRAPN_CSV_FILENAME" description:"source csv name, drives the result file name"`
	RunUUID     string `long:"run-uuid" env:"SCRAPN_RUN_UUID" description:"run identifier, generated if empty"`
	PlanFile    string `short:"f" long:"plan" env:"SCRAPN_PLAN" description:"yaml batch plan file"`

	WorkDir      string `long:"workdir" env:"SCRAPN_WORKDIR" default:"/tmp/scrapn" description:"root for per-run working directories"`
	Resume       string `short:"r" long:"resume" env:"SCRAPN_RESUME" description:"auto-resume location"`
	ResumeConcur int    `long:"resume-concur" env:"SCRAPN_RESUME_CONCUR" default:"1" description:"concurrency for resumed runs"`
	JitterEnable bool   `short:"j" long:"jitter" env:"SCRAPN_JITTER" description:"up to 10s jitter"`
	DeDup        bool   `long:"dedup" env:"SCRAPN_DEDUP" description:"prevent duplicated runs of the same batch"`
	AltTemplate  bool   `long:"alt-templates" env:"SCRAPN_ALT_TEMPLATES" description:"use alternative date templates [[.YYYYMMDD]] in urls and csv names"`
	Dbg          bool   `long:"dbg" env:"SCRAPN_DEBUG" description:"debug mode"`

	Proxy struct {
		Username string `long:"username" env:"USERNAME" description:"proxy user name"`
		Password string `long:"password" env:"PASSWORD" description:"proxy password"`
		DNS      string `long:"dns" env:"DNS" description:"proxy host:port"`
	} `group:"proxy" namespace:"proxy" env-namespace:"SCRAPN_PROXY"`

	Scrape struct {
		Browser     bool          `long:"browser" env:"BROWSER" description:"fetch pages with a headless browser instead of plain http"`
		Headed      bool          `long:"headed" env:"HEADED" description:"run the browser with a visible window"`
		Timeout     time.Duration `long:"timeout" env:"TIMEOUT" default:"30s" description:"per-page fetch timeout"`
		SettleDelay time.Duration `long:"settle-delay" env:"SETTLE_DELAY" default:"2s" description:"wait after browser page load"`
		Concurrency int           `long:"concurrency" env:"CONCURRENCY" default:"1" description:"parallel links per batch"`
		DelayMin    time.Duration `long:"delay-min" env:"DELAY_MIN" default:"1s" description:"min delay between links"`
		DelayMax    time.Duration `long:"delay-max" env:"DELAY_MAX" default:"2s" description:"max delay between links"`
		DebugHTML   bool          `long:"debug-html" env:"DEBUG_HTML" description:"save page html for successful extractions"`
	} `group:"scrape" namespace:"scrape" env-namespace:"SCRAPN_SCRAPE"`

	Repeater struct {
		Attempts int           `long:"attempts" env:"ATTEMPTS" default:"3" description:"how many times to repeat a failed fetch"`
		Duration time.Duration `long:"duration" env:"DURATION" default:"1s" description:"initial duration"`
		Factor   float64       `long:"factor" env:"FACTOR" default:"3" description:"backoff factor"`
		Jitter   bool          `long:"jitter" env:"JITTER" description:"jitter"`
	} `group:"repeater" namespace:"repeater" env-namespace:"SCRAPN_REPEATER"`

	Artifacts struct {
		Location        string `long:"location" env:"LOCATION" default:"/tmp/scrapn/artifacts" description:"artifact bundles location"`
		CleanupSchedule string `long:"cleanup" env:"CLEANUP" default:"0 * * * *" description:"cron schedule for expired artifacts cleanup"`
	} `group:"artifacts" namespace:"artifacts" env-namespace:"SCRAPN_ARTIFACTS"`

	Conditions struct {
		CPUBelow       int           `long:"cpu-below" env:"CPU_BELOW" default:"0" description:"postpone run until cpu usage below, percent (0 disables)"`
		MemoryBelow    int           `long:"memory-below" env:"MEMORY_BELOW" default:"0" description:"postpone run until memory usage below, percent (0 disables)"`
		LoadAvgBelow   float64       `long:"loadavg-below" env:"LOADAVG_BELOW" default:"0" description:"postpone run until load average below (0 disables)"`
		DiskFreeAbove  int           `long:"disk-free-above" env:"DISK_FREE_ABOVE" default:"0" description:"postpone run until disk free above, percent (0 disables)"`
		DiskFreePath   string        `long:"disk-free-path" env:"DISK_FREE_PATH" default:"/" description:"path checked for free disk space"`
		Custom         string        `long:"custom" env:"CUSTOM" description:"custom condition script, zero exit allows the run"`
		MaxPostpone    time.Duration `long:"max-postpone" env:"MAX_POSTPONE" default:"30m" description:"max time to postpone a run waiting for conditions"`
		CheckInterval  time.Duration `long:"check-interval" env:"CHECK_INTERVAL" default:"30s" description:"conditions re-check interval"`
		MaxConcurrency int           `long:"max-concurrent-checks" env:"MAX_CONCURRENT_CHECKS" default:"10" description:"limit of parallel condition checks"`
	} `group:"conditions" namespace:"conditions" env-namespace:"SCRAPN_CONDITIONS"`

	Notify struct {
		EnabledError       bool          `long:"enabled-error" env:"ENABLED_ERROR" description:"enable error notifications"`
		EnabledCompletion  bool          `long:"enabled-complete" env:"ENABLED_COMPLETE" description:"enable completion notifications"`
		ErrorTemplate      string        `long:"err-template" env:"ERR_TEMPLATE" description:"error template file"`
		CompletionTemplate string        `long:"complet-template" env:"COMPLET_TEMPLATE" description:"completion template file"`
		SMTPHost           string        `long:"smtp-host" env:"SMTP_HOST" description:"SMTP host"`
		SMTPPort           int           `long:"smtp-port" env:"SMTP_PORT" description:"SMTP port"`
		SMTPUsername       string        `long:"smtp-username" env:"SMTP_USERNAME" description:"SMTP user name"`
		SMTPPassword       string        `long:"smtp-password" env:"SMTP_PASSWORD" description:"SMTP password"`
		SMTPTLS            bool          `long:"smtp-tls" env:"SMTP_TLS" description:"enable SMTP TLS"`
		SMTPStartTLS       bool          `long:"smtp-starttls" env:"SMTP_STARTTLS" description:"enable SMTP StartTLS"`
		SMTPTimeOut        time.Duration `long:"smtp-timeout" env:"SMTP_TIMEOUT" default:"10s" description:"SMTP TCP connection timeout"`
		FromEmail          string        `long:"from" env:"FROM" description:"from email"`
		ToEmails           []string      `long:"to" env:"TO" description:"to email(s)" env-delim:","`
		SlackToken         string        `long:"slack-token" env:"SLACK_TOKEN" description:"slack token"`
		SlackChannels      []string      `long:"slack-channels" env:"SLACK_CHANNELS" description:"slack channel(s)" env-delim:","`
		WebhookURLs        []string      `long:"webhook-urls" env:"WEBHOOK_URLS" description:"webhook url(s)" env-delim:","`
		MaxLogLines        int           `long:"max-log" env:"MAX_LOG" default:"100" description:"max number of log lines in notification"`
		HostName           string        `long:"host" env:"HOSTNAME" description:"host name running scrapn"`
		Timeout            time.Duration `long:"timeout" env:"TIMEOUT" default:"30s" description:"timeout for notification delivery"`
	} `group:"notify" namespace:"notify" env-namespace:"SCRAPN_NOTIFY"`

	Log struct {
		Enabled         bool   `long:"enabled" env:"ENABLED" description:"enable logging"`
		Filename        string `long:"file" env:"FILE" description:"log to file instead of stdout"`
		MaxSize         int    `long:"max-size" env:"MAX_SIZE" default:"100" description:"max size of log file, megabytes"`
		MaxAge          int    `long:"max-age" env:"MAX_AGE" default:"0" description:"max age of log file, days"`
		MaxBackups      int    `long:"max-backups" env:"MAX_BACKUPS" default:"7" description:"max number of rotated log files"`
		EnabledCompress bool   `long:"enabled-compress" env:"ENABLED_COMPRESS" description:"compress rotated log files"`
	} `group:"log" namespace:"log" env-namespace:"SCRAPN_LOG"`

	Web struct {
		Enabled      bool   `long:"enabled" env:"ENABLED" description:"enable web server mode"`
		Address      string `long:"address" env:"ADDRESS" default:":8080" description:"web server listening address"`
		DBPath       string `long:"db" env:"DB" default:"/tmp/scrapn/runs.db" description:"sqlite db for run history"`
		PasswordHash string `long:"password-hash" env:"PASSWORD_HASH" description:"bcrypt hash for basic auth, empty disables auth"`
		HistoryLimit int    `long:"history-limit" env:"HISTORY_LIMIT" default:"1000" description:"max runs kept in history"`
	} `group:"web" namespace:"web" env-namespace:"SCRAPN_WEB"`

	Discover struct {
		Enabled     bool   `long:"enabled" env:"ENABLED" description:"discover mode, crawl parent url and produce a batch plan"`
		LinkPattern string `long:"pattern" env:"PATTERN" description:"regexp of profile links to collect"`
		MaxPages    int    `long:"max-pages" env:"MAX_PAGES" default:"1" description:"pagination limit"`
		BatchSize   int    `long:"batch-size" env:"BATCH_SIZE" default:"25" description:"links per batch in the plan"`
		PlanOut     string `long:"plan-out" env:"PLAN_OUT" default:"plan.yml" description:"output plan file"`
	} `group:"discover" namespace:"discover" env-namespace:"SCRAPN_DISCOVER"`
}

var revision = "unknown"

func main() {
	fmt.Printf("scrapn %s\n", revision)

	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(2)
	}
	stdout := setupLogs()

	defer func() {
		if x := recover(); x != nil {
			log.Printf("[WARN] run time panic:\n%v", x)
			panic(x)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	signals(cancel) // handle SIGQUIT and SIGTERM

	if err := run(ctx, stdout); err != nil {
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	proxy := batch.Proxy{Username: opts.Proxy.Username, Password: opts.Proxy.Password, DNS: opts.Proxy.DNS}

	if opts.Discover.Enabled {
		return runDiscover(ctx, proxy)
	}

	store, err := artifacts.NewStore(opts.Artifacts.Location, nil)
	if err != nil {
		return fmt.Errorf("can't make artifacts store: %w", err)
	}

	cleanupCron := cron.New()
	if _, err = cleanupCron.AddFunc(opts.Artifacts.CleanupSchedule, func() {
		if e := store.Cleanup(time.Now()); e != nil {
			log.Printf("[WARN] artifacts cleanup failed: %v", e)
		}
	}); err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", opts.Artifacts.CleanupSchedule, err)
	}
	cleanupCron.Start()
	defer cleanupCron.Stop()

	runner := &service.Runner{
		Scraper: &scrapeRunner{
			browser:     opts.Scrape.Browser,
			headless:    !opts.Scrape.Headed,
			timeout:     opts.Scrape.Timeout,
			settleDelay: opts.Scrape.SettleDelay,
			concurrency: opts.Scrape.Concurrency,
			delayMin:    opts.Scrape.DelayMin,
			delayMax:    opts.Scrape.DelayMax,
			debugHTML:   opts.Scrape.DebugHTML,
		},
		Resumer:           resumer.New(opts.Resume, opts.Resume != ""),
		ResumeConcurrency: opts.ResumeConcur,
		Notifier:          makeNotifier(),
		DeDup:             service.NewDeDup(opts.DeDup),
		ConditionChecker:  conditions.NewChecker(opts.Conditions.MaxConcurrency),
		Conditions:        makeConditions(),
		Collector:         &artifactsCollector{store: store},
		HostName:          makeHostName(),
		NotifyMaxLogLines: opts.Notify.MaxLogLines,
		NotifyTimeout:     opts.Notify.Timeout,
		WorkDir:           opts.WorkDir,
		Stdout:            stdout,
		AltTemplate:       opts.AltTemplate,
	}
	if opts.JitterEnable {
		runner.Jitter = 10 * time.Second
	}

	if opts.Web.Enabled {
		return runServer(ctx, runner, store)
	}

	if opts.PlanFile != "" {
		return runPlan(ctx, runner)
	}
	return runSingle(ctx, runner, proxy)
}

// runSingle executes one batch from the flags and exits
func runSingle(ctx context.Context, runner *service.Runner, proxy batch.Proxy) error {
	spec, err := batch.New(opts.ParentURL, opts.BatchNumber, opts.BatchLinks, opts.CSVFilename, opts.RunUUID, proxy)
	if err != nil {
		return fmt.Errorf("invalid batch inputs: %w", err)
	}
	return runner.Run(ctx, spec, enums.EventTypeScheduled)
}

// runPlan executes all batches of the yaml plan sequentially, the first
// failure stops the remaining batches
func runPlan(ctx context.Context, runner *service.Runner) error {
	plan, err := batch.LoadPlan(opts.PlanFile)
	if err != nil {
		return fmt.Errorf("can't load plan: %w", err)
	}
	for _, spec := range plan.Specs() {
		if err := runner.Run(ctx, spec, enums.EventTypeScheduled); err != nil {
			return fmt.Errorf("plan aborted: %w", err)
		}
	}
	return nil
}

// runServer starts the web server and the dispatch loop, blocks until ctx is canceled
func runServer(ctx context.Context, runner *service.Runner, store *artifacts.Store) error {
	dispatch := make(chan batch.Spec, 100)
	srv, err := web.New(web.Config{
		DBPath:       opts.Web.DBPath,
		Hostname:     makeHostName(),
		Version:      revision,
		Dispatch:     dispatch,
		Artifacts:    store,
		PasswordHash: opts.Web.PasswordHash,
		Proxy:        batch.Proxy{Username: opts.Proxy.Username, Password: opts.Proxy.Password, DNS: opts.Proxy.DNS},
		HistoryLimit: opts.Web.HistoryLimit,
	})
	if err != nil {
		return fmt.Errorf("can't make web server: %w", err)
	}

	runner.Dispatch = dispatch
	runner.RunEventHandler = srv
	runner.EnableLogPrefix = true // interleaved runs need per-run prefixes in the shared log

	go func() {
		if err := srv.Run(ctx, opts.Web.Address); err != nil {
			log.Printf("[ERROR] web server terminated, %v", err)
		}
	}()

	runner.Do(ctx)
	return nil
}

// runDiscover crawls the parent url and writes the csv and the batch plan
func runDiscover(ctx context.Context, proxy batch.Proxy) error {
	if opts.CSVFilename == "" {
		return fmt.Errorf("discover mode requires --csv-filename")
	}
	crawler, err := discover.New(discover.Params{
		ParentURL:   opts.ParentURL,
		LinkPattern: opts.Discover.LinkPattern,
		CSVFilename: opts.CSVFilename,
		MaxPages:    opts.Discover.MaxPages,
		BatchSize:   opts.Discover.BatchSize,
		Proxy:       proxy,
	})
	if err != nil {
		return fmt.Errorf("can't make crawler: %w", err)
	}

	links, err := crawler.Discover(ctx)
	if err != nil {
		return fmt.Errorf("discovery failed: %w", err)
	}
	if len(links) == 0 {
		return fmt.Errorf("no links discovered from %s", opts.ParentURL)
	}

	if err := discover.WriteCSV(opts.CSVFilename, links); err != nil {
		return err
	}
	if err := discover.WritePlan(opts.Discover.PlanOut, crawler.MakePlan(links)); err != nil {
		return err
	}
	log.Printf("[INFO] discovered %d links, plan saved to %s", len(links), opts.Discover.PlanOut)
	return nil
}

// scrapeRunner implements service.BatchScraper, makes a fresh fetcher and
// scraper for every run so sessions and debug captures don't leak between runs
type scrapeRunner struct {
	browser     bool
	headless    bool
	timeout     time.Duration
	settleDelay time.Duration
	concurrency int
	delayMin    time.Duration
	delayMax    time.Duration
	debugHTML   bool
}

func (s *scrapeRunner) Scrape(ctx context.Context, spec batch.Spec, dir string) ([]scraper.Result, error) {
	fetcher, err := s.makeFetcher(spec.Proxy)
	if err != nil {
		return nil, fmt.Errorf("can't make fetcher: %w", err)
	}
	defer func() {
		if e := fetcher.Close(); e != nil {
			log.Printf("[WARN] fetcher close failed: %v", e)
		}
	}()

	rptr := repeater.New(&strategy.Backoff{Repeats: opts.Repeater.Attempts, Duration: opts.Repeater.Duration,
		Factor: opts.Repeater.Factor, Jitter: opts.Repeater.Jitter})

	runner := &scraper.Runner{
		Fetcher:     fetcher,
		Repeater:    rptr,
		Concurrency: s.concurrency,
		DelayMin:    s.delayMin,
		DelayMax:    s.delayMax,
		Dir:         dir,
		DebugHTML:   s.debugHTML,
	}
	return runner.Run(ctx, spec.Links)
}

func (s *scrapeRunner) makeFetcher(proxy batch.Proxy) (scraper.Fetcher, error) {
	if s.browser {
		return scraper.NewBrowserFetcher(proxy, s.settleDelay, s.headless)
	}
	return scraper.NewHTTPFetcher(proxy, s.timeout)
}

// artifactsCollector adapts artifacts.Store to the service.Collector interface,
// reporting collected bundle names
type artifactsCollector struct {
	store *artifacts.Store
}

func (a *artifactsCollector) Collect(runDir, runUUID string, failed bool) ([]string, error) {
	manifests, err := a.store.Collect(runDir, runUUID, failed)
	if err != nil {
		return nil, err
	}
	res := make([]string, 0, len(manifests))
	for _, m := range manifests {
		res = append(res, m.Bundle)
	}
	return res, nil
}

func makeConditions() conditions.Config {
	res := conditions.Config{DiskFreePath: opts.Conditions.DiskFreePath, Custom: opts.Conditions.Custom}
	if opts.Conditions.CPUBelow > 0 {
		res.CPUBelow = &opts.Conditions.CPUBelow
	}
	if opts.Conditions.MemoryBelow > 0 {
		res.MemoryBelow = &opts.Conditions.MemoryBelow
	}
	if opts.Conditions.LoadAvgBelow > 0 {
		res.LoadAvgBelow = &opts.Conditions.LoadAvgBelow
	}
	if opts.Conditions.DiskFreeAbove > 0 {
		res.DiskFreeAbove = &opts.Conditions.DiskFreeAbove
	}
	if opts.Conditions.MaxPostpone > 0 {
		res.MaxPostpone = &opts.Conditions.MaxPostpone
	}
	if opts.Conditions.CheckInterval > 0 {
		res.CheckInterval = &opts.Conditions.CheckInterval
	}
	return res
}

func makeNotifier() *notify.Service {
	if !opts.Notify.EnabledError && !opts.Notify.EnabledCompletion {
		return nil
	}

	if opts.Notify.FromEmail == "" {
		opts.Notify.FromEmail = "scrapn@" + makeHostName()
	}

	return notify.NewService(
		notify.Params{
			EnabledError:       opts.Notify.EnabledError,
			EnabledCompletion:  opts.Notify.EnabledCompletion,
			ErrorTemplate:      opts.Notify.ErrorTemplate,
			CompletionTemplate: opts.Notify.CompletionTemplate,
			HostName:           opts.Notify.HostName,
		},
		notify.SendersParams{
			FromEmail:     opts.Notify.FromEmail,
			ToEmails:      opts.Notify.ToEmails,
			SMTPHost:      opts.Notify.SMTPHost,
			SMTPPort:      opts.Notify.SMTPPort,
			SMTPTLS:       opts.Notify.SMTPTLS,
			SMTPStartTLS:  opts.Notify.SMTPStartTLS,
			SMTPUsername:  opts.Notify.SMTPUsername,
			SMTPPassword:  opts.Notify.SMTPPassword,
			SMTPTimeOut:   opts.Notify.SMTPTimeOut,
			SlackToken:    opts.Notify.SlackToken,
			SlackChannels: opts.Notify.SlackChannels,
			WebhookURLs:   opts.Notify.WebhookURLs,
		},
	)
}

func makeHostName() string {
	if opts.Notify.HostName != "" {
		return opts.Notify.HostName
	}
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return host
}

// setupLogs configures the logger and returns the writer for captured run output
func setupLogs() io.Writer {
	if !opts.Log.Enabled {
		log.Setup(log.Out(io.Discard), log.Err(io.Discard))
		return os.Stdout
	}

	log.Setup(log.Msec, log.LevelBraces)
	if opts.Dbg {
		log.Setup(log.Debug, log.CallerFile, log.CallerFunc, log.Msec, log.LevelBraces)
	}

	if opts.Log.Filename != "" {
		fileLogger := &lumberjack.Logger{
			Filename:   opts.Log.Filename,
			MaxSize:    opts.Log.MaxSize,
			MaxBackups: opts.Log.MaxBackups,
			MaxAge:     opts.Log.MaxAge,
			Compress:   opts.Log.EnabledCompress,
			LocalTime:  true,
		}
		log.Printf("[INFO] log file %s, max size %dM, max backups %d, max age %dd, compress %v",
			opts.Log.Filename, opts.Log.MaxSize, opts.Log.MaxBackups, opts.Log.MaxAge, opts.Log.EnabledCompress)
		log.Setup(log.Out(fileLogger))
		return fileLogger
	}

	return os.Stdout
}

func signals(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	go func() {
		stacktrace := make([]byte, 8192)
		for sig := range sigChan {
			if sig == syscall.SIGQUIT { // catch SIGQUIT and print stack traces
				length := runtime.Stack(stacktrace, true)
				fmt.Println(string(stacktrace[:length]))
				continue
			}
			cancel() // terminate on SIGTERM
		}
	}()
	signal.Notify(sigChan, syscall.SIGQUIT, syscall.SIGTERM)
}
