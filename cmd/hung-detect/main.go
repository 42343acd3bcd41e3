package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/fjh658/hung-detect/internal/config"
	"github.com/fjh658/hung-detect/internal/diagnose"
	"github.com/fjh658/hung-detect/internal/monitor"
	"github.com/fjh658/hung-detect/internal/procstate"
	"github.com/fjh658/hung-detect/internal/ws"
)

// Exit codes: 0 when no hang was observed, 1 when at least one hung
// event fired during the run, 2 for startup or configuration failure.
const (
	exitOK      = 0
	exitHung    = 1
	exitStartup = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	// A .env next to the binary is the usual place for HUNG_DETECT_*
	// overrides; absence is not an error.
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to YAML config file")
	interval := flag.Duration("interval", 0, "Override poll interval")
	nameFilter := flag.String("name", "", "Only track apps whose name contains this substring")
	pidList := flag.String("pids", "", "Comma-separated PID list to track (default: all)")
	foreground := flag.Bool("foreground", false, "Only track foreground-scope apps")
	watch := flag.Bool("watch", false, "Keep monitoring until interrupted (default: one scan)")
	diagnoseFlag := flag.Bool("diagnose", false, "Capture diagnostics when an app hangs")
	spindump := flag.Bool("spindump", false, "Also capture spindump per hung app (requires root)")
	systemWide := flag.Bool("systemwide", false, "Also capture a system-wide spindump per batch (requires root)")
	outDir := flag.String("outdir", "", "Override diagnostic output directory")
	serve := flag.Bool("serve", false, "Serve the live event stream over websocket")
	port := flag.Int("port", 0, "Override serve port")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Printf("config: %v", err)
		return exitStartup
	}

	if *interval > 0 {
		cfg.Monitor.PollInterval = *interval
	}
	if *nameFilter != "" {
		cfg.Monitor.NameFilter = *nameFilter
	}
	if *foreground {
		cfg.Monitor.ForegroundOnly = true
	}
	if *pidList != "" {
		pids, err := parsePIDs(*pidList)
		if err != nil {
			log.Printf("config: %v", err)
			return exitStartup
		}
		cfg.Monitor.PIDs = pids
	}
	if *diagnoseFlag {
		cfg.Diagnose.Enabled = true
	}
	if *spindump {
		cfg.Diagnose.Enabled = true
		cfg.Diagnose.Spindump = true
	}
	if *systemWide {
		cfg.Diagnose.Enabled = true
		cfg.Diagnose.SystemWide = true
	}
	if *outDir != "" {
		cfg.Diagnose.OutputDir = *outDir
	}
	if *serve {
		cfg.Serve.Enabled = true
	}
	if *port > 0 {
		cfg.Serve.Port = *port
	}
	if err := cfg.Validate(); err != nil {
		log.Printf("config: %v", err)
		return exitStartup
	}

	if cfg.DiagnosisRequiresRoot() && os.Geteuid() != 0 {
		log.Printf("spindump capture requires root; re-run with sudo or drop -spindump/-systemwide")
		return exitStartup
	}

	oracle, enum, push := monitor.NewPlatform()

	if !*watch {
		return runOnce(cfg, oracle, enum)
	}
	return runWatch(cfg, oracle, enum, push)
}

// loadConfig reads the config file when one is given; otherwise it runs
// on defaults plus environment overrides.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	cfg := config.Default()
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runOnce performs a single scan and prints the result, one line per
// tracked app, hung apps first.
func runOnce(cfg *config.Config, oracle monitor.Oracle, enum monitor.Enumerator) int {
	if !oracle.Available() {
		log.Printf("responsiveness oracle unavailable on this system")
		return exitStartup
	}

	curr, err := monitor.Scan(oracle, enum, filterFromConfig(cfg))
	if err != nil {
		log.Printf("scan: %v", err)
		return exitStartup
	}

	pids := make([]int32, 0, len(curr))
	for pid := range curr {
		pids = append(pids, pid)
	}
	sort.Slice(pids, func(i, j int) bool {
		a, b := curr[pids[i]], curr[pids[j]]
		if a.Responding != b.Responding {
			return !a.Responding
		}
		return pids[i] < pids[j]
	})

	hung := 0
	for _, pid := range pids {
		s := curr[pid]
		state := "ok"
		if !s.Responding {
			state = "NOT RESPONDING"
			hung++
		}
		fmt.Printf("%6d  %-14s %s\n", pid, state, displayName(s))
	}
	fmt.Printf("%d tracked, %d not responding\n", len(curr), hung)

	if hung > 0 {
		return exitHung
	}
	return exitOK
}

func runWatch(cfg *config.Config, oracle monitor.Oracle, enum monitor.Enumerator, push monitor.PushChannel) int {
	store := procstate.NewStore()

	var emitters []monitor.Emitter
	emitters = append(emitters, consoleEmitter{})

	if cfg.Serve.Enabled {
		broadcaster := ws.NewBroadcaster(store)
		emitters = append(emitters, broadcaster)

		server := ws.NewServer(store, broadcaster)
		mux := http.NewServeMux()
		server.SetupRoutes(mux)
		go func() {
			if err := ws.ListenAndServe(cfg.Serve.Host, cfg.Serve.Port, mux); err != nil {
				log.Printf("[serve] server stopped: %v", err)
			}
		}()
	}

	diagCh := make(chan diagnose.BatchResult, 16)
	engine := monitor.NewEngine(filterFromConfig(cfg), cfg.Monitor.PollInterval, store,
		oracle, enum, push, multiEmitter(emitters), nil, diagCh)

	if cfg.Diagnose.Enabled {
		// The dispatcher tags batches with the run ID, so it is wired
		// after the engine has minted one.
		dispatcher := diagnose.NewDispatcher(diagnose.Options{
			RunID:            engine.RunID(),
			Sample:           cfg.Diagnose.Sample,
			Spindump:         cfg.Diagnose.Spindump,
			SystemWide:       cfg.Diagnose.SystemWide,
			SampleDuration:   cfg.Diagnose.SampleDuration,
			SpindumpDuration: cfg.Diagnose.SpindumpDuration,
			SpindumpInterval: cfg.Diagnose.SpindumpInterval,
			Timeout:          cfg.Diagnose.Timeout,
			OutputDir:        cfg.Diagnose.OutputDir,
		}, diagCh)
		engine.SetDispatcher(dispatcher)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := engine.Start(ctx); err != nil {
		log.Printf("monitor: %v", err)
		return exitStartup
	}

	if engine.HungEvents() > 0 {
		return exitHung
	}
	return exitOK
}

func filterFromConfig(cfg *config.Config) monitor.Filter {
	return monitor.Filter{
		PIDs:           cfg.Monitor.PIDs,
		NameContains:   cfg.Monitor.NameFilter,
		ForegroundOnly: cfg.Monitor.ForegroundOnly,
	}
}

func parsePIDs(list string) ([]int32, error) {
	var pids []int32
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.ParseInt(part, 10, 32)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid pid %q", part)
		}
		pids = append(pids, int32(n))
	}
	return pids, nil
}

func displayName(s procstate.Snapshot) string {
	if s.BundleID != "" {
		return fmt.Sprintf("%s (%s)", s.Name, s.BundleID)
	}
	return s.Name
}

// consoleEmitter logs engine output to the standard logger.
type consoleEmitter struct{}

func (consoleEmitter) RunStart(info monitor.RunInfo) {
	log.Printf("[run] %s started, poll=%s push=%v", info.RunID, info.Interval, info.PushActive)
}

func (consoleEmitter) Event(ev procstate.Event) {
	switch ev.Kind {
	case procstate.BecameHung:
		log.Printf("[hung] %s (pid %d) stopped responding", ev.Name, ev.PID)
	case procstate.BecameResponsive:
		log.Printf("[recovered] %s (pid %d) responding again", ev.Name, ev.PID)
	case procstate.ProcessExited:
		log.Printf("[exit] %s (pid %d) gone", ev.Name, ev.PID)
	}
}

func (consoleEmitter) DiagBatch(batch diagnose.BatchResult) {
	for _, r := range batch.Results {
		if r.OK() {
			log.Printf("[diag] %s pid=%d -> %s (%s)", r.Tool, r.PID, r.OutputPath, r.Elapsed.Round(time.Millisecond))
		} else {
			log.Printf("[diag] %s pid=%d failed: %s", r.Tool, r.PID, r.Err)
		}
	}
}

func (consoleEmitter) RunStop(summary monitor.RunSummary) {
	log.Printf("[run] %s stopped after %s, %d hung events",
		summary.RunID, summary.Duration.Round(time.Second), summary.HungEvents)
}

// multiEmitter fans engine output out to several emitters in order.
type multiEmitter []monitor.Emitter

func (m multiEmitter) RunStart(info monitor.RunInfo) {
	for _, e := range m {
		e.RunStart(info)
	}
}

func (m multiEmitter) Event(ev procstate.Event) {
	for _, e := range m {
		e.Event(ev)
	}
}

func (m multiEmitter) DiagBatch(batch diagnose.BatchResult) {
	for _, e := range m {
		e.DiagBatch(batch)
	}
}

func (m multiEmitter) RunStop(summary monitor.RunSummary) {
	for _, e := range m {
		e.RunStop(summary)
	}
}
