package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mrdgen/internal/agent"
	"mrdgen/internal/mrd"
	"mrdgen/internal/runstate"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		cmdRun(os.Args[2:])
	case "status":
		cmdStatus(os.Args[2:])
	case "resume":
		cmdResume(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  mrdgen run --intent <text> [--config <file.yaml>] [--run-id <id>] [--state-dir <dir>] [--auto-approve]")
	fmt.Fprintln(os.Stderr, "  mrdgen status --state-dir <dir>")
	fmt.Fprintln(os.Stderr, "  mrdgen resume --state-dir <dir> (--approve | --reject) [--config <file.yaml>] [--reviewer <name>] [--notes <text>]")
}

func cmdRun(args []string) {
	var intent string
	var configPath string
	var runID string
	var stateDir string
	var autoApprove bool

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--intent":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--intent requires a value")
				os.Exit(1)
			}
			intent = args[i]
		case "--config":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--config requires a value")
				os.Exit(1)
			}
			configPath = args[i]
		case "--run-id":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--run-id requires a value")
				os.Exit(1)
			}
			runID = args[i]
		case "--state-dir":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--state-dir requires a value")
				os.Exit(1)
			}
			stateDir = args[i]
		case "--auto-approve":
			autoApprove = true
		default:
			fmt.Fprintf(os.Stderr, "unknown arg: %s\n", args[i])
			os.Exit(1)
		}
	}

	if intent == "" {
		usage()
		os.Exit(1)
	}

	cfg, err := loadRunConfig(configPath, stateDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	eng, err := agent.NewEngine(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if !autoApprove {
		// Without a human in this process, a high-risk escalation suspends
		// the run; decide later with `mrdgen resume`.
		if cfg.StateDir == "" {
			fmt.Fprintln(os.Stderr, "interactive review needs --state-dir to suspend to; pass --auto-approve to run unattended")
			os.Exit(1)
		}
		eng.Reviewer = agent.PendingReviewer{}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := eng.Run(ctx, runID, intent)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	exitForResult(cfg.StateDir, res)
}

func cmdStatus(args []string) {
	var stateDir string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--state-dir":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--state-dir requires a value")
				os.Exit(1)
			}
			stateDir = args[i]
		default:
			fmt.Fprintf(os.Stderr, "unknown arg: %s\n", args[i])
			os.Exit(1)
		}
	}
	if stateDir == "" {
		usage()
		os.Exit(1)
	}

	snap, err := runstate.LoadSnapshot(stateDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("run:   %s\n", snap.RunID)
	fmt.Printf("phase: %s\n", snap.Phase)
	if snap.State != "" {
		fmt.Printf("state: %s\n", snap.State)
	}
	if snap.LastEvent != "" {
		fmt.Printf("last:  %s at %s\n", snap.LastEvent, snap.LastEventAt.Format(time.RFC3339))
	}
	if snap.Diagnostic != "" {
		fmt.Printf("note:  %s\n", snap.Diagnostic)
	}
}

func cmdResume(args []string) {
	var stateDir string
	var configPath string
	var reviewer string
	var notes string
	var approve, reject bool

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--state-dir":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--state-dir requires a value")
				os.Exit(1)
			}
			stateDir = args[i]
		case "--config":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--config requires a value")
				os.Exit(1)
			}
			configPath = args[i]
		case "--reviewer":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--reviewer requires a value")
				os.Exit(1)
			}
			reviewer = args[i]
		case "--notes":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--notes requires a value")
				os.Exit(1)
			}
			notes = args[i]
		case "--approve":
			approve = true
		case "--reject":
			reject = true
		default:
			fmt.Fprintf(os.Stderr, "unknown arg: %s\n", args[i])
			os.Exit(1)
		}
	}
	if stateDir == "" || approve == reject {
		usage()
		os.Exit(1)
	}
	if reviewer == "" {
		reviewer = "cli"
	}

	snapshot, err := runstate.LoadSuspended(stateDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Resume under the same config the run started with, not the defaults.
	cfg, err := loadRunConfig(configPath, stateDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	eng, err := agent.NewEngine(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := eng.Resume(ctx, snapshot, agent.ReviewDecision{
		Approved:   approve,
		Reviewer:   reviewer,
		Notes:      notes,
		DecisionID: agent.NewDecisionID(),
		DecidedAt:  time.Now().UTC(),
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	exitForResult(stateDir, res)
}

// loadRunConfig resolves the effective config for run and resume alike:
// file config when given, defaults otherwise, with --state-dir overriding.
func loadRunConfig(configPath, stateDir string) (agent.Config, error) {
	cfg := agent.DefaultConfig()
	if configPath != "" {
		loaded, err := agent.LoadConfig(configPath)
		if err != nil {
			return agent.Config{}, err
		}
		cfg = loaded
	}
	if stateDir != "" {
		cfg.StateDir = stateDir
	}
	return cfg, nil
}

func renderDocument(doc *mrd.Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

func exitForResult(stateDir string, res *agent.Result) {
	if res.Suspended {
		fmt.Fprintf(os.Stderr, "run %s suspended for review; decide with: mrdgen resume --state-dir %s --approve|--reject\n", res.RunID, stateDir)
		os.Exit(3)
	}
	if res.Status == runstate.FinalCompleted {
		fmt.Fprintf(os.Stderr, "run %s completed after %d research pass(es)\n", res.RunID, res.Attempts)
		if stateDir != "" {
			fmt.Fprintf(os.Stderr, "document: %s/mrd.json\n", stateDir)
		} else {
			// No state dir to hold mrd.json, so stdout is the only place the
			// document can go.
			b, err := renderDocument(res.Document)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			fmt.Println(string(b))
		}
		os.Exit(0)
	}
	fmt.Fprintf(os.Stderr, "run %s failed in %s (%s): %s\n", res.RunID, res.FailedState, res.FailureCategory, res.Diagnostic)
	os.Exit(2)
}
