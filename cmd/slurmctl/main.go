// slurmctl is a command-line companion to slurmjobs-service for operating on
// jobs directly from a cluster login node.
//
//	slurmctl status  -job NAME
//	slurmctl wait    -job NAME [-timeout D] [-poll D]
//	slurmctl output  -job NAME -nodes N
//	slurmctl cancel  -job NAME
//	slurmctl cleanup -job NAME [-nodes N] [-wait]
//	slurmctl watch   -job NAME [-nodes N] [-auto-exit]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"slurmjobs/internal/config"
	"slurmjobs/internal/job"
	"slurmjobs/internal/scheduler"
	"slurmjobs/internal/tui"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	if err := run(os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "slurmctl:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: slurmctl <status|wait|output|cancel|cleanup|watch> [flags]")
}

type cmdOptions struct {
	configPath string
	jobName    string
	nodes      int
	baseDir    string
	timeout    time.Duration
	poll       time.Duration
	wait       bool
	autoExit   bool
}

func newFlagSet(name string) (*flag.FlagSet, *cmdOptions) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	opts := &cmdOptions{}
	fs.StringVar(&opts.configPath, "config", os.Getenv("CONFIG_FILE"), "path to YAML config file")
	fs.StringVar(&opts.jobName, "job", "", "job name (required)")
	fs.IntVar(&opts.nodes, "nodes", 1, "number of nodes the job was submitted with")
	fs.StringVar(&opts.baseDir, "base-dir", "", "override the job working directory root")
	fs.DurationVar(&opts.timeout, "timeout", 0, "wait deadline (default from config)")
	fs.DurationVar(&opts.poll, "poll", 0, "poll interval (default from config)")
	fs.BoolVar(&opts.wait, "wait", false, "wait for the job to finish before cleanup")
	fs.BoolVar(&opts.autoExit, "auto-exit", false, "exit the watch screen once the job is terminal")
	return fs, opts
}

func run(command string, args []string) error {
	fs, opts := newFlagSet(command)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.baseDir != "" {
		cfg.BaseDir = opts.baseDir
	}

	controller, err := job.NewController(job.Config{
		Client: scheduler.NewSlurm(scheduler.SlurmConfig{
			SqueuePath:  cfg.Scheduler.SqueuePath,
			ScancelPath: cfg.Scheduler.ScancelPath,
		}),
		BaseDir: cfg.BaseDir,
		DefaultWait: job.WaitOptions{
			PollInterval: cfg.Wait.PollInterval,
			MaxInterval:  cfg.Wait.MaxInterval,
			Timeout:      cfg.Wait.Timeout,
		},
	})
	if err != nil {
		return err
	}

	j, err := job.New(opts.jobName, opts.nodes)
	if err != nil {
		return err
	}

	// Ctrl-C aborts waits promptly instead of killing the process mid-write.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch command {
	case "status":
		return statusCmd(ctx, controller, j)
	case "wait":
		return waitCmd(ctx, controller, j, opts)
	case "output":
		return outputCmd(controller, j)
	case "cancel":
		return cancelCmd(ctx, controller, j)
	case "cleanup":
		return cleanupCmd(ctx, controller, j, opts.wait)
	case "watch":
		return watchCmd(controller, j, opts.autoExit)
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func statusCmd(ctx context.Context, controller *job.Controller, j job.Job) error {
	state, err := controller.Status(ctx, j)
	if err != nil {
		return err
	}
	if state.Terminal() {
		fmt.Printf("%s: terminal (not in queue)\n", j.Name)
		return nil
	}
	fmt.Printf("%s: active\n", j.Name)
	for _, row := range state.Rows {
		fmt.Println("  " + row)
	}
	return nil
}

func waitCmd(ctx context.Context, controller *job.Controller, j job.Job, opts *cmdOptions) error {
	start := time.Now()
	err := controller.WaitUntilDone(ctx, j, job.WaitOptions{
		PollInterval: opts.poll,
		Timeout:      opts.timeout,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("wait aborted")
		}
		return err
	}
	fmt.Printf("%s: terminal after %s\n", j.Name, time.Since(start).Round(time.Second))
	return nil
}

func outputCmd(controller *job.Controller, j job.Job) error {
	report := controller.Output(j)
	rendered := report.Render()
	fmt.Print(rendered)
	if !strings.HasSuffix(rendered, "\n") {
		fmt.Println()
	}

	found, missing, failed := report.Summary()
	fmt.Fprintf(os.Stderr, "%d file(s) read, %d missing, %d failed\n", found, missing, failed)
	if failed > 0 {
		return fmt.Errorf("some output files could not be read")
	}
	return nil
}

func cancelCmd(ctx context.Context, controller *job.Controller, j job.Job) error {
	if err := controller.Cancel(ctx, j); err != nil {
		return err
	}
	fmt.Printf("%s: cancellation requested\n", j.Name)
	return nil
}

func cleanupCmd(ctx context.Context, controller *job.Controller, j job.Job, wait bool) error {
	if err := controller.Cleanup(ctx, j, wait); err != nil {
		return err
	}
	fmt.Printf("%s: working directory removed\n", j.Name)
	return nil
}

func watchCmd(controller *job.Controller, j job.Job, autoExit bool) error {
	report, terminal, err := tui.Run(controller, j, autoExit)
	if err != nil {
		return err
	}
	if terminal {
		fmt.Print(report.Render())
	}
	return nil
}
