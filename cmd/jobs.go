package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"

	"github.com/rualca/librarian-agent/internal/config"
	"github.com/rualca/librarian-agent/internal/jobs"
	"github.com/spf13/cobra"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List, run or schedule the vault maintenance jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the maintenance jobs and their schedules",
	Args:  cobra.NoArgs,
	RunE:  runJobsList,
}

var jobsRunCmd = &cobra.Command{
	Use:   "run <name>",
	Short: "Run one job now through the agent server",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsRun,
}

var jobsServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run jobs at their scheduled times until interrupted",
	Args:  cobra.NoArgs,
	RunE:  runJobsServe,
}

func init() {
	jobsCmd.AddCommand(jobsListCmd, jobsRunCmd, jobsServeCmd)
	rootCmd.AddCommand(jobsCmd)
}

func runJobsList(_ *cobra.Command, _ []string) error {
	reg := jobs.NewRegistry(jobs.DefaultJobs())
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  NAME\tAGENT\tSCHEDULE\tDESCRIPTION")
	for _, j := range reg.Jobs() {
		sched := j.Schedule.String()
		if !j.Enabled {
			sched = "disabled"
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", j.Name, j.Agent, sched, j.Description)
	}
	return w.Flush()
}

// jobRunner wires a Runner that prints job output to stdout.
func jobRunner(a *app) (*jobs.Runner, error) {
	dir, err := config.Dir()
	if err != nil {
		return nil, err
	}
	notify := jobs.NotifyFunc(func(_ context.Context, text string) error {
		_, err := fmt.Println(text)
		return err
	})
	return jobs.NewRunner(a.agentClient(), notify, filepath.Join(dir, "locks"), a.log), nil
}

func runJobsRun(_ *cobra.Command, args []string) error {
	job, err := jobs.NewRegistry(jobs.DefaultJobs()).Find(args[0])
	if err != nil {
		return err
	}
	a, err := loadApp()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := a.agentClient().Health(ctx); err != nil {
		return fmt.Errorf("agent server not reachable at %s: %w", a.cfg.Agent.BaseURL, err)
	}

	r, err := jobRunner(a)
	if err != nil {
		return err
	}
	printInfo(job.Name, fmt.Sprintf("running with agent %s", job.Agent))
	if _, err := r.Run(ctx, job); err != nil {
		if errors.Is(err, jobs.ErrJobRunning) {
			printSkip(job.Name, "already running")
			return nil
		}
		return err
	}
	return nil
}

func runJobsServe(_ *cobra.Command, _ []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	r, err := jobRunner(a)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := a.agentClient().Health(ctx); err != nil {
		printWarn("", fmt.Sprintf("agent server not reachable at %s; jobs will fail until it is up", a.cfg.Agent.BaseURL))
	}

	printInfo("", "job scheduler started (Ctrl+C to stop)")
	err = jobs.NewScheduler(jobs.NewRegistry(jobs.DefaultJobs()), r, a.log).Start(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
