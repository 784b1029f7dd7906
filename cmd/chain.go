package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/rualca/librarian-agent/internal/agent"
	"github.com/spf13/cobra"
)

var chainCmd = &cobra.Command{
	Use:   "chain",
	Short: "Run multi-agent chains on the agent server",
}

var chainListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the built-in chains",
	Args:  cobra.NoArgs,
	RunE:  runChainList,
}

var chainRunCmd = &cobra.Command{
	Use:   "run <name> <prompt>",
	Short: "Run a chain, passing each agent's output to the next",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runChainRun,
}

func init() {
	chainCmd.AddCommand(chainListCmd, chainRunCmd)
	rootCmd.AddCommand(chainCmd)
}

func runChainList(_ *cobra.Command, _ []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  NAME\tAGENTS\tDESCRIPTION")
	for _, c := range agent.Chains() {
		fmt.Fprintf(w, "  %s\t%s\t%s\n", c.Name, strings.Join(c.Agents, " → "), c.Description)
	}
	return w.Flush()
}

func runChainRun(_ *cobra.Command, args []string) error {
	steps, err := agent.LookupChain(args[0])
	if err != nil {
		return err
	}
	a, err := loadApp()
	if err != nil {
		return err
	}
	client := a.agentClient()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := client.Health(ctx); err != nil {
		return fmt.Errorf("agent server not reachable at %s: %w", a.cfg.Agent.BaseURL, err)
	}

	printInfo(args[0], fmt.Sprintf("running %d step(s)", len(steps)))
	res := agent.ExecuteChain(ctx, client, strings.Join(args[1:], " "), steps, a.log)
	if res.Output != "" {
		fmt.Println()
		fmt.Println(res.Output)
		fmt.Println()
	}
	if !res.Success {
		printErr(args[0], fmt.Sprintf("failed at step %q after %d/%d step(s)", res.FailedStep, res.StepsCompleted, res.StepsTotal))
		return res.Err
	}
	printOK(args[0], fmt.Sprintf("%d/%d steps completed", res.StepsCompleted, res.StepsTotal))
	return nil
}
