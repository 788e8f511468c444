package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/anstrom/lanscan/internal/config"
	"github.com/anstrom/lanscan/internal/scheduler"
	"github.com/anstrom/lanscan/internal/session"
)

// scheduleCmd represents the schedule command.
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage scheduled sessions",
	Long: `Manage the recurring sessions run by 'lanscan serve'. Entries are stored
in the config file under 'schedule' and use standard five field cron
expressions or descriptors such as @hourly and @every 30m. An entry without
networks scans the stored network list.`,
	Example: `  lanscan schedule list
  lanscan schedule add nightly "0 2 * * *"
  lanscan schedule add lab "@every 30m" 10.0.5.0/24
  lanscan schedule remove nightly
  lanscan schedule run nightly`,
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scheduled sessions",
	Args:  cobra.NoArgs,
	RunE:  runScheduleList,
}

var scheduleAddCmd = &cobra.Command{
	Use:   "add <name> <cron> [cidr...]",
	Short: "Add a scheduled session",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runScheduleAdd,
}

var scheduleRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a scheduled session",
	Args:  cobra.ExactArgs(1),
	RunE:  runScheduleRemove,
}

var scheduleRunCmd = &cobra.Command{
	Use:   "run <name>",
	Short: "Run a scheduled session now in the foreground",
	Args:  cobra.ExactArgs(1),
	RunE:  runScheduleRun,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
	scheduleCmd.AddCommand(scheduleListCmd)
	scheduleCmd.AddCommand(scheduleAddCmd)
	scheduleCmd.AddCommand(scheduleRemoveCmd)
	scheduleCmd.AddCommand(scheduleRunCmd)
}

func runScheduleList(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	jobs, err := plannedJobs(cfg.Schedule)
	if err != nil {
		return err
	}
	printJobs(cmd.OutOrStdout(), jobs)
	return nil
}

func runScheduleAdd(cmd *cobra.Command, args []string) error {
	path := getConfigFilePath()
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	entry := config.ScheduleEntry{Name: args[0], Cron: args[1], Networks: args[2:]}
	if _, err := plannedJobs(append(cfg.Schedule, entry)); err != nil {
		return err
	}
	cfg.Schedule = append(cfg.Schedule, entry)

	if err := cfg.Save(path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added schedule %q to %s\n", entry.Name, path)
	return nil
}

func runScheduleRemove(cmd *cobra.Command, args []string) error {
	path := getConfigFilePath()
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	kept := cfg.Schedule[:0]
	for _, e := range cfg.Schedule {
		if e.Name != args[0] {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(cfg.Schedule) {
		return fmt.Errorf("schedule %q not found", args[0])
	}
	cfg.Schedule = kept

	if err := cfg.Save(path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed schedule %q\n", args[0])
	return nil
}

func runScheduleRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := newEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer e.Close()

	sched := scheduler.NewScheduler(e.orchestrator, e.networks)
	if err := sched.AddEntries(cfg.Schedule); err != nil {
		return fmt.Errorf("invalid schedule: %w", err)
	}

	runner := scheduledRunner{Orchestrator: e.orchestrator, scheduler: sched, name: args[0]}
	snapshot, err := runSession(ctx, runner, nil, eventWriter(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	printSnapshot(cmd.OutOrStdout(), snapshot)
	return nil
}

// scheduledRunner starts sessions through a named schedule entry, so the
// entry's networks (or the stored list) are used instead of explicit ranges.
type scheduledRunner struct {
	*session.Orchestrator
	scheduler *scheduler.Scheduler
	name      string
}

func (r scheduledRunner) Start([]string) (string, error) {
	return r.scheduler.RunNow(r.name)
}

// plannedJobs validates entries the way serve would register them and
// returns their next run times. Nothing is started.
func plannedJobs(entries []config.ScheduleEntry) ([]scheduler.Job, error) {
	sched := scheduler.NewScheduler(nil, nil)
	if err := sched.AddEntries(entries); err != nil {
		return nil, err
	}
	return sched.Jobs(), nil
}

func printJobs(w io.Writer, jobs []scheduler.Job) {
	if len(jobs) == 0 {
		fmt.Fprintln(w, "No scheduled sessions.")
		return
	}

	table := tablewriter.NewWriter(w)
	table.Header("Name", "Cron", "Networks", "Next Run")
	for _, j := range jobs {
		networks := strings.Join(j.Networks, ", ")
		if networks == "" {
			networks = "(stored list)"
		}
		_ = table.Append([]string{j.Name, j.Cron, networks, j.NextRun.Local().Format(timeLayout)})
	}
	_ = table.Render()
}
