package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"

	"github.com/fleetdeck/fleetdeck/internal/console"
)

var (
	app   = kingpin.New("fleetdeck", "Fleet operations console")
	owner = app.Flag("owner", "Owner whose collections to operate on").Envar("FLEETDECK_OWNER").String()

	// Task commands
	taskCmd = app.Command("task", "Task management commands")

	taskListCmd = taskCmd.Command("list", "List tasks")

	taskShowCmd = taskCmd.Command("show", "Show task details")
	taskShowID  = taskShowCmd.Arg("id", "Task ID").Required().String()

	taskCreateCmd      = taskCmd.Command("create", "Create a new task")
	taskCreateName     = taskCreateCmd.Arg("name", "Task name").Required().String()
	taskCreateDesc     = taskCreateCmd.Flag("description", "Task description").String()
	taskCreateSkill    = taskCreateCmd.Flag("skill", "Skill the task requires").String()
	taskCreatePriority = taskCreateCmd.Flag("priority", "Priority (low, medium, high, urgent)").Default("medium").String()
	taskCreateTrigger  = taskCreateCmd.Flag("trigger", "Trigger kind").Default("manual").String()
	taskCreateStart    = taskCreateCmd.Flag("start", "Schedule start (YYYY-MM-DD HH:MM:SS)").String()
	taskCreateEnd      = taskCreateCmd.Flag("end", "Schedule end (YYYY-MM-DD HH:MM:SS)").String()
	taskCreateRepeat   = taskCreateCmd.Flag("repeat", "Repeat type (none, by_seconds, by_minutes, by_hours, by_days, by_weeks, by_months, by_years)").Default("none").String()
	taskCreateEvery    = taskCreateCmd.Flag("every", "Repeat count").Default("1").Int()
	taskCreateTimeout  = taskCreateCmd.Flag("timeout", "Run timeout in seconds").Default("3600").Int()

	taskRunCmd = taskCmd.Command("run", "Start or resume a task")
	taskRunID  = taskRunCmd.Arg("id", "Task ID").Required().String()

	taskPauseCmd = taskCmd.Command("pause", "Pause a working task")
	taskPauseID  = taskPauseCmd.Arg("id", "Task ID").Required().String()

	taskCancelCmd = taskCmd.Command("cancel", "Cancel a task")
	taskCancelID  = taskCancelCmd.Arg("id", "Task ID").Required().String()

	// Vehicle commands
	vehicleCmd = app.Command("vehicle", "Vehicle roster commands")

	vehicleListCmd = vehicleCmd.Command("list", "List vehicles")

	vehicleStatusCmd   = vehicleCmd.Command("status", "Update a vehicle's status")
	vehicleStatusID    = vehicleStatusCmd.Arg("id", "Vehicle ID").Required().String()
	vehicleStatusValue = vehicleStatusCmd.Arg("status", "New status").Required().String()

	// Tool commands
	toolCmd = app.Command("tool", "Tool catalog commands")

	toolListCmd      = toolCmd.Command("list", "List tools")
	toolListCategory = toolListCmd.Flag("category", "Filter by category").String()
	toolListTag      = toolListCmd.Flag("tag", "Filter by tag").String()
	toolListEnabled  = toolListCmd.Flag("enabled", "Only enabled tools").Bool()

	// Provider commands
	providerCmd = app.Command("provider", "Model provider commands")

	providerListCmd = providerCmd.Command("list", "List providers")

	providerTestCmd = providerCmd.Command("test", "Probe a provider's endpoint")
	providerTestID  = providerTestCmd.Arg("id", "Provider ID").Required().String()

	refreshCmd = app.Command("refresh", "Force-refresh all cached collections")
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := console.New(*owner)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := dispatch(ctx, c, command); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func dispatch(ctx context.Context, c *console.Console, command string) error {
	switch command {
	case taskListCmd.FullCommand():
		return c.ListTasks(ctx)
	case taskShowCmd.FullCommand():
		return c.ShowTask(ctx, *taskShowID)
	case taskCreateCmd.FullCommand():
		return c.CreateTask(ctx, console.CreateTaskInput{
			Name:         *taskCreateName,
			Description:  *taskCreateDesc,
			Skill:        *taskCreateSkill,
			Priority:     *taskCreatePriority,
			Trigger:      *taskCreateTrigger,
			Start:        *taskCreateStart,
			End:          *taskCreateEnd,
			RepeatType:   *taskCreateRepeat,
			RepeatNumber: *taskCreateEvery,
			Timeout:      *taskCreateTimeout,
		})
	case taskRunCmd.FullCommand():
		return c.RunTask(ctx, *taskRunID)
	case taskPauseCmd.FullCommand():
		return c.PauseTask(ctx, *taskPauseID)
	case taskCancelCmd.FullCommand():
		return c.CancelTask(ctx, *taskCancelID)
	case vehicleListCmd.FullCommand():
		return c.ListVehicles(ctx)
	case vehicleStatusCmd.FullCommand():
		return c.UpdateVehicleStatus(ctx, *vehicleStatusID, *vehicleStatusValue)
	case toolListCmd.FullCommand():
		return c.ListTools(ctx, *toolListCategory, *toolListTag, *toolListEnabled)
	case providerListCmd.FullCommand():
		return c.ListProviders(ctx)
	case providerTestCmd.FullCommand():
		return c.TestProvider(ctx, *providerTestID)
	case refreshCmd.FullCommand():
		return c.Refresh(ctx)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}
