package console

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/fleetdeck/fleetdeck/internal/provider"
	"github.com/fleetdeck/fleetdeck/internal/task"
	"github.com/fleetdeck/fleetdeck/internal/tool"
	"github.com/fleetdeck/fleetdeck/internal/vehicle"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	faint  = color.New(color.Faint).SprintFunc()
)

func colorState(s task.RunState) string {
	switch s {
	case task.StateWorking:
		return green(string(s))
	case task.StateInputRequired:
		return yellow(string(s))
	case task.StateCanceled:
		return red(string(s))
	case task.StateCompleted:
		return cyan(string(s))
	default:
		return string(s)
	}
}

func colorVehicleStatus(s vehicle.Status) string {
	switch s {
	case vehicle.StatusAvailable:
		return green(string(s))
	case vehicle.StatusInService, vehicle.StatusCharging:
		return yellow(string(s))
	case vehicle.StatusMaintenance, vehicle.StatusOffline:
		return red(string(s))
	default:
		return string(s)
	}
}

func printWarning(msg string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", yellow("warning:"), msg)
}

func printTasks(tasks []task.Task) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPRIORITY\tTRIGGER\tSTATE")
	for _, t := range tasks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.ID, t.Name, t.Priority, t.Trigger, colorState(t.State.Top))
	}
	w.Flush()
}

func printTaskDetail(t task.Task) {
	fmt.Printf("%s %s\n", cyan(t.ID), t.Name)
	fmt.Printf("  owner:    %s\n", t.Owner)
	fmt.Printf("  priority: %s\n", t.Priority)
	fmt.Printf("  trigger:  %s\n", t.Trigger)
	fmt.Printf("  state:    %s\n", colorState(t.State.Top))
	if t.Description != "" {
		fmt.Printf("  about:    %s\n", t.Description)
	}
	if t.Skill != "" {
		fmt.Printf("  skill:    %s\n", t.Skill)
	}
	if t.Schedule != nil {
		s := t.Schedule
		fmt.Printf("  schedule: every %d %s(s) from %s", s.RepeatNumber, s.RepeatUnit, s.StartDateTime)
		if s.EndDateTime != nil && !s.EndDateTime.IsZero() {
			fmt.Printf(" until %s", s.EndDateTime)
		}
		fmt.Println()
		if t.Trigger == task.TriggerSchedule && s.RepeatType != task.RepeatNone {
			next, due := task.NextRuntime(*s, time.Now())
			line := task.NewWireTime(next).String()
			if due {
				line += " " + yellow("(due)")
			}
			fmt.Printf("  next run: %s\n", line)
		}
	}
	if t.LastRunAt != nil && !t.LastRunAt.IsZero() {
		fmt.Printf("  last run: %s\n", faint(t.LastRunAt.String()))
	}
}

func printVehicles(vehicles []vehicle.Vehicle) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tKIND\tSTATUS\tBATTERY\tLOCATION")
	for _, v := range vehicles {
		battery := "-"
		if v.Battery > 0 {
			battery = fmt.Sprintf("%d%%", v.Battery)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", v.ID, v.Name, v.Kind, colorVehicleStatus(v.Status), battery, v.Location)
	}
	w.Flush()
}

func printTools(tools []tool.Tool) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tTAGS\tENABLED")
	for _, t := range tools {
		enabled := red("no")
		if t.Enabled {
			enabled = green("yes")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.ID, t.Name, t.Category, strings.Join(t.Tags, ","), enabled)
	}
	w.Flush()
}

func printProviders(providers []provider.Provider) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tKIND\tMODEL\tBASE URL\tDEFAULT")
	for _, p := range providers {
		def := ""
		if p.Default {
			def = green("*")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Kind, p.Model, p.BaseURL, def)
	}
	w.Flush()
}

func printTestResult(id string, r provider.TestResult) {
	if r.OK {
		fmt.Printf("provider %s: %s (%dms)\n", id, green("ok"), r.LatencyMS)
		return
	}
	detail := r.Detail
	if detail == "" {
		detail = "probe failed"
	}
	fmt.Printf("provider %s: %s %s\n", id, red("failed"), detail)
}
