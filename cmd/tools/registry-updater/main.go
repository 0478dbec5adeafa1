// cmd/tools/registry-updater/main.go
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"fieldops-workers/internal/common/config"
	"fieldops-workers/pkg/registry"
)

const defaultRegistryPath = "pkg/registry/activities.json"

func main() {
	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "validate":
		err = runValidate(os.Args[2:])
	case "list":
		err = runList(os.Args[2:])
	case "update":
		err = runUpdate(os.Args[2:])
	case "check-input":
		err = runCheckInput(os.Args[2:])
	case "check-config":
		err = runCheckConfig(os.Args[2:])
	case "help":
		help()
	default:
		help()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func load(path string) (*registry.ActivityRegistry, error) {
	if path == "" {
		return registry.Default()
	}
	return registry.LoadRegistry(path)
}

func runValidate(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	path := fs.String("path", defaultRegistryPath, "Path to registry file")
	fs.Parse(args)

	reg, err := load(*path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	if err := reg.Validate(); err != nil {
		return fmt.Errorf("registry validation failed: %w", err)
	}
	fmt.Printf("Registry validation passed. Found %d activities.\n", len(reg.Activities))
	return nil
}

func runList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	path := fs.String("path", defaultRegistryPath, "Path to registry file")
	fs.Parse(args)

	reg, err := load(*path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	printActivities(os.Stdout, reg)
	return nil
}

func printActivities(out io.Writer, reg *registry.ActivityRegistry) {
	acts := append([]registry.Activity(nil), reg.Activities...)
	sort.Slice(acts, func(i, j int) bool { return acts[i].TaskType < acts[j].TaskType })

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TASK TYPE\tCATEGORY\tVERSION\tSTATUS\tTIMEOUT\tRETRIES")
	for _, a := range acts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\n",
			a.TaskType, a.Category, a.Version, a.ImplementationStatus, a.Timeout, a.Retries)
	}
	tw.Flush()
}

func runUpdate(args []string) error {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	path := fs.String("path", defaultRegistryPath, "Path to registry file")
	id := fs.String("id", "", "Activity ID to update")
	field := fs.String("field", "", "Field to update (status, version, description, timeout, retries)")
	value := fs.String("value", "", "New value for the field")
	fs.Parse(args)

	if *id == "" || *field == "" || *value == "" {
		fs.Usage()
		return fmt.Errorf("id, field, and value are required for update")
	}

	reg, err := registry.LoadRegistry(*path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	if err := updateActivity(reg, *id, *field, *value); err != nil {
		return err
	}
	if err := reg.Validate(); err != nil {
		return fmt.Errorf("update leaves registry invalid: %w", err)
	}
	reg.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	if err := saveRegistry(reg, *path); err != nil {
		return err
	}
	fmt.Printf("Updated activity %s, field %s to %s\n", *id, *field, *value)
	return nil
}

func updateActivity(reg *registry.ActivityRegistry, id, field, value string) error {
	for i := range reg.Activities {
		a := &reg.Activities[i]
		if a.ID != id {
			continue
		}
		switch field {
		case "status":
			a.ImplementationStatus = value
		case "version":
			a.Version = value
		case "description":
			a.Description = value
		case "timeout":
			if _, err := time.ParseDuration(value); err != nil {
				return fmt.Errorf("invalid timeout value: %w", err)
			}
			a.Timeout = value
		case "retries":
			retries, err := strconv.Atoi(value)
			if err != nil || retries < 0 {
				return fmt.Errorf("invalid retries value: %q", value)
			}
			a.Retries = retries
		default:
			return fmt.Errorf("unknown field: %s", field)
		}
		return nil
	}
	return fmt.Errorf("activity with ID %s not found", id)
}

// runCheckInput validates a job variables document against the input schema
// of a task type, the same way the worker does before executing.
func runCheckInput(args []string) error {
	fs := flag.NewFlagSet("check-input", flag.ExitOnError)
	path := fs.String("path", defaultRegistryPath, "Path to registry file")
	taskType := fs.String("taskType", "", "Task type whose input schema is used")
	file := fs.String("file", "-", "Variables JSON file, - for stdin")
	fs.Parse(args)

	if *taskType == "" {
		fs.Usage()
		return fmt.Errorf("taskType is required")
	}

	reg, err := load(*path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	act, ok := reg.Lookup(*taskType)
	if !ok {
		return fmt.Errorf("unknown task type %q", *taskType)
	}
	schema, err := act.InputValidator()
	if err != nil {
		return err
	}

	var data []byte
	if *file == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(*file)
	}
	if err != nil {
		return fmt.Errorf("read variables: %w", err)
	}

	res := schema.ValidateJSON(data)
	if !res.Valid {
		for _, msg := range res.GetErrorMessages() {
			fmt.Println("  " + msg)
		}
		return fmt.Errorf("%d validation error(s)", len(res.Errors))
	}
	fmt.Println("Input is valid.")
	return nil
}

// runCheckConfig reports workers configured without a registry entry and
// registry activities that no config entry enables.
func runCheckConfig(args []string) error {
	fs := flag.NewFlagSet("check-config", flag.ExitOnError)
	path := fs.String("path", defaultRegistryPath, "Path to registry file")
	cfgPath := fs.String("config", "configs/config.yaml", "Path to config file")
	fs.Parse(args)

	reg, err := load(*path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	cfg, err := config.LoadFromFile(*cfgPath)
	if err != nil {
		return err
	}

	problems := configMismatches(reg, cfg)
	for _, p := range problems {
		fmt.Println("  " + p)
	}
	if len(problems) > 0 {
		return fmt.Errorf("%d mismatch(es) between registry and config", len(problems))
	}
	fmt.Println("Config and registry agree.")
	return nil
}

func configMismatches(reg *registry.ActivityRegistry, cfg *config.Config) []string {
	var out []string
	for name := range cfg.Workers {
		if _, ok := reg.Lookup(name); !ok {
			out = append(out, fmt.Sprintf("worker %q is configured but not registered", name))
		}
	}
	for _, a := range reg.Activities {
		if _, ok := cfg.Workers[a.TaskType]; !ok {
			out = append(out, fmt.Sprintf("activity %q has no worker config (defaults apply)", a.TaskType))
		}
	}
	sort.Strings(out)
	return out
}

func saveRegistry(reg *registry.ActivityRegistry, path string) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}

func help() {
	fmt.Println(`
Usage: registry-updater <command> [flags]

Commands:
  validate      Validate the activity registry
  list          List registered activities
  update        Update an existing activity's field
  check-input   Validate job variables against an activity's input schema
  check-config  Compare configured workers with registered activities
  help          Show this help message

Examples:
  registry-updater validate
  registry-updater list -path pkg/registry/activities.json
  registry-updater update -id compute-dashboard -field timeout -value 60s
  registry-updater check-input -taskType compute-dashboard -file vars.json
  registry-updater check-config -config configs/config.yaml

Pass -path "" to use the registry compiled into the binary.`)
}
