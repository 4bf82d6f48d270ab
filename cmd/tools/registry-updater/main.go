// cmd/tools/registry-updater/main.go
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"itinerary-workers/pkg/registry"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type paths struct {
	registry string
	config   string
}

func newRootCmd() *cobra.Command {
	p := &paths{}
	root := &cobra.Command{
		Use:   "registry-updater",
		Short: "Keep the task registry in step with the worker set",
		Long: `Checks configs/registry.json against the task types the worker manager
serves and the workers section of the config file, and validates job variables
against a task's input schema.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&p.registry, "registry", "configs/registry.json", "path to the registry file")
	root.PersistentFlags().StringVar(&p.config, "config", "configs/config.yaml", "path to the config file")

	root.AddCommand(newValidateCmd(p), newSyncCmd(p), newCheckCmd(p), newListCmd(p))
	return root
}

func newValidateCmd(p *paths) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the registry structure and compare it with the worker set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := registry.LoadRegistry(p.registry)
			if err != nil {
				return fmt.Errorf("failed to load registry: %w", err)
			}
			if err := reg.Check(); err != nil {
				return err
			}
			workers, err := loadWorkers(p.config)
			if err != nil {
				return err
			}

			drifts := Reconcile(reg, handlerTaskTypes, workers)
			for _, d := range drifts {
				cmd.Println(d.String())
			}
			if len(drifts) > 0 {
				return fmt.Errorf("registry drifted from the worker set in %d place(s)", len(drifts))
			}
			cmd.Printf("Registry matches %d workers.\n", len(handlerTaskTypes))
			return nil
		},
	}
}

func newSyncCmd(p *paths) *cobra.Command {
	var write bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Copy enabled, timeout and retries from the config into the registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := registry.LoadRegistry(p.registry)
			if err != nil {
				return fmt.Errorf("failed to load registry: %w", err)
			}
			workers, err := loadWorkers(p.config)
			if err != nil {
				return err
			}

			applied := Sync(reg, handlerTaskTypes, workers)
			if len(applied) == 0 {
				cmd.Println("Registry already in sync.")
				return nil
			}
			for _, d := range applied {
				cmd.Printf("%s: %s %s -> %s\n", d.TaskType, d.Field, d.Registry, d.Expected)
			}
			if !write {
				cmd.Println("Dry run; pass --write to save.")
				return nil
			}
			if err := saveRegistry(reg, p.registry); err != nil {
				return err
			}
			cmd.Printf("Saved %s.\n", p.registry)
			return nil
		},
	}
	cmd.Flags().BoolVar(&write, "write", false, "save the synced registry")
	return cmd
}

func newCheckCmd(p *paths) *cobra.Command {
	return &cobra.Command{
		Use:   "check <task-type> <variables.json>",
		Short: "Validate a job variables file against a task's input schema",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := registry.LoadRegistry(p.registry)
			if err != nil {
				return fmt.Errorf("failed to load registry: %w", err)
			}
			vars, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("failed to read variables: %w", err)
			}
			if err := reg.Validate(args[0], string(vars)); err != nil {
				return err
			}
			cmd.Printf("Variables accepted by %s.\n", args[0])
			return nil
		},
	}
}

func newListCmd(p *paths) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered task types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := registry.LoadRegistry(p.registry)
			if err != nil {
				return fmt.Errorf("failed to load registry: %w", err)
			}
			for _, a := range reg.Activities {
				cmd.Printf("%-20s enabled=%-5t timeout=%-4s retries=%d status=%s\n",
					a.TaskType, a.Enabled, a.Timeout, a.Retries, a.ImplementationStatus)
			}
			return nil
		},
	}
}

func saveRegistry(reg *registry.ActivityRegistry, path string) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}
