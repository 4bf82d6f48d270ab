// cmd/tools/registry-updater/reconcile.go
package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"itinerary-workers/internal/common/config"
	"itinerary-workers/pkg/registry"

	ei "itinerary-workers/internal/workers/itinerary/export-itinerary"
	gi "itinerary-workers/internal/workers/itinerary/generate-itinerary"
	ni "itinerary-workers/internal/workers/itinerary/notify-itinerary"
	ri "itinerary-workers/internal/workers/itinerary/refine-itinerary"
)

// handlerTaskTypes are the task types the worker manager has handlers for.
var handlerTaskTypes = []string{gi.TaskType, ri.TaskType, ei.TaskType, ni.TaskType}

// Drift is one disagreement between the registry and the worker set or
// its configuration.
type Drift struct {
	TaskType string
	Field    string
	Registry string
	Expected string
}

func (d Drift) String() string {
	return fmt.Sprintf("%s: %s is %q, expected %q", d.TaskType, d.Field, d.Registry, d.Expected)
}

// loadWorkers reads only the workers section of a config file, so the
// tool runs without the secrets a full config load demands.
func loadWorkers(path string) (map[string]config.WorkerConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var workers map[string]config.WorkerConfig
	if err := v.UnmarshalKey("workers", &workers); err != nil {
		return nil, fmt.Errorf("failed to decode workers section: %w", err)
	}
	return workers, nil
}

// Reconcile lists every task type without a registry entry, every entry
// without a handler, and every entry whose enabled flag, timeout or
// retries differ from what the worker manager will run with.
func Reconcile(reg *registry.ActivityRegistry, taskTypes []string, workers map[string]config.WorkerConfig) []Drift {
	var drifts []Drift
	known := make(map[string]bool, len(taskTypes))

	for _, tt := range taskTypes {
		known[tt] = true
		activity, ok := reg.Find(tt)
		if !ok {
			drifts = append(drifts, Drift{TaskType: tt, Field: "entry", Registry: "missing", Expected: "present"})
			continue
		}
		drifts = append(drifts, compare(activity, workerFor(workers, tt))...)
	}

	for _, a := range reg.Activities {
		if !known[a.TaskType] {
			drifts = append(drifts, Drift{TaskType: a.TaskType, Field: "handler", Registry: "registered", Expected: "none"})
		}
	}

	sort.SliceStable(drifts, func(i, j int) bool {
		return drifts[i].TaskType < drifts[j].TaskType
	})
	return drifts
}

// Sync copies the enabled flag, timeout and retries the worker manager
// uses into the registry entries of taskTypes and returns what changed.
// Missing entries are left for a human to describe.
func Sync(reg *registry.ActivityRegistry, taskTypes []string, workers map[string]config.WorkerConfig) []Drift {
	var applied []Drift
	for _, tt := range taskTypes {
		activity, ok := reg.Find(tt)
		if !ok {
			continue
		}
		w := workerFor(workers, tt)
		changes := compare(activity, w)
		if len(changes) == 0 {
			continue
		}
		activity.Enabled = w.Enabled
		activity.Timeout = formatTimeout(config.GetDuration(w.Timeout))
		activity.Retries = w.MaxRetries
		applied = append(applied, changes...)
	}
	if len(applied) > 0 {
		reg.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	}
	return applied
}

func workerFor(workers map[string]config.WorkerConfig, taskType string) config.WorkerConfig {
	return config.GetWorkerConfig(&config.Config{Workers: workers}, taskType)
}

func compare(a *registry.Activity, w config.WorkerConfig) []Drift {
	var out []Drift
	if a.Enabled != w.Enabled {
		out = append(out, Drift{a.TaskType, "enabled", strconv.FormatBool(a.Enabled), strconv.FormatBool(w.Enabled)})
	}
	want := config.GetDuration(w.Timeout)
	if got, err := time.ParseDuration(a.Timeout); err != nil || got != want {
		out = append(out, Drift{a.TaskType, "timeout", a.Timeout, formatTimeout(want)})
	}
	if a.Retries != w.MaxRetries {
		out = append(out, Drift{a.TaskType, "retries", strconv.Itoa(a.Retries), strconv.Itoa(w.MaxRetries)})
	}
	return out
}

// formatTimeout drops the zero trailing units Duration.String keeps, so
// ten minutes reads "10m" as in the shipped registry.
func formatTimeout(d time.Duration) string {
	s := d.String()
	if strings.HasSuffix(s, "m0s") {
		s = strings.TrimSuffix(s, "0s")
	}
	if strings.HasSuffix(s, "h0m") {
		s = strings.TrimSuffix(s, "0m")
	}
	return s
}
