// Package discovery reports the host name and the GPUs nvidia-smi can see.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Quok-it/benchmarking/internal/bench"
)

const queryTimeout = 10 * time.Second

// Runner executes a command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

type NvidiaSMI struct {
	logger *slog.Logger
	binary string
	run    Runner
}

func NewNvidiaSMI(logger *slog.Logger, binary string) *NvidiaSMI {
	if binary == "" {
		binary = "nvidia-smi"
	}
	return &NvidiaSMI{logger: logger, binary: binary, run: execRunner}
}

// WithRunner replaces the command runner.
func (n *NvidiaSMI) WithRunner(run Runner) *NvidiaSMI {
	n.run = run
	return n
}

// ListDevices never fails: when nvidia-smi is unavailable or its output does
// not parse, a single unknown device "0" is returned.
func (n *NvidiaSMI) ListDevices(ctx context.Context) []bench.Device {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	out, err := n.run(ctx, n.binary, "--query-gpu=name,uuid", "--format=csv,noheader,nounits")
	if err == nil {
		var devices []bench.Device
		devices, err = ParseQueryOutput(string(out))
		if err == nil && len(devices) > 0 {
			return devices
		}
		if err == nil {
			err = errors.New("no devices listed")
		}
	}
	n.logger.Warn("gpu discovery failed, using unknown device", "error", err)
	return []bench.Device{{ID: "0", Model: bench.UnknownModel, UUID: "unknown"}}
}

// ListModels returns the model names in `nvidia-smi -L` output.
func (n *NvidiaSMI) ListModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	out, err := n.run(ctx, n.binary, "-L")
	if err != nil {
		return nil, fmt.Errorf("nvidia-smi -L: %w", err)
	}
	return ParseModelList(string(out)), nil
}

// ParseQueryOutput reads "name, uuid" rows. Device ids are row positions.
func ParseQueryOutput(out string) ([]bench.Device, error) {
	var devices []bench.Device
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		idx := strings.LastIndex(line, ", ")
		if idx < 0 {
			return nil, fmt.Errorf("parse nvidia-smi row %q: want \"name, uuid\"", line)
		}
		devices = append(devices, bench.Device{
			ID:    strconv.Itoa(len(devices)),
			Model: strings.TrimSpace(line[:idx]),
			UUID:  strings.TrimSpace(line[idx+2:]),
		})
	}
	return devices, nil
}

var (
	geforceRE  = regexp.MustCompile(`NVIDIA\s+(GeForce\s+RTX\s+\d+)`)
	listLineRE = regexp.MustCompile(`(?m)^GPU\s+\d+:\s+(?:NVIDIA\s+)?(.+?)\s+\(UUID`)
)

// ParseModelList extracts model names, one per GPU line, in ReferenceName
// form.
func ParseModelList(out string) []string {
	var models []string
	for _, line := range strings.Split(out, "\n") {
		if m := geforceRE.FindStringSubmatch(line); m != nil {
			models = append(models, strings.Join(strings.Fields(m[1]), " "))
			continue
		}
		if m := listLineRE.FindStringSubmatch(line); m != nil {
			models = append(models, m[1])
		}
	}
	return models
}

// ReferenceName converts a model as nvidia-smi reports it to the key the
// reference dataset uses: GeForce RTX names lose the vendor prefix
// ("NVIDIA GeForce RTX 4090" becomes "GeForce RTX 4090").
func ReferenceName(model string) string {
	if m := geforceRE.FindStringSubmatch(model); m != nil {
		return strings.Join(strings.Fields(m[1]), " ")
	}
	return strings.TrimPrefix(strings.TrimSpace(model), "NVIDIA ")
}

// ReferenceModels maps models to their reference names, dropping duplicates
// and Unknown GPU. A node with eight identical GPUs yields one name. The
// result is sorted.
func ReferenceModels(models []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range models {
		name := ReferenceName(m)
		if name == "" || name == bench.UnknownModel || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Hostname returns override when set, else the OS host name.
func Hostname(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	name, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("resolve hostname: %w", err)
	}
	return name, nil
}
