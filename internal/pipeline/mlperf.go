package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	mlperfResultsGlob = "get-mlperf-inference-results-*"
	mlperfSummaryName = "mlperf_log_summary.txt"
)

var errNoMLPerfResults = errors.New("no mlperf results directory")

// MLPerfResultsRoot returns the single results directory under cacheDir.
// More than one is an error; the operator has to clean up first.
func MLPerfResultsRoot(cacheDir string) (string, error) {
	candidates, err := filepath.Glob(filepath.Join(expandHome(cacheDir), mlperfResultsGlob))
	if err != nil {
		return "", fmt.Errorf("glob mlperf results: %w", err)
	}
	switch len(candidates) {
	case 0:
		return "", fmt.Errorf("%w under %s", errNoMLPerfResults, cacheDir)
	case 1:
		return candidates[0], nil
	default:
		return "", fmt.Errorf("multiple %s directories under %s, please clean up: %v", mlperfResultsGlob, cacheDir, candidates)
	}
}

// LatestMLPerfSummary returns the most recently modified offline performance
// summary for model across every test_results directory under root.
func LatestMLPerfSummary(root, model string) (string, error) {
	pattern := filepath.Join(root, "test_results", "*", model, "offline", "performance", "run_*", mlperfSummaryName)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", fmt.Errorf("glob mlperf summaries: %w", err)
	}
	var (
		latest   string
		latestAt int64 = -1
	)
	for _, path := range matches {
		fi, err := os.Stat(path)
		if err != nil || fi.IsDir() {
			continue
		}
		if at := fi.ModTime().UnixNano(); at > latestAt {
			latest, latestAt = path, at
		}
	}
	if latest == "" {
		return "", fmt.Errorf("no %s found for model %s", mlperfSummaryName, model)
	}
	return latest, nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
