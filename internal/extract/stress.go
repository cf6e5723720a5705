package extract

import (
	"regexp"
	"strings"

	"github.com/Quok-it/benchmarking/internal/bench"
)

var stressStatusRE = regexp.MustCompile(`(?i)GPU\s+(\d+):\s*(OK|FAIL|ERROR|.*)`)

// Stress maps each reported device index to its uppercased status. The last
// line for an index wins; devices without a line are absent.
func Stress(text string) bench.StressReport {
	report := bench.StressReport{}
	for _, line := range strings.Split(text, "\n") {
		m := stressStatusRE.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		status := strings.ToUpper(strings.TrimSpace(m[2]))
		if status == "" {
			continue
		}
		report[m[1]] = status
	}
	return report
}
