package extract

import (
	"bufio"
	"regexp"
	"strings"

	"github.com/Quok-it/benchmarking/internal/bench"
)

// DLNetworks is the catalog of networks the DL suite reports. Sections for any
// other name are skipped.
var DLNetworks = []string{
	"MobileNet-V2",
	"Inception-V3",
	"Inception-V4",
	"Inception-ResNet-V2",
	"ResNet-V2-50",
	"ResNet-V2-152",
	"VGG-16",
	"SRCNN 9-5-5",
	"VGG-19 Super-Res",
	"ResNet-SRGAN",
	"ResNet-DPED",
	"U-Net",
	"Nvidia-SPADE",
	"ICNet",
	"PSPNet",
	"DeepLab",
	"Pixel-RNN",
	"LSTM-Sentiment",
	"GNMT-Translation",
}

var dlCatalog = func() map[string]bool {
	m := make(map[string]bool, len(DLNetworks))
	for _, name := range DLNetworks {
		m[name] = true
	}
	return m
}()

var (
	dlHeaderRE = regexp.MustCompile(`^\s*(\d+)/(\d+)\.\s+(.+?)\s*$`)
	dlTimingRE = regexp.MustCompile(`(?i)^\s*(\d+\.\d+)\s*-\s*(inference|training)\s*\|\s*(.*?):\s*([0-9.]+)\s*(?:±\s*([0-9.]+))?\s*ms`)
	dlScoreRE  = regexp.MustCompile(`(?i)Device\s+(Inference|Training|AI)\s+Score:\s*(\d+)`)
)

// DLSuite scans the sweep once. A numbered header selects the current
// network; timing lines belong to the most recent header above them. Timings
// before the first header, or under a network outside DLNetworks, are dropped.
func DLSuite(text string) (bench.DLSuiteResult, error) {
	out := bench.DLSuiteResult{Models: map[string]bench.DLModelResult{}}
	p := fieldParser{t: bench.TypeDLSuite}
	current := ""

	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()

		if m := dlHeaderRE.FindStringSubmatch(line); m != nil {
			current = ""
			if dlCatalog[m[3]] {
				current = m[3]
				model := out.Models[current]
				model.Index = p.toInt("index", m[1])
				out.Models[current] = model
			}
			continue
		}

		if m := dlTimingRE.FindStringSubmatch(line); m != nil {
			if current == "" {
				continue
			}
			timing := bench.DLTiming{
				Test:   m[1],
				Params: strings.TrimSpace(m[3]),
				MeanMS: p.toFloat(current+".mean_ms", m[4]),
			}
			if m[5] != "" {
				std := p.toFloat(current+".std_ms", m[5])
				timing.StdMS = &std
			}
			model := out.Models[current]
			if strings.EqualFold(m[2], "inference") {
				model.Inference = append(model.Inference, timing)
			} else {
				model.Training = append(model.Training, timing)
			}
			out.Models[current] = model
			continue
		}

		if m := dlScoreRE.FindStringSubmatch(line); m != nil {
			score := p.toFloat(strings.ToLower(m[1])+"_score", m[2])
			switch strings.ToLower(m[1]) {
			case "inference":
				out.InferenceScore = &score
			case "training":
				out.TrainingScore = &score
			default:
				out.AIScore = &score
			}
		}
	}
	if err := sc.Err(); err != nil {
		return bench.DLSuiteResult{}, err
	}
	if p.err != nil {
		return bench.DLSuiteResult{}, p.err
	}
	return out, nil
}
