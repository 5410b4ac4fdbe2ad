package ml

import (
	"fmt"
	"sort"
	"strings"
)

type ClassMetrics struct {
	Label     int     `json:"label"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Report holds per-class precision, recall and F1 for a test partition.
type Report struct {
	Classes     []ClassMetrics `json:"classes"`
	Accuracy    float64        `json:"accuracy"`
	MacroAvg    ClassMetrics   `json:"macro_avg"`
	WeightedAvg ClassMetrics   `json:"weighted_avg"`
	Total       int            `json:"total"`
}

// Evaluate compares predicted labels against the truth. Classes are the
// union of both label sets; undefined ratios are reported as zero.
func Evaluate(yTrue, yPred []int) Report {
	seen := make(map[int]bool)
	for _, l := range yTrue {
		seen[l] = true
	}
	for _, l := range yPred {
		seen[l] = true
	}
	labels := make([]int, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Ints(labels)

	report := Report{Total: len(yTrue)}
	var correct int
	for i := range yTrue {
		if i < len(yPred) && yTrue[i] == yPred[i] {
			correct++
		}
	}
	if report.Total > 0 {
		report.Accuracy = float64(correct) / float64(report.Total)
	}

	for _, label := range labels {
		var truePositive, predictedPositive, actualPositive int
		for i := range yTrue {
			predicted := i < len(yPred) && yPred[i] == label
			if predicted {
				predictedPositive++
			}
			if yTrue[i] == label {
				actualPositive++
				if predicted {
					truePositive++
				}
			}
		}
		m := ClassMetrics{Label: label, Support: actualPositive}
		m.Precision = ratio(truePositive, predictedPositive)
		m.Recall = ratio(truePositive, actualPositive)
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		report.Classes = append(report.Classes, m)
	}

	report.MacroAvg = ClassMetrics{Label: -1, Support: report.Total}
	report.WeightedAvg = ClassMetrics{Label: -1, Support: report.Total}
	if n := len(report.Classes); n > 0 {
		for _, m := range report.Classes {
			report.MacroAvg.Precision += m.Precision / float64(n)
			report.MacroAvg.Recall += m.Recall / float64(n)
			report.MacroAvg.F1 += m.F1 / float64(n)
			if report.Total > 0 {
				w := float64(m.Support) / float64(report.Total)
				report.WeightedAvg.Precision += m.Precision * w
				report.WeightedAvg.Recall += m.Recall * w
				report.WeightedAvg.F1 += m.F1 * w
			}
		}
	}
	return report
}

// Class returns the metrics of one label.
func (r Report) Class(label int) (ClassMetrics, bool) {
	for _, m := range r.Classes {
		if m.Label == label {
			return m, true
		}
	}
	return ClassMetrics{}, false
}

// String renders the report as a fixed-width table.
func (r Report) String() string {
	const width = len("weighted avg")
	var b strings.Builder
	fmt.Fprintf(&b, "%*s  %9s %9s %9s %9s\n\n", width, "", "precision", "recall", "f1-score", "support")
	for _, m := range r.Classes {
		fmt.Fprintf(&b, "%*d  %9.2f %9.2f %9.2f %9d\n", width, m.Label, m.Precision, m.Recall, m.F1, m.Support)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%*s  %9s %9s %9.2f %9d\n", width, "accuracy", "", "", r.Accuracy, r.Total)
	fmt.Fprintf(&b, "%*s  %9.2f %9.2f %9.2f %9d\n", width, "macro avg", r.MacroAvg.Precision, r.MacroAvg.Recall, r.MacroAvg.F1, r.MacroAvg.Support)
	fmt.Fprintf(&b, "%*s  %9.2f %9.2f %9.2f %9d\n", width, "weighted avg", r.WeightedAvg.Precision, r.WeightedAvg.Recall, r.WeightedAvg.F1, r.WeightedAvg.Support)
	return b.String()
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
