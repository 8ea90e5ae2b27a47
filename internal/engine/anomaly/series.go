package anomaly

import (
	"math"
	"strings"

	"github.com/platformbuilds/becertain-core/internal/models"
)

// Series is one labelled time series extracted from a metric response.
type Series struct {
	Label      string
	Timestamps []float64
	Values     []float64
}

// Label keys checked in priority order when building a series label.
var labelPriority = []string{
	"service",
	"service_name",
	"service.name",
	"job",
	"instance",
	"pod",
	"namespace",
	"operation",
	"method",
	"status_code",
}

// IterSeries flattens a metric response into labelled (ts, vals) series.
// Unparsable samples become NaN pairs so downstream filters drop them
// jointly. Series without samples are skipped.
func IterSeries(resp *models.MetricResponse) []Series {
	if resp == nil {
		return nil
	}
	var out []Series
	for _, result := range resp.Data.Result {
		if len(result.Values) == 0 {
			continue
		}
		base := result.Metric["__name__"]
		if base == "" {
			base = "metric"
		}
		var parts []string
		for _, key := range labelPriority {
			value := strings.TrimSpace(result.Metric[key])
			if value == "" {
				continue
			}
			parts = append(parts, key+"="+value)
			if len(parts) >= 3 {
				break
			}
		}
		label := base
		if len(parts) > 0 {
			label = base + "{" + strings.Join(parts, ",") + "}"
		}

		ts := make([]float64, 0, len(result.Values))
		vals := make([]float64, 0, len(result.Values))
		for _, sample := range result.Values {
			v, err := sample.Float()
			if err != nil {
				ts = append(ts, math.NaN())
				vals = append(vals, math.NaN())
				continue
			}
			ts = append(ts, sample.Timestamp)
			vals = append(vals, v)
		}
		out = append(out, Series{Label: label, Timestamps: ts, Values: vals})
	}
	return out
}

// ServiceFromLabel extracts the service label value from a series label
// like `metric{service=payments,...}`.
func ServiceFromLabel(label string) string {
	open := strings.Index(label, "{")
	if open < 0 {
		return ""
	}
	body := strings.TrimSuffix(label[open+1:], "}")
	for _, part := range strings.Split(body, ",") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "service", "service_name", "service.name":
			return kv[1]
		}
	}
	return ""
}
