// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package nodenet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/common/expfmt"

	dto "github.com/prometheus/client_model/go"
)

var errMetricNotFound = errors.New("metric not found")

// GetMetrics returns the metrics exposed at [uri] as a map of metric family
// name to the metric family.
func GetMetrics(ctx context.Context, uri string) (map[string]*dto.MetricFamily, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := http.DefaultClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("failed to issue request: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	// Return an error for any non successful status code
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("received status code: %d", resp.StatusCode)
	}

	var parser expfmt.TextParser
	return parser.TextToMetricFamilies(resp.Body)
}

// GetMetricValue sums the samples of the named gauge, counter or untyped
// metric family.
func GetMetricValue(families map[string]*dto.MetricFamily, name string) (float64, error) {
	family, ok := families[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", errMetricNotFound, name)
	}
	var sum float64
	for _, metric := range family.GetMetric() {
		switch {
		case metric.Gauge != nil:
			sum += metric.GetGauge().GetValue()
		case metric.Counter != nil:
			sum += metric.GetCounter().GetValue()
		case metric.Untyped != nil:
			sum += metric.GetUntyped().GetValue()
		}
	}
	return sum, nil
}
