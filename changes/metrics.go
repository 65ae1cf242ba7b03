package changes

//
// Copyright (c) 2019 ARM Limited.
//
// SPDX-License-Identifier: MIT
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to
// deal in the Software without restriction, including without limitation the
// rights to use, copy, modify, merge, publish, distribute, sublicense, and/or
// sell copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.
//

import (
	"github.com/prometheus/client_golang/prometheus"

	. "github.com/PelionIoT/topologyd/topology"
)

var (
	prometheusChanges = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "topologyd",
		Subsystem: "changes",
		Name:      "changes",
		Help:      "Counts topology changes by outcome (committed, completed, cancelled, rejected)",
	}, []string{
		"outcome",
	})

	prometheusOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "topologyd",
		Subsystem: "changes",
		Name:      "operations",
		Help:      "Counts operations executed by the change driver by type and result",
	}, []string{
		"type",
		"result",
	})

	prometheusStuck = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "topologyd",
		Subsystem: "changes",
		Name:      "stuck",
		Help:      "Is 1 while the pending change is waiting on a failed operation",
	})
)

func init() {
	prometheus.MustRegister(prometheusChanges, prometheusOperations, prometheusStuck)
}

func prometheusRecordChange(outcome string) {
	prometheusChanges.With(prometheus.Labels{
		"outcome": outcome,
	}).Inc()
}

func prometheusRecordOperation(operationType OperationType, err error) {
	result := "success"

	if err != nil {
		result = "failure"
	}

	prometheusOperations.With(prometheus.Labels{
		"type":   string(operationType),
		"result": result,
	}).Inc()
}

func prometheusRecordStuck(stuck bool) {
	if stuck {
		prometheusStuck.Set(1)
	} else {
		prometheusStuck.Set(0)
	}
}
