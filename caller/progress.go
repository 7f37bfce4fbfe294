// halo: a haplotype-based variant caller for sequencing pipelines.
// Copyright (c) 2026 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/ExaScience/halo/blob/master/LICENSE.txt>.

package caller

import (
	"math"
	"sync"
	"time"

	logging "github.com/op/go-logging"
)

// A ProgressMeter tracks per-contig calling progress and estimates
// the time to completion from recent block durations.
type ProgressMeter struct {
	logger *logging.Logger

	mutex          sync.Mutex
	totalPositions int64
	donePositions  int64
	blockDurations []time.Duration
	lastTick       time.Time
}

// NewProgressMeter creates a meter over the given total number of
// reference positions.
func NewProgressMeter(logger *logging.Logger, totalPositions int64) *ProgressMeter {
	return &ProgressMeter{
		logger:         logger,
		totalPositions: totalPositions,
		lastTick:       time.Now(),
	}
}

// Advance records completion of a block of reference positions.
func (m *ProgressMeter) Advance(contig string, positions int64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	now := time.Now()
	m.blockDurations = append(m.blockDurations, now.Sub(m.lastTick))
	m.lastTick = now
	m.donePositions += positions
	if m.logger != nil {
		m.logger.Infof("%s: %.1f%% done, ETA %v", contig,
			100*float64(m.donePositions)/float64(m.totalPositions), m.eta())
	}
}

func meanDuration(durations []time.Duration) float64 {
	var total float64
	for _, d := range durations {
		total += float64(d)
	}
	return total / float64(len(durations))
}

func stdevDuration(durations []time.Duration, mean float64) float64 {
	if len(durations) < 2 {
		return 0
	}
	var total float64
	for _, d := range durations {
		diff := float64(d) - mean
		total += diff * diff
	}
	return math.Sqrt(total / float64(len(durations)-1))
}

// trimOutliers removes all copies of the global minimum, then
// everything outside two standard deviations of the remainder.
func trimOutliers(durations []time.Duration) []time.Duration {
	if len(durations) < 3 {
		return durations
	}
	min := durations[0]
	for _, d := range durations[1:] {
		if d < min {
			min = d
		}
	}
	trimmed := make([]time.Duration, 0, len(durations))
	for _, d := range durations {
		if d != min {
			trimmed = append(trimmed, d)
		}
	}
	if len(trimmed) == 0 {
		return durations
	}
	mean := meanDuration(trimmed)
	stdev := stdevDuration(trimmed, mean)
	low := math.Max(0, mean-2*stdev)
	high := mean + 2*stdev
	result := trimmed[:0]
	for _, d := range trimmed {
		if float64(d) >= low && float64(d) <= high {
			result = append(result, d)
		}
	}
	if len(result) == 0 {
		return trimmed
	}
	return result
}

// eta scales the trimmed-mean block duration by the remaining work
// fraction. Callers must hold the mutex.
func (m *ProgressMeter) eta() time.Duration {
	if m.donePositions == 0 || len(m.blockDurations) == 0 {
		return 0
	}
	trimmed := trimOutliers(m.blockDurations)
	mean := meanDuration(trimmed)
	remaining := m.totalPositions - m.donePositions
	if remaining < 0 {
		remaining = 0
	}
	positionsPerBlock := float64(m.donePositions) / float64(len(m.blockDurations))
	remainingBlocks := float64(remaining) / positionsPerBlock
	return time.Duration(mean * remainingBlocks)
}
