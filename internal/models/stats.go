package models

import "time"

// SystemStats is a point-in-time snapshot of host resource usage.
type SystemStats struct {
	CPUPercent    float64   `json:"cpuPercent"`
	MemoryPercent float64   `json:"memoryPercent"`
	MemoryUsedMB  uint64    `json:"memoryUsedMb"`
	MemoryTotalMB uint64    `json:"memoryTotalMb"`
	SampledAt     time.Time `json:"sampledAt"`
}
