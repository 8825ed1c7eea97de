package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// HealthStatus orders from best to worst, so the larger of two statuses is
// the worse one.
type HealthStatus int

const (
	HealthStatusHealthy HealthStatus = iota + 1
	// HealthStatusDegraded means images are still served, e.g. from memory while Redis is down.
	HealthStatusDegraded
	HealthStatusUnhealthy
)

var statusNames = [...]string{
	HealthStatusHealthy:   "healthy",
	HealthStatusDegraded:  "degraded",
	HealthStatusUnhealthy: "unhealthy",
}

func (s HealthStatus) String() string {
	if s >= HealthStatusHealthy && int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "unknown"
}

// Worse returns the worse of s and o.
func (s HealthStatus) Worse(o HealthStatus) HealthStatus {
	return max(s, o)
}

func (s HealthStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *HealthStatus) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	for i, n := range statusNames {
		if n != "" && n == name {
			*s = HealthStatus(i)
			return nil
		}
	}
	return fmt.Errorf("unknown health status %q", name)
}

// HealthMetrics is the body of /healthz.
type HealthMetrics struct {
	Timestamp time.Time           `json:"timestamp"`
	Redis     RedisHealthMetrics  `json:"redis"`
	Memory    MemoryHealthMetrics `json:"memory"`
	Status    HealthStatus        `json:"status"`
}

type MemoryHealthMetrics struct {
	Status          HealthStatus `json:"status"`
	Available       bool         `json:"available"`
	EntryCount      int          `json:"entryCount"`
	SizeBytes       int64        `json:"sizeBytes"`
	MaxSizeBytes    int64        `json:"maxSizeBytes"`
	UsagePercentage float64      `json:"usagePercentage"`
	HitCount        int64        `json:"hitCount"`
	MissCount       int64        `json:"missCount"`
	HitRatio        float64      `json:"hitRatio"`
	EvictionCount   int64        `json:"evictionCount"`
}

//nolint:govet // field order follows the JSON output
type RedisHealthMetrics struct {
	DroppedWrites       int64        `json:"droppedWrites"`
	CircuitBreakerState string       `json:"circuitBreakerState"`
	PendingWrites       int          `json:"pendingWrites"`
	Status              HealthStatus `json:"status"`
	Enabled             bool         `json:"enabled"`
	Available           bool         `json:"available"`
}
