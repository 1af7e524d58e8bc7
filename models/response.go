package models

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status    string    `json:"status"` // "healthy" or "degraded"
	Uptime    string    `json:"uptime"`
	PoolStats PoolStats `json:"pool_stats"`
	Version   string    `json:"version"`
}

// LegacyHealthResponse is the response for GET /health.
type LegacyHealthResponse struct {
	Status                    string `json:"status"`
	TotalWorkers              int    `json:"total_workers"`
	MaxConcurrency            int    `json:"max_concurrency"`
	AvailableConcurrencySlots int    `json:"available_concurrency_slots"`
}

// PoolStats reports the state of the worker identity pool.
type PoolStats struct {
	Workers        int            `json:"workers"`
	MaxConcurrency int            `json:"max_concurrency"`
	Active         int            `json:"active"`
	Available      int            `json:"available"`
	Resets         int64          `json:"resets"`
	Identities     []IdentityStat `json:"identities"`
}

// IdentityStat is a snapshot of one worker identity.
type IdentityStat struct {
	Index   int      `json:"index"`
	Profile string   `json:"profile"`
	Busy    bool     `json:"busy"`
	Uses    int64    `json:"uses"`
	Resets  int64    `json:"resets"`
	History []string `json:"history"`
}
