package models

// DashboardStats holds the summary counters shown on the dashboard. All
// counters are zero for an empty store.
type DashboardStats struct {
	TotalEvidence     int64 `json:"totalEvidence"`
	Verified          int64 `json:"verified"`
	Tampered          int64 `json:"tampered"`
	ReportsGenerated  int64 `json:"reportsGenerated"`
	BlockchainSecured int64 `json:"blockchainSecured"`
}
