package interfaces

// SchedulerService runs periodic re-ingestion on a cron schedule
type SchedulerService interface {
	// Start begins the cron loop; no-op when scheduling is disabled
	Start() error

	// Stop halts the cron loop and waits for a running job to finish
	Stop()
}
