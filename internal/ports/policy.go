package ports

import "time"

// PollPolicy controls how long the catalog poller waits for a job.
type PollPolicy struct {
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

// RetryPolicy controls file downloads.
type RetryPolicy struct {
	MaxRetries  int           `yaml:"max_retries"`
	Sleep       time.Duration `yaml:"retry_sleep"`
	Concurrency int           `yaml:"concurrency"`
}
