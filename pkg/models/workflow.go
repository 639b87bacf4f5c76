package models

import "time"

// Workflow is the bookkeeping description of the scheduled job: which
// tasks run, in what order, and when.
type Workflow struct {
	ID          string    `yaml:"id"`
	Description string    `yaml:"description"`
	Owner       string    `yaml:"owner"`
	StartDate   time.Time `yaml:"start_date"`
	Schedule    string    `yaml:"schedule"`
	Timezone    string    `yaml:"timezone"`
	Catchup     bool      `yaml:"catchup"`
	Retries     int       `yaml:"retries"`
	RetryDelay  string    `yaml:"retry_delay"`
	Tasks       []Task    `yaml:"tasks"`
}

// Task is one unit of work in a workflow. Upstream lists the tasks that must
// succeed first.
type Task struct {
	ID       string   `yaml:"id"`
	Upstream []string `yaml:"upstream,omitempty"`
}
