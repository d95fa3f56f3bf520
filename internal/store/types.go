package store

import "time"

// RunRecord captures one invocation of the tool.
type RunRecord struct {
	ID               string    `json:"id"`
	Timestamp        time.Time `json:"timestamp"`
	Mode             string    `json:"mode"`
	ToolchainPath    string    `json:"toolchain_path,omitempty"`
	ToolchainVersion string    `json:"toolchain_version,omitempty"`
	Success          bool      `json:"success"`
	Duration         string    `json:"duration"`
	Error            string    `json:"error,omitempty"`
	Profile          string    `json:"profile,omitempty"`
}

// TargetRecord captures the result of one target build.
type TargetRecord struct {
	RunID     string    `json:"run_id"`
	Target    string    `json:"target"`
	Timestamp time.Time `json:"timestamp"`
	Success   bool      `json:"success"`
	Duration  string    `json:"duration"`
	Modules   []string  `json:"modules"`
	Jobs      int       `json:"jobs"`
	StderrLog string    `json:"stderr_log,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// DeviceRecord captures what happened to one connected device.
type DeviceRecord struct {
	RunID      string    `json:"run_id"`
	Serial     string    `json:"serial"`
	Product    string    `json:"product,omitempty"`
	Outcome    string    `json:"outcome"`
	Timestamp  time.Time `json:"timestamp"`
	Duration   string    `json:"duration"`
	Reason     string    `json:"reason,omitempty"`
	ConsoleLog string    `json:"console_log,omitempty"`
}
