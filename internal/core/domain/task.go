package domain

// TaskStatus is the lifecycle state of a download task.
type TaskStatus int

const (
	TaskQueued TaskStatus = iota
	TaskDownloading
	TaskCompleted
	TaskFailed
	TaskCancelled
)

// String returns a stable name for logging and metrics labels.
func (s TaskStatus) String() string {
	switch s {
	case TaskQueued:
		return "queued"
	case TaskDownloading:
		return "downloading"
	case TaskCompleted:
		return "completed"
	case TaskFailed:
		return "failed"
	case TaskCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state is absorbing. No transition leaves a
// terminal state.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskCancelled:
		return true
	default:
		return false
	}
}

// DownloadTask is an immutable snapshot of a queued fetch. Progress values
// observed across successive snapshots of the same task are monotonically
// non-decreasing until a terminal state is reached.
type DownloadTask struct {
	ID         string        `json:"id"`
	RemotePath string        `json:"remote_path"`
	FileName   string        `json:"file_name"`
	Server     string        `json:"server"`
	Progress   float64       `json:"progress"`
	Status     TaskStatus    `json:"status"`
	Err        *NetworkError `json:"-"`
}
