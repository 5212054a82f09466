package domain

import "time"

// Quality is the reported tier of the current connection.
type Quality int

const (
	QualityExcellent Quality = iota
	QualityGood
	QualityPoor
	QualityOffline
)

// String returns a stable name for logging and metrics labels.
func (q Quality) String() string {
	switch q {
	case QualityExcellent:
		return "excellent"
	case QualityGood:
		return "good"
	case QualityPoor:
		return "poor"
	case QualityOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// Profile returns the (maxRetries, retryDelay) pair for the tier. Offline
// means fail fast: zero retries, no delay.
func (q Quality) Profile() (maxRetries int, retryDelay time.Duration) {
	switch q {
	case QualityExcellent:
		return 3, 500 * time.Millisecond
	case QualityGood:
		return 3, 1 * time.Second
	case QualityPoor:
		return 5, 3 * time.Second
	default:
		return 0, 0
	}
}

// Apply scales a base policy by the tier's profile. The base's multiplier and
// jitter settings are preserved; retry count and base delay come from the
// tier. Offline forces zero retries.
func (q Quality) Apply(base RetryPolicy) RetryPolicy {
	maxRetries, delay := q.Profile()
	p := base
	p.MaxRetries = maxRetries
	if delay > 0 {
		p.BaseDelay = delay
		if p.MaxDelay < p.BaseDelay {
			p.MaxDelay = p.BaseDelay
		}
	}
	return p
}
