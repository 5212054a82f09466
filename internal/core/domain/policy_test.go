package domain

import (
	"testing"
	"time"
)

func TestRetryPolicyValidate(t *testing.T) {
	tests := []struct {
		name    string
		policy  RetryPolicy
		wantErr bool
	}{
		{"default preset", DefaultRetryPolicy(), false},
		{"aggressive preset", AggressiveRetryPolicy(), false},
		{"conservative preset", ConservativeRetryPolicy(), false},
		{"zero base delay", RetryPolicy{MaxRetries: 1, MaxDelay: time.Second, BackoffMultiplier: 2}, true},
		{"max below base", RetryPolicy{MaxRetries: 1, BaseDelay: time.Second, MaxDelay: time.Millisecond, BackoffMultiplier: 2}, true},
		{"multiplier below one", RetryPolicy{MaxRetries: 1, BaseDelay: time.Second, MaxDelay: time.Second, BackoffMultiplier: 0.5}, true},
		{"negative retries", RetryPolicy{MaxRetries: -1, BaseDelay: time.Second, MaxDelay: time.Second, BackoffMultiplier: 2}, true},
	}

	for _, tt := range tests {
		err := tt.policy.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: Validate() = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestBackoffGrowthAndCap(t *testing.T) {
	p := RetryPolicy{
		MaxRetries:        10,
		BaseDelay:         100 * time.Millisecond,
		MaxDelay:          1 * time.Second,
		BackoffMultiplier: 2.0,
	}

	tests := []struct {
		attempt int
		expect  time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{4, 1 * time.Second}, // capped
		{9, 1 * time.Second},
	}

	for _, tt := range tests {
		if got := p.Backoff(tt.attempt); got != tt.expect {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.expect)
		}
	}
}

func TestPolicyPreset(t *testing.T) {
	if _, err := PolicyPreset("default"); err != nil {
		t.Errorf("default preset: %v", err)
	}
	if _, err := PolicyPreset(""); err != nil {
		t.Errorf("empty preset should fall back to default: %v", err)
	}
	if _, err := PolicyPreset("nope"); err == nil {
		t.Error("expected error for unknown preset")
	}
}

func TestQualityOfflineFailsFast(t *testing.T) {
	p := QualityOffline.Apply(DefaultRetryPolicy())
	if p.MaxRetries != 0 {
		t.Errorf("offline policy MaxRetries = %d, want 0", p.MaxRetries)
	}
}

func TestQualityApplyKeepsDelayInvariant(t *testing.T) {
	base := RetryPolicy{
		MaxRetries:        1,
		BaseDelay:         100 * time.Millisecond,
		MaxDelay:          200 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
	for _, q := range []Quality{QualityExcellent, QualityGood, QualityPoor, QualityOffline} {
		p := q.Apply(base)
		if p.MaxDelay < p.BaseDelay {
			t.Errorf("%s: MaxDelay %v < BaseDelay %v", q, p.MaxDelay, p.BaseDelay)
		}
	}
}
