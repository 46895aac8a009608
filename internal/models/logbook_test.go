package models

import (
	"testing"
	"time"
)

func TestVerificationRecordStatus(t *testing.T) {
	decided := time.Now()

	testCases := []struct {
		name          string
		decidedAt     *time.Time
		approved      bool
		expectDecided bool
		expectStatus  string
	}{
		{"pending", nil, false, false, "Pending"},
		{"approved", &decided, true, true, "Approved"},
		{"rejected", &decided, false, true, "Rejected"},
		// Approved without a decision timestamp is still pending.
		{"approved flag without timestamp", nil, true, false, "Pending"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			record := &VerificationRecord{
				Approved:  tc.approved,
				DecidedAt: tc.decidedAt,
			}

			if record.Decided() != tc.expectDecided {
				t.Errorf("Expected Decided() %v, got %v", tc.expectDecided, record.Decided())
			}
			if record.Status() != tc.expectStatus {
				t.Errorf("Expected Status() %q, got %q", tc.expectStatus, record.Status())
			}
		})
	}
}
