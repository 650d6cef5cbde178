package probe

import "testing"

func TestStatusOrdering(t *testing.T) {
	ordered := []Status{StatusOK, StatusWarning, StatusCritical, StatusUnknown}
	for i := 1; i < len(ordered); i++ {
		if ordered[i-1].Compare(ordered[i]) != -1 {
			t.Errorf("expected %q < %q", ordered[i-1], ordered[i])
		}
		if ordered[i].Compare(ordered[i-1]) != 1 {
			t.Errorf("expected %q > %q", ordered[i], ordered[i-1])
		}
	}
	if StatusWarning.Compare(StatusWarning) != 0 {
		t.Error("expected status to compare equal to itself")
	}
}

func TestStatusExitCodeAndLabel(t *testing.T) {
	tests := []struct {
		status Status
		code   int
		label  string
	}{
		{StatusOK, 0, "OK"},
		{StatusWarning, 1, "WARNING"},
		{StatusCritical, 2, "CRITICAL"},
		{StatusUnknown, 3, "UNKNOWN"},
		{Status("bogus"), 3, "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.ExitCode(); got != tt.code {
				t.Errorf("expected exit code %d, got %d", tt.code, got)
			}
			if got := tt.status.Label(); got != tt.label {
				t.Errorf("expected label %q, got %q", tt.label, got)
			}
		})
	}
}
