package domain

import "testing"

func TestCanTransitionLegalEdges(t *testing.T) {
	legal := []struct{ from, to Status }{
		{StatusDetected, StatusAnalyzing},
		{StatusDetected, StatusExpired},
		{StatusAnalyzing, StatusExecuting},
		{StatusAnalyzing, StatusExpired},
		{StatusExecuting, StatusCompleted},
		{StatusExecuting, StatusFailed},
	}

	for _, tc := range legal {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be legal", tc.from, tc.to)
		}
	}
}

func TestCanTransitionIllegalEdges(t *testing.T) {
	illegal := []struct{ from, to Status }{
		{StatusDetected, StatusExecuting},
		{StatusDetected, StatusCompleted},
		{StatusDetected, StatusFailed},
		{StatusAnalyzing, StatusDetected},
		{StatusAnalyzing, StatusCompleted},
		{StatusAnalyzing, StatusFailed},
		{StatusExecuting, StatusExpired},
		{StatusExecuting, StatusDetected},
		{StatusExecuting, StatusAnalyzing},
		{StatusCompleted, StatusDetected},
		{StatusCompleted, StatusFailed},
		{StatusFailed, StatusDetected},
		{StatusExpired, StatusDetected},
		{StatusExpired, StatusAnalyzing},
		{StatusDetected, StatusDetected},
	}

	for _, tc := range illegal {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be rejected", tc.from, tc.to)
		}
	}
}

func TestStatusClassification(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusFailed, StatusExpired} {
		if !s.Terminal() {
			t.Errorf("expected %s to be terminal", s)
		}
		if s.Active() {
			t.Errorf("expected %s not to be active", s)
		}
	}
	for _, s := range []Status{StatusDetected, StatusAnalyzing, StatusExecuting} {
		if s.Terminal() {
			t.Errorf("expected %s not to be terminal", s)
		}
		if !s.Active() {
			t.Errorf("expected %s to be active", s)
		}
	}
	if Status("bogus").Valid() {
		t.Error("expected unknown status to be invalid")
	}
}
