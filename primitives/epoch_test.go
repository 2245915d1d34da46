package primitives

import "testing"

func TestIsSequentialSameEpoch(t *testing.T) {
	if !IsSequential(Epoch0, Epoch0) {
		t.Error("same epoch should be sequential (no-op transition)")
	}
}

func TestIsSequentialSingleStep(t *testing.T) {
	if !IsSequential(Epoch0, Epoch1) {
		t.Error("Epoch0 -> Epoch1 should be sequential")
	}
	if !IsSequential(Epoch1, Epoch2) {
		t.Error("Epoch1 -> Epoch2 should be sequential")
	}
}

func TestIsSequentialRejectsSkip(t *testing.T) {
	if IsSequential(Epoch0, Epoch2) {
		t.Error("Epoch0 -> Epoch2 skips a rung and must not be sequential")
	}
}

func TestIsSequentialRejectsRegression(t *testing.T) {
	if IsSequential(Epoch2, Epoch1) {
		t.Error("Epoch2 -> Epoch1 moves backward and must not be sequential")
	}
}

func TestIsSequentialRejectsBeyondMax(t *testing.T) {
	if IsSequential(Epoch2, Epoch2+1) {
		t.Error("advancing past the highest known epoch must not be sequential")
	}
}

func TestEpochString(t *testing.T) {
	cases := map[Epoch]string{
		EpochInvalid:  "invalid",
		EpochUnopened: "unopened",
		Epoch0:        "epoch_0",
		Epoch1:        "epoch_1",
		Epoch2:        "epoch_2",
	}
	for epoch, want := range cases {
		if got := epoch.String(); got != want {
			t.Errorf("Epoch(%d).String() = %q, want %q", epoch, got, want)
		}
	}
}
