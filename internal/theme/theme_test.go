package theme

import "testing"

func TestStateColor(t *testing.T) {
	tests := []struct {
		state string
		want  string
	}{
		{"hardware_wait", string(ColorHardware)},
		{"queued", string(ColorQueued)},
		{"in_session", string(ColorInSession)},
		{"bogus", string(ColorDefault)},
	}
	for _, tt := range tests {
		if got := string(StateColor(tt.state)); got != tt.want {
			t.Errorf("StateColor(%q) = %s, want %s", tt.state, got, tt.want)
		}
	}
}

func TestAlertColor(t *testing.T) {
	if AlertColor("danger") != ColorDanger {
		t.Error("danger alert not red")
	}
	if AlertColor("warning") != ColorWarning {
		t.Error("warning alert not amber")
	}
}
