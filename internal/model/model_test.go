package model

import "testing"

func TestAircraftStateComplete(t *testing.T) {
	tests := []struct {
		name  string
		state AircraftState
		want  bool
	}{
		{"empty", AircraftState{}, false},
		{
			"missing velocity",
			AircraftState{Callsign: "UAL123", HasPosition: true, HasAltitude: true},
			false,
		},
		{
			"all seven fields",
			AircraftState{
				Callsign:    "UAL123",
				HasPosition: true,
				HasAltitude: true,
				HasVelocity: true,
			},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.Complete(); got != tt.want {
				t.Errorf("Complete() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestICAOHex(t *testing.T) {
	tests := []struct {
		icao uint32
		want string
	}{
		{0x000000, "000000"},
		{0xABC123, "ABC123"},
		{0xFFFFFF, "FFFFFF"},
	}

	for _, tt := range tests {
		if got := ICAOHex(tt.icao); got != tt.want {
			t.Errorf("ICAOHex(%06X) = %q, want %q", tt.icao, got, tt.want)
		}
	}
}
