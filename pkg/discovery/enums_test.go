package discovery

import "testing"

func TestServiceType(t *testing.T) {
	tests := []struct {
		st      ServiceType
		str     string
		service string
		valid   bool
	}{
		{ServiceTypeSTUN, "STUN", "_stun._udp", true},
		{ServiceTypeTURN, "TURN", "_turn._udp", true},
		{ServiceTypeUnknown, "Unknown", "", false},
		{ServiceType(99), "Unknown", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.str, func(t *testing.T) {
			if got := tt.st.String(); got != tt.str {
				t.Errorf("String() = %q, want %q", got, tt.str)
			}
			if got := tt.st.ServiceString(); got != tt.service {
				t.Errorf("ServiceString() = %q, want %q", got, tt.service)
			}
			if got := tt.st.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestParseServiceType(t *testing.T) {
	if got, err := ParseServiceType("stun"); err != nil || got != ServiceTypeSTUN {
		t.Errorf("ParseServiceType(stun) = %v, %v", got, err)
	}
	if got, err := ParseServiceType("turn"); err != nil || got != ServiceTypeTURN {
		t.Errorf("ParseServiceType(turn) = %v, %v", got, err)
	}
	if _, err := ParseServiceType("STUN"); err != ErrInvalidServiceType {
		t.Errorf("ParseServiceType(STUN) error = %v, want %v", err, ErrInvalidServiceType)
	}
}
