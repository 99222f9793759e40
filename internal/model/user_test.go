package model

import "testing"

func TestRoleAtLeast(t *testing.T) {
	tests := []struct {
		role     string
		minimum  string
		expected bool
	}{
		{RoleAdmin, RoleAdmin, true},
		{RoleAdmin, RoleManager, true},
		{RoleAdmin, RoleTechnician, true},
		{RoleManager, RoleAdmin, false},
		{RoleManager, RoleManager, true},
		{RoleManager, RoleTechnician, true},
		{RoleTechnician, RoleAdmin, false},
		{RoleTechnician, RoleManager, false},
		{RoleTechnician, RoleTechnician, true},
		// Unknown roles fail-closed.
		{"unknown", RoleTechnician, false},
		{RoleAdmin, "unknown", false},
		{"", "", false},
		{"", RoleTechnician, false},
	}

	for _, tt := range tests {
		got := RoleAtLeast(tt.role, tt.minimum)
		if got != tt.expected {
			t.Errorf("RoleAtLeast(%q, %q) = %v, want %v", tt.role, tt.minimum, got, tt.expected)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		password string
		wantErr  bool
	}{
		{"", true},
		{"short", true},
		{"1234567", true},
		{"12345678", false},
		{"a-valid-password", false},
	}

	for _, tt := range tests {
		err := ValidatePassword(tt.password)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidatePassword(%q) error = %v, wantErr %v", tt.password, err, tt.wantErr)
		}
	}
}

func TestNormalizeSerial(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"sn-001", "SN-001"},
		{"  ups-42 \t", "UPS-42"},
		{"ABC", "ABC"},
		{"   ", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeSerial(tt.in); got != tt.want {
			t.Errorf("NormalizeSerial(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidAssetStatus(t *testing.T) {
	for _, s := range AssetStatuses {
		if !ValidAssetStatus(s) {
			t.Errorf("expected %q to be valid", s)
		}
	}
	for _, s := range []string{"", "lost", "IN_STOCK"} {
		if ValidAssetStatus(s) {
			t.Errorf("expected %q to be invalid", s)
		}
	}
}
