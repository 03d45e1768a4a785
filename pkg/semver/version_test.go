package semver

import "testing"

func TestIsMajorOnly(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"3", true},
		{"12", true},
		{"3.0", false},
		{"^3.0.0", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsMajorOnly(tt.in); got != tt.want {
			t.Errorf("semver:version_test - IsMajorOnly(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestIsExactVersion(t *testing.T) {
	if !IsExactVersion("9.1.0") || !IsExactVersion("9.1.0-rc.1") {
		t.Error("semver:version_test - expected exact versions to match")
	}
	if IsExactVersion("^9.1.0") || IsExactVersion("9") {
		t.Error("semver:version_test - ranges should not be exact versions")
	}
}

func TestExtractMajorFromRange(t *testing.T) {
	if got := ExtractMajorFromRange("9"); got != 9 {
		t.Errorf("semver:version_test - ExtractMajorFromRange(9) = %d", got)
	}
	if got := ExtractMajorFromRange(">=9.0.0"); got != -1 {
		t.Errorf("semver:version_test - ExtractMajorFromRange(>=9.0.0) = %d, want -1", got)
	}
	if got := ExtractMajorFromRange("99999999999999999999"); got != -1 {
		t.Errorf("semver:version_test - ExtractMajorFromRange of an overflowing major = %d, want -1", got)
	}
}

func TestMajor(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"1.4.2", 1, false},
		{"2.0.0-beta.1", 2, false},
		{" 3.1.0 ", 3, false},
		{"not-a-version", 0, true},
	}
	for _, tt := range tests {
		got, err := Major(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("semver:version_test - Major(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("semver:version_test - Major(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("semver:version_test - Major(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestSatisfiesRange(t *testing.T) {
	tests := []struct {
		version string
		rng     string
		want    bool
	}{
		{"9.2.0", "", true},
		{"9.2.0", "9", true},
		{"8.2.0", "9", false},
		{"9.2.0", ">=9.0.0 <10.0.0", true},
		{"10.0.0", ">=9.0.0 <10.0.0", false},
		{"9.1.3", "^9.1.0", true},
		{"9.1.3", "~9.0.0", false},
		{"garbage", "", false},
		{"9.2.0", "not a range", false},
		{"0.1.0", "99999999999999999999", false},
		{"0.1.0", "0", true},
		{"9.1.0", "9.1.0", true},
		{"9.1.1", "9.1.0", false},
		{"9.1.0-rc.1", "9.1.0-rc.1", true},
		{"9.1.0", "9.1.0-rc.1", false},
		{"9.1.0+build.7", "9.1.0", true},
	}
	for _, tt := range tests {
		if got := SatisfiesRange(tt.version, tt.rng); got != tt.want {
			t.Errorf("semver:version_test - SatisfiesRange(%q, %q) = %v, want %v", tt.version, tt.rng, got, tt.want)
		}
	}
}

func TestValidateRange_ExactVersion(t *testing.T) {
	if err := ValidateRange("9.1.0"); err != nil {
		t.Errorf("semver:version_test - exact version should be a valid range: %v", err)
	}
}

func TestValidateRange(t *testing.T) {
	for _, ok := range []string{"", "9", "^9.0.0", ">=9.0.0 <10.0.0"} {
		if err := ValidateRange(ok); err != nil {
			t.Errorf("semver:version_test - ValidateRange(%q) unexpected error: %v", ok, err)
		}
	}
	for _, bad := range []string{"not a range", "99999999999999999999"} {
		if err := ValidateRange(bad); err == nil {
			t.Errorf("semver:version_test - ValidateRange(%q) expected error", bad)
		}
	}
}
