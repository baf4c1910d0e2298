package errors

import (
	"testing"
)

func TestValidatePackageName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "base-types", false},
		{"valid with underscore", "tools_syskit", false},
		{"valid with dot", "utilrb.ext", false},
		{"valid nested", "drivers/orogen/iodrivers_base", false},

		{"empty", "", true},
		{"too long", string(make([]byte, 300)), true},
		{"path traversal ..", "foo/../bar", true},
		{"path traversal //", "foo//bar", true},
		{"null byte", "foo\x00bar", true},
		{"backslash", "foo\\bar", true},
		{"control char", "foo\x01bar", true},
		{"space", "foo bar", true},
		{"leading slash", "/foo", true},
		{"trailing slash", "foo/", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePackageName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePackageName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidPackage) {
				t.Errorf("ValidatePackageName(%q) code = %v, want %v", tt.input, GetCode(err), ErrCodeInvalidPackage)
			}
		})
	}
}

func TestValidateReleaseName(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"master-20.06", false},
		{"bionic", false},
		{"stable+1", false},
		{"", true},
		{"Master", true},
		{"-leading", true},
		{"with space", true},
		{"under_score", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			err := ValidateReleaseName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateReleaseName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateArch(t *testing.T) {
	for _, arch := range []string{"amd64", "arm64", "armhf", "i386", "kfreebsd-amd64"} {
		if err := ValidateArch(arch); err != nil {
			t.Errorf("ValidateArch(%q) = %v, want nil", arch, err)
		}
	}
	for _, arch := range []string{"", "AMD64", "x86_64", "-arm"} {
		if err := ValidateArch(arch); err == nil {
			t.Errorf("ValidateArch(%q) = nil, want error", arch)
		}
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"http://rock.example.org/apt", false},
		{"https://rubygems.org", false},
		{"", true},
		{"ftp://example.org", true},
		{"file:///etc/passwd", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			err := ValidateURL(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
