package errors

import (
	"strings"
	"testing"
)

func TestValidateGraphCount(t *testing.T) {
	tests := []struct {
		name    string
		input   int32
		wantErr bool
	}{
		{"zero", 0, false},
		{"small", 2, false},
		{"upper bound", MaxGraphCount, false},

		{"negative", -1, true},
		{"above bound", MaxGraphCount + 1, true},
		{"byte-swapped one", 0x01000000, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGraphCount(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateGraphCount(%d) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil {
				if !Is(err, ErrCodeCorruptContainer) {
					t.Errorf("code = %v, want %v", GetCode(err), ErrCodeCorruptContainer)
				}
				if !strings.Contains(err.Error(), "byte order") {
					t.Errorf("message should hint at configuration: %v", err)
				}
			}
		})
	}
}

func TestValidatePointerWidth(t *testing.T) {
	for _, w := range []int{4, 8} {
		if err := ValidatePointerWidth(w); err != nil {
			t.Errorf("ValidatePointerWidth(%d) = %v", w, err)
		}
	}
	for _, w := range []int{0, 2, 16, -8} {
		if err := ValidatePointerWidth(w); !Is(err, ErrCodeInvalidConfig) {
			t.Errorf("ValidatePointerWidth(%d) = %v, want INVALID_CONFIG", w, err)
		}
	}
}

func TestValidateEditPathName(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"G1_3_7_2", false},
		{"H_0_1_0", false},
		{"3_7_2", false},
		{"__", false},

		{"", true},
		{"plain", true},
		{"a_b", true},
	}

	for _, tt := range tests {
		err := ValidateEditPathName(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateEditPathName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
	}
}

func TestValidateSourcePath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"relative", "Results/Paths_Rnd/F2/MUTAG/MUTAG_edit_paths.bgf", false},
		{"absolute", "/data/x.bgf", false},

		{"empty", "", true},
		{"too long", strings.Repeat("a", 5000), true},
		{"null byte", "foo\x00bar", true},
		{"newline", "foo\nbar", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSourcePath(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSourcePath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
