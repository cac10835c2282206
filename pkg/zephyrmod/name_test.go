// SPDX-License-Identifier: MPL-2.0

package zephyrmod

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     string
		violation NameViolation
	}{
		{"simple", "git-helpers", 0},
		{"underscore", "my_module", 0},
		{"leading digit", "1password", 0},
		{"max length", strings.Repeat("a", MaxNameLength), 0},
		{"empty", "", NameEmpty},
		{"too long", strings.Repeat("a", MaxNameLength+1), NameTooLong},
		{"uppercase", "MyModule", NameUppercase},
		{"leading dash", "-module", NameBadFirstChar},
		{"leading underscore", "_module", NameBadFirstChar},
		{"dot", "my.module", NameBadChar},
		{"slash", "my/module", NameBadChar},
		{"space", "my module", NameBadChar},
		{"reserved", "zephyr", NameReserved},
		{"reserved tmp", "tmp", NameReserved},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateName(tt.input)
			if tt.violation == 0 {
				if err != nil {
					t.Errorf("ValidateName(%q) = %v, want nil", tt.input, err)
				}
				return
			}
			var nameErr *InvalidNameError
			if !errors.As(err, &nameErr) {
				t.Fatalf("ValidateName(%q) = %v, want *InvalidNameError", tt.input, err)
			}
			if nameErr.Violation != tt.violation {
				t.Errorf("violation = %v, want %v", nameErr.Violation, tt.violation)
			}
			if !errors.Is(err, ErrInvalidName) {
				t.Error("expected errors.Is(err, ErrInvalidName)")
			}
		})
	}
}

func TestDeriveName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{"https://github.com/user/git-helpers.git", "git-helpers", false},
		{"https://github.com/user/zephyr-module-git-helpers.git", "git-helpers", false},
		{"https://github.com/user/zephyr-prompt", "prompt", false},
		{"https://github.com/user/zephyr-module-", "", true},
		{"git@github.com:user/zephyr-nvm.git", "nvm", false},
		{"git@example.com:zephyr-nvm.git", "nvm", false},
		{"https://github.com/user/repo/", "repo", false},
		{"https://github.com/user/Prompt.git", "", true},
		{"https://github.com/user/zephyr.git", "", true},
		{"https://github.com/user/zephyr-zephyr.git", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			t.Parallel()

			got, err := DeriveName(tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DeriveName(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("DeriveName(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}
