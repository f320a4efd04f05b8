package model

import "testing"

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    UserRole
		wantErr bool
	}{
		{"student", UserRoleStudent, false},
		{"Teacher", UserRoleTeacher, false},
		{" TEACHER ", UserRoleTeacher, false},
		{"admin", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRole(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRole(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseRole(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsAll(t *testing.T) {
	if !IsAll("") || !IsAll("All") {
		t.Error("empty and \"All\" should both mean unset")
	}
	if IsAll("all") {
		t.Error("IsAll is case-sensitive; \"all\" is a concrete value")
	}
	if IsAll("Math") {
		t.Error("IsAll(Math) = true, want false")
	}
}

func TestDisplayText(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"", "No question text available"},
		{"[Question text]", "Question content"},
		{"  [Question text] What is osmosis? ", "What is osmosis?"},
		{"Define entropy.", "Define entropy."},
	}
	for _, tt := range tests {
		got := Question{Text: tt.text}.DisplayText()
		if got != tt.want {
			t.Errorf("DisplayText(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}
