package utils

import (
	"errors"
	"testing"
	"time"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{name: "valid email", email: "test@example.com"},
		{name: "valid email with subdomain", email: "user@mail.example.com"},
		{name: "valid email with plus", email: "user+tag@example.com"},
		{name: "missing @", email: "testexample.com", wantErr: true},
		{name: "missing domain", email: "test@", wantErr: true},
		{name: "empty string", email: "", wantErr: true},
		{name: "spaces in email", email: "test @example.com", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEmail(%q) error = %v, wantErr %v", tt.email, err, tt.wantErr)
			}
		})
	}
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "valid name", input: "John Doe"},
		{name: "name with apostrophe", input: "O'Brien"},
		{name: "empty name", input: "", wantErr: true},
		{name: "blank name", input: "   ", wantErr: true},
		{name: "name too short", input: "J", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestParseScore(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{"1", 1, false},
		{"10", 10, false},
		{" 8 ", 8, false},
		{"0", 0, true},
		{"11", 0, true},
		{"eight", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseScore(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseScore(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseScore(%q) = %d, want %d", tt.input, got, tt.want)
			}
			var verr ValidationError
			if err != nil && !errors.As(err, &verr) {
				t.Errorf("expected ValidationError, got %T", err)
			}
		})
	}
}

func TestParseAgeAndDuration(t *testing.T) {
	if _, err := ParseAge("abc"); err == nil {
		t.Error("non-numeric age should fail")
	}
	if n, err := ParseAge("12"); err != nil || n != 12 {
		t.Errorf("ParseAge(12) = (%d, %v)", n, err)
	}
	if _, err := ParseDuration("0"); err == nil {
		t.Error("zero duration should fail")
	}
	if _, err := ParseDuration("-30"); err == nil {
		t.Error("negative duration should fail")
	}
	if n, err := ParseDuration("60"); err != nil || n != 60 {
		t.Errorf("ParseDuration(60) = (%d, %v)", n, err)
	}
}

func TestParseScheduledAt(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Time
		wantErr bool
	}{
		{"2024-05-01 14:30", time.Date(2024, 5, 1, 14, 30, 0, 0, time.UTC), false},
		{" 2030-12-31 23:59 ", time.Date(2030, 12, 31, 23, 59, 0, 0, time.UTC), false},
		{"2024-13-40 25:99", time.Time{}, true},
		{"2024-05-01", time.Time{}, true},
		{"tomorrow", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseScheduledAt(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseScheduledAt(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseScheduledAt(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseHHMM(t *testing.T) {
	tests := []struct {
		input     string
		hour, min int
		wantErr   bool
	}{
		{"08:00", 8, 0, false},
		{"23:59", 23, 59, false},
		{"00:00", 0, 0, false},
		{"24:00", 0, 0, true},
		{"8:00", 0, 0, true},
		{"12:60", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			h, m, err := ParseHHMM(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseHHMM(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if h != tt.hour || m != tt.min {
				t.Errorf("ParseHHMM(%q) = %d:%d, want %d:%d", tt.input, h, m, tt.hour, tt.min)
			}
		})
	}
}
