package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestConfigure_RedactsSecretAttributeValues(t *testing.T) {
	var buf bytes.Buffer
	Configure(LevelInfo, &buf)

	Info("captured run output", "stdout", "api_key=sk-abcdefgh12345678")

	out := buf.String()
	if strings.Contains(out, "sk-abcdefgh12345678") {
		t.Errorf("expected secret to be redacted, got: %s", out)
	}
}

func TestConfigure_RedactsMessage(t *testing.T) {
	var buf bytes.Buffer
	Configure(LevelInfo, &buf)

	Warn("leaked token Bearer abcdefghijklmnopqrstuvwxyz0123456789")

	out := buf.String()
	if strings.Contains(out, "abcdefghijklmnopqrstuvwxyz0123456789") {
		t.Errorf("expected bearer token in message to be redacted, got: %s", out)
	}
}
