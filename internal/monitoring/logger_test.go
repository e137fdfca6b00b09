package monitoring

import (
	"fmt"
	"testing"
)

func TestSetLoggerRedirects(t *testing.T) {
	orig := Logf
	defer SetLogger(orig)

	var captured string
	SetLogger(func(format string, v ...interface{}) {
		captured = fmt.Sprintf(format, v...)
	})

	Logf("cycle %d failed", 7)
	if captured != "cycle 7 failed" {
		t.Errorf("captured = %q, want %q", captured, "cycle 7 failed")
	}
}

func TestSetLoggerNilIsNoop(t *testing.T) {
	orig := Logf
	defer SetLogger(orig)

	SetLogger(nil)
	// Must not panic.
	Logf("dropped %s", "message")
}
