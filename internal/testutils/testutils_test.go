package testutils

import (
	"strings"
	"testing"
	"time"
)

func TestMockRawLineWrapsFrameInAVRFraming(t *testing.T) {
	line := MockRawLine("8D4840D6202CC371C32CE0576098")
	if !strings.HasPrefix(line, "*") || !strings.HasSuffix(line, ";\n") {
		t.Errorf("expected AVR framing around hex, got %q", line)
	}
}

func TestSampleFramesNonEmpty(t *testing.T) {
	frames := SampleFrames()
	if len(frames) == 0 {
		t.Fatal("expected at least one sample frame")
	}
	for _, f := range frames {
		if len(f) == 0 {
			t.Error("sample frame should not be empty")
		}
	}
}

func TestWaitForCondition_Success(t *testing.T) {
	condition := func() bool { return true }

	if err := WaitForCondition(condition, 1*time.Second); err != nil {
		t.Errorf("WaitForCondition() should succeed, got error: %v", err)
	}
}

func TestWaitForCondition_Timeout(t *testing.T) {
	condition := func() bool { return false }

	err := WaitForCondition(condition, 100*time.Millisecond)
	if err == nil {
		t.Error("WaitForCondition() should timeout")
	}
	if !strings.Contains(err.Error(), "timeout") {
		t.Errorf("expected timeout error, got: %v", err)
	}
}

func TestWaitForCondition_ConditionBecomesTrue(t *testing.T) {
	counter := 0
	condition := func() bool {
		counter++
		return counter >= 3
	}

	if err := WaitForCondition(condition, 1*time.Second); err != nil {
		t.Errorf("WaitForCondition() should succeed, got error: %v", err)
	}
	if counter < 3 {
		t.Errorf("condition should have been called at least 3 times, got %d", counter)
	}
}

func TestIsIntegrationTest(t *testing.T) {
	if !IsIntegrationTest() {
		t.Error("IsIntegrationTest() should return true")
	}
}
