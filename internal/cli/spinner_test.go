package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func testSpinner(ctx context.Context, animate bool) (*Spinner, *bytes.Buffer) {
	var buf bytes.Buffer
	s := newSpinnerWithContext(ctx, "Loading books...")
	s.out = &buf
	s.animate = animate
	return s, &buf
}

func TestSpinnerSilentOffTerminal(t *testing.T) {
	s, buf := testSpinner(context.Background(), false)
	s.Start()
	time.Sleep(3 * spinnerInterval)
	s.Stop()
	if buf.Len() != 0 {
		t.Errorf("non-terminal spinner wrote %q", buf.String())
	}
}

func TestSpinnerAnimatesOnTerminal(t *testing.T) {
	s, buf := testSpinner(context.Background(), true)
	s.Start()
	time.Sleep(3 * spinnerInterval)
	s.Stop()

	out := buf.String()
	if !strings.Contains(out, "Loading books...") {
		t.Errorf("terminal spinner output = %q", out)
	}
	if !strings.HasSuffix(out, "\r") {
		t.Error("Stop() should leave the line cleared")
	}
	if s.Cancelled() {
		t.Error("a stopped spinner should not report cancellation")
	}
	s.Stop()
}

func TestSpinnerStopsWithContext(t *testing.T) {
	for _, animate := range []bool{false, true} {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		s, _ := testSpinner(ctx, animate)
		s.Start()
		<-ctx.Done()

		if !s.Cancelled() {
			t.Errorf("animate=%v: spinner should report cancellation", animate)
		}
		s.Stop()
		cancel()
	}
}

func TestSpinnerStopWithMessage(t *testing.T) {
	buf := captureUI(t)
	s, _ := testSpinner(context.Background(), false)
	s.Start()
	s.StopWithError("Token rejected")
	if !strings.Contains(buf.String(), "Token rejected") {
		t.Errorf("ui output = %q", buf.String())
	}
}
