package observability

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestSetupDisabled(t *testing.T) {
	tr, err := Setup(false, "comet-test", nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx, span := tr.StartSpan(context.Background(), "slice")
	if ctx == nil {
		t.Fatal("nil context from disabled tracer")
	}
	span.SetAttribute("chunks", 4)
	span.End()

	if err := tr.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestSetupEnabled(t *testing.T) {
	var buf bytes.Buffer
	tr, err := Setup(true, "comet-test", &buf)
	if err != nil {
		t.Fatal(err)
	}

	_, span := tr.StartSpan(context.Background(), "profile")
	span.SetAttribute("rows", int64(128))
	span.SetAttribute("path", "events.csv")
	span.SetAttribute("ratio", 0.5)
	span.SetAttribute("parallel", true)
	span.End()

	if err := tr.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "profile") {
		t.Errorf("exported spans missing phase name: %s", out)
	}
	if !strings.Contains(out, "rows") {
		t.Errorf("exported spans missing attribute: %s", out)
	}
}

func TestSpanRecordError(t *testing.T) {
	var buf bytes.Buffer
	tr, err := Setup(true, "comet-test", &buf)
	if err != nil {
		t.Fatal(err)
	}

	_, span := tr.StartSpan(context.Background(), "merge")
	span.RecordError(context.DeadlineExceeded)
	span.RecordError(nil) // no-op
	span.End()

	if err := tr.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "deadline") {
		t.Errorf("span error not exported: %s", buf.String())
	}
}

func TestShutdownNil(t *testing.T) {
	var tr *Tracing
	if err := tr.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
}
