package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := &loggerImpl{
		level:  LevelInfo,
		out:    &buf,
		errOut: &buf,
		fields: []Field{},
	}
	ctx := context.Background()

	logger.Debug(ctx, "debug message")
	if buf.Len() > 0 {
		t.Errorf("expected no output for debug at Info level, got: %q", buf.String())
	}

	buf.Reset()
	logger.Info(ctx, "info message")
	if !strings.Contains(buf.String(), "INFO") {
		t.Errorf("expected INFO in output, got: %q", buf.String())
	}

	buf.Reset()
	logger.Warn(ctx, "warn message")
	if !strings.Contains(buf.String(), "WARN") {
		t.Errorf("expected WARN in output, got: %q", buf.String())
	}

	buf.Reset()
	logger.Error(ctx, "error message")
	if !strings.Contains(buf.String(), "ERROR") {
		t.Errorf("expected ERROR in output, got: %q", buf.String())
	}
}

func TestLogger_Verbose(t *testing.T) {
	var buf bytes.Buffer
	logger := &loggerImpl{
		level:  LevelDebug,
		out:    &buf,
		errOut: &buf,
		fields: []Field{},
	}

	logger.Debug(context.Background(), "debug message")
	if !strings.Contains(buf.String(), "DEBUG") {
		t.Errorf("expected DEBUG in output when verbose, got: %q", buf.String())
	}
}

func TestLogger_WithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := &loggerImpl{
		level:  LevelInfo,
		out:    &buf,
		errOut: &buf,
		fields: []Field{},
	}

	logger = logger.WithFields(F("build", "base"), F("features", 3)).(*loggerImpl)
	logger.Info(context.Background(), "building graph")

	output := buf.String()
	if !strings.Contains(output, "build=base") {
		t.Errorf("expected 'build=base' in output, got: %q", output)
	}
	if !strings.Contains(output, "features=3") {
		t.Errorf("expected 'features=3' in output, got: %q", output)
	}
}

func TestLogger_WithLayer_TagsMessage(t *testing.T) {
	var buf bytes.Buffer
	logger := &loggerImpl{
		level:  LevelInfo,
		out:    &buf,
		errOut: &buf,
		fields: []Field{},
	}

	ctx := WithLayer(context.Background(), "//x:base")
	logger.Info(ctx, "added feature", F("label", "//x:a"))

	output := buf.String()
	if !strings.Contains(output, "layer=//x:base") {
		t.Errorf("expected 'layer=//x:base' in output, got: %q", output)
	}
	if !strings.Contains(output, "label=//x:a") {
		t.Errorf("expected 'label=//x:a' in output, got: %q", output)
	}
}

func TestLogger_WithoutLayer_OmitsLayerField(t *testing.T) {
	var buf bytes.Buffer
	logger := &loggerImpl{
		level:  LevelInfo,
		out:    &buf,
		errOut: &buf,
		fields: []Field{},
	}

	logger.Info(context.Background(), "no layer here")
	if strings.Contains(buf.String(), "layer=") {
		t.Errorf("did not expect a layer field without WithLayer, got: %q", buf.String())
	}
}

func TestNew(t *testing.T) {
	logger := New(false)
	if logger == nil {
		t.Fatalf("expected non-nil logger")
	}

	verboseLogger := New(true)
	if verboseLogger == nil {
		t.Fatalf("expected non-nil logger")
	}
}

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.expected {
			t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.expected)
		}
	}
}
