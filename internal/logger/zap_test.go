package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestToZapLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		DebugLevel: zapcore.DebugLevel,
		InfoLevel:  zapcore.InfoLevel,
		WarnLevel:  zapcore.WarnLevel,
		ErrorLevel: zapcore.ErrorLevel,
		"":         zapcore.InfoLevel,
		"verbose":  zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := toZapLevel(in); got != want {
			t.Errorf("toZapLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestForBox_NilSafe(t *testing.T) {
	var l *Logger
	if l.ForBox(1, "a") != nil {
		t.Fatalf("ForBox on nil logger must return nil")
	}
	if Nop().ForBox(2, "b") == nil {
		t.Fatalf("ForBox on nop logger must return a logger")
	}
}
