package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/morezero/record-plugins/pkg/plugin"
)

const mainTestPrefix = "cmd/plugin-host:main_test"

func TestUsage_ContainsCommands(t *testing.T) {
	required := []string{"serve", "migrate", "ensure-db", "clear-trace", "invoke", "DATABASE_URL", "COMMS_URL"}
	for _, word := range required {
		if !strings.Contains(usage, word) {
			t.Errorf("%s - usage should contain %q", mainTestPrefix, word)
		}
	}
}

func TestRun_Help(t *testing.T) {
	var out bytes.Buffer
	if err := run([]string{"help"}, &out); err != nil {
		t.Fatalf("%s - help returned %v", mainTestPrefix, err)
	}
	if out.String() != usage {
		t.Errorf("%s - help should print usage", mainTestPrefix)
	}
}

func TestRun_UsageErrors(t *testing.T) {
	tests := [][]string{
		{"bogus"},
		{"migrate"},
		{"migrate", "sideways"},
		{"invoke"},
	}
	for _, args := range tests {
		err := run(args, &bytes.Buffer{})
		if !errors.Is(err, errUsage) {
			t.Errorf("%s - run(%v) = %v, want usage error", mainTestPrefix, args, err)
		}
	}
}

func TestRun_MigrateDown(t *testing.T) {
	var out bytes.Buffer
	if err := run([]string{"migrate", "down"}, &out); err != nil {
		t.Fatalf("%s - migrate down returned %v", mainTestPrefix, err)
	}
	if !strings.Contains(out.String(), "forward-only") {
		t.Errorf("%s - unexpected output %q", mainTestPrefix, out.String())
	}
}

func TestRun_DBCommandsRequireDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	for _, args := range [][]string{{"migrate", "up"}, {"migrate", "status"}, {"clear-trace"}, {"ensure-db"}} {
		err := run(args, &bytes.Buffer{})
		if err == nil || !strings.Contains(err.Error(), "DATABASE_URL is required") {
			t.Errorf("%s - run(%v) = %v, want DATABASE_URL error", mainTestPrefix, args, err)
		}
	}
}

func TestBuildGuard(t *testing.T) {
	inv := buildGuard(plugin.NewConfiguration("account", ""))
	if _, ok := inv.(*plugin.TypedPlugin[*plugin.Entity]); !ok {
		t.Errorf("%s - buildGuard returned %T", mainTestPrefix, inv)
	}
}
