package commsutil

import (
	"fmt"
	"strings"
)

// Default COMMS subjects.
const (
	SubjectPluginPrefix = "plugin"
	SubjectExecuted     = "plugin.executed"
)

// subjectToken makes a name safe for use as a single subject token.
func subjectToken(name string) string {
	r := strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_")
	return r.Replace(strings.TrimSpace(name))
}

// BuildPluginSubject builds the request subject a plugin listens on.
func BuildPluginSubject(name string, major int) string {
	return fmt.Sprintf("%s.%s.v%d", SubjectPluginPrefix, subjectToken(name), major)
}

// BuildExecutedSubject builds a granular execution event subject.
func BuildExecutedSubject(name, message string) string {
	return fmt.Sprintf("%s.%s.%s", SubjectExecuted, subjectToken(name), subjectToken(message))
}
