package registration

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/samber/lo"

	"github.com/morezero/record-plugins/pkg/semver"
)

const logPrefix = "registration:loader"

// EnvFile names the environment variable holding a registration file path.
const EnvFile = "PLUGIN_REGISTRATION_FILE"

// Load loads the registration from file paths or environment.
// It tries paths in order: first any paths passed in, then PLUGIN_REGISTRATION_FILE,
// then config/registration.json and registration.json. Falls back to Default.
func Load(paths ...string) (*Registration, error) {
	all := lo.Filter(paths, func(p string, _ int) bool { return p != "" })
	if envPath := os.Getenv(EnvFile); envPath != "" {
		all = append(all, envPath)
	}
	all = append(all, "config/registration.json", "registration.json")

	for _, p := range all {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}

		reg, err := Parse(data)
		if err != nil {
			slog.Warn(fmt.Sprintf("%s - Failed to parse registration file %s: %v", logPrefix, p, err))
			continue
		}

		slog.Info(fmt.Sprintf("%s - Loaded registration from %s", logPrefix, p))
		return reg, nil
	}

	slog.Info(fmt.Sprintf("%s - Using default registration", logPrefix))
	return Default(), nil
}

// Parse decodes and validates a registration document.
func Parse(data []byte) (*Registration, error) {
	var reg Registration
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("%s - invalid registration json: %w", logPrefix, err)
	}
	if err := Validate(&reg); err != nil {
		return nil, err
	}
	return &reg, nil
}

// Validate checks required fields, the plugin version and the host version range.
func Validate(reg *Registration) error {
	if reg.Name == "" {
		return fmt.Errorf("%s - registration name is required", logPrefix)
	}
	if reg.Version != "" {
		if _, err := semver.Major(reg.Version); err != nil {
			return fmt.Errorf("%s - invalid version %q: %w", logPrefix, reg.Version, err)
		}
	}
	if err := semver.ValidateRange(reg.HostVersionRange); err != nil {
		return fmt.Errorf("%s - invalid hostVersionRange %q: %w", logPrefix, reg.HostVersionRange, err)
	}
	for i, s := range reg.Steps {
		if s.Message == "" {
			return fmt.Errorf("%s - step %d has no message", logPrefix, i)
		}
	}
	return nil
}

// Default returns the built-in registration for the record guard plugin.
func Default() *Registration {
	return &Registration{
		Name:                  "record-guard",
		Version:               "1.0.0",
		Description:           "Traces record changes and blocks deletion of protected entities",
		UnsecureConfiguration: "account,systemuser",
		Steps: []Step{
			{Message: "Create", PrimaryEntity: AnyEntity, Stage: "PostOperation"},
			{Message: "Update", PrimaryEntity: AnyEntity, Stage: "PostOperation"},
			{Message: "Delete", PrimaryEntity: AnyEntity, Stage: "PreValidation"},
			{Message: "Associate", Stage: "PostOperation"},
			{Message: "Disassociate", Stage: "PostOperation"},
		},
	}
}

// Resolve builds a Resolved view of reg.
func Resolve(reg *Registration) *Resolved {
	byMessage := lo.GroupBy(reg.Steps, func(s Step) string { return s.Message })
	entities := lo.MapValues(byMessage, func(steps []Step, _ string) []string {
		return lo.Uniq(lo.Map(steps, func(s Step, _ int) string { return s.PrimaryEntity }))
	})

	steps := make([]Step, len(reg.Steps))
	copy(steps, reg.Steps)

	return &Resolved{
		name:         reg.Name,
		version:      reg.Version,
		hostRange:    reg.HostVersionRange,
		acceptAll:    len(reg.Steps) == 0,
		byMessage:    entities,
		stepsOrdered: steps,
	}
}
