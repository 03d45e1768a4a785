// Package registration loads the step registration that tells a plugin host
// which messages a plugin is attached to.
package registration

// Step binds a plugin to a message, optionally restricted to one primary entity.
type Step struct {
	Message       string `json:"message"`
	PrimaryEntity string `json:"primaryEntity,omitempty"`
	Stage         string `json:"stage,omitempty"`
}

// Registration is the root registration document.
type Registration struct {
	Name                  string `json:"name"`
	Version               string `json:"version"`
	Description           string `json:"description,omitempty"`
	UnsecureConfiguration string `json:"unsecureConfiguration,omitempty"`
	SecureConfiguration   string `json:"secureConfiguration,omitempty"`
	HostVersionRange      string `json:"hostVersionRange,omitempty"`
	Steps                 []Step `json:"steps,omitempty"`
}

// AnyEntity matches every primary entity.
const AnyEntity = "*"

// Resolved provides fast step lookup for a Registration.
type Resolved struct {
	name         string
	version      string
	hostRange    string
	acceptAll    bool
	byMessage    map[string][]string
	stepsOrdered []Step
}

// Name returns the plugin name.
func (r *Resolved) Name() string { return r.name }

// Version returns the plugin version.
func (r *Resolved) Version() string { return r.version }

// HostVersionRange returns the host version range, empty when unrestricted.
func (r *Resolved) HostVersionRange() string { return r.hostRange }

// Steps returns a copy of the registered steps.
func (r *Resolved) Steps() []Step {
	out := make([]Step, len(r.stepsOrdered))
	copy(out, r.stepsOrdered)
	return out
}

// Accepts reports whether a step is registered for message on primaryEntity.
// Message names compare case-exactly.
func (r *Resolved) Accepts(message, primaryEntity string) bool {
	if r.acceptAll {
		return true
	}
	entities, ok := r.byMessage[message]
	if !ok {
		return false
	}
	for _, e := range entities {
		if e == "" || e == AnyEntity || e == primaryEntity {
			return true
		}
	}
	return false
}
