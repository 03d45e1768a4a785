package plugin

// Configuration holds the two opaque configuration strings a plugin is
// registered with. The framework stores them and hands them to callbacks; it
// never reads them.
type Configuration struct {
	unsecure string
	secure   string
}

// NewConfiguration creates a Configuration. Either string may be empty.
func NewConfiguration(unsecure, secure string) Configuration {
	return Configuration{unsecure: unsecure, secure: secure}
}

// Unsecure returns the unsecure configuration string.
func (c Configuration) Unsecure() string {
	return c.unsecure
}

// Secure returns the secure configuration string.
func (c Configuration) Secure() string {
	return c.secure
}
