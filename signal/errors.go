package signal

// ConfigurationError reports missing or malformed run inputs: credentials,
// the signal payload, or its required fields. It is raised before any
// network call.
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *ConfigurationError) Unwrap() error { return e.Err }
