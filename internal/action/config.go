package action

// Config is the user-facing description of one action, as written in the
// card configuration.
type Config struct {
	// Action names the effect: toggle, more-info, navigate, url,
	// call-service, perform-action, location-map, trigger or none.
	// Empty infers the action from the other fields.
	Action string `yaml:"action" toml:"action" json:"action,omitempty"`

	// Entity overrides the entity of the element the action is bound to.
	Entity string `yaml:"entity" toml:"entity" json:"entity,omitempty"`

	// Service is a domain.service identifier for call-service.
	Service string `yaml:"service" toml:"service" json:"service,omitempty"`

	// ServiceData is a JSON object of service data.
	ServiceData string `yaml:"service_data" toml:"service_data" json:"service_data,omitempty"`

	// Data is structured service data. ServiceData wins when both are set.
	Data map[string]any `yaml:"data" toml:"data" json:"data,omitempty"`

	// PerformAction is either a domain.service string or an object with
	// service (or action) and data keys.
	PerformAction any `yaml:"perform_action" toml:"perform_action" json:"perform_action,omitempty"`

	NavigationPath string `yaml:"navigation_path" toml:"navigation_path" json:"navigation_path,omitempty"`
	URLPath        string `yaml:"url_path" toml:"url_path" json:"url_path,omitempty"`
	NewTab         bool   `yaml:"new_tab" toml:"new_tab" json:"new_tab,omitempty"`
}

// IsZero reports whether nothing is configured.
func (c Config) IsZero() bool {
	return c.Action == "" && c.Entity == "" && c.Service == "" &&
		c.ServiceData == "" && len(c.Data) == 0 && c.PerformAction == nil &&
		c.NavigationPath == "" && c.URLPath == ""
}
