package catalog

// File is the on-disk and over-the-wire shape of the catalog: an ordered
// list of groups, each holding an ordered list of services.
type File []GroupSpec

// GroupSpec is one group of services.
type GroupSpec struct {
	ID       string          `yaml:"id" json:"id"`
	Name     string          `yaml:"name" json:"name"`
	Services []ComponentSpec `yaml:"services" json:"services"`
}

// ComponentSpec is one monitored service.
type ComponentSpec struct {
	ID          string     `yaml:"id" json:"id"`
	Name        string     `yaml:"name" json:"name"`
	URL         string     `yaml:"url,omitempty" json:"url,omitempty"`
	Interval    *float64   `yaml:"interval,omitempty" json:"interval,omitempty"` // seconds
	ProbeConfig *ProbeSpec `yaml:"probe_config,omitempty" json:"probe_config,omitempty"`
}

// ProbeSpec customises the probe request.
type ProbeSpec struct {
	Method         string            `yaml:"method,omitempty" json:"method,omitempty"`
	Headers        map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Body           any               `yaml:"body,omitempty" json:"body,omitempty"`
	ExpectedStatus *int              `yaml:"expected_status,omitempty" json:"expected_status,omitempty"`
	Timeout        *float64          `yaml:"timeout,omitempty" json:"timeout,omitempty"` // milliseconds
}
