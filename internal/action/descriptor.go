package action

// Action names.
const (
	NameToggle        = "toggle"
	NameMoreInfo      = "more-info"
	NameNavigate      = "navigate"
	NameURL           = "url"
	NameCallService   = "call-service"
	NamePerformAction = "perform-action"
	NameLocationMap   = "location-map"
	NameTrigger       = "trigger"
	NameNone          = "none"
)

// Descriptor is a resolved, executable action. The set of implementations
// is closed.
type Descriptor interface {
	// Name returns the action name.
	Name() string

	descriptor()
}

// Toggle toggles an entity.
type Toggle struct{ EntityID string }

// MoreInfo opens the more-info dialog for an entity.
type MoreInfo struct{ EntityID string }

// Navigate moves the dashboard to a path.
type Navigate struct{ Path string }

// OpenURL opens an external URL.
type OpenURL struct {
	URL    string
	NewTab bool
}

// CallService calls a service with JSON object data.
type CallService struct {
	Domain  string
	Service string
	Data    []byte
}

// PerformAction calls a service on behalf of an entity. Data always carries
// an entity_id when EntityID is set.
type PerformAction struct {
	Domain   string
	Service  string
	Data     []byte
	EntityID string
}

// LocationMap shows a tracker entity on a map.
type LocationMap struct{ EntityID string }

// Trigger runs the domain's natural "activate" service for an entity.
type Trigger struct{ EntityID string }

// None does nothing.
type None struct{}

func (Toggle) Name() string        { return NameToggle }
func (MoreInfo) Name() string      { return NameMoreInfo }
func (Navigate) Name() string      { return NameNavigate }
func (OpenURL) Name() string       { return NameURL }
func (CallService) Name() string   { return NameCallService }
func (PerformAction) Name() string { return NamePerformAction }
func (LocationMap) Name() string   { return NameLocationMap }
func (Trigger) Name() string       { return NameTrigger }
func (None) Name() string          { return NameNone }

func (Toggle) descriptor()        {}
func (MoreInfo) descriptor()      {}
func (Navigate) descriptor()      {}
func (OpenURL) descriptor()       {}
func (CallService) descriptor()   {}
func (PerformAction) descriptor() {}
func (LocationMap) descriptor()   {}
func (Trigger) descriptor()       {}
func (None) descriptor()          {}
