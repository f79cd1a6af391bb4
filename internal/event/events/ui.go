package events

import (
	"time"

	"github.com/dshills/vehiclecard/internal/event/topic"
)

// User-facing notification topics.
const (
	// TopicMoreInfo asks the frontend to show the more-info dialog for an entity.
	TopicMoreInfo topic.Topic = "ui.more_info"

	// TopicNavigate asks the frontend to navigate to a dashboard path.
	TopicNavigate topic.Topic = "ui.navigate"

	// TopicOpenURL asks the frontend to open an external URL.
	TopicOpenURL topic.Topic = "ui.open_url"

	// TopicLocationMap asks the frontend to show a map for a tracker entity.
	TopicLocationMap topic.Topic = "ui.location_map"

	// TopicToast shows a dismissible notification.
	TopicToast topic.Topic = "ui.toast"

	// TopicConfirmPrompt is published when a confirmation is armed.
	TopicConfirmPrompt topic.Topic = "ui.confirm_prompt"
)

// Card lifecycle topics.
const (
	// TopicRender is published when a template result changed and the card
	// should redraw.
	TopicRender topic.Topic = "card.render"

	// TopicReloaded is published after the card applied a new configuration.
	TopicReloaded topic.Topic = "card.reloaded"
)

// MoreInfo is the payload for TopicMoreInfo.
type MoreInfo struct {
	EntityID string
}

// Navigate is the payload for TopicNavigate.
type Navigate struct {
	Path string

	// Replace replaces the current history entry instead of pushing.
	Replace bool
}

// OpenURL is the payload for TopicOpenURL.
type OpenURL struct {
	URL    string
	NewTab bool
}

// LocationMap is the payload for TopicLocationMap.
type LocationMap struct {
	EntityID string
}

// ToastType classifies a toast.
type ToastType string

const (
	ToastInfo    ToastType = "info"
	ToastSuccess ToastType = "success"
	ToastWarning ToastType = "warning"
	ToastError   ToastType = "error"
)

// Toast is the payload for TopicToast.
type Toast struct {
	ID       string
	Message  string
	Type     ToastType
	Duration time.Duration
}

// ConfirmPrompt is the payload for TopicConfirmPrompt.
type ConfirmPrompt struct {
	Group    string
	EntityID string
	Message  string
	Expires  time.Duration
}

// Render is the payload for TopicRender.
type Render struct {
	Reason string
}
