package action

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Resolve turns cfg into a Descriptor. defaultEntity is the entity of the
// element the action is bound to; cfg.Entity overrides it.
func Resolve(cfg Config, defaultEntity string) (Descriptor, error) {
	entity := cfg.Entity
	if entity == "" {
		entity = defaultEntity
	}

	name := normalizeName(cfg.Action)
	if name == "" {
		name = inferName(cfg, entity)
	}

	switch name {
	case NameNone:
		return None{}, nil

	case NameToggle, NameMoreInfo, NameLocationMap, NameTrigger:
		if entity == "" {
			return nil, invalid(name, "no entity", ErrMissingEntity)
		}
		switch name {
		case NameToggle:
			return Toggle{EntityID: entity}, nil
		case NameMoreInfo:
			return MoreInfo{EntityID: entity}, nil
		case NameLocationMap:
			return LocationMap{EntityID: entity}, nil
		default:
			return Trigger{EntityID: entity}, nil
		}

	case NameNavigate:
		if cfg.NavigationPath == "" {
			return nil, invalid(name, "navigation_path is required", nil)
		}
		return Navigate{Path: cfg.NavigationPath}, nil

	case NameURL:
		if cfg.URLPath == "" {
			return nil, invalid(name, "url_path is required", nil)
		}
		return OpenURL{URL: cfg.URLPath, NewTab: cfg.NewTab}, nil

	case NameCallService:
		domain, service, err := splitService(cfg.Service)
		if err != nil {
			return nil, invalid(name, "bad service", err)
		}
		data, err := serviceData(cfg.ServiceData, cfg.Data)
		if err != nil {
			return nil, invalid(name, "bad service data", err)
		}
		if cfg.Entity != "" {
			if data, err = withEntity(data, cfg.Entity); err != nil {
				return nil, invalid(name, "bad service data", err)
			}
		}
		return CallService{Domain: domain, Service: service, Data: data}, nil

	case NamePerformAction:
		return resolvePerformAction(cfg, entity)
	}

	return nil, invalid(cfg.Action, "unrecognized", ErrUnknownAction)
}

func normalizeName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
}

func inferName(cfg Config, entity string) string {
	switch {
	case cfg.PerformAction != nil:
		return NamePerformAction
	case cfg.Service != "":
		return NameCallService
	case cfg.NavigationPath != "":
		return NameNavigate
	case cfg.URLPath != "":
		return NameURL
	case entity != "":
		return NameMoreInfo
	default:
		return NameNone
	}
}

func resolvePerformAction(cfg Config, entity string) (Descriptor, error) {
	var (
		id   string
		data []byte
		err  error
	)

	switch pa := cfg.PerformAction.(type) {
	case nil:
		id = cfg.Service
	case string:
		id = pa
	case map[string]any:
		id, _ = pa["service"].(string)
		if id == "" {
			id, _ = pa["action"].(string)
		}
		if raw, ok := pa["data"]; ok && raw != nil {
			obj, ok := raw.(map[string]any)
			if !ok {
				return nil, invalid(NamePerformAction, "data must be an object", nil)
			}
			if data, err = json.Marshal(obj); err != nil {
				return nil, invalid(NamePerformAction, "bad data", err)
			}
		}
	default:
		return nil, invalid(NamePerformAction, fmt.Sprintf("unsupported perform_action %T", pa), nil)
	}

	domain, service, err := splitService(id)
	if err != nil {
		return nil, invalid(NamePerformAction, "bad service", err)
	}

	if data == nil {
		if data, err = serviceData(cfg.ServiceData, cfg.Data); err != nil {
			return nil, invalid(NamePerformAction, "bad service data", err)
		}
	}
	if entity != "" {
		if data, err = withEntity(data, entity); err != nil {
			return nil, invalid(NamePerformAction, "bad service data", err)
		}
	}

	return PerformAction{Domain: domain, Service: service, Data: data, EntityID: entity}, nil
}

// splitService splits a domain.service identifier.
func splitService(id string) (domain, service string, err error) {
	id = strings.TrimSpace(id)
	domain, service, ok := strings.Cut(id, ".")
	if !ok || domain == "" || service == "" || strings.Contains(service, ".") {
		return "", "", fmt.Errorf("%q is not a domain.service identifier", id)
	}
	return domain, service, nil
}

var errNotObject = errors.New("service data is not a JSON object")

// serviceData returns the JSON object form of the configured data.
func serviceData(text string, structured map[string]any) ([]byte, error) {
	if text = strings.TrimSpace(text); text != "" {
		if !gjson.Valid(text) {
			return nil, errors.New("service data is not valid JSON")
		}
		if !gjson.Parse(text).IsObject() {
			return nil, errNotObject
		}
		return []byte(text), nil
	}
	if len(structured) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(structured)
}

// withEntity sets entity_id in data unless a target is already present.
func withEntity(data []byte, entity string) ([]byte, error) {
	if gjson.GetBytes(data, "entity_id").Exists() || gjson.GetBytes(data, "target.entity_id").Exists() {
		return data, nil
	}
	return sjson.SetBytes(data, "entity_id", entity)
}
