// Package config loads and validates the card configuration.
//
// Configuration is read from a YAML (.yaml, .yml) or TOML (.toml) file and
// layered, lowest priority first:
//
//	┌─────────────────────────────┐
//	│  3. Environment Variables   │  ← VEHICLECARD_*
//	├─────────────────────────────┤
//	│  2. Config File             │  ← card.yaml / card.toml
//	├─────────────────────────────┤
//	│  1. Built-in Defaults       │
//	└─────────────────────────────┘
//
// After layering, legacy fields are normalized and the result validated.
// Validation reports every problem at once:
//
//	cfg, err := config.Load("card.yaml")
//	var verrs config.ValidationErrors
//	if errors.As(err, &verrs) {
//	    for _, e := range verrs {
//	        fmt.Println(e.Path, e.Message)
//	    }
//	}
//
// # Live Reload
//
// Watch observes the file with fsnotify and calls back with the freshly
// loaded configuration after edits settle:
//
//	err := config.Watch(ctx, "card.yaml", func(cfg *config.Config, err error) {
//	    if err == nil {
//	        card.Reload(cfg)
//	    }
//	})
package config
