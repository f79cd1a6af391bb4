// Package template keeps typed values synchronized with templates that the
// Home Assistant backend evaluates.
//
// A Service[T] turns one-shot "render this template" calls into
// deduplicated, continuously updated push subscriptions. Each service holds
// three pieces of state:
//
//   - a subscription map with exactly one release Handle per Key
//   - a result store with the last pushed value per Key
//   - a TTL cache bounding how long a value is served without a refresh
//
// The card runs three instances that differ only in how raw results are
// parsed and which value stands in for failures:
//
//	active := template.NewActiveService(client)  // bool, false on failure
//	color := template.NewColorService(client)    // CSS color, theme token on failure
//	icon := template.NewIconService(client)      // icon id, help icon on failure
//
// Nothing in this package panics into its callers or returns a failure that
// would break rendering: backend errors and unparseable payloads degrade to
// the instance default and are logged.
package template
