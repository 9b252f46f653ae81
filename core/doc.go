// Package core contains the authorization flow orchestration, canonical
// domain types, and error contracts for the TickTick credential manager.
// Adapter packages (store, callback, command) depend on this package; core
// must not depend on presentation or storage adapters.
package core
