// Package config provides configuration structures for the bus, agent
// runtimes and their supporting services.
//
// Configuration only exists during initialization; constructors in the hub
// and runtime packages copy what they need and never read the config again.
//
// # Defaults and merging
//
// Every config type has a Default constructor and a Merge method. Loaded
// files merge over defaults, so a file only needs the values it changes:
//
//	cfg := config.DefaultBusConfig()
//	cfg.Merge(&loaded.Bus)
//
// Merge semantics by field type:
//
//   - Strings: merge if source is non-empty
//   - Integers and durations: merge if source is greater than zero
//   - Slices and maps: merge if source is non-empty (maps merge key by key)
//   - Pointers and funcs: merge if source is non-nil
//   - Booleans with false defaults: merge if source is true
//
// # File formats
//
// LoadConfig picks the decoder from the file extension: .json, .yaml/.yml
// (with ${ENV} expansion) or .toml. Durations are written as strings:
//
//	bus:
//	  name: main
//	  heartbeat_interval: 10s
//	  health_check_interval: 5s
//	agents:
//	  Worker.1:
//	    capabilities: [execute]
//	    request_timeout: 2m
//
// # Defaults
//
//	BusConfig:     heartbeat 30s, health check 30s, history 1000, system senders ["system"]
//	RuntimeConfig: heartbeat 30s, request timeout 120s, version 1.0.0
package config
