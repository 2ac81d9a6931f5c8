// Package config provides configuration management for the hippos memory
// engine.
//
//   - Environment variable loading with sensible per-environment defaults
//   - Struct-tag validation (go-playground/validator) plus business rules
//     struct tags can't express
//   - Optional file-overlay loading (YAML/JSON) via Loader
//   - Hot reload of the mutable maintenance/retrieval knobs in development
//
// # Usage
//
//	cfg := config.LoadConfig()
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Environment Variables
//
// Most fields can be set via an env var prefixed HIPPOS_; the names do not
// always include the section (see LoadConfig for the exact names, and for
// the few fields that have none), e.g. HIPPOS_RRF_K, HIPPOS_DECAY_FACTOR,
// HIPPOS_STORAGE_BACKEND. OPENAI_API_KEY is read unprefixed, matching the
// convention of the OpenAI client libraries that consume it directly.
//
// # Hot Reload (Development Only)
//
//	watcher, _ := config.NewConfigWatcher(&cfg, logger)
//	watcher.OnChange(func(newCfg *config.Config) {
//	    log.Info("configuration reloaded")
//	})
//	defer watcher.Stop()
//
// Hot reload only re-derives the maintenance and retrieval knobs a
// running engine can safely swap at runtime; it never changes the
// storage backend or embedding provider underneath a live process.
package config
