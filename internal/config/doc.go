// Package config loads and watches the collector configuration file.
//
// Load(path) reads the YAML file, applies defaults (port 8080, the
// built-in source list, 6h schedule, fast count 25, 5s/10-way/200-cap
// probing, sqlite storage), then validates required fields and enums.
//
// The admin password is never stored in the file; admin.password_env
// names an environment variable resolved at use via Password(). An
// empty result disables the password gate.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and
// calls onChange with the newly parsed Config, handling the
// rename→create pattern used by atomic-save editors.
package config
