// Package notifications delivers run outcomes via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and degrades to a no-op when notifications are disabled. Run
// start events are accepted but suppressed so only terminal outcomes reach the
// user's devices.
package notifications
