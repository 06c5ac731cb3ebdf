// Package watcher runs compatibility checks continuously. A Watcher compares a descriptor
// directory against a reference baseline at startup, after every burst of file changes
// and on an optional cron schedule, and logs each outcome.
package watcher
