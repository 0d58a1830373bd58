// Package tools runs guest-side side effects: shell commands and file
// writes. The implementations satisfy the guest package's Executor and
// FileWriter interfaces.
package tools
