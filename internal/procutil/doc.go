// Package procutil starts child processes detached from the daemon so a
// spawned program outlives the key event that launched it.
package procutil
