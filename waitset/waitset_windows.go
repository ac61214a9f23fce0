//go:build windows

package waitset

import "parentenv/process_windows"

func defaultWaiter() Waiter {
	return process_windows.NewWaiter()
}
