// Package discovery finds AV receivers on the local network.
//
// A scan multicasts one SSDP M-SEARCH, collects the LOCATION headers of
// the replies for the scan window, then fetches each device description to
// learn its friendly name and manufacturer. Scans are one-shot; nothing is
// cached between calls.
//
// Usage:
//
//	s := discovery.NewScanner(discovery.Options{Timeout: 5 * time.Second})
//	devices, err := s.Scan(ctx)
package discovery
