package discovery

import "errors"

var (
	// ErrBadResponse is returned for an SSDP reply without a LOCATION.
	ErrBadResponse = errors.New("discovery: malformed ssdp response")

	// ErrBadDescriptor is returned when a device description cannot be
	// fetched or parsed.
	ErrBadDescriptor = errors.New("discovery: invalid device description")
)
