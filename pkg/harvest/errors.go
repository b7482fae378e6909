package harvest

import "errors"

// Harvest errors. Strategies log these and report Unavailable; they reach
// callers only from constructors.
var (
	// ErrNoBinder is returned when a STUN mapping is created without a binder.
	ErrNoBinder = errors.New("harvest: STUN mapping requires a binder")

	// ErrNoSTUNAnswer is returned when none of the STUN servers answered.
	ErrNoSTUNAnswer = errors.New("harvest: no STUN server answered")

	// ErrNoUDPAddress is returned when the binder's socket has no UDP address.
	ErrNoUDPAddress = errors.New("harvest: binder has no UDP address")

	// ErrNoRoute is returned when no local address routes toward a server or gateway.
	ErrNoRoute = errors.New("harvest: no local route")

	// ErrNoGateway is returned when UPnP discovery finds no internet gateway.
	ErrNoGateway = errors.New("harvest: no UPnP gateway found")

	// ErrMetadataStatus is returned when the metadata service answers with a
	// status other than 200.
	ErrMetadataStatus = errors.New("harvest: metadata service refused request")
)
