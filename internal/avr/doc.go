// Package avr implements the AV receiver bridge for Gray Logic.
//
// It speaks the line-oriented ASCII control protocol that receivers and
// multi-zone amplifiers expose on telnet port 23, and mirrors the device
// into the host state store.
//
// # Architecture
//
//	┌─────────────────┐          ┌─────────────────┐
//	│   state.Store   │◄────────►│   AVR Bridge    │   telnet
//	│ (sqlite / mqtt) │          │   (this pkg)    │◄────────► Receiver
//	└─────────────────┘          └─────────────────┘
//
// # Key Responsibilities
//
//   - Keep one telnet session open, reconnecting after failures
//   - Detect whether the device speaks the receiver or amplifier dialect
//   - Create state objects per dialect, zone and capability on first sight
//   - Encode host writes into wire commands
//   - Decode responses into acknowledged state writes
//   - Poll the device when the link goes quiet
//
// # Wire Format
//
// Commands and responses are ASCII terminated by CR. Volume levels use two
// digits for whole steps and three for half steps:
//
//	avr.VolumeToWire(35.5) // "355"
//	avr.DBToWire(-20)      // "30"
//
// Amplifier channels pair into zones: channels 1 and 2 are zone 1.
//
// # Thread Safety
//
// Bridge, Conn and HealthReporter are safe for concurrent use. Encoding
// and decoding run on the bridge goroutine only.
package avr
