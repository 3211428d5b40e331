// Package state is the host-side key-value store the AVR bridge reads and
// writes.
//
// Every value lives under a dotted path ("zoneMain.volume") and has two
// records: an Object describing it (role, value type, range, enumeration)
// and a State holding the latest value with its acknowledgement flag.
// Values written by the bridge from device responses carry Ack=true;
// commands arriving from the host carry Ack=false.
//
// # Implementations
//
//   - MemoryStore: process-local maps, used for tests and the "memory" backend
//   - SQLiteStore: objects, states and state history in SQLite
//   - MQTTStore: decorator publishing retained documents and turning
//     host writes on set topics into StateChange values
//   - Broadcaster: decorator fanning every state write out to watchers
//
// # Enumerations
//
// Enumeration is an ordered key→label map that only grows. Extend appends a
// new label at max(key)+1 and never renumbers existing entries, so values
// persisted by the host stay valid after the receiver reports a new input.
package state
