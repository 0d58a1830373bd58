// Package guest owns request handling inside the VM.
//
// The Dispatcher maps each inbound frame to exactly one response frame
// carrying the request's seq: ping to pong, exec to exec_result, write_file
// to write_file_result and anything else to error. Side effects go through
// the injected Executor and FileWriter.
//
// Service wires the dispatcher to a transport and a session and runs a
// single connection until the host disconnects or the process is
// signalled.
package guest
