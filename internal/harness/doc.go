// Package harness runs YAML-described workflow scenarios against a
// throwaway in-memory store.
//
// A scenario fixes "today", seeds students and users, executes a list of
// steps (inserts, searches, edit requests, logins) and finally checks the
// resulting rows. Every step lands in a trace so whole runs can be compared
// against golden files.
//
// Steps are executed through the same store, auth and editreq APIs the CLI
// uses; nothing is stubbed.
package harness
