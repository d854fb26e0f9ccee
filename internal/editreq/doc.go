// Package editreq implements the student edit-request workflow.
//
// A student proposes a new value for one field of their record. The request
// starts OPEN and an admin moves it to APPROVED, which applies the value, or
// REJECTED, which does not. Both transitions are one-way.
//
// Approval is atomic: the open check, the field write and the status change
// commit together or not at all.
package editreq
