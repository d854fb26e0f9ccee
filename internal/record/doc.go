// Package record provides the shared types for rollbook.
//
// This package contains the student, user and edit-request models, the error
// taxonomy and the small pure rules that derive values from records (age,
// course/semester display, edit field names). All other internal packages
// import record; record imports nothing internal.
//
// Key design constraints:
//   - Nullable text columns are plain strings; "" means NULL in storage
//   - Age is the only nullable number and is a *int
//   - "Now" always comes from a Clock so date rules are testable
//   - Edit request fields are canonical column names from EditableFields
package record
