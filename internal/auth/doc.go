// Package auth verifies credentials against the users table.
//
// Passwords are stored as bcrypt hashes. Hashes written by older versions
// of the program (unsalted hex SHA-256) still verify, and are replaced with
// bcrypt on the next successful login.
//
// Authentication never distinguishes an unknown user from a wrong password:
// both produce a zero Result. Storage failures are returned as errors.
package auth
