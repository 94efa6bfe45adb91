// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import "errors"

// Exit codes. diff distinguishes "collections differ" from operational
// failure so scripts can branch on comparison outcome.
const (
	ExitSuccess     = 0 // Success, or diff found no differences
	ExitDifferences = 1 // diff found differences
	ExitError       = 2 // Operational error (bad arguments, I/O failure, malformed input path)
)

// errDifferences signals a successful diff that found differences. main
// maps it to ExitDifferences without printing an error.
var errDifferences = errors.New("differences found")
