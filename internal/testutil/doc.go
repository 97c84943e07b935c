// Package testutil provides deterministic clocks, ID generators and fixtures
// shared by tally's package tests.
package testutil
