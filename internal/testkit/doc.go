// Package testkit holds in-memory fakes shared by package tests.
//
// RSA identities are expensive to generate, so they are created once per
// user id and reused for the whole test binary.
package testkit
