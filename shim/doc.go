// Package shim transfers control to the loaded payload image.
//
// The trusted process re-executes itself with the shim argument. The
// shim receives:
//
//	fd 3  the sealed payload image
//	fd 4  the CBOR encoded Config
//	fd 5  the error pipe, close-on-exec
//
// It applies the resource limits, changes directory, installs the seccomp
// filter and execs the image. Any failure before exec is written to the
// error pipe as a ChildError. A successful exec closes the error pipe, so
// the parent reading EOF knows control was transferred.
//
// Init must be called from an init function of the main package (or the
// TestMain of tests that launch payloads).
package shim
