// Package memfd holds loaded payload images in sealed anonymous memory
// files. Once sealed, neither the trusted process nor anyone holding the
// descriptor can change the bytes that will be executed.
package memfd
