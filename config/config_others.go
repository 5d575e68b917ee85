//go:build !amd64

package config

var archSyscallDenies = []string{}
