package config

// This file includes the arch specific denies for the payload

var archSyscallDenies = []string{
	"iopl",
	"ioperm",
	"modify_ldt",
}
