//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Test runs the full test suite with the race detector enabled.
func Test() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Lint runs go vet over the module.
func Lint() error {
	return sh.RunV("go", "vet", "./...")
}

// Build compiles the CLI wrapper binary.
func Build() error {
	mg.Deps(Lint)
	return sh.RunV("go", "build", "-o", "bin/sqlitereader", "./cmd/sqlitereader")
}

// Default is the target run when no target is named explicitly.
var Default = Test
