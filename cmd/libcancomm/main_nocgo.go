//go:build !cgo

package main

// The C ABI in main.go requires cgo. Without it only the cgo-free helpers in
// abi.go are built, so the package still compiles and its tests run.
func main() {}
