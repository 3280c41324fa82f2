// Package libfreenect2 registers the "libfreenect2" driver, a cgo binding to the native
// libfreenect2 library. The binding is only compiled with the libfreenect2 build tag:
//
//	go build -tags libfreenect2 ./...
//
// Without the tag importing this package has no effect.
package libfreenect2
