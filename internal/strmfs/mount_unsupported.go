//go:build !linux
// +build !linux

package strmfs

import (
	"fmt"
)

// Mount is unavailable on non-Linux builds because strmfs depends on go-fuse.
func Mount(dir string, lib *Library, allowOther bool) (Server, error) {
	return nil, fmt.Errorf("strmfs mount is only supported on linux builds")
}
