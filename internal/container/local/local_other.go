//go:build !linux

package local

import "os"

func adviseRandom(_ *os.File) {}
