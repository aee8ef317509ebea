package resolver

import "os"

// mkdirAll is swapped in tests to simulate an unwritable disk
var mkdirAll = func(dir string) error {
	return os.MkdirAll(dir, 0755)
}
