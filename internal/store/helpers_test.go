package store

import "os"

func writeFile(path string, size int) error {
	return os.WriteFile(path, make([]byte, size), 0o644)
}
