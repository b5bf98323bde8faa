// Package file holds small filesystem helpers; internal/logwriter uses
// Append, and nothing outside the package's tests calls Exists. There
// is no persistent user state in this daemon, so the gob-based serialization helpers the original
// package carried have no analog here.
package file

import "os"

// Append opens path for appending (creating it if absent) and writes
// data, used by internal/logwriter for its on-disk log tail.
func Append(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(data)
	return err
}

// Exists reports whether path can be stat'd.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
