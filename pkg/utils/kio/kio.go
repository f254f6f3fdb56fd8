package kio

import (
	"os"
)

// DirCopy copies the file tree rooted at src into dest, creating dest if
// needed. It fails when a copied file already exists in dest.
func DirCopy(src string, dest string) error {
	if err := os.MkdirAll(dest, os.ModePerm); err != nil {
		return err
	}
	return os.CopyFS(dest, os.DirFS(src))
}
