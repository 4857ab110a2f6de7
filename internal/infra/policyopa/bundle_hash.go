package policyopa

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type bundleFile struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
}

// ComputeBundleHashFromPath derives a stable identifier for the loaded policy
// bundle so sign receipts can state which policy applied. Only normative files
// (rego modules and data documents) contribute.
func ComputeBundleHashFromPath(bundlePath string) (string, error) {
	info, err := os.Stat(bundlePath)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		data, err := os.ReadFile(bundlePath)
		if err != nil {
			return "", err
		}
		return hashFiles([]bundleFile{{Path: filepath.Base(bundlePath), SHA256: sha256Hex(data)}})
	}
	return computeFromFS(os.DirFS(bundlePath))
}

func computeFromFS(fsys fs.FS) (string, error) {
	var files []bundleFile
	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == "." {
			return nil
		}
		base := filepath.Base(path)
		if d.IsDir() {
			if strings.HasPrefix(base, ".") {
				return fs.SkipDir
			}
			return nil
		}
		if !isNormative(base) {
			return nil
		}
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return err
		}
		files = append(files, bundleFile{Path: filepath.ToSlash(path), SHA256: sha256Hex(data)})
		return nil
	})
	if err != nil {
		return "", err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return hashFiles(files)
}

func hashFiles(files []bundleFile) (string, error) {
	payload, err := json.Marshal(files)
	if err != nil {
		return "", err
	}
	return sha256Hex(payload), nil
}

func isNormative(base string) bool {
	return strings.HasSuffix(base, ".rego") || base == "data.json"
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
