package locator

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/modfile"
	"golang.org/x/mod/module"
)

// Overlay provides in-memory content for files, keyed by path relative to the
// module root. An overlay entry for "go.mod" replaces the file on disk.
type Overlay map[string][]byte

// ReplaceDirective represents a single replace directive in a go.mod file.
type ReplaceDirective struct {
	OldPath    string
	OldVersion string // Empty if not specified
	NewPath    string
	NewVersion string // Empty if it's a local path or not specified
	IsLocal    bool
}

// Locator finds the module root and maps import paths of the module to
// directories.
type Locator struct {
	modulePath string
	rootDir    string
	replaces   []ReplaceDirective
	overlay    Overlay
}

// New creates a new Locator by searching for a go.mod file.
// It starts searching from startPath and moves up the directory tree.
func New(startPath string, overlay Overlay) (*Locator, error) {
	absPath, err := filepath.Abs(startPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path for %s: %w", startPath, err)
	}

	var rootDir string
	var content []byte
	if c, ok := overlay["go.mod"]; ok {
		rootDir, content = absPath, c
	} else {
		rootDir, err = findModuleRoot(absPath)
		if err != nil {
			return nil, err
		}
		goModFilePath := filepath.Join(rootDir, "go.mod")
		content, err = os.ReadFile(goModFilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read go.mod at %s: %w", goModFilePath, err)
		}
	}

	f, err := modfile.Parse("go.mod", content, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to parse go.mod in %s: %w", rootDir, err)
	}
	if f.Module == nil {
		return nil, fmt.Errorf("module path not found in go.mod in %s", rootDir)
	}
	modPath := f.Module.Mod.Path
	if err := module.CheckImportPath(modPath); err != nil {
		return nil, fmt.Errorf("invalid module path in %s: %w", rootDir, err)
	}

	var replaces []ReplaceDirective
	for _, r := range f.Replace {
		replaces = append(replaces, ReplaceDirective{
			OldPath:    r.Old.Path,
			OldVersion: r.Old.Version,
			NewPath:    r.New.Path,
			NewVersion: r.New.Version,
			IsLocal:    r.New.Version == "" && modfile.IsDirectoryPath(r.New.Path),
		})
	}

	return &Locator{
		modulePath: modPath,
		rootDir:    rootDir,
		replaces:   replaces,
		overlay:    overlay,
	}, nil
}

// RootDir returns the project's root directory (where go.mod is located).
func (l *Locator) RootDir() string { return l.rootDir }

// ModulePath returns the module path from go.mod.
func (l *Locator) ModulePath() string { return l.modulePath }

// FindPackageDir converts an import path to a directory. Paths inside the
// module and local replacements are resolvable; anything else is an error.
func (l *Locator) FindPackageDir(importPath string) (string, error) {
	for _, r := range l.replaces {
		if !r.IsLocal {
			continue
		}
		if rel, ok := trimPathPrefix(importPath, r.OldPath); ok {
			base := r.NewPath
			if !filepath.IsAbs(base) {
				base = filepath.Join(l.rootDir, base)
			}
			return filepath.Join(base, filepath.FromSlash(rel)), nil
		}
	}
	if rel, ok := trimPathPrefix(importPath, l.modulePath); ok {
		return filepath.Join(l.rootDir, filepath.FromSlash(rel)), nil
	}
	return "", fmt.Errorf("import path %q could not be resolved. Current module is %q (root: %s)", importPath, l.modulePath, l.rootDir)
}

// Mounts maps the directories of local replacements, slash-separated and
// relative to the root, to the import paths they replace.
func (l *Locator) Mounts() (map[string]string, error) {
	mounts := map[string]string{}
	for _, r := range l.replaces {
		if !r.IsLocal {
			continue
		}
		dir, err := l.FindPackageDir(r.OldPath)
		if err != nil {
			return nil, err
		}
		rel, err := filepath.Rel(l.rootDir, dir)
		if err != nil {
			return nil, fmt.Errorf("replacement %s: %w", r.OldPath, err)
		}
		if rel == "." {
			continue
		}
		mounts[filepath.ToSlash(rel)] = r.OldPath
	}
	return mounts, nil
}

// Sources reads the non-test Go files of the module and of its local
// replacements, keyed by slash-separated path relative to the root. Overlay
// entries win over files on disk and add files that do not exist there.
// Nested modules and testdata are skipped.
func (l *Locator) Sources() (map[string]string, error) {
	docs := make(map[string]string)
	if err := l.walk(l.rootDir, docs); err != nil {
		return nil, err
	}
	mounts, err := l.Mounts()
	if err != nil {
		return nil, err
	}
	for dir := range mounts {
		if err := l.walk(filepath.Join(l.rootDir, filepath.FromSlash(dir)), docs); err != nil {
			return nil, err
		}
	}
	for name, content := range l.overlay {
		if isSource(filepath.Base(name)) {
			docs[filepath.ToSlash(name)] = string(content)
		}
	}
	return docs, nil
}

func (l *Locator) walk(top string, docs map[string]string) error {
	err := filepath.WalkDir(top, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == top {
				return nil
			}
			name := d.Name()
			if name == "testdata" || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
				return filepath.SkipDir
			}
			if _, err := os.Stat(filepath.Join(path, "go.mod")); err == nil {
				return filepath.SkipDir
			}
			return nil
		}
		if !isSource(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(l.rootDir, path)
		if err != nil {
			return err
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		docs[filepath.ToSlash(rel)] = string(b)
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("walk %s: %w", top, err)
	}
	return nil
}

func isSource(name string) bool {
	return strings.HasSuffix(name, ".go") && !strings.HasSuffix(name, "_test.go")
}

func trimPathPrefix(path, prefix string) (string, bool) {
	if path == prefix {
		return "", true
	}
	if strings.HasPrefix(path, prefix+"/") {
		return path[len(prefix)+1:], true
	}
	return "", false
}

// findModuleRoot searches for any go.mod starting from a given directory and moving upwards.
func findModuleRoot(dir string) (string, error) {
	currentDir := dir
	for {
		goModPath := filepath.Join(currentDir, "go.mod")
		if _, err := os.Stat(goModPath); err == nil {
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return "", fmt.Errorf("go.mod not found in or above %s", dir)
		}
		currentDir = parentDir
	}
}
