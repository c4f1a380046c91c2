package hierarchy

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/daimatz/deobvm/pkg/classfile"
	"github.com/daimatz/deobvm/pkg/ir"
)

// Loader supplies library class descriptors by internal name.
type Loader interface {
	LoadClass(name string) (*ir.Class, error)
}

// ZipLoader loads classes from a jar or a JDK jmod file.
type ZipLoader struct {
	Path   string
	header int
	prefix string

	once  sync.Once
	err   error
	files map[string]*zip.File
}

// NewJmodLoader creates a loader over a JDK jmod file.
func NewJmodLoader(jmodPath string) *ZipLoader {
	return &ZipLoader{Path: jmodPath, header: 4, prefix: "classes/"}
}

// NewJarLoader creates a loader over a jar file.
func NewJarLoader(jarPath string) *ZipLoader {
	return &ZipLoader{Path: jarPath}
}

func (l *ZipLoader) open() {
	data, err := os.ReadFile(l.Path)
	if err != nil {
		l.err = fmt.Errorf("zip: reading %s: %w", l.Path, err)
		return
	}
	if len(data) < l.header {
		l.err = fmt.Errorf("zip: %s is too short", l.Path)
		return
	}

	// jmod files start with a "JM\x01\x00" header before the zip data
	data = data[l.header:]
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		l.err = fmt.Errorf("zip: opening %s: %w", l.Path, err)
		return
	}
	l.files = make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		l.files[f.Name] = f
	}
}

// LoadClass implements Loader.
func (l *ZipLoader) LoadClass(name string) (*ir.Class, error) {
	l.once.Do(l.open)
	if l.err != nil {
		return nil, l.err
	}

	target := l.prefix + name + ".class"
	file, ok := l.files[target]
	if !ok {
		return nil, fmt.Errorf("zip: class %s not found in %s", name, l.Path)
	}
	rc, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("zip: opening %s: %w", target, err)
	}
	defer rc.Close()

	return decode(rc, name)
}

// DirLoader loads classes from a directory tree of .class files.
type DirLoader struct {
	Dir string
}

// NewDirLoader creates a loader rooted at dir.
func NewDirLoader(dir string) *DirLoader {
	return &DirLoader{Dir: dir}
}

// LoadClass implements Loader.
func (l *DirLoader) LoadClass(name string) (*ir.Class, error) {
	path := filepath.Join(l.Dir, filepath.FromSlash(name)+".class")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dir: class %s not found: %w", name, err)
	}
	defer f.Close()
	return decode(f, name)
}

func decode(r io.Reader, name string) (*ir.Class, error) {
	cf, err := classfile.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}
	c, err := classfile.Decode(cf)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", name, err)
	}
	return c, nil
}

// MultiLoader tries each loader in order.
type MultiLoader []Loader

// LoadClass implements Loader.
func (m MultiLoader) LoadClass(name string) (*ir.Class, error) {
	var last error
	for _, l := range m {
		c, err := l.LoadClass(name)
		if err == nil {
			return c, nil
		}
		last = err
	}
	if last == nil {
		last = fmt.Errorf("no loaders configured")
	}
	return nil, last
}

// MapLoader serves classes from memory.
type MapLoader map[string]*ir.Class

// LoadClass implements Loader.
func (m MapLoader) LoadClass(name string) (*ir.Class, error) {
	if c, ok := m[name]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("class %s not found", name)
}

// LibraryLoader builds the loader for a list of jmod, jar and directory
// paths, optionally ending with the bundled platform stubs.
func LibraryLoader(paths []string, builtins bool) Loader {
	var ml MultiLoader
	for _, p := range paths {
		switch filepath.Ext(p) {
		case ".jmod":
			ml = append(ml, NewJmodLoader(p))
		case ".jar", ".zip":
			ml = append(ml, NewJarLoader(p))
		default:
			ml = append(ml, NewDirLoader(p))
		}
	}
	if builtins {
		ml = append(ml, BuiltinLoader())
	}
	return ml
}
