package main

import (
	"archive/zip"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/daimatz/deobvm/pkg/classfile"
	"github.com/daimatz/deobvm/pkg/ir"
)

// loadInputs decodes every class in the given .class files, jars and
// directories.
func loadInputs(paths []string) ([]*ir.Class, error) {
	var out []*ir.Class
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		var classes []*ir.Class
		switch {
		case info.IsDir():
			classes, err = loadDir(p)
		case filepath.Ext(p) == ".jar" || filepath.Ext(p) == ".zip":
			classes, err = loadJar(p)
		default:
			var c *ir.Class
			c, err = loadFile(p)
			classes = []*ir.Class{c}
		}
		if err != nil {
			return nil, err
		}
		out = append(out, classes...)
	}
	return out, nil
}

func loadFile(path string) (*ir.Class, error) {
	cf, err := classfile.ParseFile(path)
	if err != nil {
		return nil, err
	}
	c, err := classfile.Decode(cf)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return c, nil
}

func loadDir(dir string) ([]*ir.Class, error) {
	var out []*ir.Class
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isClassFile(path) {
			return nil
		}
		c, err := loadFile(path)
		if err != nil {
			return err
		}
		out = append(out, c)
		return nil
	})
	return out, err
}

func loadJar(path string) ([]*ir.Class, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer zr.Close()

	var out []*ir.Class
	for _, f := range zr.File {
		if !isClassFile(f.Name) || strings.HasPrefix(f.Name, "META-INF/") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%s!%s: %w", path, f.Name, err)
		}
		cf, err := classfile.Parse(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%s!%s: %w", path, f.Name, err)
		}
		c, err := classfile.Decode(cf)
		if err != nil {
			return nil, fmt.Errorf("%s!%s: %w", path, f.Name, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func isClassFile(name string) bool {
	return strings.HasSuffix(name, ".class") && !strings.HasSuffix(name, "module-info.class")
}
