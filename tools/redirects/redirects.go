package main

import (
	"debug/elf"
	"encoding/binary"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/modfile"
)

// redirectsSection is the kernel image section that the rt0 code reads the
// redirect table from.
const redirectsSection = ".goredirectstbl"

const directive = "//go:redirect-from"

// redirect replaces calls to the src symbol with calls to dst.
type redirect struct {
	src string
	dst string

	srcVMA uint64
	dstVMA uint64
}

// modulePath returns the module path declared by the go.mod file in root.
func modulePath(root string) (string, error) {
	data, err := os.ReadFile(filepath.Join(root, "go.mod"))
	if err != nil {
		return "", err
	}

	path := modfile.ModulePath(data)
	if path == "" {
		return "", fmt.Errorf("%s: missing module directive", filepath.Join(root, "go.mod"))
	}
	return path, nil
}

// collectGoFiles returns the non-test Go files below dir.
func collectGoFiles(dir string) ([]string, error) {
	var goFiles []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}

		if filepath.Ext(path) == ".go" && !strings.HasSuffix(path, "_test.go") {
			goFiles = append(goFiles, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return goFiles, nil
}

// findRedirects scans the doc comments of every function declared in goFiles
// for redirect directives. File paths are interpreted relative to root whose
// module path is modPath.
func findRedirects(root, modPath string, goFiles []string) ([]*redirect, error) {
	var redirects []*redirect

	for _, goFile := range goFiles {
		fset := token.NewFileSet()
		f, err := parser.ParseFile(fset, goFile, nil, parser.ParseComments)
		if err != nil {
			return nil, err
		}

		relDir, err := filepath.Rel(root, filepath.Dir(goFile))
		if err != nil {
			return nil, err
		}

		for _, decl := range f.Decls {
			fnDecl, ok := decl.(*ast.FuncDecl)
			if !ok || fnDecl.Doc == nil || fnDecl.Recv != nil {
				continue
			}

			for _, comment := range fnDecl.Doc.List {
				if !strings.HasPrefix(comment.Text, directive) {
					continue
				}

				// build qualified name to fn
				fqName := fmt.Sprintf("%s/%s.%s", modPath, filepath.ToSlash(relDir), fnDecl.Name.Name)

				fields := strings.Fields(comment.Text)
				if len(fields) != 2 || fields[0] != directive {
					return nil, fmt.Errorf("%s: malformed go:redirect-from syntax for %q", fset.Position(comment.Pos()), fqName)
				}

				redirects = append(redirects, &redirect{src: fields[1], dst: fqName})
			}
		}
	}

	return redirects, nil
}

// resolveSymbols looks up the addresses of both ends of every redirect in
// the image symbol table.
func resolveSymbols(redirects []*redirect, symbols []elf.Symbol) error {
	for _, r := range redirects {
		for _, symbol := range symbols {
			switch symbol.Name {
			case r.src:
				r.srcVMA = symbol.Value
			case r.dst:
				r.dstVMA = symbol.Value
			}
		}

		switch {
		case r.srcVMA == 0:
			return fmt.Errorf("could not locate address of %q", r.src)
		case r.dstVMA == 0:
			return fmt.Errorf("could not locate address of %q", r.dst)
		}
	}

	return nil
}

// writeTable emits the (src, dst) address pairs in the layout expected by
// rt0.
func writeTable(w io.Writer, redirects []*redirect) error {
	for _, r := range redirects {
		if err := binary.Write(w, binary.LittleEndian, [2]uint64{r.srcVMA, r.dstVMA}); err != nil {
			return err
		}
	}
	return nil
}

// populateTable resolves the redirects against imgFile and writes the table
// into its redirects section.
func populateTable(redirects []*redirect, imgFile string) error {
	img, err := elf.Open(imgFile)
	if err != nil {
		return err
	}

	symbols, err := img.Symbols()
	if err != nil {
		img.Close()
		return err
	}

	section := img.Section(redirectsSection)
	img.Close()
	if section == nil {
		return fmt.Errorf("%s: missing %s section", imgFile, redirectsSection)
	}

	if need := uint64(len(redirects)) * 16; need > section.Size {
		return fmt.Errorf("%s: %s section holds %d bytes; need %d", imgFile, redirectsSection, section.Size, need)
	}

	if err = resolveSymbols(redirects, symbols); err != nil {
		return fmt.Errorf("%s: %w", imgFile, err)
	}

	f, err := os.OpenFile(imgFile, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err = f.Seek(int64(section.Offset), io.SeekStart); err != nil {
		return err
	}
	return writeTable(f, redirects)
}
