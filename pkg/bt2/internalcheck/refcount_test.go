package internalcheck

import (
	"fmt"
	"go/ast"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

const backendPath = "github.com/tracewire/bt2-go/pkg/bt2/internal/backend"

// wrapperPackages are the packages that must manage references through
// own.Ref rather than calling the backend directly.
var wrapperPackages = []string{
	"github.com/tracewire/bt2-go/pkg/bt2",
	"github.com/tracewire/bt2-go/pkg/bt2/ctf",
}

func loadPackages(t *testing.T, paths ...string) []*packages.Package {
	t.Helper()
	cfg := &packages.Config{
		Mode: packages.NeedSyntax | packages.NeedTypes | packages.NeedTypesInfo | packages.NeedFiles | packages.NeedName,
	}
	pkgs, err := packages.Load(cfg, paths...)
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}
	for _, pkg := range pkgs {
		for _, e := range pkg.Errors {
			t.Fatalf("load %s: %v", pkg.PkgPath, e)
		}
	}
	return pkgs
}

func TestRefCountsGoThroughOwn(t *testing.T) {
	var findings []string

	for _, pkg := range loadPackages(t, wrapperPackages...) {
		for _, file := range pkg.Syntax {
			ast.Inspect(file, func(n ast.Node) bool {
				call, ok := n.(*ast.CallExpr)
				if !ok {
					return true
				}
				selector, ok := call.Fun.(*ast.SelectorExpr)
				if !ok {
					return true
				}
				obj := pkg.TypesInfo.Uses[selector.Sel]
				if obj == nil || obj.Pkg() == nil || obj.Pkg().Path() != backendPath {
					return true
				}
				switch obj.Name() {
				case "GetRef", "PutRef":
					pos := pkg.Fset.Position(call.Pos())
					findings = append(findings, fmt.Sprintf("%s: %s called directly; use own.Take, own.Ref.Share or own.Ref.Release", pos, obj.Name()))
				}
				return true
			})
		}
	}

	if len(findings) > 0 {
		t.Fatalf("reference counting policy violation:\n%s", strings.Join(findings, "\n"))
	}
}
