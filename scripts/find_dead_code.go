package main

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// DeadCodeFinder finds potentially unused code in Go projects
type DeadCodeFinder struct {
	fileSet *token.FileSet

	// Track declarations and usage
	declarations map[string]*Declaration
	usages       map[string]bool

	// Integration verification
	subsystemIntegrations map[string]bool
}

type Declaration struct {
	Name     string
	Type     string // function, variable, constant, type
	Package  string
	File     string
	Position token.Position
	Exported bool
	Comment  string
}

// Subsystem wiring patterns to verify. Each list names the constructors and
// entry points a wired keeper must call somewhere.
var subsystemPatterns = map[string][]string{
	"Store": {
		"AppendHistory", "NewSafeFileWriter", "NewSafeCSVWriter",
	},
	"Monitor": {
		"NewScheduler", "NewCoordinator", "NewAlertManager",
		"RunExclusive", "CheckEntry",
	},
	"Trading": {
		"NewTradingService", "NewEventBus", "NewCommandBus",
	},
	"Dashboard": {
		"NewServer", "NewTradeExporter", "NewLogBuffer", "ExportTrades",
	},
}

func NewDeadCodeFinder() *DeadCodeFinder {
	return &DeadCodeFinder{
		fileSet:               token.NewFileSet(),
		declarations:          make(map[string]*Declaration),
		usages:                make(map[string]bool),
		subsystemIntegrations: make(map[string]bool),
	}
}

func (dcf *DeadCodeFinder) AnalyzeDirectory(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		// Skip hidden and underscore directories like the go tool does
		if info.IsDir() {
			name := info.Name()
			if path != dir && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "vendor") {
				return filepath.SkipDir
			}
			return nil
		}

		// Skip non-Go files and test files for dead code analysis
		if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}

		return dcf.analyzeFile(path)
	})
}

func (dcf *DeadCodeFinder) analyzeFile(filename string) error {
	content, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	// Parse the Go source file
	node, err := parser.ParseFile(dcf.fileSet, filename, content, parser.ParseComments)
	if err != nil {
		return err
	}

	// Extract package name
	packageName := node.Name.Name

	// Walk the AST to find declarations and usages
	ast.Inspect(node, func(n ast.Node) bool {
		switch x := n.(type) {
		case *ast.FuncDecl:
			dcf.recordFunction(x, packageName, filename)
		case *ast.GenDecl:
			dcf.recordGenDecl(x, packageName, filename)
		case *ast.CallExpr:
			dcf.recordUsage(x)
		case *ast.Ident:
			dcf.recordIdentUsage(x)
		}
		return true
	})

	// Check for subsystem wiring patterns
	contentStr := string(content)
	dcf.checkSubsystemIntegrations(contentStr)

	return nil
}

func (dcf *DeadCodeFinder) recordFunction(fn *ast.FuncDecl, pkg, file string) {
	if fn.Name == nil {
		return
	}

	name := fn.Name.Name
	exported := ast.IsExported(name)

	// Get comment if available
	comment := ""
	if fn.Doc != nil {
		comment = fn.Doc.Text()
	}

	dcf.declarations[pkg+"."+name] = &Declaration{
		Name:     name,
		Type:     "function",
		Package:  pkg,
		File:     file,
		Position: dcf.fileSet.Position(fn.Pos()),
		Exported: exported,
		Comment:  comment,
	}
}

func (dcf *DeadCodeFinder) recordGenDecl(gen *ast.GenDecl, pkg, file string) {
	for _, spec := range gen.Specs {
		switch s := spec.(type) {
		case *ast.ValueSpec:
			for _, name := range s.Names {
				if name.Name == "_" {
					continue
				}

				declType := "variable"
				if gen.Tok == token.CONST {
					declType = "constant"
				}

				dcf.declarations[pkg+"."+name.Name] = &Declaration{
					Name:     name.Name,
					Type:     declType,
					Package:  pkg,
					File:     file,
					Position: dcf.fileSet.Position(name.Pos()),
					Exported: ast.IsExported(name.Name),
				}
			}
		case *ast.TypeSpec:
			if s.Name.Name != "_" {
				dcf.declarations[pkg+"."+s.Name.Name] = &Declaration{
					Name:     s.Name.Name,
					Type:     "type",
					Package:  pkg,
					File:     file,
					Position: dcf.fileSet.Position(s.Name.Pos()),
					Exported: ast.IsExported(s.Name.Name),
				}
			}
		}
	}
}

func (dcf *DeadCodeFinder) recordUsage(call *ast.CallExpr) {
	switch fun := call.Fun.(type) {
	case *ast.Ident:
		dcf.usages[fun.Name] = true
	case *ast.SelectorExpr:
		if ident, ok := fun.X.(*ast.Ident); ok {
			dcf.usages[ident.Name+"."+fun.Sel.Name] = true
		}
		dcf.usages[fun.Sel.Name] = true
	}
}

func (dcf *DeadCodeFinder) recordIdentUsage(ident *ast.Ident) {
	if ident.Name != "_" {
		dcf.usages[ident.Name] = true
	}
}

func (dcf *DeadCodeFinder) checkSubsystemIntegrations(content string) {
	for subsystem, patterns := range subsystemPatterns {
		for _, pattern := range patterns {
			if strings.Contains(content, pattern) {
				dcf.subsystemIntegrations[subsystem+"."+pattern] = true
			}
		}
	}
}

func (dcf *DeadCodeFinder) FindDeadCode() []*Declaration {
	var deadCode []*Declaration

	for key, decl := range dcf.declarations {
		// Skip exported functions/types as they might be used externally
		if decl.Exported {
			continue
		}

		// Skip main functions
		if decl.Name == "main" || decl.Name == "init" {
			continue
		}

		// Skip functions with specific prefixes that indicate they're used by frameworks
		if strings.HasPrefix(decl.Name, "Test") ||
			strings.HasPrefix(decl.Name, "Benchmark") ||
			strings.HasPrefix(decl.Name, "Example") {
			continue
		}

		// Check if used
		used := dcf.usages[decl.Name] || dcf.usages[key]
		if !used {
			deadCode = append(deadCode, decl)
		}
	}

	return deadCode
}

func (dcf *DeadCodeFinder) CheckSubsystemIntegration() map[string]map[string]bool {
	results := make(map[string]map[string]bool)

	for subsystem, patterns := range subsystemPatterns {
		results[subsystem] = make(map[string]bool)
		for _, pattern := range patterns {
			results[subsystem][pattern] = dcf.subsystemIntegrations[subsystem+"."+pattern]
		}
	}

	return results
}

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: go run find_dead_code.go <directory>")
	}

	dir := os.Args[1]
	finder := NewDeadCodeFinder()

	fmt.Println("🔍 Dead Code Analysis")
	fmt.Println("====================")

	// Analyze the directory
	if err := finder.AnalyzeDirectory(dir); err != nil {
		log.Fatalf("Error analyzing directory: %v", err)
	}

	// Find dead code
	deadCode := finder.FindDeadCode()

	fmt.Printf("\n📊 Found %d potentially unused declarations:\n", len(deadCode))
	for _, decl := range deadCode {
		fmt.Printf("  • %s %s in %s:%d\n",
			decl.Type, decl.Name,
			filepath.Base(decl.File),
			decl.Position.Line)

		if decl.Comment != "" {
			comment := strings.TrimSpace(decl.Comment)
			if len(comment) > 50 {
				comment = comment[:50] + "..."
			}
			fmt.Printf("    Comment: %s\n", comment)
		}
	}

	// Check subsystem wiring
	fmt.Println("\n🔄 Subsystem Integration Status:")
	fmt.Println("================================")

	subsystemResults := finder.CheckSubsystemIntegration()

	for subsystem, patterns := range subsystemResults {
		fmt.Printf("\n%s:\n", subsystem)
		allIntegrated := true

		for pattern, integrated := range patterns {
			status := "❌"
			if integrated {
				status = "✅"
			} else {
				allIntegrated = false
			}
			fmt.Printf("  %s %s\n", status, pattern)
		}

		if allIntegrated {
			fmt.Printf("  🎉 %s FULLY INTEGRATED\n", subsystem)
		} else {
			fmt.Printf("  ⚠️  %s INCOMPLETE\n", subsystem)
		}
	}

	fmt.Println("\n✨ Analysis complete!")

	if len(deadCode) == 0 {
		fmt.Println("🎉 No dead code found!")
	} else {
		fmt.Printf("⚠️  Found %d potential dead code items for review\n", len(deadCode))
	}
}
