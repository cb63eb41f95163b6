// Command kcheck is a static, build-time verifier standing in for a
// property this core otherwise only holds by discipline: every cache
// operation "happens on the kernel stack with interrupts disabled" (§5),
// so a cached frame's backing bytes should never be retained by anything
// outside the packages that make up that stack. kcheck loads a program's
// package graph, runs a whole-program pointer analysis over it, and flags
// any call into cache.(*Cache).Read/ReadAlloc made from outside the
// allowed packages — the closest static approximation of that invariant
// this teaching core can check without real hardware.
package main

import (
	"fmt"
	"os"

	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/pointer"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// allowedCallers are the packages permitted to call into the frame cache
// directly: the translation engines that copy bytes in and out of a
// cached frame on the kernel's behalf (§4.1, §4.2, §4.3).
var allowedCallers = map[string]bool{
	"cache": true,
	"mmu":   true,
	"tlb":   true,
	"pgtbl": true,
}

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <package pattern>\n", os.Args[0])
		os.Exit(2)
	}
	pattern := os.Args[1]

	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedImports |
			packages.NeedDeps | packages.NeedTypes | packages.NeedSyntax | packages.NeedTypesInfo,
	}
	pkgs, err := packages.Load(cfg, pattern)
	if err != nil {
		fail("loading %s: %v", pattern, err)
	}
	if packages.PrintErrors(pkgs) > 0 {
		fail("%s failed to type-check", pattern)
	}

	prog, ssaPkgs := ssautil.AllPackages(pkgs, ssa.SanityCheckFunctions)
	prog.Build()

	var mainPkg *ssa.Package
	for i, p := range pkgs {
		if p.Name == "main" {
			mainPkg = ssaPkgs[i]
		}
	}
	if mainPkg == nil {
		fail("%s is not a command: no package main in the loaded graph", pattern)
	}

	readFn, readAllocFn := findCacheReaders(prog)
	if readFn == nil || readAllocFn == nil {
		fail("cache.(*Cache).Read/ReadAlloc not found; was %q built against this module's cache package?", pattern)
	}

	pcfg := &pointer.Config{
		Mains:          []*ssa.Package{mainPkg},
		BuildCallGraph: true,
	}
	flagged := collectFlaggedCalls(prog, readFn, readAllocFn, pcfg)
	if len(flagged) == 0 {
		fmt.Println("kcheck: no callers of cache.Read/ReadAlloc outside cache/mmu/tlb/pgtbl")
		return
	}

	result, err := pointer.Analyze(pcfg)
	if err != nil {
		fail("pointer analysis: %v", err)
	}

	violations := 0
	for _, call := range flagged {
		ptr, ok := result.Queries[call]
		if !ok {
			continue
		}
		for _, label := range ptr.PointsTo().Labels() {
			violations++
			fmt.Printf("kcheck: frame-cache slice escapes %s to %s\n", call.Parent(), label)
		}
	}
	if violations > 0 {
		os.Exit(1)
	}
}

// collectFlaggedCalls walks every function in the program looking for
// direct calls to readFn or readAllocFn made from outside allowedCallers,
// registering each such call's result as a pointer-analysis query so its
// points-to set can be inspected once Analyze runs.
func collectFlaggedCalls(prog *ssa.Program, readFn, readAllocFn *ssa.Function, pcfg *pointer.Config) []*ssa.Call {
	var flagged []*ssa.Call
	for fn := range ssautil.AllFunctions(prog) {
		if fn.Pkg == nil || allowedCallers[fn.Pkg.Pkg.Path()] {
			continue
		}
		for _, b := range fn.Blocks {
			for _, instr := range b.Instrs {
				call, ok := instr.(*ssa.Call)
				if !ok {
					continue
				}
				callee := call.Common().StaticCallee()
				if callee != readFn && callee != readAllocFn {
					continue
				}
				fmt.Printf("kcheck: %s calls %s directly, outside the frame-cache's allowed callers\n", fn, callee)
				pcfg.AddQuery(call)
				flagged = append(flagged, call)
			}
		}
	}
	return flagged
}

func findCacheReaders(prog *ssa.Program) (read, readAlloc *ssa.Function) {
	for fn := range ssautil.AllFunctions(prog) {
		if fn.Pkg == nil || fn.Pkg.Pkg.Path() != "cache" {
			continue
		}
		switch fn.Name() {
		case "Read":
			read = fn
		case "ReadAlloc":
			readAlloc = fn
		}
	}
	return
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "kcheck: "+format+"\n", args...)
	os.Exit(1)
}
