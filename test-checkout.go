// +build ignore

// Quick check of Android tree and toolchain checkout detection
package main

import (
	"fmt"
	"os"

	"github.com/buckleypaul/droidclang/internal/checkout"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run test-checkout.go <android-path> [toolchain-dir]")
		os.Exit(1)
	}

	path := os.Args[1]
	fmt.Printf("Checking Android tree at: %s\n\n", path)

	tree, err := checkout.OpenAndroidTree(path)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	fmt.Println("✅ Android tree detected!")
	fmt.Printf("   Root:        %s\n", tree.Root)
	fmt.Printf("   clang-dev:   %s\n", tree.DevToolchainLink())
	fmt.Printf("   Host tools:  %s\n", tree.HostBinDir())

	if target, err := os.Readlink(tree.DevToolchainLink()); err == nil {
		fmt.Printf("\n✅ clang-dev points at %s\n", target)
	} else {
		fmt.Printf("\n⚠️  clang-dev not linked: %v\n", err)
	}

	start := "."
	if len(os.Args) > 2 {
		start = os.Args[2]
	}
	co, err := checkout.DetectToolchainCheckout(start)
	if err != nil {
		fmt.Printf("\n⚠️  %v\n", err)
		return
	}
	fmt.Printf("\n✅ Toolchain checkout: %s\n", co.Root)
	fmt.Printf("   Build script: %s\n", co.BuildScript())
	fmt.Printf("   Prebuilt bin: %s\n", co.PrebuiltClangBinDir())
}
