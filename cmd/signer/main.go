// Package main provides the signer command-line tool for validating and signing run reports.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"hnsort/internal/collector"
	"hnsort/internal/validator"
	"hnsort/pkg/metadata"
)

func main() {
	inputPath := flag.String("input", "", "Path to a markdown run report")
	maxRows := flag.Int("cap", collector.DefaultCap, "Maximum number of articles a report may list")
	verify := flag.Bool("verify", false, "Only verify the existing signature")
	flag.Parse()

	if *inputPath == "" {
		fmt.Println("Usage: signer -input <report.md> [-cap 100] [-verify]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	contentBytes, err := os.ReadFile(*inputPath)
	if err != nil {
		log.Fatalf("Error reading file: %v\n", err)
	}

	content := string(contentBytes)
	fmt.Printf("📂 Reading: %s (%d bytes)\n", *inputPath, len(content))

	v := validator.NewMarkdownValidator(*maxRows)

	if *verify {
		result := v.ValidateIntegrity(content)
		if !result.IsValid {
			result.PrintErrors()
			os.Exit(1)
		}

		meta, _ := metadata.Extract(content)
		fmt.Printf("✅ Signature valid (run %s, sorted: %t)\n", meta.RunID, meta.Validation)

		return
	}

	fmt.Println("🔍 Validating article table...")

	result := v.ValidateMarkdown(content)
	fmt.Println(result)
	result.PrintWarnings()

	// Order errors still get a signature, marked unvalidated. Anything else does not.
	if len(result.Errors) > result.Stats.OutOfOrder {
		result.PrintErrors()
		fmt.Println("❌ Skipping signature due to validation failure.")
		os.Exit(1)
	}

	if !result.Sorted {
		result.PrintErrors()
		fmt.Println("⚠️  Articles are out of order. Signing as unvalidated.")
	}

	// Keep the run id of an earlier signature.
	runID := ""
	if meta, _ := metadata.Extract(content); meta != nil {
		runID = meta.RunID
	}

	fmt.Println("✍️  Signing file...")
	signedContent := metadata.Sign(content, result.Sorted, runID)

	if err := os.WriteFile(*inputPath, []byte(signedContent), 0644); err != nil {
		log.Fatalf("Error writing file: %v\n", err)
	}

	fmt.Printf("✅ Signed and saved to: %s\n", *inputPath)

	if !result.Sorted {
		os.Exit(1)
	}
}
