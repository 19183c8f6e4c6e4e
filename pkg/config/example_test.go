package config_test

import (
	"fmt"
	"log"

	"github.com/ajitpratap0/comet/pkg/config"
)

// ExampleNew demonstrates creating a new configuration with default values.
func ExampleNew() {
	cfg := config.New()

	// The configuration comes with the standard CSV dialect
	fmt.Printf("Separator: %s\n", cfg.Format.Separator)
	fmt.Printf("Chunk Size: %d\n", cfg.Limits.ChunkSize)
	fmt.Printf("Max Loaded Chunks: %d\n", cfg.Limits.MaxLoadedChunks)

	// Output:
	// Separator: ,
	// Chunk Size: 4194304
	// Max Loaded Chunks: 32
}

// ExampleConfig_Validate shows how to validate a configuration before
// handing it to a pipeline.
func ExampleConfig_Validate() {
	cfg := config.New()

	// Switch to a tab-separated dialect without a header row
	cfg.Format.Separator = "\\t"
	cfg.Format.FirstRowHeader = false
	cfg.Runtime.Workers = 8

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	fmt.Println("Configuration is valid!")

	// Output:
	// Configuration is valid!
}

// ExampleFormatConfig_DelimiterBytes shows escape interpretation of the
// delimiter strings.
func ExampleFormatConfig_DelimiterBytes() {
	cfg := config.New()
	cfg.Format.Separator = "\\t"

	sep, qual, lb, err := cfg.Format.DelimiterBytes()
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("separator=%q qualifier=%q line_break=%q\n", sep, qual, lb)

	// Output:
	// separator='\t' qualifier='"' line_break='\n'
}

// ExampleRuntimeConfig_MergeInParallel demonstrates how the explicit
// setting overrides the detected capability.
func ExampleRuntimeConfig_MergeInParallel() {
	cfg := config.New()

	// Force the serial merge path regardless of host capabilities
	serial := false
	cfg.Runtime.ParallelMerge = &serial

	fmt.Printf("Parallel merge: %v\n", cfg.Runtime.MergeInParallel())

	// Output:
	// Parallel merge: false
}
