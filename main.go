package main

import (
	"fmt"
	"log"
	"os"

	"github.com/apiharness/service-contract-tests/apitests"
	"github.com/apiharness/service-contract-tests/config"
	"github.com/apiharness/service-contract-tests/framework"
	"github.com/apiharness/service-contract-tests/mockservice"
)

func main() {
	var params commandParams
	if !params.Read(os.Args) {
		os.Exit(1)
	}

	mainDebugLogger := framework.NullLogger()
	if params.debugAll {
		mainDebugLogger = log.New(os.Stdout, "", log.LstdFlags)
	}

	environment, err := config.Resolve(params.configDir, params.envName, params.overrides.AsMap())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %s\n", err)
		os.Exit(1)
	}

	if params.embeddedMockPort > 0 {
		if err := mockservice.New(mainDebugLogger).Start(params.embeddedMockPort); err != nil {
			fmt.Fprintf(os.Stderr, "Mock service error: %s\n", err)
			os.Exit(1)
		}
		environment.MockAdminURL = fmt.Sprintf("http://localhost:%d", params.embeddedMockPort)
	}

	if err := apitests.WaitForService(environment, params.startupTimeout, mainDebugLogger); err != nil {
		fmt.Fprintf(os.Stderr, "Service error: %s\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Printf("Running test suite against environment %q (%s)\n", environment.Name, environment.BaseURL)
	for _, feature := range apitests.AllFeatures {
		if !environment.HasFeature(feature) {
			fmt.Printf("Feature %q is not declared by this environment; dependent tests will be skipped\n", feature)
		}
	}
	framework.PrintFilterDescription(os.Stdout, params.filters)

	testLogger := &framework.ConsoleTestLogger{
		Output:               os.Stdout,
		DebugOutputOnFailure: params.debug || params.debugAll,
		DebugOutputOnSuccess: params.debugAll,
	}

	results, err := apitests.RunTestSuite(environment, params.contractsDir,
		params.filters.AsFilter, testLogger, mainDebugLogger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Test suite error: %s\n", err)
		os.Exit(1)
	}

	fmt.Println()
	framework.PrintResults(os.Stdout, results)

	if params.outputPath != "" {
		if err := writeResultsFile(params.outputPath, results); err != nil {
			fmt.Fprintf(os.Stderr, "Output error: %s\n", err)
			os.Exit(1)
		}
	}

	if !results.OK() {
		var failed []framework.TestID
		for _, f := range results.Failures {
			failed = append(failed, f.TestID)
		}
		fmt.Println()
		fmt.Println("To re-run only the failed tests:")
		fmt.Printf("  %s\n", params.rerunHint(failed))
		os.Exit(1)
	}
}

func writeResultsFile(path string, results framework.Results) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return results.WriteJSON(f)
}
