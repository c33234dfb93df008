// Package harness runs conformance scenarios against the transpiler.
//
// A scenario is a Python source plus assertions on the generated Rust and
// the diagnostics. Every scenario is transpiled several times and the
// outputs must be byte-identical; repeated runs are served from a fresh
// in-memory result cache, so the check also covers the cache round trip.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: loop_accumulator_not_folded
//	description: "A binding reassigned in a loop keeps its later values"
//	source: |
//	  def f() -> int:
//	      total = 0
//	      for x in range(10):
//	          total = total + x
//	      return total
//	options:
//	  optimize: true
//	assertions:
//	  - type: code_contains
//	    text: "let mut total: i64 = 0;"
//	  - type: code_not_contains
//	    text: "return 0;"
//	  - type: no_errors
//
// source_file may replace source; mapping names a CUE module mapping file
// merged over the defaults. Both paths are relative to the scenario file.
//
// # Assertion Types
//
//   - code_contains: the generated code contains text
//   - code_not_contains: the generated code does not contain text
//   - code_matches: the generated code matches the pattern regexp
//   - diagnostic: a diagnostic of kind exists (optionally with construct,
//     line, and an exact count)
//   - no_errors: no diagnostic has error severity
//   - source_map: some source map entry covers source line
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/set_membership.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, e := range result.Errors {
//	        log.Println(e)
//	    }
//	}
package harness
