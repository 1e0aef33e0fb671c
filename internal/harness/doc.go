// Package harness runs label propagation scenarios against backend adapters.
//
// A Suite is a list of scenarios sharing a default prompt. Each scenario
// lists ordered label layers; the harness merges them into the effective
// label set and dispatches it through every registered adapter, recording
// one ScenarioResult per (scenario, backend) pair.
//
// # Suite Format
//
// Suites are YAML (or CUE) files with the following structure:
//
//	prompt: "Say hello in one word."
//	scenarios:
//	  - name: override
//	    description: "Call-time labels win over client defaults"
//	    backends: [vertex]            # optional, default all
//	    prompt: "Say hi."             # optional, default suite prompt
//	    layers:
//	      - origin: default
//	        labels: { team: research }
//	      - origin: override
//	        labels: { team: prod, region: us-west-1 }
//	    expect:
//	      labels: { team: prod, region: us-west-1 }
//	      forwarded: true
//
// Layers are merged with every default layer ahead of every override layer,
// keeping file order within an origin. Use labels: {} for an empty layer.
//
// # Pair Lifecycle
//
// Every pair moves through
//
//	Pending -> Configured | Skipped -> Dispatched -> Completed | Failed
//
// An unconfigured adapter skips its pairs without dispatching. A dispatched
// pair completes when the adapter returns non-empty text (and, with
// expect.forwarded, reports exactly the effective labels on the wire).
// Adapter errors become Failed results carrying the error kind; they never
// abort the run. All pairs run to completion before the Report is built.
//
// # Usage
//
//	suite, err := harness.LoadSuite("testdata/suites/basic.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	h, err := harness.New(adapters, harness.WithTimeout(30*time.Second))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	agg, err := h.Run(ctx, suite)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	report := agg.Summarize()
package harness
