package main

import (
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
)

var (
	jsonl   = predict.Files("*.jsonl")
	methods = predict.Set{"fifo", "lifo", "average"}
)

// completion describes the command line for shell completion.
// Install it with COMP_INSTALL=1 cbt.
var completion = &complete.Command{
	Flags: map[string]complete.Predictor{
		"config":      predict.Files("*.yaml"),
		"log-level":   predict.Set{"debug", "info", "warn", "error"},
		"oracle-url":  predict.Something,
		"oracle-path": predict.Something,
		"cache-dir":   predict.Dirs("*"),
		"redis":       predict.Something,
		"raw":         predict.Nothing,
	},
	Sub: map[string]*complete.Command{
		"reconcile": {
			Flags: map[string]complete.Predictor{
				"entries":      jsonl,
				"records":      jsonl,
				"method":       methods,
				"shortfall":    predict.Set{"market", "zero"},
				"at":           predict.Something,
				"skip-matches": predict.Nothing,
				"skip-lots":    predict.Nothing,
				"strict":       predict.Nothing,
			},
		},
		"balance": {
			Flags: map[string]complete.Predictor{
				"entries": jsonl,
				"records": jsonl,
				"until":   predict.Something,
			},
		},
		"normalize": {
			Flags: map[string]complete.Predictor{
				"records": jsonl,
				"o":       jsonl,
				"sort":    predict.Nothing,
				"strict":  predict.Nothing,
			},
		},
		"help":     {},
		"flags":    {},
		"commands": {},
	},
}
