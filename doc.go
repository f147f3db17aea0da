// Package cryptobasis reconstructs the holdings and the profit and loss of a
// crypto portfolio from the raw ledgers of several exchanges.
//
// Exchanges export one record per asset movement: the two legs of a trade, or
// the withdrawal and the deposit of a transfer, appear as unrelated entries.
// The package rebuilds the economic events from these entries:
//   - Normalization: exchange specific vocabularies ("LIMIT_BUY", "XXBT",
//     "fiat_deposit") are mapped to canonical classes and symbols.
//   - Matching: trade legs are paired per exchange by time, transfer legs are
//     paired per symbol by amount, the difference being the network fee.
//   - Cost basis: every asset keeps its lots (FIFO, LIFO) or a running average
//     cost, and disposals realize a USD profit or loss.
//   - Pricing: trades against USD or a stable coin are priced by their ratio,
//     other assets are priced through a PriceOracle, optionally cached.
//
// The Reconciler drives the whole process over a chronological stream of
// entries and produces a Report. Nothing in a run is fatal: data gaps such as
// a missing purchase or an unavailable price become Warnings in the Report.
//
// This package serves as the foundational logic for the `cbt` command-line tool.
package cryptobasis
