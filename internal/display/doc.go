// Package display formats operator-facing warnings for the nxscollect CLI.
//
// Display warnings with optional components:
//
//	warning := display.Warning{
//	    Title:      "Master file backup kept",
//	    Message:    "The run stopped before all fields were collected",
//	    Files:      []string{"scan_001.nxs.__nxscollect_old__"},
//	    Suggestion: "Compare it with scan_001.nxs before removing it",
//	}
//	warning.Display(os.Stderr)
//
// Warnings are yellow when the writer is a terminal and plain otherwise.
// All functions accept io.Writer interfaces for testability.
package display
