package main

import (
	"fmt"
	"strings"

	"tracetrim/internal/traceformat"
)

// resolveRevision turns the --rev/--revisions flag pair into a concrete
// format revision.
func resolveRevision(name, revisionsPath string) (traceformat.Revision, error) {
	var extra []traceformat.Revision
	if revisionsPath != "" {
		loaded, err := traceformat.LoadFile(revisionsPath)
		if err != nil {
			return traceformat.Revision{}, err
		}
		extra = loaded
	}

	if name == "" {
		name = traceformat.RevisionA.Name
	}
	rev, ok := traceformat.Lookup(name, extra)
	if !ok {
		return traceformat.Revision{}, fmt.Errorf("unknown revision %q (known: %s)", name, knownRevisions(extra))
	}
	return rev, nil
}

func knownRevisions(extra []traceformat.Revision) string {
	var names []string
	for _, r := range append(extra, traceformat.Builtins()...) {
		names = append(names, r.Name)
	}
	return strings.Join(names, ", ")
}
