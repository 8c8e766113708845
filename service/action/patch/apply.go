package patch

import "strings"

// Chunk application for UpdateOp. Matching is whitespace-insensitive so that
// scripts produced against a slightly reformatted copy of the file still
// land.

// canon collapses whitespace so comparisons ignore indentation drift.
func canon(s string) string {
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "\t", "")
	return strings.ReplaceAll(s, "\r", "")
}

func canonAll(lines []string) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = canon(line)
	}
	return out
}

// indexOfRun returns the first index of needle as a contiguous run within
// haystack, or -1.
func indexOfRun(haystack, needle []string) int {
outer:
	for i := 0; i <= len(haystack)-len(needle); i++ {
		for j := range needle {
			if haystack[i+j] != needle[j] {
				continue outer
			}
		}
		return i
	}
	return -1
}

// indexOfAny returns the first index in haystack matching any target, or -1.
func indexOfAny(haystack, targets []string) int {
	wanted := make(map[string]struct{}, len(targets))
	for _, target := range targets {
		wanted[target] = struct{}{}
	}
	for i, line := range haystack {
		if _, ok := wanted[line]; ok {
			return i
		}
	}
	return -1
}

func splice(lines []string, start, length int, replacement []string) []string {
	out := append([]string{}, lines[:start]...)
	out = append(out, replacement...)
	return append(out, lines[start+length:]...)
}

// applyUpdate rewrites content according to op's chunks and returns the new
// file lines. Chunks that cannot be located are skipped rather than
// corrupting the file.
func applyUpdate(content []byte, op UpdateOp) []string {
	lines := strings.Split(strings.TrimRight(string(content), "\n"), "\n")
	canonical := canonAll(lines)

	for _, chunk := range op.Chunks {
		oldCanon := canonAll(chunk.OldLines)

		// exact contiguous match
		if start := indexOfRun(canonical, oldCanon); start >= 0 {
			lines = splice(lines, start, len(chunk.OldLines), chunk.NewLines)
			canonical = canonAll(lines)
			continue
		}

		// fuzzy: anchor on the first line that matches anywhere, drop every
		// old line and insert the replacement at the anchor
		if anchor := indexOfAny(canonical, oldCanon); anchor >= 0 {
			drop := make(map[string]struct{}, len(oldCanon))
			for _, line := range oldCanon {
				drop[line] = struct{}{}
			}
			var rebuilt []string
			for i, line := range lines {
				if _, remove := drop[canonical[i]]; remove {
					if i == anchor {
						rebuilt = append(rebuilt, chunk.NewLines...)
					}
					continue
				}
				rebuilt = append(rebuilt, line)
			}
			lines = rebuilt
			canonical = canonAll(lines)
		}
	}
	return lines
}
