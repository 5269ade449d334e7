// Copyright (c) 2024, The NrnForge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emit

import (
	"strings"

	"github.com/nrnforge/netgen/internal/desc"
)

// expandPlaceholders binds every %(local_index)s / %(global_index)s /
// %(pre_index)s tag substituteSpecialTerms left in an equation's
// rebound text, per §4.6's placeholder-expansion invariant. A local
// (per-unit) reference is addressed by the unit index `i`; a reduction
// result is addressed without an index (the convention for global-op
// placeholders); a pre-synaptic selector is addressed by the
// per-synapse loop index `pre_idx`.
func expandPlaceholders(text string) string {
	text = strings.ReplaceAll(text, "%(local_index)s", "[i]")
	text = strings.ReplaceAll(text, "%(global_index)s", "")
	text = strings.ReplaceAll(text, "%(pre_index)s", "[pre_idx]")
	return text
}

// checkNoPlaceholderLeak reports EmitterBug if any %(...)s tag survived
// expandPlaceholders, since the invariant requires none may leak into
// final text.
func checkNoPlaceholderLeak(text string) error {
	if strings.Contains(text, "%(") {
		return desc.Errf(desc.EmitterBug, text, "unbound placeholder tag survived expansion")
	}
	return nil
}

// indexLocalNames rewrites every free occurrence of a name in names
// within text to name+"[i]", per §4.6's indexing convention: a local
// attribute is addressed as x[i] inside the local meta-step body. It
// scans text as identifier/non-identifier runs rather than with regexp
// (Go's RE2 has no lookbehind), so a name already followed by "[" or
// preceded by "." is left untouched, and it never matches inside a
// longer identifier.
func indexLocalNames(text string, names map[string]bool) string {
	var out []byte
	i := 0
	for i < len(text) {
		c := text[i]
		if isIdentStart(c) {
			j := i + 1
			for j < len(text) && isIdentCont(text[j]) {
				j++
			}
			word := text[i:j]
			if names[word] && !precededByDot(text, i) && !followedByBracket(text, j) {
				out = append(out, word...)
				out = append(out, "[i]"...)
			} else {
				out = append(out, word...)
			}
			i = j
			continue
		}
		out = append(out, c)
		i++
	}
	return string(out)
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentCont(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func precededByDot(text string, i int) bool {
	return i > 0 && text[i-1] == '.'
}

func followedByBracket(text string, j int) bool {
	return j < len(text) && text[j] == '['
}
