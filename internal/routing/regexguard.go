package routing

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

const (
	// maxRegexPatternLen caps rule-supplied patterns. Anything longer is
	// rejected as unsafe rather than compiled.
	maxRegexPatternLen = 512

	// maxRegexInputLen caps the subject string so adversarial metadata
	// cannot inflate match cost.
	maxRegexInputLen = 4096
)

var regexCache = struct {
	sync.RWMutex
	compiled map[string]*regexp.Regexp
}{compiled: make(map[string]*regexp.Regexp)}

// safeRegexMatch matches a rule-supplied pattern against a field value
// with a backtracking guard. Go's regexp engine is linear-time, so the
// guard's job is rejecting invalid or oversized patterns and bounding
// input size; unsafe patterns are reported as errors so evaluators can
// log and skip the rule instead of evaluating it.
func safeRegexMatch(pattern, input string) (bool, error) {
	if len(pattern) == 0 {
		return false, fmt.Errorf("empty regex pattern")
	}
	if len(pattern) > maxRegexPatternLen {
		return false, fmt.Errorf("regex pattern exceeds %d chars, rejecting as unsafe", maxRegexPatternLen)
	}
	if len(input) > maxRegexInputLen {
		input = input[:maxRegexInputLen]
	}

	re, err := compileCached(pattern)
	if err != nil {
		return false, fmt.Errorf("invalid regex pattern %q: %w", truncatePattern(pattern), err)
	}
	return re.MatchString(input), nil
}

func compileCached(pattern string) (*regexp.Regexp, error) {
	regexCache.RLock()
	re, ok := regexCache.compiled[pattern]
	regexCache.RUnlock()
	if ok {
		return re, nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	regexCache.Lock()
	regexCache.compiled[pattern] = re
	regexCache.Unlock()
	return re, nil
}

func truncatePattern(pattern string) string {
	if len(pattern) > 64 {
		return pattern[:64] + "..."
	}
	return strings.TrimSpace(pattern)
}
