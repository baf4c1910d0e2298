package ruby

import (
	"bufio"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/matzehuels/stackbuild/pkg/deps"
)

// gemPattern matches `gem 'name'` followed by optional quoted requirement
// strings: `gem "puma", ">= 5.0", "< 7"`.
var (
	gemPattern = regexp.MustCompile(`^\s*gem\s+['"]([^'"]+)['"]((?:\s*,\s*['"][^'"]*['"])*)`)
	reqPattern = regexp.MustCompile(`['"]([^'"]*)['"]`)
)

// ReadGemfile parses the gem declarations of a Gemfile at path.
func ReadGemfile(path string) ([]deps.Requirement, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseGemfile(f)
}

// ParseGemfile extracts `gem` declarations with their version requirements.
// Groups, sources and platforms are ignored; a gem declared twice keeps the
// union of its requirements. Options such as `require: false` end the
// requirement list.
func ParseGemfile(r io.Reader) ([]deps.Requirement, error) {
	var gems []deps.Requirement
	index := make(map[string]int)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()

		// Skip comments
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}

		match := gemPattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		name := strings.ToLower(match[1])
		var constraints []string
		for _, m := range reqPattern.FindAllStringSubmatch(match[2], -1) {
			constraints = append(constraints, strings.Split(m[1], ",")...)
		}

		i, seen := index[name]
		if !seen {
			i = len(gems)
			index[name] = i
			gems = append(gems, deps.Requirement{Name: name})
		}
		cs := deps.ConstraintSet{name: gems[i].Constraints}
		cs.Add(name, constraints...)
		gems[i].Constraints = cs[name]
	}
	return gems, scanner.Err()
}
