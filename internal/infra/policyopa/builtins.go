package policyopa

import (
	"fmt"
	"sort"
	"strings"

	"github.com/open-policy-agent/opa/ast"
)

// accessBuiltins is what an access decision over principal and document
// fields may call. Network, clock and randomness builtins are excluded.
var accessBuiltins = map[string]struct{}{
	// comparison and unification
	"eq":    {},
	"equal": {},
	"neq":   {},
	"gt":    {},
	"gte":   {},
	"lt":    {},
	"lte":   {},
	// membership (`in`) and collections
	"internal.member_2": {},
	"internal.member_3": {},
	"count":             {},
	"array.concat":      {},
	"object.get":        {},
	"is_string":         {},
	"is_array":          {},
	// strings, for email and role matching
	"lower":      {},
	"upper":      {},
	"trim_space": {},
	"startswith": {},
	"endswith":   {},
	"contains":   {},
	"split":      {},
	"concat":     {},
	"sprintf":    {},
}

func restrictBuiltins(builtins []*ast.Builtin) []*ast.Builtin {
	kept := make([]*ast.Builtin, 0, len(accessBuiltins))
	for _, b := range builtins {
		if _, ok := accessBuiltins[b.Name]; ok {
			kept = append(kept, b)
		}
	}
	return kept
}

// checkBuiltins walks the compiled modules and names every builtin call that
// is not an access builtin.
func checkBuiltins(compiler *ast.Compiler) error {
	var disallowed []string
	seen := make(map[string]bool)
	for _, module := range compiler.Modules {
		ast.WalkTerms(module, func(term *ast.Term) bool {
			call, ok := term.Value.(ast.Call)
			if !ok || len(call) == 0 || call[0] == nil {
				return false
			}
			name := call[0].Value.String()
			if _, builtin := ast.BuiltinMap[name]; !builtin || seen[name] {
				return false
			}
			seen[name] = true
			if _, ok := accessBuiltins[name]; !ok {
				disallowed = append(disallowed, name)
			}
			return false
		})
	}
	if len(disallowed) == 0 {
		return nil
	}
	sort.Strings(disallowed)
	return fmt.Errorf("access policy calls disallowed builtins: %s", strings.Join(disallowed, ", "))
}
