package txn

import (
	"log"
	"strings"

	"github.com/sarchlab/txcore/naming"
)

// fullName builds the transaction name a call site contributed: names that
// already carry a recognized prefix pass through, anything else gets the
// category prefix.
func fullName(name string, category naming.Category) string {
	if name == "" {
		return ""
	}

	if hasKnownPrefix(name) {
		return name
	}

	return naming.PrefixFor(category) + name
}

func hasKnownPrefix(name string) bool {
	return strings.HasPrefix(name, naming.ControllerPrefix) ||
		strings.HasPrefix(name, naming.MiddlewarePrefix) ||
		strings.HasPrefix(name, naming.OtherTransactionPrefix) ||
		strings.HasPrefix(name, naming.NestedPrefix)
}

// nestedName prefixes the nested marker onto names that would otherwise
// collide with the top-level transaction name.
func nestedName(name string) string {
	if strings.HasPrefix(name, naming.ControllerPrefix) ||
		strings.HasPrefix(name, naming.OtherTransactionPrefix) {
		return naming.NestedPrefix + name
	}

	return name
}

// nameInfluencible reports whether a call with the given category may
// change the transaction's name: allowed while no category has influenced
// naming yet, for the effective top-level call, or when the new category
// stays within the same web/non-web subset.
func (t *Transaction) nameInfluencible(category naming.Category) bool {
	if !t.categorySet {
		return true
	}

	if len(t.frameStack) == 1 {
		return true
	}

	return category.IsWeb() == t.category.IsWeb()
}

// setDefaultName records a call site's name contribution, subject to the
// influence rule. It reports whether the contribution was taken.
func (t *Transaction) setDefaultName(
	name string,
	category naming.Category,
) bool {
	if t.frozen {
		log.Printf(
			"txcore: rename to %q ignored, name already frozen as %q",
			name, t.frozenName)
		return false
	}

	if !t.nameInfluencible(category) {
		return false
	}

	t.defaultName = name
	t.category = category
	t.categorySet = true

	return true
}

// SetOverriddenName renames the transaction explicitly. The override wins
// over every default-name contribution but loses to a frozen name, and it
// is subject to the same influence rule as default names; renames after
// freezing are rejected with a logged warning.
func (t *Transaction) SetOverriddenName(
	name string,
	category naming.Category,
) bool {
	if t.frozen {
		log.Printf(
			"txcore: rename to %q ignored, name already frozen as %q",
			name, t.frozenName)
		return false
	}

	if !t.nameInfluencible(category) {
		return false
	}

	t.overriddenName = name
	t.category = category
	t.categorySet = true

	return true
}

// bestName resolves the transaction's name under the precedence
// frozen > overridden > default > unknown.
func (t *Transaction) bestName() string {
	switch {
	case t.frozen:
		return t.frozenName
	case t.overriddenName != "":
		return t.overriddenName
	case t.defaultName != "":
		return t.defaultName
	default:
		return naming.PrefixFor(t.category) + naming.UnknownTransaction
	}
}

// freezeName fixes the transaction's final name. It is idempotent. A
// middleware-prefixed name is promoted to a controller name first, then the
// configured rename rules apply; a rule match that drops the name ignores
// the whole transaction.
func (t *Transaction) freezeName() {
	if t.frozen {
		return
	}

	name := t.bestName()

	if strings.HasPrefix(name, naming.MiddlewarePrefix) {
		name = naming.ControllerPrefix + name
	}

	renamed, keep := t.agent.cfg.NamingRules.Rename(name)
	if !keep {
		t.Ignore()
		t.frozen = true
		t.frozenName = name

		return
	}

	t.frozen = true
	t.frozenName = renamed
}

// FrozenName resolves and freezes the transaction's final name.
func (t *Transaction) FrozenName() string {
	t.freezeName()
	return t.frozenName
}
