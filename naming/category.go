// Package naming defines transaction categories, the metric-name prefixes
// derived from them, and the rule engine that rewrites transaction names
// before they are frozen.
package naming

// Category classifies the kind of work a transaction represents. The
// category decides the metric-name prefix and whether the transaction
// counts as web traffic.
type Category int

// The fixed set of transaction categories.
const (
	CategoryController Category = iota
	CategoryURI
	CategoryRack
	CategorySinatra
	CategoryGrape
	CategoryMiddleware
	CategoryActionCable
	CategoryTask
	CategoryRake
	CategoryMessage
	CategoryOther
)

// Name markers shared by the naming rules and the transaction core.
const (
	ControllerPrefix       = "Controller/"
	MiddlewarePrefix       = "Middleware/"
	OtherTransactionPrefix = "OtherTransaction/"
	NestedPrefix           = "Nested/"
	UnknownTransaction     = "Unknown"
)

// IsWeb reports whether the category belongs to the web subset.
func (c Category) IsWeb() bool {
	switch c {
	case CategoryController, CategoryURI, CategoryRack, CategorySinatra,
		CategoryGrape, CategoryMiddleware, CategoryActionCable:
		return true
	default:
		return false
	}
}

func (c Category) String() string {
	switch c {
	case CategoryController:
		return "controller"
	case CategoryURI:
		return "uri"
	case CategoryRack:
		return "rack"
	case CategorySinatra:
		return "sinatra"
	case CategoryGrape:
		return "grape"
	case CategoryMiddleware:
		return "middleware"
	case CategoryActionCable:
		return "action_cable"
	case CategoryTask:
		return "task"
	case CategoryRake:
		return "rake"
	case CategoryMessage:
		return "message"
	default:
		return "other"
	}
}

// PrefixFor returns the metric-name prefix for a category.
func PrefixFor(c Category) string {
	switch c {
	case CategoryController, CategoryURI, CategoryRack, CategorySinatra,
		CategoryGrape, CategoryActionCable:
		return ControllerPrefix
	case CategoryMiddleware:
		return MiddlewarePrefix
	case CategoryTask:
		return OtherTransactionPrefix + "Background/"
	case CategoryRake:
		return OtherTransactionPrefix + "Rake/"
	case CategoryMessage:
		return OtherTransactionPrefix + "Message/"
	default:
		return OtherTransactionPrefix
	}
}
