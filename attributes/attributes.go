// Package attributes implements the destination-filtered attribute store
// attached to each transaction. Agent attributes carry a destination
// bitmask that controls which downstream consumers see them; intrinsic
// attributes are always delivered with the transaction payload; custom
// attributes are merged in from the instrumented application.
package attributes

// Destinations is a bitmask of downstream consumers an attribute is
// delivered to.
type Destinations uint

// The destinations an agent attribute can be routed to.
const (
	DestinationNone Destinations = 0

	DestinationTracer Destinations = 1 << iota
	DestinationEvents
	DestinationErrorCollector
	DestinationSegments

	DestinationAll = DestinationTracer | DestinationEvents |
		DestinationErrorCollector | DestinationSegments
)

type agentAttribute struct {
	value        interface{}
	destinations Destinations
}

// A Collector holds the attributes of one transaction. It is owned by a
// single execution context and needs no locking.
type Collector struct {
	agent     map[string]agentAttribute
	intrinsic map[string]interface{}
	custom    map[string]interface{}
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{
		agent:     make(map[string]agentAttribute),
		intrinsic: make(map[string]interface{}),
		custom:    make(map[string]interface{}),
	}
}

// AddAgentAttribute stores an agent-assigned attribute routed to the given
// destinations. Adding with DestinationNone drops the attribute.
func (c *Collector) AddAgentAttribute(
	key string,
	value interface{},
	destinations Destinations,
) {
	if destinations == DestinationNone {
		delete(c.agent, key)
		return
	}

	c.agent[key] = agentAttribute{value: value, destinations: destinations}
}

// AddIntrinsic stores an intrinsic attribute.
func (c *Collector) AddIntrinsic(key string, value interface{}) {
	c.intrinsic[key] = value
}

// MergeCustom merges application-supplied attributes. Later merges win on
// key collision.
func (c *Collector) MergeCustom(attrs map[string]interface{}) {
	for key, value := range attrs {
		c.custom[key] = value
	}
}

// ForDestination returns the agent attributes visible to one destination.
func (c *Collector) ForDestination(d Destinations) map[string]interface{} {
	out := make(map[string]interface{})
	for key, attr := range c.agent {
		if attr.destinations&d != 0 {
			out[key] = attr.value
		}
	}

	return out
}

// Intrinsics returns all intrinsic attributes.
func (c *Collector) Intrinsics() map[string]interface{} {
	out := make(map[string]interface{}, len(c.intrinsic))
	for key, value := range c.intrinsic {
		out[key] = value
	}

	return out
}

// Custom returns all application-supplied attributes.
func (c *Collector) Custom() map[string]interface{} {
	out := make(map[string]interface{}, len(c.custom))
	for key, value := range c.custom {
		out[key] = value
	}

	return out
}
