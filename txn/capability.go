package txn

import (
	"github.com/sarchlab/txcore/attributes"
	"github.com/sarchlab/txcore/metrics"
)

// DistributedTraceParticipant is the capability a tracing state implements
// when the transaction takes part in a distributed trace. The commit
// pipeline calls each hook only if the state implements it.
type DistributedTraceParticipant interface {
	AppendDistributedTraceFields(p *Payload)
	AssignDistributedTraceIntrinsics(attrs *attributes.Collector)
	RecordDistributedTraceMetrics(c *metrics.Collector)
}

// CrossAppParticipant is the capability a tracing state implements when the
// transaction carries cross-application payload data.
type CrossAppParticipant interface {
	AppendCrossAppFields(p *Payload)
	AssignCrossAppIntrinsics(attrs *attributes.Collector)
	RecordCrossAppMetrics(c *metrics.Collector)
}

// DistributedTraceState is the built-in distributed-trace capability: it
// carries the identifiers received from or generated for the trace this
// transaction belongs to.
type DistributedTraceState struct {
	TraceID          string
	ParentID         string
	ParentType       string
	ParentApp        string
	TransportType    string
	CallerTransportD float64
}

// AppendDistributedTraceFields fills the payload's tracing intrinsics.
func (s *DistributedTraceState) AppendDistributedTraceFields(p *Payload) {
	if p.TracingIntrinsics == nil {
		p.TracingIntrinsics = make(map[string]interface{})
	}

	p.TracingIntrinsics["traceId"] = s.TraceID
	if s.ParentID != "" {
		p.TracingIntrinsics["parentId"] = s.ParentID
	}
}

// AssignDistributedTraceIntrinsics adds the trace identifiers to the
// attribute collector.
func (s *DistributedTraceState) AssignDistributedTraceIntrinsics(
	attrs *attributes.Collector,
) {
	attrs.AddIntrinsic("traceId", s.TraceID)

	if s.ParentType != "" {
		attrs.AddIntrinsic("parent.type", s.ParentType)
	}

	if s.ParentApp != "" {
		attrs.AddIntrinsic("parent.app", s.ParentApp)
	}

	if s.TransportType != "" {
		attrs.AddIntrinsic("parent.transportType", s.TransportType)
	}
}

// RecordDistributedTraceMetrics records the caller-keyed rollup metrics.
func (s *DistributedTraceState) RecordDistributedTraceMetrics(
	c *metrics.Collector,
) {
	if s.ParentType == "" {
		c.RecordCount("DurationByCaller/Unknown/all")
		return
	}

	c.RecordCount("DurationByCaller/" + s.ParentType + "/" + s.ParentApp + "/all")
}

// CrossAppState is the built-in cross-application capability.
type CrossAppState struct {
	CrossProcessID string
	TripID         string
	PathHash       string
}

// AppendCrossAppFields fills the payload's tracing intrinsics.
func (s *CrossAppState) AppendCrossAppFields(p *Payload) {
	if p.TracingIntrinsics == nil {
		p.TracingIntrinsics = make(map[string]interface{})
	}

	p.TracingIntrinsics["client_cross_process_id"] = s.CrossProcessID
	if s.TripID != "" {
		p.TracingIntrinsics["trip_id"] = s.TripID
	}
}

// AssignCrossAppIntrinsics adds the cross-app identifiers to the attribute
// collector.
func (s *CrossAppState) AssignCrossAppIntrinsics(
	attrs *attributes.Collector,
) {
	attrs.AddIntrinsic("client_cross_process_id", s.CrossProcessID)

	if s.PathHash != "" {
		attrs.AddIntrinsic("path_hash", s.PathHash)
	}
}

// RecordCrossAppMetrics records the calling-application rollup metric.
func (s *CrossAppState) RecordCrossAppMetrics(c *metrics.Collector) {
	c.RecordCount("ClientApplication/" + s.CrossProcessID + "/all")
}
