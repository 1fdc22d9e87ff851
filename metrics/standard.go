package metrics

// Pre-defined metrics for a Vanadium host process. All metrics live in
// DefaultRegistry so they are globally accessible without passing a
// registry around.

var (
	// ---- Page-fault metrics ----

	// PageFaultsServed counts GetPage requests answered by the host.
	PageFaultsServed = DefaultRegistry.Counter("pagefault.served")
	// PageFaultLatency records time to answer a page fault, in milliseconds.
	PageFaultLatency = DefaultRegistry.Histogram("pagefault.latency_ms")
	// PageCommits counts CommitPage requests answered by the host.
	PageCommits = DefaultRegistry.Counter("pagefault.commits")
	// ProofVerificationFailures counts inclusion/update proofs that failed verification.
	ProofVerificationFailures = DefaultRegistry.Counter("pagefault.proof_failures")

	// ---- Message channel metrics ----

	// MessagesSent counts xsend buffers delivered to the host.
	MessagesSent = DefaultRegistry.Counter("msgchannel.sent")
	// MessagesReceived counts xrecv buffers delivered to the V-App.
	MessagesReceived = DefaultRegistry.Counter("msgchannel.received")
	// MessageBytesSent counts total bytes sent through xsend.
	MessageBytesSent = DefaultRegistry.Counter("msgchannel.bytes_sent")

	// ---- Host engine metrics ----

	// EngineExits counts V-App processes that exited cleanly.
	EngineExits = DefaultRegistry.Counter("hostengine.exits")
	// EnginePanics counts V-App processes that panicked.
	EnginePanics = DefaultRegistry.Counter("hostengine.panics")
	// EngineFatalErrors counts protocol-fatal errors (proof failure, protocol violation).
	EngineFatalErrors = DefaultRegistry.Counter("hostengine.fatal_errors")

	// ---- Transport metrics ----

	// TransportRoundTrips counts request/response exchanges over the wire transport.
	TransportRoundTrips = DefaultRegistry.Counter("transport.roundtrips")
	// TransportLatency records round-trip latency in milliseconds.
	TransportLatency = DefaultRegistry.Histogram("transport.latency_ms")
)
