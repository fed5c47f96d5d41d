package messaging

// Topic constants for the mining pool messaging system. poold is the sole
// producer on every one of these: job construction, share validation, and
// block submission all happen synchronously inside its core Engine. The
// topics exist for external fan-out only — jobmanager, shareproc, and
// blocksubmit are satellite consumers archiving outcomes for dashboards and
// audit history, never on the submit->validate->credit path.
const (
	TopicJobs            = "mining.jobs"             // poold → jobmanager
	TopicShares          = "mining.shares"           // unused: submissions never leave poold
	TopicBlockCandidates = "mining.block_candidates" // unused: blocks are submitted inside poold's Share Ledger
	TopicBlockResults    = "mining.block_results"    // poold → blocksubmit
	TopicShareResults    = "mining.share_results"    // poold → shareproc

	// Statistics and monitoring topics
	TopicUserStats  = "mining.user_stats" // shareproc → statsd
	TopicMinerStats = "miner.stats"       // poold → statsd
	TopicPoolStats  = "pool.stats"        // statsd → apiserver
)
