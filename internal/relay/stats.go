package relay

import (
	"fmt"

	"github.com/m3rciful/relaybot/core/metrics"
)

// FormatStats renders counters for the admin /stats reply.
func FormatStats(st metrics.Stats) string {
	return fmt.Sprintf("📊 Active sessions: %d\nForwarded: %d (failed: %d)\nAuto replies: %d",
		st.ActiveSessions, st.Forwarded, st.ForwardFailed, st.AutoReplies)
}
