// Package kstats exposes live kernel counters as prometheus counters,
// grounded on the teacher's stats package (Counter_t/Cycles_t compiled-out
// unless built with a Stats flag) but made runtime-observable instead of
// build-time-gated, since this core has no equivalent of the teacher's
// kernel-image build step to gate debug instrumentation at.
package kstats

import "github.com/prometheus/client_golang/prometheus"

// Kstats_t is the set of counters this core maintains. One instance is
// created per simulated boot (internal/proc.ProcTable_t's lifetime) so
// tests can register independent registries. Every field here is actually
// incremented somewhere in the tree (internal/sched.Sched_t.Enter for
// ContextSwitch, internal/vm.PageFault for PageFaults, cmd/nucleusctl's
// demo for the rest) rather than shipped as always-zero instrumentation.
type Kstats_t struct {
	ProcsCreated  prometheus.Counter
	ProcsReaped   prometheus.Counter
	ForkCalls     prometheus.Counter
	ContextSwitch prometheus.Counter
	PageFaults    prometheus.Counter
}

// New constructs a fresh counter set and registers it with reg.
func New(reg prometheus.Registerer) *Kstats_t {
	k := &Kstats_t{
		ProcsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nucleus_procs_created_total",
			Help: "Processes created since boot.",
		}),
		ProcsReaped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nucleus_procs_reaped_total",
			Help: "Processes reaped by waitpid since boot.",
		}),
		ForkCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nucleus_fork_calls_total",
			Help: "fork() calls since boot.",
		}),
		ContextSwitch: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nucleus_context_switches_total",
			Help: "Scheduler CPU handoffs since boot.",
		}),
		PageFaults: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nucleus_page_faults_total",
			Help: "Page faults resolved since boot.",
		}),
	}
	reg.MustRegister(
		k.ProcsCreated, k.ProcsReaped, k.ForkCalls,
		k.ContextSwitch, k.PageFaults,
	)
	return k
}
