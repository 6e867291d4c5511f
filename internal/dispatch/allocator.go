package dispatch

import "lead-manager-backend/internal/agents"

// Eligible filters the product's agent pool down to agents that are active
// and whose half-open working window contains the given hour. Pool order is
// preserved so round-robin assignment is deterministic.
func Eligible(pool []agents.Agent, hour int) []agents.Agent {
	out := make([]agents.Agent, 0, len(pool))
	for _, agent := range pool {
		if agent.Active && agent.WorksAt(hour) {
			out = append(out, agent)
		}
	}
	return out
}

// Allocator hands out agents in strict round-robin order. The counter lives
// only for one send invocation; nothing persists across operations.
type Allocator struct {
	agents  []agents.Agent
	counter int
}

func NewAllocator(eligible []agents.Agent) *Allocator {
	return &Allocator{agents: eligible}
}

func (a *Allocator) Next() agents.Agent {
	agent := a.agents[a.counter%len(a.agents)]
	a.counter++
	return agent
}

func (a *Allocator) Agents() []agents.Agent {
	return a.agents
}
