package tools

import (
	"taskpilot/internal/embedding"
	"taskpilot/internal/store"
)

// DefaultRegistry wires the full tool set for one project.
func DefaultRegistry(st *store.Store, engine embedding.Engine, projectID string, searchThreshold float64) *Registry {
	r := NewRegistry()
	r.MustRegister(&SearchDocumentsTool{Store: st, Engine: engine, ProjectID: projectID, Threshold: searchThreshold})
	r.MustRegister(&ListTasksTool{Store: st, ProjectID: projectID})
	r.MustRegister(&ProposeTasksTool{Store: st, ProjectID: projectID})
	r.MustRegister(&ConfirmProposedTasksTool{Store: st, ProjectID: projectID})
	r.MustRegister(&UpdateTaskTool{Store: st, ProjectID: projectID})
	r.MustRegister(&DeleteTaskTool{Store: st, ProjectID: projectID})
	r.MustRegister(&ProposePlanTool{Store: st, ProjectID: projectID})
	r.MustRegister(&ConfirmPlanTool{Store: st, ProjectID: projectID})
	return r
}
