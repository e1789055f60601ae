package onboarding

import (
	"sort"

	"github.com/FACorreiaa/onelink-market/internal/types"
)

// MergeProgress folds a user's step rows into a single view. The result does
// not depend on row order: currentStep is the max over rows, completedSteps
// the sorted union, and for a repeated step the most recent row wins.
func MergeProgress(rows []types.ProgressRecord, profileRole types.Role) types.Progress {
	out := types.Progress{
		CurrentStep:    1,
		CompletedSteps: []int{},
		Status:         types.ProgressDraft,
		Steps:          []types.StepSnapshot{},
	}

	byStep := make(map[int]types.ProgressRecord, len(rows))
	completed := make(map[int]struct{})
	var role *types.Role
	var roleAt types.ProgressRecord

	for _, row := range rows {
		cur := row.CurrentStep
		if cur == 0 {
			cur = row.Step
		}
		if cur > out.CurrentStep {
			out.CurrentStep = cur
		}
		for _, s := range row.CompletedSteps {
			completed[s] = struct{}{}
		}
		if prev, ok := byStep[row.Step]; !ok || row.UpdatedAt.After(prev.UpdatedAt) {
			byStep[row.Step] = row
		}
		if row.Role != nil && *row.Role != "" && (role == nil || row.UpdatedAt.After(roleAt.UpdatedAt)) {
			role = row.Role
			roleAt = row
		}
		if row.Status == types.ProgressCompleted {
			out.Status = types.ProgressCompleted
		}
	}

	for s := range completed {
		out.CompletedSteps = append(out.CompletedSteps, s)
	}
	sort.Ints(out.CompletedSteps)

	for _, row := range byStep {
		data := row.Data
		if len(data) == 0 {
			data = []byte("{}")
		}
		out.Steps = append(out.Steps, types.StepSnapshot{Step: row.Step, Data: data, UpdatedAt: row.UpdatedAt})
	}
	sort.Slice(out.Steps, func(i, j int) bool { return out.Steps[i].Step < out.Steps[j].Step })

	out.Role = profileRole
	if role != nil {
		out.Role = *role
	}
	return out
}
