package graph

import (
	"github.com/google/uuid"

	"github.com/querysync/qsync/pkg/label"
)

// Delta is the structural difference between the graphs of two syncs.
type Delta struct {
	ID              string        `json:"id"`
	BaseGraphID     string        `json:"base_graph_id"`
	HeadGraphID     string        `json:"head_graph_id"`
	AddedTargets    []label.Label `json:"added_targets"`
	RemovedTargets  []label.Label `json:"removed_targets"`
	ChangedTargets  []label.Label `json:"changed_targets"` // deps or runtime deps differ
	AddedPackages   []string      `json:"added_packages"`
	RemovedPackages []string      `json:"removed_packages"`
	Stats           DeltaStats    `json:"stats"`
}

// DeltaStats holds summary statistics for a delta.
type DeltaStats struct {
	AddedTargetCount    int `json:"added_target_count"`
	RemovedTargetCount  int `json:"removed_target_count"`
	ChangedTargetCount  int `json:"changed_target_count"`
	AddedPackageCount   int `json:"added_package_count"`
	RemovedPackageCount int `json:"removed_package_count"`
}

// IsEmpty reports whether the two graphs have the same structure.
func (d *Delta) IsEmpty() bool {
	s := d.Stats
	return s.AddedTargetCount+s.RemovedTargetCount+s.ChangedTargetCount+
		s.AddedPackageCount+s.RemovedPackageCount == 0
}

// ComputeDelta computes the structural difference between a base and head graph.
// Targets are diffed by label; a target present in both is changed when its
// dependency edges differ.
func ComputeDelta(base, head *BuildGraph) *Delta {
	delta := &Delta{
		ID:          uuid.New().String(),
		BaseGraphID: base.ID(),
		HeadGraphID: head.ID(),
	}

	for _, t := range head.Targets() {
		old, exists := base.targetMap[t.Label]
		switch {
		case !exists:
			delta.AddedTargets = append(delta.AddedTargets, t.Label)
		case !old.Deps.Equal(t.Deps) || !old.RuntimeDeps.Equal(t.RuntimeDeps):
			delta.ChangedTargets = append(delta.ChangedTargets, t.Label)
		}
	}
	for _, t := range base.Targets() {
		if _, exists := head.targetMap[t.Label]; !exists {
			delta.RemovedTargets = append(delta.RemovedTargets, t.Label)
		}
	}

	for _, pkg := range head.packages.All() {
		if !base.packages.Contains(pkg) {
			delta.AddedPackages = append(delta.AddedPackages, pkg)
		}
	}
	for _, pkg := range base.packages.All() {
		if !head.packages.Contains(pkg) {
			delta.RemovedPackages = append(delta.RemovedPackages, pkg)
		}
	}

	delta.Stats = DeltaStats{
		AddedTargetCount:    len(delta.AddedTargets),
		RemovedTargetCount:  len(delta.RemovedTargets),
		ChangedTargetCount:  len(delta.ChangedTargets),
		AddedPackageCount:   len(delta.AddedPackages),
		RemovedPackageCount: len(delta.RemovedPackages),
	}

	return delta
}
