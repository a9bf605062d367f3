package matrix

import (
	"sort"

	"git.home.luguber.info/inful/buildmatrix/internal/config"
	"git.home.luguber.info/inful/buildmatrix/internal/feature"
)

// Rejection records one (target, combination) pair filtered out by the
// validator, kept for observability.
type Rejection struct {
	Target      config.Target       `json:"target"`
	Combination config.Combination  `json:"combination"`
	Key         string              `json:"key"`
	Reasons     []feature.Rejection `json:"reasons"`
}

// Expansion is the result of expanding the matrix: the surviving jobs in
// canonical order plus every rejection.
type Expansion struct {
	Jobs       []Job       `json:"jobs"`
	Rejections []Rejection `json:"rejections"`
}

// Expand cross-products targets and combinations, filters every pair through
// the validator and returns jobs in stable canonical order (target name,
// then combination key). Duplicate (target, combination) pairs collapse to
// one job so each job ID appears at most once.
func Expand(targets []config.Target, combos []config.Combination, set *feature.Set) Expansion {
	var exp Expansion
	seen := make(map[string]bool)

	for _, target := range targets {
		for _, combo := range combos {
			reasons := set.Validate(combo, target)
			if len(reasons) > 0 {
				exp.Rejections = append(exp.Rejections, Rejection{
					Target:      target,
					Combination: combo,
					Key:         feature.CanonicalKey(combo),
					Reasons:     reasons,
				})
				continue
			}

			job := NewJob(target, combo)
			if seen[job.ID] {
				continue
			}
			seen[job.ID] = true
			exp.Jobs = append(exp.Jobs, job)
		}
	}

	sortJobs(exp.Jobs)
	sortRejections(exp.Rejections)
	return exp
}

// sortJobs orders jobs by target name then canonical combination key so
// logs and retries are comparable run over run.
func sortJobs(jobs []Job) {
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].Target.Name != jobs[j].Target.Name {
			return jobs[i].Target.Name < jobs[j].Target.Name
		}
		return jobs[i].Key < jobs[j].Key
	})
}

func sortRejections(rejections []Rejection) {
	sort.Slice(rejections, func(i, j int) bool {
		if rejections[i].Target.Name != rejections[j].Target.Name {
			return rejections[i].Target.Name < rejections[j].Target.Name
		}
		return rejections[i].Key < rejections[j].Key
	})
}
