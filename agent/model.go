package agent

import (
	"github.com/randalmurphal/llmkit/model"
)

// DefaultStepModels maps each step to the model it runs on by default.
// Steps that only move artifacts around still get a model so subprocess
// agents can be told which one to use.
var DefaultStepModels = map[StepType]model.ModelName{
	StepAnalysis:         model.ModelOpus,
	StepPlanning:         model.ModelOpus,
	StepCodeReview:       model.ModelOpus,
	StepImplementation:   model.ModelSonnet,
	StepGitCommit:        model.ModelHaiku,
	StepCommitPlan:       model.ModelHaiku,
	StepPostPlan:         model.ModelHaiku,
	StepPostTicketUpdate: model.ModelHaiku,
	StepCreatePR:         model.ModelHaiku,
	StepCompletion:       model.ModelHaiku,
}

// TierForStep returns the model tier a step needs.
func TierForStep(s StepType) model.Tier {
	switch s {
	case StepAnalysis, StepPlanning, StepCodeReview:
		return model.TierThinking
	case StepImplementation:
		return model.TierDefault
	default:
		return model.TierFast
	}
}

// ModelFor picks the model for a step. A non-empty override in gc wins,
// then the default map, then the step's tier.
func ModelFor(s StepType, gc Context) model.ModelName {
	if gc.Model != "" {
		return gc.Model
	}
	if m, ok := DefaultStepModels[s]; ok {
		return m
	}
	switch TierForStep(s) {
	case model.TierThinking:
		return model.ModelOpus
	case model.TierFast:
		return model.ModelHaiku
	default:
		return model.ModelSonnet
	}
}
