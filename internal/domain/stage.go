package domain

import "fmt"

// AppStage is the top-level experience shown to the user
type AppStage int

const (
	StageStart AppStage = iota
	StageSplash
	StageMigration
	StageOnboarding
	StageMain
	StageCheckingCloud
)

func (s AppStage) String() string {
	switch s {
	case StageStart:
		return "start"
	case StageSplash:
		return "splash"
	case StageMigration:
		return "migration"
	case StageOnboarding:
		return "onboarding"
	case StageMain:
		return "main"
	case StageCheckingCloud:
		return "checkingCloud"
	default:
		return fmt.Sprintf("AppStage(%d)", int(s))
	}
}

// stageTransitions lists the forward moves allowed from each stage.
// Leaving main is only possible through an explicit reset.
var stageTransitions = map[AppStage][]AppStage{
	StageStart:         {StageCheckingCloud, StageMigration, StageMain, StageSplash},
	StageCheckingCloud: {StageMain, StageSplash},
	StageSplash:        {StageCheckingCloud, StageMigration, StageOnboarding, StageMain},
	StageMigration:     {StageMain, StageSplash},
	StageOnboarding:    {StageMain},
	StageMain:          nil,
}

// CanTransitionTo reports whether moving from s to next is a legal forward step
func (s AppStage) CanTransitionTo(next AppStage) bool {
	for _, allowed := range stageTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// NextStage validates a forward transition.
func NextStage(from, to AppStage) (AppStage, error) {
	if from == to {
		return from, nil
	}
	if !from.CanTransitionTo(to) {
		return from, fmt.Errorf("%w: stage %s -> %s", ErrIllegalTransition, from, to)
	}
	return to, nil
}
