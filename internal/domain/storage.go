package domain

// StageObserver is notified after every stage change, in transition order.
type StageObserver func(AppStage)

// StatusObserver is notified after every migration status change.
type StatusObserver func(MigrationStatus)

// ChannelStageObserver forwards stage changes to a channel without blocking.
// Updates are dropped when the channel is full.
type ChannelStageObserver struct {
	Ch chan<- AppStage
}

func (o ChannelStageObserver) Observe(stage AppStage) {
	select {
	case o.Ch <- stage:
	default:
	}
}

// ChannelStatusObserver forwards migration status to a channel without blocking.
type ChannelStatusObserver struct {
	Ch chan<- MigrationStatus
}

func (o ChannelStatusObserver) Observe(status MigrationStatus) {
	select {
	case o.Ch <- status:
	default:
	}
}
