package topic

import (
	"fmt"
)

// Topic segments shared by the relay and its consumers.
const (
	// SuffixTelemetry carries the telemetry snapshot (Robot -> Broker).
	// Structure: {root}/telemetry/{robotID}
	SuffixTelemetry = "telemetry"

	// SuffixOnline carries the retained connectivity summary.
	// Structure: {root}/online/{robotID}
	SuffixOnline = "online"

	// SuffixCommand carries remote movement and chat intents (Broker -> Robot).
	// Structure: {root}/command/{robotID}
	SuffixCommand = "command"

	// SuffixStatus carries the operator status line.
	// Structure: {root}/status/{robotID}
	SuffixStatus = "status"
)

// TopicBuilder constructs topic strings under a fixed root.
type TopicBuilder struct {
	root string
}

// NewTopicBuilder creates a TopicBuilder for root, e.g. "mizuna/v1".
func NewTopicBuilder(root string) *TopicBuilder {
	return &TopicBuilder{root: root}
}

// Telemetry returns the topic a robot's telemetry snapshot is published to.
func (b *TopicBuilder) Telemetry(robotID string) string {
	return b.build(SuffixTelemetry, robotID)
}

// Online returns the retained connectivity topic of a robot.
func (b *TopicBuilder) Online(robotID string) string {
	return b.build(SuffixOnline, robotID)
}

// OnlineWildcard subscribes to the connectivity of every robot.
func (b *TopicBuilder) OnlineWildcard() string {
	return b.build(SuffixOnline, Wildcard)
}

// Command returns the topic remote intents for a robot arrive on.
func (b *TopicBuilder) Command(robotID string) string {
	return b.build(SuffixCommand, robotID)
}

// Status returns the topic the operator status line is published to.
func (b *TopicBuilder) Status(robotID string) string {
	return b.build(SuffixStatus, robotID)
}

// All matches every topic under the root.
func (b *TopicBuilder) All() string {
	return fmt.Sprintf("%s/%s", b.root, MultiWildcard)
}

func (b *TopicBuilder) build(suffix, id string) string {
	return fmt.Sprintf("%s/%s/%s", b.root, suffix, id)
}
