package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the root of every topic the animation service uses.
const TopicPrefix = "tef"

// Topic sub-trees.
const (
	// TopicPrefixAnimation carries parameter writes to animation modules.
	TopicPrefixAnimation = TopicPrefix + "/animation"

	// TopicPrefixPlayer carries player status, program state and control.
	TopicPrefixPlayer = TopicPrefix + "/player"
)

// Topics provides builders for the service's MQTT topics.
//
//	topics := mqtt.Topics{}
//	topic := topics.AnimationSet("ears")
//	// Returns: "tef/animation/ears/set"
type Topics struct{}

// =============================================================================
// Animation Topics
// =============================================================================

// AnimationSet returns the topic an animation module listens on for
// parameter updates.
//
// Example: tef/animation/ears/set
func (Topics) AnimationSet(module string) string {
	return fmt.Sprintf("%s/%s/set", TopicPrefixAnimation, module)
}

// AllAnimationSets returns a wildcard matching every module's set topic.
func (Topics) AllAnimationSets() string {
	return TopicPrefixAnimation + "/+/set"
}

// =============================================================================
// Player Topics
// =============================================================================

// PlayerStatus returns the retained online/offline status topic. It also
// carries the Last Will message.
//
// Example: tef/player/status
func (Topics) PlayerStatus() string {
	return TopicPrefixPlayer + "/status"
}

// PlayerProgram returns the retained state topic for one player slot.
//
// Example: tef/player/program/main
func (Topics) PlayerProgram(key string) string {
	return fmt.Sprintf("%s/program/%s", TopicPrefixPlayer, key)
}

// PlayerControl returns the topic that assigns or clears one player slot.
//
// Example: tef/player/control/main
func (Topics) PlayerControl(key string) string {
	return fmt.Sprintf("%s/control/%s", TopicPrefixPlayer, key)
}

// AllPlayerControl returns a wildcard matching every slot's control topic.
func (Topics) AllPlayerControl() string {
	return TopicPrefixPlayer + "/control/+"
}

// ControlKey extracts the slot key from a control topic.
// It returns false for any topic that is not a single-level control topic.
func (Topics) ControlKey(topic string) (string, bool) {
	prefix := TopicPrefixPlayer + "/control/"
	if !strings.HasPrefix(topic, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(topic, prefix)
	if key == "" || strings.Contains(key, "/") {
		return "", false
	}
	return key, true
}

// AllTopics returns a wildcard matching everything under the prefix.
// Useful for debugging and monitoring.
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}
